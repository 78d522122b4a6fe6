package valkey

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/suggest/internal/db"
	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/query"
)

// Recognized sub-query params. Anything else is echoed back untouched.
const (
	ParamHitsPerPage          = "hitsPerPage"
	ParamFilters              = "filters"
	ParamAttributesToRetrieve = "attributesToRetrieve"
	ParamSearchableAttribute  = "restrictSearchableAttributes"
	ParamVectorField          = "vectorField"
)

// Item fields added to every hit.
const (
	FieldObjectID = "objectID"
	FieldScore    = "_score"
)

const defaultVectorField = "vector"

// MultiSearch implements description.Backend. One FT.SEARCH is built per sub-query and
// all of them go out in a single DoMulti.
func (b *Backend) MultiSearch(ctx context.Context, qs []query.SubQuery) ([]query.Response, error) {
	if len(qs) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(qs))
	for i, q := range qs {
		args, err := searchArgs(q)
		if err != nil {
			return nil, fmt.Errorf("sub-query %d: %w", i, err)
		}
		cmds[i] = b.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	}

	results := b.client.DoMulti(ctx, cmds...)
	out := make([]query.Response, len(qs))
	for i, res := range results {
		raw, err := res.ToArray()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, &db.Error{Op: db.OpSearch, Err: err})
		}
		resp, err := parseResult(raw)
		if err != nil {
			return nil, fmt.Errorf("sub-query %d: %w", i, err)
		}
		resp.Collection = qs[i].Collection
		resp.Text = qs[i].Text
		resp.Params = echo(qs[i].Params)
		out[i] = resp
	}
	return out, nil
}

// searchArgs builds the FT.SEARCH arguments for one sub-query.
func searchArgs(q query.SubQuery) ([]string, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	limit := DefaultHitsPerPage
	if v, ok := q.Params[ParamHitsPerPage]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s %q", ParamHitsPerPage, v)
		}
		limit = n
	}
	filters := strings.TrimSpace(q.Params[ParamFilters])

	var args []string
	if len(q.Vector) > 0 {
		field := q.Params[ParamVectorField]
		if field == "" {
			field = defaultVectorField
		}
		knnPart := fmt.Sprintf("[KNN %d @%s $BLOB]", limit, field)
		var queryStr string
		if filters != "" {
			queryStr = fmt.Sprintf("(%s)=>%s", filters, knnPart)
		} else {
			queryStr = fmt.Sprintf("*=>%s", knnPart)
		}
		args = []string{q.Collection, queryStr}
		args = appendReturn(args, q.Params)
		args = append(args,
			"LIMIT", "0", strconv.Itoa(limit),
			"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
			"DIALECT", "2",
		)
		return args, nil
	}

	textPart := prefixQuery(q.Text)
	if field := q.Params[ParamSearchableAttribute]; field != "" && textPart != "*" {
		textPart = fmt.Sprintf("@%s:(%s)", field, textPart)
	}

	queryStr := textPart
	switch {
	case filters != "" && textPart == "*":
		queryStr = filters
	case filters != "":
		queryStr = fmt.Sprintf("%s %s", filters, textPart)
	}

	args = []string{q.Collection, queryStr}
	args = appendReturn(args, q.Params)
	args = append(args, "LIMIT", "0", strconv.Itoa(limit), "DIALECT", "2")
	return args, nil
}

func appendReturn(args []string, p query.Params) []string {
	raw := p[ParamAttributesToRetrieve]
	if raw == "" {
		return args
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return args
	}
	args = append(args, "RETURN", strconv.Itoa(len(fields)))
	return append(args, fields...)
}

// prefixQuery escapes every term and turns the last one into a prefix match.
// Prefix expansion needs at least two characters.
func prefixQuery(text string) string {
	terms := strings.Fields(text)
	if len(terms) == 0 {
		return "*"
	}
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = escapeQuery(t)
	}
	if last := len(terms) - 1; utf8.RuneCountInString(terms[last]) >= 2 {
		out[last] += "*"
	}
	return strings.Join(out, " ")
}

// echo returns the params the backend received. Always non-nil: a nil echo would
// mean this backend cannot carry caller tags.
func echo(p query.Params) query.Params {
	if p == nil {
		return query.Params{}
	}
	return p.Clone()
}

// --- Result parsing ---

// parseResult reads a 2-stride FT.SEARCH reply: [total, key1, fields1, key2, fields2, ...].
func parseResult(raw []rueidis.RedisMessage) (query.Response, error) {
	resp := query.Response{Hits: []query.Item{}}
	if len(raw) == 0 {
		return resp, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return resp, fmt.Errorf("parse total: %w", err)
	}
	resp.Total = int(total)

	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		resp.Hits = append(resp.Hits, toItem(key, parseFieldPairs(fields)))
	}
	return resp, nil
}

func toItem(key string, fields map[string]string) query.Item {
	item := make(query.Item, len(fields)+1)

	// JSON documents without RETURN come back as a single "$" field.
	if doc, ok := fields["$"]; ok {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(doc), &decoded); err == nil {
			for k, v := range decoded {
				item[k] = v
			}
			delete(fields, "$")
		}
	}

	// __vector_score is cosine distance; expose similarity.
	if scoreStr, ok := fields["__vector_score"]; ok {
		if s, err := strconv.ParseFloat(scoreStr, 64); err == nil {
			item[FieldScore] = 1.0 - s
		}
		delete(fields, "__vector_score")
	}

	for k, v := range fields {
		item[k] = v
	}
	item[FieldObjectID] = key
	return item
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Query helpers ---

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
)

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
