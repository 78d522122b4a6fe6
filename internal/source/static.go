package source

import (
	"context"
	"errors"
	"strings"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"

	"github.com/kailas-cloud/suggest/internal/domain/description"
	"github.com/kailas-cloud/suggest/internal/domain/query"
	"github.com/kailas-cloud/suggest/internal/usecase/autocomplete"
)

// DefaultLabelField is the item field static and recent sources match against.
const DefaultLabelField = "label"

// Static filters a fixed item list locally. Every query token must be a prefix of
// some label token, compared both as typed and after English stemming.
type Static struct {
	id         string
	items      []query.Item
	labelField string
	limit      int
	index      [][]labelToken
}

type labelToken struct {
	raw  string
	stem string
}

// NewStatic creates a static source over items.
func NewStatic(id string, items []query.Item) (*Static, error) {
	if id == "" {
		return nil, errors.New("source id is required")
	}
	s := &Static{id: id, items: items, labelField: DefaultLabelField}
	s.reindex()
	return s, nil
}

// WithLabelField sets the field matched against the query.
func (s *Static) WithLabelField(field string) *Static {
	if field != "" {
		s.labelField = field
		s.reindex()
	}
	return s
}

// WithLimit caps the number of returned items. Zero means no cap.
func (s *Static) WithLimit(n int) *Static {
	s.limit = n
	return s
}

// ID implements autocomplete.Source.
func (s *Static) ID() string { return s.id }

// Describe implements autocomplete.Source.
func (s *Static) Describe(_ context.Context, in autocomplete.Input) (description.Description, error) {
	return &description.Resolved{Source: s.id, Items: s.match(in.Query)}, nil
}

func (s *Static) match(q string) []query.Item {
	terms := queryTerms(q)
	out := make([]query.Item, 0)
	for i, item := range s.items {
		if s.limit > 0 && len(out) >= s.limit {
			break
		}
		if matchesAll(terms, s.index[i]) {
			out = append(out, item)
		}
	}
	return out
}

func (s *Static) reindex() {
	s.index = make([][]labelToken, len(s.items))
	for i, item := range s.items {
		label, _ := item[s.labelField].(string)
		for _, tok := range tokenize(label) {
			s.index[i] = append(s.index[i], labelToken{raw: tok, stem: snowballeng.Stem(tok, false)})
		}
	}
}

// queryTerms drops stop words unless nothing else is left.
func queryTerms(q string) []labelToken {
	var all, kept []labelToken
	for _, tok := range tokenize(q) {
		t := labelToken{raw: tok, stem: snowballeng.Stem(tok, false)}
		all = append(all, t)
		if !snowballeng.IsStopWord(tok) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return all
	}
	return kept
}

func matchesAll(terms, label []labelToken) bool {
	for _, t := range terms {
		found := false
		for _, l := range label {
			if strings.HasPrefix(l.raw, t.raw) || strings.HasPrefix(l.stem, t.stem) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
