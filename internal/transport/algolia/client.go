// Package algolia implements a search backend over an Algolia-compatible
// multi-query HTTP endpoint.
package algolia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/description"
	"github.com/kailas-cloud/suggest/internal/domain/query"
)

// Compile-time check.
var _ description.Backend = (*Client)(nil)

const (
	queriesPath    = "/1/indexes/*/queries"
	defaultTimeout = 5 * time.Second
	maxErrorBody   = 1 << 10
	queryParam     = "query"
	// Keys with this prefix are internal to the caller. Algolia rejects
	// parameters it does not know, so they stay off the wire.
	internalPrefix = "__"
)

// Config holds connection parameters.
type Config struct {
	Name    string
	BaseURL string
	AppID   string
	APIKey  string
	Timeout time.Duration
}

// Client sends every sub-query of a group in one multi-query request.
type Client struct {
	name    string
	baseURL string
	appID   string
	apiKey  string
	http    *http.Client
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	name := cfg.Name
	if name == "" {
		name = "algolia"
	}
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		appID:   cfg.AppID,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Name implements description.Backend.
func (c *Client) Name() string { return c.name }

type multiRequest struct {
	Requests []indexRequest `json:"requests"`
}

type indexRequest struct {
	IndexName string `json:"indexName"`
	Params    string `json:"params"`
}

type multiResponse struct {
	Results []indexResult `json:"results"`
}

type indexResult struct {
	Index  string       `json:"index"`
	Query  string       `json:"query"`
	Params string       `json:"params"`
	NbHits int          `json:"nbHits"`
	Hits   []query.Item `json:"hits"`
}

// MultiSearch implements description.Backend.
func (c *Client) MultiSearch(ctx context.Context, qs []query.SubQuery) ([]query.Response, error) {
	if len(qs) == 0 {
		return nil, nil
	}

	req := multiRequest{Requests: make([]indexRequest, len(qs))}
	for i, q := range qs {
		if len(q.Vector) > 0 {
			return nil, fmt.Errorf("sub-query %d: vector queries are not supported", i)
		}
		req.Requests[i] = indexRequest{IndexName: q.Collection, Params: encodeParams(q)}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+queriesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Algolia-Application-Id", c.appID)
	httpReq.Header.Set("X-Algolia-API-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrBackendUnavailable, c.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %s: status %d: %s",
			domain.ErrBackendUnavailable, c.name, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var decoded multiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Results) != len(qs) {
		return nil, fmt.Errorf("%w: %s: got %d results for %d queries",
			domain.ErrBackendUnavailable, c.name, len(decoded.Results), len(qs))
	}

	out := make([]query.Response, len(decoded.Results))
	for i, r := range decoded.Results {
		hits := r.Hits
		if hits == nil {
			hits = []query.Item{}
		}
		out[i] = query.Response{
			Collection: r.Index,
			Text:       r.Query,
			Params:     restoreInternal(decodeParams(r.Params), qs[i].Params),
			Hits:       hits,
			Total:      r.NbHits,
		}
	}
	return out, nil
}

func encodeParams(q query.SubQuery) string {
	v := make(url.Values, len(q.Params)+1)
	for k, val := range q.Params {
		if strings.HasPrefix(k, internalPrefix) {
			continue
		}
		v.Set(k, val)
	}
	v.Set(queryParam, q.Text)
	return v.Encode()
}

// decodeParams turns the echoed params string back into Params. An empty echo
// yields nil so callers fall back to positional mapping.
func decodeParams(raw string) query.Params {
	if raw == "" {
		return nil
	}
	v, err := url.ParseQuery(raw)
	if err != nil {
		return query.Params{}
	}
	p := make(query.Params, len(v))
	for k := range v {
		if k == queryParam {
			continue
		}
		p[k] = v.Get(k)
	}
	return p
}

// restoreInternal puts the internal params of the request back onto the echo
// of the response at the same index. A nil echo stays nil so positional
// mapping still applies.
func restoreInternal(echo, sent query.Params) query.Params {
	if echo == nil {
		return nil
	}
	for k, val := range sent {
		if strings.HasPrefix(k, internalPrefix) {
			echo[k] = val
		}
	}
	return echo
}
