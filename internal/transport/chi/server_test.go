package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/suggest/internal/domain"
	logpkg "github.com/kailas-cloud/suggest/internal/logger"
	"github.com/kailas-cloud/suggest/internal/domain/description"
	"github.com/kailas-cloud/suggest/internal/domain/query"
	"github.com/kailas-cloud/suggest/internal/usecase/autocomplete"
	"github.com/kailas-cloud/suggest/internal/usecase/fetch"
	healthuc "github.com/kailas-cloud/suggest/internal/usecase/health"
)

// --- Mocks ---

// mockBackend returns one hit per sub-query labelled "<collection>:<text>".
type mockBackend struct {
	err error
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) MultiSearch(_ context.Context, qs []query.SubQuery) ([]query.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]query.Response, len(qs))
	for i, q := range qs {
		out[i] = query.Response{
			Collection: q.Collection,
			Text:       q.Text,
			Params:     q.Params.Clone(),
			Hits:       []query.Item{{"label": fmt.Sprintf("%s:%s", q.Collection, q.Text)}},
			Total:      1,
		}
	}
	return out, nil
}

type searchSource struct {
	backend description.Backend
}

func (s *searchSource) ID() string { return "products" }

func (s *searchSource) Describe(_ context.Context, in autocomplete.Input) (description.Description, error) {
	text := in.Query
	if v := in.State.Context["productQuery"]; v != "" {
		text = v
	}
	return &description.SearchBatch{
		Source:  "products",
		Backend: s.backend,
		Queries: []query.SubQuery{{Collection: "products", Text: text}},
	}, nil
}

type recordingSource struct {
	recorded []string
}

func (s *recordingSource) ID() string { return "recent" }

func (s *recordingSource) Describe(context.Context, autocomplete.Input) (description.Description, error) {
	return &description.Resolved{Source: "recent", Items: []query.Item{}}, nil
}

func (s *recordingSource) Record(_ context.Context, q string) error {
	s.recorded = append(s.recorded, q)
	return nil
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(context.Context) error { return m.err }

type fixture struct {
	srv      *httptest.Server
	sessions *autocomplete.Manager
	recent   *recordingSource
}

func newFixture(t *testing.T, backend *mockBackend, pingErr error) *fixture {
	t.Helper()
	recent := &recordingSource{}
	sessions := autocomplete.NewManager(fetch.New(nil), autocomplete.Options{
		GetSources: autocomplete.StaticSources(recent, &searchSource{backend: backend}),
	}, nil)
	health := healthuc.New().WithCheck("catalog", &mockPinger{err: pingErr})

	r := chi.NewRouter()
	NewServer(sessions, health, nil).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, sessions: sessions, recent: recent}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func (f *fixture) createSession(t *testing.T) string {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/v1/sessions", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status %d", resp.StatusCode)
	}
	return decode[sessionResponse](t, resp).ID
}

// --- Tests ---

func TestSessionAutocomplete(t *testing.T) {
	f := newFixture(t, &mockBackend{}, nil)
	id := f.createSession(t)

	resp := f.do(t, http.MethodGet, "/v1/sessions/"+id+"/autocomplete?q=sho", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	st := decode[stateResponse](t, resp)

	if st.SessionID != id || st.Query != "sho" || st.Status != "idle" || !st.IsOpen {
		t.Errorf("state = %+v", st)
	}
	if len(st.Collections) != 2 || st.Collections[0].Source != "recent" || st.Collections[1].Source != "products" {
		t.Fatalf("collections = %+v", st.Collections)
	}
	if got := st.Collections[1].Items[0]["label"]; got != "products:sho" {
		t.Errorf("label = %v", got)
	}
	if st.Collections[0].Items == nil {
		t.Error("empty collections must encode as []")
	}
}

func TestOneShotAutocomplete(t *testing.T) {
	f := newFixture(t, &mockBackend{}, nil)

	resp := f.do(t, http.MethodGet, "/v1/autocomplete?q=boots", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	st := decode[stateResponse](t, resp)
	if st.Collections[1].Items[0]["label"] != "products:boots" {
		t.Errorf("collections = %+v", st.Collections)
	}
	if f.sessions.Len() != 0 {
		t.Error("one-shot requests must not register sessions")
	}
}

func TestSetContextThenAutocomplete(t *testing.T) {
	f := newFixture(t, &mockBackend{}, nil)
	id := f.createSession(t)

	resp := f.do(t, http.MethodPut, "/v1/sessions/"+id+"/context", `{"productQuery":"sneakers"}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("set context: status %d", resp.StatusCode)
	}

	st := decode[stateResponse](t, f.do(t, http.MethodGet, "/v1/sessions/"+id+"/autocomplete?q=sho", ""))
	if got := st.Collections[1].Items[0]["label"]; got != "products:sneakers" {
		t.Errorf("label = %v", got)
	}
	if st.Context["productQuery"] != "sneakers" {
		t.Errorf("context = %v", st.Context)
	}
}

func TestSetContext_BadBody(t *testing.T) {
	f := newFixture(t, &mockBackend{}, nil)
	id := f.createSession(t)

	resp := f.do(t, http.MethodPut, "/v1/sessions/"+id+"/context", `[1,2]`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestSubmitRecords(t *testing.T) {
	f := newFixture(t, &mockBackend{}, nil)
	id := f.createSession(t)

	resp := f.do(t, http.MethodPost, "/v1/sessions/"+id+"/submit?q=running+shoes", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if len(f.recent.recorded) != 1 || f.recent.recorded[0] != "running shoes" {
		t.Errorf("recorded = %v", f.recent.recorded)
	}
}

func TestSessionNotFound(t *testing.T) {
	f := newFixture(t, &mockBackend{}, nil)

	resp := f.do(t, http.MethodGet, "/v1/sessions/missing/autocomplete?q=x", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
	if e := decode[ErrorResponse](t, resp); e.Code != ErrorCodeSessionNotFound {
		t.Errorf("code = %s", e.Code)
	}
}

func TestGetAndDeleteSession(t *testing.T) {
	f := newFixture(t, &mockBackend{}, nil)
	id := f.createSession(t)

	if resp := f.do(t, http.MethodGet, "/v1/sessions/"+id, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodDelete, "/v1/sessions/"+id, ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/v1/sessions/"+id, ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", resp.StatusCode)
	}
}

func TestBackendFailureIsBadGateway(t *testing.T) {
	backendErr := fmt.Errorf("%w: connection refused", domain.ErrBackendUnavailable)
	f := newFixture(t, &mockBackend{err: backendErr}, nil)

	resp := f.do(t, http.MethodGet, "/v1/autocomplete?q=x", "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", resp.StatusCode)
	}
	e := decode[ErrorResponse](t, resp)
	if e.Code != ErrorCodeBackendUnavailable {
		t.Errorf("code = %s", e.Code)
	}
	if strings.Contains(e.Message, "connection refused") {
		t.Error("internal error details must not leak")
	}
}

func TestUnexpectedErrorIsInternal(t *testing.T) {
	f := newFixture(t, &mockBackend{err: errors.New("boom")}, nil)

	resp := f.do(t, http.MethodGet, "/v1/autocomplete?q=x", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", resp.StatusCode)
	}
}

func TestErrorsLogWithRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reqLogger := zap.New(core).With(zap.String("request_id", "req-42"))

	sessions := autocomplete.NewManager(fetch.New(nil), autocomplete.Options{
		GetSources: autocomplete.StaticSources(&searchSource{backend: &mockBackend{err: errors.New("boom")}}),
	}, nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(logpkg.ContextWithLogger(req.Context(), reqLogger)))
		})
	})
	NewServer(sessions, healthuc.New(), nil).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	f := &fixture{srv: srv, sessions: sessions}
	if resp := f.do(t, http.MethodGet, "/v1/autocomplete?q=x", ""); resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/v1/sessions/missing/autocomplete?q=x", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}

	internal := logs.FilterMessage("internal error").All()
	if len(internal) != 1 {
		t.Fatalf("internal error entries = %d, want 1", len(internal))
	}
	if got := internal[0].ContextMap()["request_id"]; got != "req-42" {
		t.Errorf("internal error request_id = %v", got)
	}
	domainErrs := logs.FilterMessage("domain error").All()
	if len(domainErrs) != 1 || domainErrs[0].ContextMap()["request_id"] != "req-42" {
		t.Errorf("domain error entries = %+v", domainErrs)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, &mockBackend{}, nil)
	resp := f.do(t, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if h := decode[healthResponse](t, resp); h.Status != "ok" || h.Checks["catalog"] != "ok" {
		t.Errorf("health = %+v", h)
	}

	f = newFixture(t, &mockBackend{}, errors.New("down"))
	if resp := f.do(t, http.MethodGet, "/healthz", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", resp.StatusCode)
	}
}
