package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/v1/sessions/{id}/autocomplete", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+id+"/autocomplete", http.NoBody)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(
		http.MethodGet, "/v1/sessions/{id}/autocomplete", "200",
	))
	if got < 3 {
		t.Errorf("requests_total = %f, want >= 3", got)
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.WriteHeader(http.StatusOK) // ignored, first status wins
	})

	tests := []struct {
		path   string
		status string
	}{
		{"/missing", "404"},
		{"/boom", "500"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, http.NoBody)
			r.ServeHTTP(httptest.NewRecorder(), req)

			got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, tc.path, tc.status))
			if got < 1 {
				t.Errorf("requests_total{%s,%s} = %f, want >= 1", tc.path, tc.status, got)
			}
		})
	}
}

func TestRouteLabel(t *testing.T) {
	if got := routeLabel(""); got != "unmatched" {
		t.Errorf("routeLabel(\"\") = %q", got)
	}
	if got := routeLabel("/healthz"); got != "/healthz" {
		t.Errorf("routeLabel(/healthz) = %q", got)
	}
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	RegisterFetchMetrics()
	RegisterFetchMetrics() // idempotent
	CyclesTotal.WithLabelValues("ok").Inc()

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "suggest_cycles_total") {
		t.Error("expected suggest_cycles_total in exposition")
	}
}
