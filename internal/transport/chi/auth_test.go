package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		keys   []string
		path   string
		header string
		want   int
	}{
		{"no keys passes through", nil, "/v1/sessions", "", http.StatusOK},
		{"empty keys pass through", []string{"", ""}, "/v1/sessions", "", http.StatusOK},
		{"missing header", []string{"secret"}, "/v1/sessions", "", http.StatusUnauthorized},
		{"basic scheme", []string{"secret"}, "/v1/sessions", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"wrong key", []string{"secret"}, "/v1/sessions", "Bearer wrong", http.StatusUnauthorized},
		{"prefix of key", []string{"secret"}, "/v1/sessions", "Bearer sec", http.StatusUnauthorized},
		{"valid key", []string{"secret"}, "/v1/sessions", "Bearer secret", http.StatusOK},
		{"second key", []string{"key1", "key2"}, "/v1/autocomplete", "Bearer key2", http.StatusOK},
		{"healthz is public", []string{"secret"}, "/healthz", "", http.StatusOK},
		{"metrics is public", []string{"secret"}, "/metrics", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := BearerAuthMiddleware(tt.keys)(okHandler())

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("got %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized {
				var errResp ErrorResponse
				if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
					t.Fatalf("decode error response: %v", err)
				}
				if errResp.Code != ErrorCodeUnauthorized {
					t.Errorf("error code: got %s, want %s", errResp.Code, ErrorCodeUnauthorized)
				}
			}
		})
	}
}
