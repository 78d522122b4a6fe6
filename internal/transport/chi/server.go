// Package chi serves autocomplete sessions over HTTP.
package chi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/kailas-cloud/suggest/internal/domain/query"
	"github.com/kailas-cloud/suggest/internal/metrics"
	"github.com/kailas-cloud/suggest/internal/usecase/autocomplete"
	healthuc "github.com/kailas-cloud/suggest/internal/usecase/health"
)

// Server implements the HTTP API.
type Server struct {
	sessions *autocomplete.Manager
	health   *healthuc.Service
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(sessions *autocomplete.Manager, health *healthuc.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{sessions: sessions, health: health, logger: logger}
}

// Routes mounts every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/autocomplete", s.Autocomplete)
		r.Post("/sessions", s.CreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Delete("/", s.DeleteSession)
			r.Get("/", s.GetSession)
			r.Get("/autocomplete", s.SessionAutocomplete)
			r.Post("/submit", s.Submit)
			r.Put("/context", s.SetContext)
		})
	})
}

// --- DTOs ---

type sessionResponse struct {
	ID string `json:"id"`
}

type collectionResponse struct {
	Source string       `json:"source"`
	Items  []query.Item `json:"items"`
}

type stateResponse struct {
	SessionID    string               `json:"sessionId,omitempty"`
	Query        string               `json:"query"`
	Status       string               `json:"status"`
	IsOpen       bool                 `json:"isOpen"`
	ActiveItemID *int                 `json:"activeItemId"`
	Collections  []collectionResponse `json:"collections"`
	Context      map[string]string    `json:"context,omitempty"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func stateToResponse(id string, st autocomplete.State) stateResponse {
	cols := make([]collectionResponse, len(st.Collections))
	for i, c := range st.Collections {
		items := c.Items
		if items == nil {
			items = []query.Item{}
		}
		cols[i] = collectionResponse{Source: c.Source, Items: items}
	}
	return stateResponse{
		SessionID:    id,
		Query:        st.Query,
		Status:       string(st.Status),
		IsOpen:       st.IsOpen,
		ActiveItemID: st.ActiveItemID,
		Collections:  cols,
		Context:      st.Context,
	}
}

// --- Handlers ---

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

// Autocomplete handles GET /v1/autocomplete: one cycle on a throwaway session.
func (s *Server) Autocomplete(w http.ResponseWriter, r *http.Request) {
	q, ok := s.bindQuery(w, r)
	if !ok {
		return
	}

	sess := s.sessions.Ephemeral()
	if err := sess.OnInput(r.Context(), q); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse("", sess.State()))
}

// CreateSession handles POST /v1/sessions.
func (s *Server) CreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Create()
	w.Header().Set("Location", "/v1/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, sessionResponse{ID: sess.ID()})
}

// GetSession handles GET /v1/sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(sess.ID(), sess.State()))
}

// DeleteSession handles DELETE /v1/sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.sessions.Delete(sess.ID())
	w.WriteHeader(http.StatusNoContent)
}

// SessionAutocomplete handles GET /v1/sessions/{id}/autocomplete.
func (s *Server) SessionAutocomplete(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	q, ok := s.bindQuery(w, r)
	if !ok {
		return
	}

	if err := sess.OnInput(r.Context(), q); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(sess.ID(), sess.State()))
}

// Submit handles POST /v1/sessions/{id}/submit.
func (s *Server) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	q, ok := s.bindQuery(w, r)
	if !ok {
		return
	}

	if err := sess.OnSubmit(r.Context(), q); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetContext handles PUT /v1/sessions/{id}/context.
func (s *Server) SetContext(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	sess.SetContext(values)
	w.WriteHeader(http.StatusNoContent)
}

// --- Binding ---

// session resolves the {id} path parameter. It writes the error response itself.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*autocomplete.Session, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid session id")
		return nil, false
	}

	sess, err := s.sessions.Get(id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return nil, false
	}
	return sess, true
}

// bindQuery reads the optional q query parameter.
func (s *Server) bindQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	var q string
	if err := runtime.BindQueryParameter("form", true, false, "q", r.URL.Query(), &q); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid query parameter q")
		return "", false
	}
	return q, true
}
