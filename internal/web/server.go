// Package web serves the dashboard: server-rendered pages driven by the
// URL query and a JSON API over the same operations.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/user/agentinbox/internal/app"
	"github.com/user/agentinbox/internal/backend"
	"github.com/user/agentinbox/internal/composer"
	"github.com/user/agentinbox/internal/inbox"
	"github.com/user/agentinbox/internal/params"
	"github.com/user/agentinbox/pkg/langgraph/httpclient"
)

// Server is the dashboard HTTP handler.
type Server struct {
	app *app.App
	mux *http.ServeMux
}

// NewServer creates a Server over a.
func NewServer(a *app.App) *Server {
	s := &Server{
		app: a,
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /threads/{id}", s.handleThreadLink)
	s.mux.HandleFunc("POST /threads/{id}/respond", s.handleRespond)
	s.mux.HandleFunc("POST /threads/{id}/ignore", s.handleIgnore)
	s.mux.HandleFunc("POST /threads/{id}/resolve", s.handleResolve)
	s.mux.HandleFunc("POST /threads/{id}/reset", s.handleReset)
	s.mux.HandleFunc("GET /settings", s.handleSettings)
	s.mux.HandleFunc("POST /settings", s.handleSaveSettings)
	s.mux.HandleFunc("POST /inboxes", s.handleAddInbox)
	s.mux.HandleFunc("POST /inboxes/{id}", s.handleUpdateInbox)
	s.mux.HandleFunc("POST /inboxes/{id}/select", s.handleSelectInbox)
	s.mux.HandleFunc("POST /inboxes/{id}/delete", s.handleDeleteInbox)

	s.mux.HandleFunc("GET /api/inboxes", s.handleAPIInboxes)
	s.mux.HandleFunc("POST /api/inboxes", s.handleAPIAddInbox)
	s.mux.HandleFunc("PUT /api/inboxes/{id}", s.handleAPIUpdateInbox)
	s.mux.HandleFunc("DELETE /api/inboxes/{id}", s.handleAPIDeleteInbox)
	s.mux.HandleFunc("POST /api/inboxes/{id}/select", s.handleAPISelectInbox)
	s.mux.HandleFunc("GET /api/threads", s.handleAPIThreads)
	s.mux.HandleFunc("GET /api/threads/{id}", s.handleAPIThread)
	s.mux.HandleFunc("POST /api/threads/{id}/respond", s.handleAPIRespond)
	s.mux.HandleFunc("POST /api/threads/{id}/ignore", s.handleAPIIgnore)
	s.mux.HandleFunc("POST /api/threads/{id}/resolve", s.handleAPIResolve)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// formQuery returns the view state carried by a form post.
func formQuery(r *http.Request) params.Query {
	return params.Parse(r.FormValue("q"))
}

func redirect(w http.ResponseWriter, r *http.Request, q params.Query, path string) {
	http.Redirect(w, r, q.URL(path), http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	var apiErr *httpclient.APIError
	switch {
	case errors.Is(err, inbox.ErrNotFound), errors.Is(err, app.ErrThreadNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrInvalidInbox),
		errors.Is(err, composer.ErrNoInterrupt),
		errors.Is(err, composer.ErrNotAllowed),
		errors.Is(err, composer.ErrUnknownArg),
		errors.Is(err, composer.ErrEmptyResponse),
		errors.Is(err, composer.ErrIgnoreDisabled):
		return http.StatusBadRequest
	case errors.Is(err, composer.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, backend.ErrNoInboxes),
		errors.Is(err, backend.ErrNoDeploymentURL),
		errors.Is(err, backend.ErrNoAPIKey):
		return http.StatusPreconditionFailed
	case errors.Is(err, composer.ErrRunFailed), errors.As(err, &apiErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}
