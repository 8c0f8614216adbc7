// Package api implements the control API: the HTTP JSON interface consumed
// by the bot front end for managing users and mailboxes. Uses stdlib
// net/http with Go 1.22's pattern-matching ServeMux.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"mailwatch/internal/domain"
	"mailwatch/internal/store"
	"mailwatch/internal/supervisor"
)

// Server wraps the control API's HTTP surface: reads go straight to the
// store, writes that touch a running worker go through the supervisor.
type Server struct {
	store *store.Store
	sup   *supervisor.Supervisor
	log   *log.Logger
	srv   *http.Server
}

// New builds a Server bound to addr, backed by st and sup.
func New(addr string, st *store.Store, sup *supervisor.Supervisor) *Server {
	s := &Server{
		store: st,
		sup:   sup,
		log:   log.New(log.Writer(), "api ", log.LstdFlags),
	}
	mux := http.NewServeMux()
	s.routes(mux)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe starts the HTTP server; it blocks until the server stops.
func (s *Server) ListenAndServe() error {
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /users", s.createUser)
	mux.HandleFunc("GET /users/{id}/exists", s.userExists)
	mux.HandleFunc("POST /users/{id}/boxes", s.createBox)
	mux.HandleFunc("GET /users/{id}/boxes", s.listBoxes)
	mux.HandleFunc("GET /users/{id}/boxes/{box}", s.getBox)
	mux.HandleFunc("DELETE /users/{id}/boxes/{box}", s.deleteBox)
	mux.HandleFunc("GET /users/{id}/boxes/{box}/pause", s.pauseBox)
	mux.HandleFunc("GET /users/{id}/boxes/{box}/resume", s.resumeBox)
	mux.HandleFunc("GET /services", s.listServices)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errorResponse struct {
	Message string `json:"message"`
}

// writeError maps the domain error taxonomy to an HTTP status and a safe
// user-facing message, no stack traces, just the kind.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrServiceNotFound),
		errors.Is(err, domain.ErrBoxNotFound),
		errors.Is(err, domain.ErrBoxesNotFound),
		errors.Is(err, domain.ErrServicesNotAvailable):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "mailbox not found"})
	case errors.Is(err, domain.ErrUserAlreadyExists),
		errors.Is(err, domain.ErrBoxAlreadyExists):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "already exists"})
	case errors.Is(err, domain.ErrCredentialsInvalid):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Your email credentials are incorrect"})
	case errors.Is(err, domain.ErrBoxNotOwnedByUser):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "mailbox not owned by user"})
	case errors.Is(err, domain.ErrServerTimeout):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "service unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "service unavailable"})
	}
}
