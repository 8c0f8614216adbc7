package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"mailwatch/internal/domain"
)

func pathInt64(r *http.Request, name string) (int64, bool) {
	v := r.PathValue(name)
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil
}

type createUserRequest struct {
	TelegramID int64 `json:"telegram_id"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "bad request"})
		return
	}
	if err := s.store.CreateUser(r.Context(), req.TelegramID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createUserRequest{TelegramID: req.TelegramID})
}

func (s *Server) userExists(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "bad request"})
		return
	}
	exists, err := s.store.UserExists(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !exists {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "mailbox not found"})
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type createBoxRequest struct {
	EmailService  int64              `json:"email_service"`
	EmailUsername string             `json:"email_username"`
	EmailPassword string             `json:"email_password"`
	Filters       []filterDTO        `json:"filters"`
}

type filterDTO struct {
	FilterValue string `json:"filter_value"`
	FilterName  string `json:"filter_name,omitempty"`
}

type boxDTO struct {
	ID            int64       `json:"id"`
	EmailService  int64       `json:"email_service"`
	EmailUsername string      `json:"email_username"`
	IsActive      bool        `json:"is_active"`
	Filters       []filterDTO `json:"filters,omitempty"`
}

func (s *Server) createBox(w http.ResponseWriter, r *http.Request) {
	telegramID, ok := pathInt64(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "bad request"})
		return
	}
	exists, err := s.store.UserExists(r.Context(), telegramID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !exists {
		writeError(w, domain.ErrUserNotFound)
		return
	}

	var req createBoxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "bad request"})
		return
	}
	filters := make([]domain.BoxFilter, len(req.Filters))
	for i, f := range req.Filters {
		filters[i] = domain.BoxFilter{FilterValue: f.FilterValue, FilterName: f.FilterName}
	}

	box, err := s.sup.CreateMailbox(r.Context(), telegramID, req.EmailService, req.EmailUsername, req.EmailPassword, filters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, boxDTO{
		ID:            box.ID,
		EmailService:  box.EmailServiceID,
		EmailUsername: box.Username,
		IsActive:      box.IsActive,
	})
}

func (s *Server) listBoxes(w http.ResponseWriter, r *http.Request) {
	telegramID, ok := pathInt64(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "bad request"})
		return
	}
	boxes, err := s.store.BoxesForUser(r.Context(), telegramID)
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]boxDTO, len(boxes))
	for i, b := range boxes {
		dtos[i] = boxDTO{ID: b.ID, EmailService: b.EmailServiceID, EmailUsername: b.Username, IsActive: b.IsActive}
	}
	writeJSON(w, http.StatusOK, struct {
		EmailBoxes []boxDTO `json:"email_boxes"`
	}{EmailBoxes: dtos})
}

func (s *Server) getBox(w http.ResponseWriter, r *http.Request) {
	telegramID, ok1 := pathInt64(r, "id")
	boxID, ok2 := pathInt64(r, "box")
	if !ok1 || !ok2 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "bad request"})
		return
	}
	box, err := s.store.Box(r.Context(), boxID)
	if err != nil {
		writeError(w, err)
		return
	}
	if box.UserID != telegramID {
		writeError(w, domain.ErrBoxNotOwnedByUser)
		return
	}
	filters, err := s.store.FiltersForBox(r.Context(), boxID)
	if err != nil {
		writeError(w, err)
		return
	}
	dtoFilters := make([]filterDTO, len(filters))
	for i, f := range filters {
		dtoFilters[i] = filterDTO{FilterValue: f.FilterValue, FilterName: f.FilterName}
	}
	writeJSON(w, http.StatusOK, boxDTO{
		ID:            box.ID,
		EmailService:  box.EmailServiceID,
		EmailUsername: box.Username,
		IsActive:      box.IsActive,
		Filters:       dtoFilters,
	})
}

func (s *Server) deleteBox(w http.ResponseWriter, r *http.Request) {
	telegramID, ok1 := pathInt64(r, "id")
	boxID, ok2 := pathInt64(r, "box")
	if !ok1 || !ok2 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "bad request"})
		return
	}
	box, err := s.store.Box(r.Context(), boxID)
	if err != nil {
		writeError(w, err)
		return
	}
	if box.UserID != telegramID {
		writeError(w, domain.ErrBoxNotOwnedByUser)
		return
	}
	if err := s.sup.DeleteMailbox(r.Context(), telegramID, boxID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pauseBox(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.sup.PauseMailbox)
}

func (s *Server) resumeBox(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.sup.ResumeMailbox)
}

// transition runs a pause/resume mailbox action after validating ownership.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, telegramID, boxID int64) error) {
	telegramID, ok1 := pathInt64(r, "id")
	boxID, ok2 := pathInt64(r, "box")
	if !ok1 || !ok2 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "bad request"})
		return
	}
	box, err := s.store.Box(r.Context(), boxID)
	if err != nil {
		writeError(w, err)
		return
	}
	if box.UserID != telegramID {
		writeError(w, domain.ErrBoxNotOwnedByUser)
		return
	}
	if err := fn(r.Context(), telegramID, boxID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.store.Services(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	type serviceDTO struct {
		ID      int64  `json:"id"`
		Title   string `json:"title"`
		Slug    string `json:"slug"`
		Address string `json:"address"`
		Port    int    `json:"port"`
	}
	dtos := make([]serviceDTO, len(services))
	for i, svc := range services {
		dtos[i] = serviceDTO{ID: svc.ID, Title: svc.Title, Slug: svc.Slug, Address: svc.Address, Port: svc.Port}
	}
	writeJSON(w, http.StatusOK, struct {
		Services []serviceDTO `json:"services"`
	}{Services: dtos})
}
