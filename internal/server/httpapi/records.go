package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/flocksync/internal/common"
	"github.com/dmitrijs2005/flocksync/internal/server/auth"
	"github.com/dmitrijs2005/flocksync/internal/server/hub"
	"github.com/dmitrijs2005/flocksync/internal/server/models"
)

// handleCreateRecord stores an uploaded record. The author and church come
// from the token, never from the body; retrying the same device record
// returns the id stored the first time.
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	authorID, ok := s.authorFromContext(w, r)
	if !ok {
		return
	}
	churchID, _ := auth.ChurchIDFromContext(r.Context())

	var req models.RecordView
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" || req.Kind == "" {
		s.respondError(w, http.StatusBadRequest, "id and kind are required")
		return
	}
	switch req.Visibility {
	case models.VisibilityPrivate, models.VisibilityChurch, models.VisibilityPublic:
	default:
		s.respondError(w, http.StatusBadRequest, "unknown visibility")
		return
	}

	author, err := s.users.GetByID(r.Context(), authorID)
	if errors.Is(err, common.ErrNotFound) {
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err != nil {
		s.log.Error(r.Context(), "failed to load author", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := time.Now().UnixMilli()
	if req.CreatedAt == 0 {
		req.CreatedAt = now
	}
	if req.UpdatedAt == 0 {
		req.UpdatedAt = req.CreatedAt
	}

	rec := &models.Record{
		ClientID:   req.ID,
		AuthorID:   authorID,
		AuthorName: author.Name,
		ChurchID:   churchID,
		Kind:       req.Kind,
		Visibility: req.Visibility,
		Payload:    req.Payload,
		CreatedAt:  req.CreatedAt,
		UpdatedAt:  req.UpdatedAt,
	}
	if err := s.records.Create(r.Context(), rec); err != nil {
		s.log.Error(r.Context(), "failed to create record", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.notifyChange(r.Context(), rec.ChurchID, rec.Visibility)
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": rec.ID.String()})
}

// handleListRecords serves the visible feed. The filter is pinned to the
// caller's own congregation.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	churchID, _ := auth.ChurchIDFromContext(r.Context())

	if param := r.URL.Query().Get("church_id"); param != "" && param != churchID {
		s.respondError(w, http.StatusForbidden, "church mismatch")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := s.records.ListFeed(r.Context(), churchID, limit)
	if err != nil {
		s.log.Error(r.Context(), "failed to query feed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"records": models.NewRecordViews(records),
	})
}

// handleAddEngagement books an interaction against a record. The user comes
// from the token; the record id from the path.
func (s *Server) handleAddEngagement(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authorFromContext(w, r)
	if !ok {
		return
	}

	recordID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "record not found")
		return
	}

	var req struct {
		Kind      string `json:"kind"`
		CreatedAt int64  `json:"created_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind == "" {
		s.respondError(w, http.StatusBadRequest, "kind is required")
		return
	}
	if req.CreatedAt == 0 {
		req.CreatedAt = time.Now().UnixMilli()
	}

	rec, err := s.records.GetByID(r.Context(), recordID)
	if errors.Is(err, common.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		s.log.Error(r.Context(), "failed to load record", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	e := &models.Engagement{
		RecordID:  recordID,
		UserID:    userID,
		Kind:      req.Kind,
		CreatedAt: req.CreatedAt,
	}
	if err := s.engagements.Add(r.Context(), e); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "record not found")
			return
		}
		s.log.Error(r.Context(), "failed to add engagement", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.notifyChange(r.Context(), rec.ChurchID, rec.Visibility)
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": e.ID.String()})
}

// authorFromContext resolves the authenticated user id as a UUID.
func (s *Server) authorFromContext(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	return id, true
}

// notifyChange fans a feed-affecting mutation out to realtime subscribers.
// Private records never reach any feed, so nothing is published for them.
func (s *Server) notifyChange(ctx context.Context, churchID, visibility string) {
	if s.publisher == nil || visibility == models.VisibilityPrivate {
		return
	}
	err := s.publisher.Publish(ctx, hub.Change{ChurchID: churchID, Visibility: visibility})
	if err != nil {
		s.log.Warn(ctx, "failed to publish change notification", "error", err)
	}
}
