package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adhunik-labs/adhunik/internal/model"
	"github.com/adhunik-labs/adhunik/internal/store"
)

type itemRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

type itemsPublic struct {
	Data  []*model.Item `json:"data"`
	Count int           `json:"count"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)

	items, count, err := s.items.ListByOwner(r.Context(), user.ID, skip, limit)
	if err != nil {
		s.logger.WithError(err).Error("unable to list items")
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []*model.Item{}
	}

	s.respondJSON(w, http.StatusOK, itemsPublic{Data: items, Count: count})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Title == "" {
		s.respondError(w, http.StatusBadRequest, "a title is required")
		return
	}

	item := &model.Item{
		ID:          uuid.New(),
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     user.ID,
	}
	if err := s.items.Create(r.Context(), item); err != nil {
		s.logger.WithError(err).Error("unable to create item")
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.respondJSON(w, http.StatusCreated, item)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "item_id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "item not found")
		return
	}

	item, err := s.items.GetByID(r.Context(), user.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("unable to get item")
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "item_id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "item not found")
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Title == "" {
		s.respondError(w, http.StatusBadRequest, "a title is required")
		return
	}

	item := &model.Item{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     user.ID,
	}
	err = s.items.Update(r.Context(), item)
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("unable to update item")
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "item_id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "item not found")
		return
	}

	err = s.items.Delete(r.Context(), user.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("unable to delete item")
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
