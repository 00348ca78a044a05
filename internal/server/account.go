package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/adhunik-labs/adhunik/internal/model"
)

type accountPublic struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	FullName    *string   `json:"full_name,omitempty"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
}

type updateAccountRequest struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
}

func publicAccount(user *model.User) accountPublic {
	return accountPublic{
		ID:          user.ID,
		Email:       user.Email,
		FullName:    user.FullName,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
	}
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	s.respondJSON(w, http.StatusOK, publicAccount(user))
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Email == nil && req.FullName == nil {
		s.respondError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if req.Email != nil && *req.Email == "" {
		s.respondError(w, http.StatusBadRequest, "email must not be empty")
		return
	}

	updated, err := s.users.UpdateProfile(r.Context(), user.ID, req.Email, req.FullName)
	if err != nil {
		s.logger.WithError(err).Error("unable to update account")
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.respondJSON(w, http.StatusOK, publicAccount(updated))
}
