package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adhunik-labs/adhunik/internal/model"
	"github.com/adhunik-labs/adhunik/internal/store"
)

type createAPIKeyRequest struct {
	Name       string        `json:"name"`
	Scopes     []model.Scope `json:"scopes"`
	ExpiryDays int           `json:"expiry_days"`
}

type apiKeyResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Key       string     `json:"key,omitempty"`
	KeyPrefix string     `json:"key_prefix"`
	Scopes    []string   `json:"scopes"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type apiKeyPublic struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

type apiKeysPublic struct {
	Data  []apiKeyPublic `json:"data"`
	Count int            `json:"count"`
}

func scopeStrings(scopes model.ScopeList) []string {
	out := make([]string, len(scopes))
	for i, s := range scopes {
		out[i] = string(s)
	}
	return out
}

func (s *Server) publicKey(key *model.APIKey) apiKeyPublic {
	return apiKeyPublic{
		ID:         key.ID,
		Name:       key.Name,
		KeyPrefix:  key.KeyPrefix,
		Scopes:     scopeStrings(key.Scopes),
		CreatedAt:  key.CreatedAt,
		ExpiresAt:  key.ExpiresAt,
		IsActive:   key.Usable(s.now()),
		LastUsedAt: key.LastUsedAt,
	}
}

func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req createAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "a key name is required")
		return
	}
	if err := model.ValidateScopes(req.Scopes); err != nil {
		s.respondError(w, http.StatusBadRequest, "%s", err)
		return
	}
	if err := model.ValidateExpiryDays(req.ExpiryDays); err != nil {
		s.respondError(w, http.StatusBadRequest, "%s", err)
		return
	}

	raw, prefix, hashed, err := model.GenerateKey()
	if err != nil {
		s.logger.WithError(err).Error("unable to generate api key")
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := s.now()
	expiresAt := now.AddDate(0, 0, req.ExpiryDays)
	key := &model.APIKey{
		ID:        uuid.New(),
		Name:      req.Name,
		KeyPrefix: prefix,
		HashedKey: hashed,
		Scopes:    model.ScopeList(req.Scopes),
		OwnerID:   user.ID,
		CreatedAt: now,
		ExpiresAt: &expiresAt,
		IsActive:  true,
	}

	if err := s.keys.Create(r.Context(), key); err != nil {
		s.logger.WithError(err).Error("unable to create api key")
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// the raw key is included exactly once, in this response
	s.respondJSON(w, http.StatusCreated, apiKeyResponse{
		ID:        key.ID,
		Name:      key.Name,
		Key:       raw,
		KeyPrefix: key.KeyPrefix,
		Scopes:    scopeStrings(key.Scopes),
		CreatedAt: key.CreatedAt,
		ExpiresAt: key.ExpiresAt,
	})
}

func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	filter := store.ListFilter{
		Skip:        queryInt(r, "skip", 0),
		Limit:       queryInt(r, "limit", 100),
		ShowExpired: queryBool(r, "show_expired"),
		ShowRevoked: queryBool(r, "show_revoked"),
	}

	keys, count, err := s.keys.ListByOwner(r.Context(), user.ID, filter)
	if err != nil {
		s.logger.WithError(err).Error("unable to list api keys")
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := apiKeysPublic{Data: make([]apiKeyPublic, 0, len(keys)), Count: count}
	for _, key := range keys {
		resp.Data = append(resp.Data, s.publicKey(key))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAPIKey(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "key_id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "API key not found")
		return
	}

	key, err := s.keys.GetByID(r.Context(), user.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "API key not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("unable to get api key")
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.respondJSON(w, http.StatusOK, s.publicKey(key))
}

func (s *Server) handleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "key_id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "API key not found")
		return
	}

	err = s.keys.Revoke(r.Context(), user.ID, id, s.now())
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "API key not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("unable to revoke api key")
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func queryBool(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	return v == "true" || v == "1"
}
