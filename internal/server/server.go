// Package server implements the development API surface: account profile,
// items, and API key management, authenticated by API key.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/adhunik-labs/adhunik/internal/model"
	"github.com/adhunik-labs/adhunik/internal/store"
)

const requestTimeout = 30 * time.Second

// UserStore is the user storage the server depends on.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, email *string, fullName *string) (*model.User, error)
}

// ItemStore is the item storage the server depends on.
type ItemStore interface {
	Create(ctx context.Context, item *model.Item) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, skip, limit int) ([]*model.Item, int, error)
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*model.Item, error)
	Update(ctx context.Context, item *model.Item) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

// APIKeyStore is the API key storage the server depends on.
type APIKeyStore interface {
	Create(ctx context.Context, key *model.APIKey) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, filter store.ListFilter) ([]*model.APIKey, int, error)
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*model.APIKey, error)
	GetByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	Revoke(ctx context.Context, ownerID, id uuid.UUID, at time.Time) error
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Server is the development API server.
type Server struct {
	users  UserStore
	items  ItemStore
	keys   APIKeyStore
	logger *log.Logger
	now    func() time.Time
}

// New initializes a new Server.
func New(users UserStore, items ItemStore, keys APIKeyStore, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New()
	}
	return &Server{
		users:  users,
		items:  items,
		keys:   keys,
		logger: logger,
		now:    time.Now,
	}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/account", func(r chi.Router) {
			r.With(s.requireScope(model.ScopeAccountsRead)).Get("/", s.handleGetAccount)
			r.With(s.requireScope(model.ScopeAccountsWrite)).Patch("/", s.handleUpdateAccount)
		})

		r.Route("/items", func(r chi.Router) {
			r.With(s.requireScope(model.ScopeAccountsRead)).Get("/", s.handleListItems)
			r.With(s.requireScope(model.ScopeAccountsWrite)).Post("/", s.handleCreateItem)
			r.With(s.requireScope(model.ScopeAccountsRead)).Get("/{item_id}", s.handleGetItem)
			r.With(s.requireScope(model.ScopeAccountsWrite)).Put("/{item_id}", s.handleUpdateItem)
			r.With(s.requireScope(model.ScopeAccountsWrite)).Delete("/{item_id}", s.handleDeleteItem)
		})

		r.Route("/api-keys", func(r chi.Router) {
			r.Post("/", s.handleCreateAPIKey)
			r.Get("/", s.handleListAPIKeys)
			r.Get("/{key_id}", s.handleGetAPIKey)
			r.Delete("/{key_id}", s.handleRevokeAPIKey)
		})
	})

	return r
}

// ListenAndServe runs the server until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("unable to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	s.respondJSON(w, status, map[string]string{"detail": fmt.Sprintf(format, args...)})
}
