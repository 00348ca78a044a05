package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/adhunik-labs/adhunik/internal/model"
)

// APIKeyStore provides access to API key storage.
type APIKeyStore struct {
	conn *sqlx.DB
}

// NewAPIKeyStore initializes a new APIKeyStore.
func NewAPIKeyStore(conn *sqlx.DB) *APIKeyStore {
	return &APIKeyStore{conn: conn}
}

// Create inserts a new API key.
func (s *APIKeyStore) Create(ctx context.Context, key *model.APIKey) error {
	_, err := s.conn.NamedExecContext(ctx, `
		INSERT INTO api_keys (
			id, name, key_prefix, hashed_key, scopes, owner_id,
			created_at, expires_at, last_used_at, is_active, revoked, revoked_at
		) VALUES (
			:id, :name, :key_prefix, :hashed_key, :scopes, :owner_id,
			:created_at, :expires_at, :last_used_at, :is_active, :revoked, :revoked_at
		)`,
		key,
	)
	return err
}

// ListFilter controls which keys ListByOwner includes.
type ListFilter struct {
	Skip        int
	Limit       int
	ShowExpired bool
	ShowRevoked bool
}

// ListByOwner returns a page of the owner's keys and the total count under
// the same filter. Expired and revoked keys are excluded unless requested.
func (s *APIKeyStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, filter ListFilter) ([]*model.APIKey, int, error) {
	where := `owner_id = $1`
	if !filter.ShowExpired {
		where += ` AND (expires_at IS NULL OR expires_at > now())`
	}
	if !filter.ShowRevoked {
		where += ` AND NOT revoked`
	}

	var keys []*model.APIKey
	err := s.conn.SelectContext(ctx, &keys, `
		SELECT * FROM api_keys
		WHERE `+where+`
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3`,
		ownerID, filter.Skip, filter.Limit,
	)
	if err != nil {
		return nil, 0, err
	}

	var count int
	err = s.conn.GetContext(ctx, &count, `SELECT count(*) FROM api_keys WHERE `+where, ownerID)
	if err != nil {
		return nil, 0, err
	}
	return keys, count, nil
}

// GetByID returns a key owned by the given user.
func (s *APIKeyStore) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*model.APIKey, error) {
	var key model.APIKey
	err := s.conn.GetContext(ctx, &key, `
		SELECT * FROM api_keys WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// GetByPrefix returns the keys matching a raw key's display prefix. The
// prefix is an index hint, not an identifier; the caller must verify the
// hash.
func (s *APIKeyStore) GetByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error) {
	var keys []*model.APIKey
	err := s.conn.SelectContext(ctx, &keys, `
		SELECT * FROM api_keys WHERE key_prefix = $1`, prefix)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Revoke marks a key revoked. Revocation cannot be undone.
func (s *APIKeyStore) Revoke(ctx context.Context, ownerID, id uuid.UUID, at time.Time) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE api_keys
		SET revoked = true, revoked_at = $3, is_active = false
		WHERE id = $1 AND owner_id = $2`,
		id, ownerID, at,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastUsed records a successful authentication with the key.
func (s *APIKeyStore) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, at)
	return err
}
