package model

import (
	"time"

	"github.com/google/uuid"
)

// User is an account in the backing database.
type User struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	FullName       *string   `db:"full_name" json:"full_name,omitempty"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	IsSuperuser    bool      `db:"is_superuser" json:"is_superuser"`
}

// Item is a user-owned record.
type Item struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	OwnerID     uuid.UUID `db:"owner_id" json:"owner_id"`
}

// APIKey is an issued API key. The raw key is never stored; only its prefix
// (for lookup and display) and a hash (for verification) are persisted.
type APIKey struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	KeyPrefix  string     `db:"key_prefix" json:"key_prefix"`
	HashedKey  string     `db:"hashed_key" json:"-"`
	Scopes     ScopeList  `db:"scopes" json:"scopes"`
	OwnerID    uuid.UUID  `db:"owner_id" json:"owner_id"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	Revoked    bool       `db:"revoked" json:"revoked"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

// Usable reports whether the key authenticates requests at the given time.
func (k *APIKey) Usable(now time.Time) bool {
	if !k.IsActive || k.Revoked {
		return false
	}
	if k.ExpiresAt != nil && k.ExpiresAt.Before(now) {
		return false
	}
	return true
}
