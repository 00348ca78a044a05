package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/adhunik-labs/adhunik/internal/model"
)

// UserStore provides access to user storage.
type UserStore struct {
	conn *sqlx.DB
}

// NewUserStore initializes a new UserStore.
func NewUserStore(conn *sqlx.DB) *UserStore {
	return &UserStore{conn: conn}
}

// Create inserts a new user.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	_, err := s.conn.NamedExecContext(ctx, `
		INSERT INTO users (id, email, hashed_password, full_name, is_active, is_superuser)
		VALUES (:id, :email, :hashed_password, :full_name, :is_active, :is_superuser)`,
		user,
	)
	return err
}

// GetByID returns a user by id.
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := s.conn.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns a user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.conn.GetContext(ctx, &user, `SELECT * FROM users WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile updates the mutable profile fields of a user.
func (s *UserStore) UpdateProfile(ctx context.Context, id uuid.UUID, email *string, fullName *string) (*model.User, error) {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE users
		SET email = COALESCE($2, email),
			full_name = COALESCE($3, full_name)
		WHERE id = $1`,
		id, email, fullName,
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetByID(ctx, id)
}
