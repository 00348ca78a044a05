package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/adhunik-labs/adhunik/internal/model"
)

// ItemStore provides access to item storage. All reads and writes are scoped
// to the owning user.
type ItemStore struct {
	conn *sqlx.DB
}

// NewItemStore initializes a new ItemStore.
func NewItemStore(conn *sqlx.DB) *ItemStore {
	return &ItemStore{conn: conn}
}

// Create inserts a new item.
func (s *ItemStore) Create(ctx context.Context, item *model.Item) error {
	_, err := s.conn.NamedExecContext(ctx, `
		INSERT INTO items (id, title, description, owner_id)
		VALUES (:id, :title, :description, :owner_id)`,
		item,
	)
	return err
}

// ListByOwner returns a page of the owner's items and the total count.
func (s *ItemStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, skip, limit int) ([]*model.Item, int, error) {
	var items []*model.Item
	err := s.conn.SelectContext(ctx, &items, `
		SELECT * FROM items
		WHERE owner_id = $1
		ORDER BY title
		OFFSET $2 LIMIT $3`,
		ownerID, skip, limit,
	)
	if err != nil {
		return nil, 0, err
	}

	var count int
	err = s.conn.GetContext(ctx, &count, `SELECT count(*) FROM items WHERE owner_id = $1`, ownerID)
	if err != nil {
		return nil, 0, err
	}
	return items, count, nil
}

// GetByID returns an item owned by the given user.
func (s *ItemStore) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*model.Item, error) {
	var item model.Item
	err := s.conn.GetContext(ctx, &item, `
		SELECT * FROM items WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Update updates an item's mutable fields.
func (s *ItemStore) Update(ctx context.Context, item *model.Item) error {
	res, err := s.conn.NamedExecContext(ctx, `
		UPDATE items
		SET title = :title, description = :description
		WHERE id = :id AND owner_id = :owner_id`,
		item,
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

// Delete removes an item owned by the given user.
func (s *ItemStore) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	res, err := s.conn.ExecContext(ctx, `
		DELETE FROM items WHERE id = $1 AND owner_id = $2`, id, ownerID)
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
