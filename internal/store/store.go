// Package store provides Postgres-backed storage for users, items, and API
// keys.
package store

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a requested row does not exist or is not
// visible to the requesting owner.
var ErrNotFound = errors.New("not found")

// Open connects to the database and verifies the connection.
func Open(dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return conn, nil
}
