package integration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adhunik-labs/adhunik/db"
	"github.com/adhunik-labs/adhunik/internal/migrate"
)

const migrationsDir = "../../db/migrations"

func TestMigrateUpIsIdempotent(t *testing.T) {
	ctx := context.Background()

	svc, hostPort := postgresService(t)
	startService(t, ctx, svc)

	connConfig := pgx.ConnConfig{
		Host:     "127.0.0.1",
		Port:     uint16(hostPort),
		User:     dbUser,
		Password: dbPassword,
		Database: dbName,
	}
	require.True(t, waitForPostgresReady(&connConfig), "database did not become ready in allowed time")

	dsn := fmt.Sprintf("postgresql://%s:%s@127.0.0.1:%d/%s?sslmode=disable", dbUser, dbPassword, hostPort, dbName)
	conn, err := migrate.Open(dsn)
	require.NoError(t, err)
	defer conn.Close()

	// first run brings the schema to head
	applied, err := migrate.Up(conn, migrationsDir, nil)
	require.NoError(t, err)
	assert.Greater(t, applied, 0)

	// reapplying at head is a no-op
	applied, err = migrate.Up(conn, migrationsDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	revisions, err := migrate.Status(conn, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, revisions)
	for _, rev := range revisions {
		assert.True(t, rev.Applied, "revision %d should be applied", rev.Version)
	}
}

func TestAutogenerateAfterUpIsEmpty(t *testing.T) {
	ctx := context.Background()

	svc, hostPort := postgresService(t)
	startService(t, ctx, svc)

	connConfig := pgx.ConnConfig{
		Host:     "127.0.0.1",
		Port:     uint16(hostPort),
		User:     dbUser,
		Password: dbPassword,
		Database: dbName,
	}
	require.True(t, waitForPostgresReady(&connConfig), "database did not become ready in allowed time")

	dsn := fmt.Sprintf("postgresql://%s:%s@127.0.0.1:%d/%s?sslmode=disable", dbUser, dbPassword, hostPort, dbName)
	conn, err := migrate.Open(dsn)
	require.NoError(t, err)
	defer conn.Close()

	_, err = migrate.Up(conn, migrationsDir, nil)
	require.NoError(t, err)

	pgConn, err := pgx.Connect(connConfig)
	require.NoError(t, err)
	defer pgConn.Close()

	// the live schema now matches the declared model
	actual, err := db.Introspect(pgConn, "public", []string{goose.TableName()})
	require.NoError(t, err)

	_, err = migrate.Generate(db.Model(), actual, t.TempDir(), "should not be written", time.Now())
	assert.True(t, errors.Is(err, migrate.ErrNoChanges), "expected no schema changes, got: %v", err)
}
