// Package migrate applies and generates schema migrations. Applying replays
// the ordered, not-yet-applied revisions to bring the database to head;
// generating diffs the declared data model against the live schema and
// renders the delta as a new revision.
package migrate

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"
)

// Revision is one migration step and its applied state.
type Revision struct {
	Version int64
	Source  string
	Applied bool
}

// Open connects to the database for migration work.
func Open(dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return conn, nil
}

// Up applies all pending revisions from dir, in order, and returns the
// number applied. Reapplying at head applies nothing, so Up is idempotent.
func Up(conn *sqlx.DB, dir string, logger *log.Logger) (int, error) {
	if logger == nil {
		logger = log.New()
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("unable to set migration dialect: %w", err)
	}
	goose.SetLogger(goose.NopLogger())

	before, err := goose.EnsureDBVersion(conn.DB)
	if err != nil {
		return 0, fmt.Errorf("unable to read database version: %w", err)
	}

	if err := goose.Up(conn.DB, dir); err != nil {
		return 0, fmt.Errorf("unable to apply migrations: %w", err)
	}

	revisions, err := Status(conn, dir)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, rev := range revisions {
		if rev.Applied && rev.Version > before {
			applied++
			logger.WithFields(log.Fields{
				"version": rev.Version,
				"source":  rev.Source,
			}).Info("applied migration")
		}
	}
	return applied, nil
}

// Status returns every known revision in order, flagged applied or pending.
func Status(conn *sqlx.DB, dir string) ([]Revision, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("unable to set migration dialect: %w", err)
	}

	migrations, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("unable to collect migrations from '%s': %w", dir, err)
	}

	if _, err := goose.EnsureDBVersion(conn.DB); err != nil {
		return nil, fmt.Errorf("unable to read database version: %w", err)
	}

	applied := make(map[int64]bool)
	rows, err := conn.Query(
		fmt.Sprintf("SELECT version_id FROM %s WHERE is_applied", goose.TableName()),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to read applied versions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	revisions := make([]Revision, 0, len(migrations))
	for _, m := range migrations {
		revisions = append(revisions, Revision{
			Version: m.Version,
			Source:  m.Source,
			Applied: applied[m.Version],
		})
	}
	return revisions, nil
}
