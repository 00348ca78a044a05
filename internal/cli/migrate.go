package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jackc/pgx"
	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adhunik-labs/adhunik"
	"github.com/adhunik-labs/adhunik/db"
	"github.com/adhunik-labs/adhunik/internal/migrate"
)

// Flags
var (
	migrateMessage string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Long: `Apply the ordered, not-yet-applied migrations to bring the schema to
the latest revision. Reapplying at head is a no-op.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		config, project, logger, err := migrateSetup()
		if err != nil {
			return err
		}

		url, err := databaseURL(project, config)
		if err != nil {
			return err
		}

		conn, err := migrate.Open(url)
		if err != nil {
			return err
		}
		defer conn.Close()

		applied, err := migrate.Up(conn, project.Path(project.MigrationsDir), logger)
		if err != nil {
			return err
		}

		if applied == 0 {
			fmt.Println("schema is up to date, nothing to apply")
		} else {
			fmt.Printf("applied %d migration(s)\n", applied)
		}
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List applied and pending revisions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		config, project, _, err := migrateSetup()
		if err != nil {
			return err
		}

		url, err := databaseURL(project, config)
		if err != nil {
			return err
		}

		conn, err := migrate.Open(url)
		if err != nil {
			return err
		}
		defer conn.Close()

		revisions, err := migrate.Status(conn, project.Path(project.MigrationsDir))
		if err != nil {
			return err
		}

		for _, rev := range revisions {
			state := "pending"
			if rev.Applied {
				state = "applied"
			}
			fmt.Printf("%-8s %s\n", state, filepath.Base(rev.Source))
		}
		return nil
	},
}

var migrateNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Autogenerate a migration from the model diff",
	Long: `Diff the declared data model against the live database schema and
write a new migration capturing the delta. The migration is never applied
automatically; review it, then run 'adhunik migrate up'.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if migrateMessage == "" {
			return errors.New("a message is required (-m)")
		}

		config, project, _, err := migrateSetup()
		if err != nil {
			return err
		}

		// introspect the same database 'migrate up' applies to: the env
		// file's URL wins over the environment-driven config
		url, err := databaseURL(project, config)
		if err != nil {
			return err
		}

		connConfig, err := pgx.ParseURI(url)
		if err != nil {
			return err
		}

		conn, err := pgx.Connect(connConfig)
		if err != nil {
			return err
		}
		defer conn.Close()

		actual, err := db.Introspect(conn, "public", []string{goose.TableName()})
		if err != nil {
			return err
		}

		path, err := migrate.Generate(db.Model(), actual, project.Path(project.MigrationsDir), migrateMessage, time.Now())
		if err != nil {
			if errors.Is(err, migrate.ErrNoChanges) {
				fmt.Println("schema matches the declared model, nothing to generate")
				return nil
			}
			return err
		}

		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func migrateSetup() (*adhunik.Config, *adhunik.Project, *log.Logger, error) {
	config, err := parseConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := newLogger(config)
	if err != nil {
		return nil, nil, nil, err
	}

	project, err := loadProject()
	if err != nil {
		return nil, nil, nil, err
	}

	return config, project, logger, nil
}

func init() {
	migrateNewCmd.Flags().StringVarP(&migrateMessage, "message", "m", "", "describe the migration (required)")
	migrateCmd.AddCommand(
		migrateUpCmd,
		migrateStatusCmd,
		migrateNewCmd,
	)
}
