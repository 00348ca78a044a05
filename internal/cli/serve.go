package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adhunik-labs/adhunik"
	"github.com/adhunik-labs/adhunik/internal/devserver"
	"github.com/adhunik-labs/adhunik/internal/server"
	"github.com/adhunik-labs/adhunik/internal/store"
)

// Flags
var (
	serveReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API process",
	Long: `Run the API process on its fixed local port. With --reload the source
tree is watched and the server process is restarted on change.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		config, err := parseConfig()
		if err != nil {
			return err
		}

		logger, err := newLogger(config)
		if err != nil {
			return err
		}

		project, err := loadProject()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if serveReload {
			return runWithReload(ctx, project, logger)
		}

		url, err := databaseURL(project, config)
		if err != nil {
			return err
		}

		conn, err := store.Open(url)
		if err != nil {
			return err
		}
		defer conn.Close()

		srv := server.New(
			store.NewUserStore(conn),
			store.NewItemStore(conn),
			store.NewAPIKeyStore(conn),
			logger,
		)

		addr := fmt.Sprintf("127.0.0.1:%d", config.APIPort)
		return srv.ListenAndServe(ctx, addr)
	},
}

// runWithReload runs the configured serve command as a child process and
// restarts it whenever a watched source file changes.
func runWithReload(ctx context.Context, project *adhunik.Project, logger *log.Logger) error {
	watchDirs := make([]string, 0, len(project.WatchDirs))
	for _, dir := range project.WatchDirs {
		watchDirs = append(watchDirs, project.Path(dir))
	}

	watcher, err := devserver.NewWatcher(watchDirs, []string{".go", ".sql"}, logger)
	if err != nil {
		return err
	}
	defer watcher.Close()

	runner, err := devserver.NewRunner(project.ServeCommand, project.Root, nil, logger)
	if err != nil {
		return err
	}

	logger.WithField("dirs", watchDirs).Info("watching for changes")
	return runner.Run(ctx, watcher.Events())
}

func init() {
	serveCmd.Flags().BoolVarP(&serveReload, "reload", "r", false, "restart the server process on source changes")
	serveCmd.Flags().IntVarP(&apiPort, "api-port", "p", 0, "override the API port")
}
