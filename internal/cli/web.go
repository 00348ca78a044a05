package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adhunik-labs/adhunik/internal/devserver"
	"github.com/adhunik-labs/adhunik/internal/envfile"
)

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Run the client dev server",
	Long: `Serve the client build directory on its fixed local port with live
reload. Connected browsers reload automatically when the client sources
change, and the configured API base URL is injected into the served pages.`,
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

		apiBaseURL := config.APIBaseURL
		env, err := envfile.Read(project.Path(project.FrontendEnv))
		if err != nil {
			return err
		}
		if url, ok := env[envfile.KeyAPIBaseURL]; ok && url != "" {
			apiBaseURL = url
		}

		clientDir := project.Path(project.ClientDir)
		watcher, err := devserver.NewWatcher([]string{clientDir}, nil, logger)
		if err != nil {
			return err
		}
		defer watcher.Close()

		hub := devserver.NewLiveReloadHub(logger)
		go func() {
			for range watcher.Events() {
				logger.Debug("client change detected, broadcasting reload")
				hub.Broadcast()
			}
		}()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		srv := devserver.NewStaticServer(clientDir, apiBaseURL, hub, logger)
		addr := fmt.Sprintf("127.0.0.1:%d", config.ClientPort)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	webCmd.Flags().IntVarP(&clientPort, "client-port", "p", 0, "override the client port")
}
