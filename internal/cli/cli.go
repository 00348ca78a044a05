// Package cli wires the development topology commands.
package cli

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adhunik-labs/adhunik"
	"github.com/adhunik-labs/adhunik/internal/envfile"
)

// Flags
var (
	logLevel    string
	projectRoot string
	apiPort     int
	clientPort  int
)

func init() {
	RootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "L", "", "log level")
	RootCmd.PersistentFlags().StringVarP(&projectRoot, "project-root", "C", ".", "project root directory")
	RootCmd.PersistentFlags().SortFlags = false

	RootCmd.AddCommand(
		devCmd,
		serveCmd,
		webCmd,
		migrateCmd,
		doctorCmd,
	)
}

// RootCmd is the root command.
var RootCmd = &cobra.Command{
	Use:   "adhunik",
	Short: "Drive the local development topology",
	Long: `Drive the local development topology: containerized data services,
the API process, the client dev server, and schema migrations.`,
	SilenceUsage: true,
}

func parseConfig() (*adhunik.Config, error) {
	config, err := adhunik.NewConfigFromEnv()
	if err != nil {
		return nil, err
	}

	if apiPort != 0 {
		config.APIPort = apiPort
	}

	if clientPort != 0 {
		config.ClientPort = clientPort
	}

	if logLevel != "" {
		config.LogLevel = logLevel
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func newLogger(config *adhunik.Config) (*log.Logger, error) {
	lvl, err := adhunik.ParseLogLevel(config.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := log.New()
	logger.SetLevel(lvl)
	return logger, nil
}

func loadProject() (*adhunik.Project, error) {
	return adhunik.LoadProject(projectRoot)
}

// databaseURL resolves the database connection URL the way the API process
// does: the backend env file wins, then the environment-driven config.
func databaseURL(project *adhunik.Project, config *adhunik.Config) (string, error) {
	env, err := envfile.Read(project.Path(project.BackendEnv))
	if err != nil {
		return "", err
	}
	if url, ok := env[envfile.KeyDatabaseURL]; ok && url != "" {
		return url, nil
	}
	return config.Database.URL(), nil
}
