package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adhunik-labs/adhunik/internal/compose"
	"github.com/adhunik-labs/adhunik/internal/docker"
)

// Flags
var (
	devServices []string
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Manage the containerized data services",
}

var devUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the data services",
	Long: `Start the data service containers (database and cache) defined in the
compose file, detached. Services that are already running are left untouched,
so reissuing 'dev up' against a running topology is a no-op.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		services, client, err := devSetup()
		if err != nil {
			return err
		}
		return client.Up(context.Background(), services)
	},
}

var devDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop and remove the data service containers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		services, client, err := devSetup()
		if err != nil {
			return err
		}
		return client.Down(context.Background(), services)
	},
}

var devStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report per-service container state and published ports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		services, client, err := devSetup()
		if err != nil {
			return err
		}

		statuses, err := client.Status(context.Background(), services)
		if err != nil {
			return err
		}

		for _, s := range statuses {
			line := fmt.Sprintf("%-10s %-8s", s.Service, s.State)
			if s.ContainerID != "" {
				line += fmt.Sprintf(" %s", s.ContainerID)
			}
			if len(s.Ports) > 0 {
				line += fmt.Sprintf("  %s", strings.Join(s.Ports, ", "))
			}
			fmt.Println(line)
		}
		return nil
	},
}

func devSetup() ([]*compose.Service, *docker.Client, error) {
	config, err := parseConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(config)
	if err != nil {
		return nil, nil, err
	}

	project, err := loadProject()
	if err != nil {
		return nil, nil, err
	}

	file, err := compose.Load(project.Path(project.ComposeFile))
	if err != nil {
		return nil, nil, err
	}

	names := project.DataServices
	if len(devServices) > 0 {
		names = devServices
	}

	services, err := file.Select(names)
	if err != nil {
		return nil, nil, err
	}

	client, err := docker.NewClient(logger)
	if err != nil {
		return nil, nil, err
	}

	return services, client, nil
}

func init() {
	devCmd.PersistentFlags().StringSliceVarP(&devServices, "services", "s", nil, "override the data services to manage")
	devCmd.AddCommand(
		devUpCmd,
		devDownCmd,
		devStatusCmd,
	)
}
