package cli

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/adhunik-labs/adhunik/internal/doctor"
	"github.com/adhunik-labs/adhunik/internal/envfile"
)

// Flags
var (
	doctorFix     bool
	doctorFixHost string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Probe the development topology and diagnose failures",
	Long: `Probe the database, cache, API, and client ports. Connectivity
failures caused by a host mismatch -- a compose service name used from the
host machine, or localhost used inside the container network -- are detected
and the env file remediation is printed. With --fix the backend env file's
database host is rewritten in place.`,
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

		url, err := databaseURL(project, config)
		if err != nil {
			return err
		}

		if doctorFix {
			return fixBackendEnv(project.Path(project.BackendEnv), url, doctorFixHost)
		}

		d := doctor.New(logger)
		checks := []doctor.Check{
			d.CheckPostgres(url),
			d.CheckCache(config.Cache.Addr()),
			d.CheckAPI(config.APIBaseURL),
			checkPort("client", config.ClientPort),
		}

		failed := false
		for _, check := range checks {
			fmt.Printf("%-10s %-5s %s\n", check.Name, check.Status, check.Detail)
			if check.Advice != "" {
				fmt.Printf("           hint: %s\n", check.Advice)
			}
			if check.Status == doctor.StatusFail {
				failed = true
			}
		}

		if failed {
			return fmt.Errorf("one or more checks failed")
		}
		return nil
	},
}

// checkPort reports whether anything is listening on the given local port.
func checkPort(name string, port int) doctor.Check {
	check := doctor.Check{Name: name}
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		check.Status = doctor.StatusFail
		check.Detail = fmt.Sprintf("nothing listening on %s", addr)
		check.Advice = fmt.Sprintf("start it with 'adhunik %s'", name)
		return check
	}
	conn.Close()

	check.Status = doctor.StatusOK
	check.Detail = fmt.Sprintf("listening on %s", addr)
	return check
}

// fixBackendEnv rewrites the database URL host in the backend env file.
func fixBackendEnv(path, url, host string) error {
	fixed, err := envfile.SwitchHost(url, host)
	if err != nil {
		return err
	}

	if err := envfile.Patch(path, map[string]string{envfile.KeyDatabaseURL: fixed}); err != nil {
		return err
	}

	fmt.Printf("set %s host to '%s' in %s\n", envfile.KeyDatabaseURL, host, path)
	return nil
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "rewrite the backend env file database host")
	doctorCmd.Flags().StringVar(&doctorFixHost, "fix-host", "localhost", "host value to write with --fix")
}
