package devserver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

const killGracePeriod = 5 * time.Second

// Runner keeps a development process running, restarting it whenever the
// restart channel fires. Source changes therefore take effect without
// operator intervention.
type Runner struct {
	command []string
	dir     string
	env     []string
	logger  *log.Logger
}

// NewRunner creates a runner for the given command, executed in dir with
// the current environment plus env.
func NewRunner(command []string, dir string, env []string, logger *log.Logger) (*Runner, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("a command is required")
	}
	if logger == nil {
		logger = log.New()
	}
	return &Runner{command: command, dir: dir, env: env, logger: logger}, nil
}

// Run starts the process and restarts it on every value received from
// restart. It blocks until the context is cancelled.
func (r *Runner) Run(ctx context.Context, restart <-chan string) error {
	for {
		cmd, err := r.start()
		if err != nil {
			return err
		}

		exited := make(chan error, 1)
		go func() {
			exited <- cmd.Wait()
		}()

		select {
		case <-ctx.Done():
			r.stop(cmd, exited)
			return nil
		case path := <-restart:
			r.logger.WithField("changed", path).Info("change detected, restarting")
			r.stop(cmd, exited)
		case err := <-exited:
			if err != nil {
				r.logger.WithError(err).Error("process exited, waiting for next change")
			} else {
				r.logger.Info("process exited, waiting for next change")
			}
			// do not spin on a crashing process; wait for the next change
			select {
			case <-ctx.Done():
				return nil
			case path := <-restart:
				r.logger.WithField("changed", path).Info("change detected, restarting")
			}
		}
	}
}

func (r *Runner) start() (*exec.Cmd, error) {
	cmd := exec.Command(r.command[0], r.command[1:]...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), r.env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// own process group, so the whole tree can be signalled
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("unable to start '%s': %w", r.command[0], err)
	}
	r.logger.WithField("pid", cmd.Process.Pid).Debug("process started")
	return cmd, nil
}

func (r *Runner) stop(cmd *exec.Cmd, exited <-chan error) {
	pgid := -cmd.Process.Pid
	_ = syscall.Kill(pgid, syscall.SIGTERM)

	select {
	case <-exited:
		return
	case <-time.After(killGracePeriod):
		_ = syscall.Kill(pgid, syscall.SIGKILL)
		<-exited
	}
}
