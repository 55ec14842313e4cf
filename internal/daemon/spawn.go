package daemon

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/aatumaykin/singleschedule/internal/constants"
)

// Spawner launches the background worker and returns its PID.
type Spawner interface {
	Spawn() (int, error)
}

// ExecSpawner re-executes a binary as a detached worker. The worker sees
// the worker environment variable set and its standard streams point at
// the null device.
type ExecSpawner struct {
	Executable string
	Args       []string
	Dir        string
}

// NewExecSpawner re-executes the current binary with args.
func NewExecSpawner(args ...string) (*ExecSpawner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("cannot resolve executable path: %w", err)
	}
	return &ExecSpawner{Executable: exe, Args: args}, nil
}

// Spawn starts the worker and releases it; the caller does not wait for it.
func (s *ExecSpawner) Spawn() (int, error) {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := exec.Command(s.Executable, s.Args...)
	cmd.Dir = s.Dir
	cmd.Env = append(os.Environ(), constants.ForegroundEnvVar+"=1")
	cmd.SysProcAttr = detachAttr()
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("failed to release daemon process: %w", err)
	}
	return pid, nil
}

// IsWorker reports whether this process was launched by ExecSpawner.
func IsWorker() bool {
	return os.Getenv(constants.ForegroundEnvVar) == "1"
}
