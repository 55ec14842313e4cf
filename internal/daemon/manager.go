// Package daemon starts, stops and supervises the background scheduler
// process. A single PID marker file is the only record of whether a daemon
// is running.
//
// Starting is two-phase: the supervisor spawns a detached worker, records
// the worker's PID in the marker and returns. The worker then runs the
// scheduler loop in the foreground via RunForeground.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"

	"github.com/aatumaykin/singleschedule/internal/constants"
	"github.com/aatumaykin/singleschedule/internal/logger"
	"github.com/aatumaykin/singleschedule/internal/pidfile"
)

// Manager implements start, stop and restart against one PID marker.
type Manager struct {
	pid       *pidfile.File
	spawner   Spawner
	logger    *logger.Logger
	alive     func(pid int) bool
	terminate func(pid int) error
	sleep     func(time.Duration)
	notify    func(state string) (bool, error)
	grace     time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithProcessControl replaces the liveness probe and termination call.
func WithProcessControl(alive func(int) bool, terminate func(int) error) Option {
	return func(m *Manager) {
		m.alive = alive
		m.terminate = terminate
	}
}

// WithSleep replaces the grace period wait.
func WithSleep(sleep func(time.Duration)) Option {
	return func(m *Manager) { m.sleep = sleep }
}

// WithNotifier replaces the service manager readiness notifier.
func WithNotifier(notify func(state string) (bool, error)) Option {
	return func(m *Manager) { m.notify = notify }
}

// NewManager creates a manager for the marker at pidPath.
func NewManager(pidPath string, spawner Spawner, log *logger.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	m := &Manager{
		pid:       pidfile.New(pidPath),
		spawner:   spawner,
		logger:    log,
		alive:     pidfile.IsAlive,
		terminate: terminate,
		sleep:     time.Sleep,
		notify: func(state string) (bool, error) {
			return sddaemon.SdNotify(false, state)
		},
		grace: constants.StopGracePeriod,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PIDPath returns the marker location.
func (m *Manager) PIDPath() string {
	return m.pid.Path()
}

// Status describes the daemon as seen through the marker.
type Status struct {
	Running bool
	PID     int
	Stale   bool
}

// Status inspects the marker without modifying it.
func (m *Manager) Status() (Status, error) {
	pid, err := m.pid.Read()
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Status{}, nil
	case errors.Is(err, pidfile.ErrInvalid):
		return Status{Stale: true}, nil
	case err != nil:
		return Status{}, err
	}
	if !m.alive(pid) {
		return Status{PID: pid, Stale: true}, nil
	}
	return Status{Running: true, PID: pid}, nil
}

// Start launches a detached worker and records its PID. It fails with
// *AlreadyRunningError when the marker names a live process. A stale marker
// is removed first.
func (m *Manager) Start() (int, error) {
	if err := m.clearStale(); err != nil {
		return 0, err
	}

	pid, err := m.spawner.Spawn()
	if err != nil {
		return 0, err
	}
	if err := m.pid.Write(pid); err != nil {
		return pid, err
	}

	m.logger.Info("daemon started",
		logger.Field{Key: "pid", Value: pid},
		logger.Field{Key: "pid_file", Value: m.pid.Path()})
	return pid, nil
}

// clearStale fails if a live daemon owns the marker and removes the marker
// otherwise.
func (m *Manager) clearStale() error {
	st, err := m.Status()
	if err != nil {
		return err
	}
	if st.Running {
		return &AlreadyRunningError{PID: st.PID}
	}
	if st.Stale {
		m.logger.Warn("removing stale PID file",
			logger.Field{Key: "pid", Value: st.PID},
			logger.Field{Key: "pid_file", Value: m.pid.Path()})
		return m.pid.Remove()
	}
	return nil
}

// Stop asks the daemon to terminate, waits the grace period and removes
// the marker whether or not the process has exited yet. It returns the PID
// that was signalled.
func (m *Manager) Stop() (int, error) {
	st, err := m.Status()
	if err != nil {
		return 0, err
	}
	if !st.Running && !st.Stale {
		return 0, ErrNotRunning
	}
	if st.Stale {
		if err := m.pid.Remove(); err != nil {
			return 0, err
		}
		return st.PID, fmt.Errorf("%w: process %d is not running, marker removed", ErrStaleState, st.PID)
	}

	m.logger.Info("stopping daemon", logger.Field{Key: "pid", Value: st.PID})
	signalErr := m.terminate(st.PID)
	if signalErr != nil {
		m.logger.Warn("failed to signal daemon",
			logger.Field{Key: "pid", Value: st.PID},
			logger.Field{Key: "error", Value: signalErr.Error()})
	}
	m.sleep(m.grace)

	if err := m.pid.Remove(); err != nil {
		return st.PID, err
	}
	if signalErr != nil {
		return st.PID, fmt.Errorf("failed to signal daemon (PID %d): %w", st.PID, signalErr)
	}
	return st.PID, nil
}

// Restart stops the daemon, ignoring any error, and starts a new one.
func (m *Manager) Restart() (int, error) {
	if _, err := m.Stop(); err != nil {
		m.logger.Debug("stop before restart", logger.Field{Key: "error", Value: err.Error()})
	}
	return m.Start()
}

// RunForeground runs fn as the daemon in this process. It claims the
// marker, cancels fn's context on SIGINT or SIGTERM and releases the
// marker when fn returns.
func (m *Manager) RunForeground(ctx context.Context, fn func(ctx context.Context) error) error {
	self := os.Getpid()
	if err := m.claim(self); err != nil {
		return err
	}
	defer func() {
		if err := m.pid.RemoveIfOwned(self); err != nil {
			m.logger.Error("failed to remove PID file", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m.logger.Info("daemon running",
		logger.Field{Key: "pid", Value: self},
		logger.Field{Key: "detached", Value: IsWorker()})
	m.sdNotify(sddaemon.SdNotifyReady)

	err := fn(ctx)

	m.sdNotify(sddaemon.SdNotifyStopping)
	m.logger.Info("daemon exiting", logger.Field{Key: "pid", Value: self})
	return err
}

// claim records self in the marker. The marker may already name self when
// the supervisor wrote it first.
func (m *Manager) claim(self int) error {
	pid, err := m.pid.Read()
	if err == nil && pid == self {
		return nil
	}
	if err := m.clearStale(); err != nil {
		return err
	}
	return m.pid.Write(self)
}

func (m *Manager) sdNotify(state string) {
	sent, err := m.notify(state)
	if err != nil {
		m.logger.Warn("service manager notification failed",
			logger.Field{Key: "state", Value: state},
			logger.Field{Key: "error", Value: err.Error()})
		return
	}
	if sent {
		m.logger.Debug("notified service manager", logger.Field{Key: "state", Value: state})
	}
}
