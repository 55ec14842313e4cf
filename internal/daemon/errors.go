package daemon

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning matches every *AlreadyRunningError.
	ErrAlreadyRunning = errors.New("daemon is already running")
	// ErrNotRunning is returned by Stop when there is no PID marker.
	ErrNotRunning = errors.New("daemon is not running")
	// ErrStaleState is returned by Stop when the marker names a dead process.
	// The marker has been removed by the time it is returned.
	ErrStaleState = errors.New("stale PID file")
)

// AlreadyRunningError carries the PID of the live daemon.
type AlreadyRunningError struct {
	PID int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("daemon is already running (PID %d)", e.PID)
}

func (e *AlreadyRunningError) Is(target error) bool {
	return target == ErrAlreadyRunning
}
