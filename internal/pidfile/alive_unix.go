//go:build !windows

package pidfile

import (
	"errors"
	"os"
	"syscall"
)

// IsAlive reports whether pid refers to a live process. Signal 0 performs
// the permission and existence checks without delivering anything.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// The process exists but belongs to another user.
	return errors.Is(err, syscall.EPERM)
}
