//go:build windows

package pidfile

import "os"

// IsAlive reports whether pid refers to a live process. Windows has no
// signal probe; opening a handle to the process fails once it is gone.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = process.Release()
	return true
}
