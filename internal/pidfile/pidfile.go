// Package pidfile manages the marker file that records the running daemon's
// process ID.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrInvalid is returned when the marker exists but holds no valid PID.
var ErrInvalid = errors.New("invalid PID file")

// File is a PID marker at a fixed path.
type File struct {
	path string
}

// New returns the marker at path.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the marker location.
func (f *File) Path() string {
	return f.path
}

// Write records pid, replacing any previous marker.
func (f *File) Write(pid int) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(fmt.Sprintf("%d\n", pid)), 0600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Read returns the recorded PID. A missing marker yields an error matching
// os.ErrNotExist.
func (f *File) Read() (int, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w %s: %q", ErrInvalid, f.path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// Exists reports whether the marker file is present.
func (f *File) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Remove deletes the marker. A missing marker is not an error.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// RemoveIfOwned deletes the marker only when it still records pid.
func (f *File) RemoveIfOwned(pid int) error {
	recorded, err := f.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if recorded != pid {
		return nil
	}
	return f.Remove()
}
