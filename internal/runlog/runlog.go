// Package runlog keeps the captured output of task runs in per-task daily
// files and purges files older than the retention period.
package runlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aatumaykin/singleschedule/internal/logger"
)

const fileDateFormat = "20060102"

// ErrUnsafeSlug is returned for slugs that would place a log file outside
// the log directory.
var ErrUnsafeSlug = errors.New("slug is not usable as a file name")

// Entry is one run as written to a log file.
type Entry struct {
	RunID     string
	Command   string
	StartedAt time.Time
	Duration  time.Duration
	ExitCode  int
	Success   bool
	Stdout    string
	Stderr    string
	Err       error
}

// Writer appends entries under dir.
type Writer struct {
	dir       string
	retention time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

// New creates a Writer. A zero retention disables purging.
func New(dir string, retention time.Duration, log *logger.Logger) *Writer {
	if log == nil {
		log = logger.Nop()
	}
	return &Writer{
		dir:       dir,
		retention: retention,
		logger:    log,
		now:       time.Now,
	}
}

// Dir returns the directory holding run logs.
func (w *Writer) Dir() string {
	return w.dir
}

// PathFor returns the file that receives runs of slug started on day.
func (w *Writer) PathFor(slug string, day time.Time) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.log", slug, day.Format(fileDateFormat)))
}

// Append writes e to the slug's file for the day the run started.
func (w *Writer) Append(slug string, e Entry) error {
	if !safeName(slug) {
		return fmt.Errorf("%w: %q", ErrUnsafeSlug, slug)
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create run log directory: %w", err)
	}

	path := w.PathFor(slug, e.StartedAt)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "\n--- %s run %s started at %s ---\n", slug, e.RunID, e.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "$ %s\n", e.Command)
	writeStream(&b, "stdout", e.Stdout)
	writeStream(&b, "stderr", e.Stderr)
	switch {
	case e.Err != nil:
		fmt.Fprintf(&b, "--- %s run %s failed: %v ---\n", slug, e.RunID, e.Err)
	case e.Success:
		fmt.Fprintf(&b, "--- %s run %s finished in %s ---\n", slug, e.RunID, e.Duration.Round(time.Millisecond))
	default:
		fmt.Fprintf(&b, "--- %s run %s exited with status %d after %s ---\n", slug, e.RunID, e.ExitCode, e.Duration.Round(time.Millisecond))
	}

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to write run log: %w", err)
	}
	return nil
}

// safeName reports whether slug is a single path element.
func safeName(slug string) bool {
	if slug == "" || slug == "." || slug == ".." {
		return false
	}
	return !strings.ContainsAny(slug, `/\`) && filepath.Base(slug) == slug
}

func writeStream(b *strings.Builder, name, content string) {
	if content == "" {
		return
	}
	fmt.Fprintf(b, "[%s]\n%s", name, content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteByte('\n')
	}
}

// Purge removes run logs last modified before now minus the retention
// period and returns how many were removed. A missing directory is not an
// error.
func (w *Writer) Purge() (int, error) {
	if w.retention <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read run log directory: %w", err)
	}

	cutoff := w.now().Add(-w.retention)
	purged := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(w.dir, entry.Name())); err != nil {
			w.logger.Warn("failed to remove run log",
				logger.Field{Key: "file", Value: entry.Name()},
				logger.Field{Key: "error", Value: err})
			continue
		}
		purged++
	}

	if purged > 0 {
		w.logger.Info("purged old run logs", logger.Field{Key: "count", Value: purged})
	}
	return purged, nil
}
