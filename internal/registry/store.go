package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aatumaykin/singleschedule/internal/logger"
)

// document is the on-disk shape of the registry file. Events are decoded
// one by one so fields unknown to Task survive a rewrite.
type document struct {
	Events []json.RawMessage `json:"events"`
}

// taskFields are the per-event keys Task marshals itself.
var taskFields = map[string]bool{
	"slug":       true,
	"cron":       true,
	"command":    true,
	"active":     true,
	"created_at": true,
	"last_run":   true,
}

func decodeTask(raw json.RawMessage) (Task, error) {
	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return Task{}, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Task{}, err
	}
	for key, value := range fields {
		if taskFields[key] {
			continue
		}
		if t.extra == nil {
			t.extra = make(map[string]json.RawMessage)
		}
		t.extra[key] = value
	}
	return t, nil
}

func encodeTask(t Task) (json.RawMessage, error) {
	data, err := json.Marshal(t)
	if err != nil || len(t.extra) == 0 {
		return data, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for key, value := range t.extra {
		fields[key] = value
	}
	return json.Marshal(fields)
}

// Store reads and writes the registry file as a whole. There is no locking:
// concurrent writers race and the last rename wins.
type Store struct {
	filePath string
	logger   *logger.Logger
}

// NewStore creates a store for the registry file at filePath.
func NewStore(filePath string, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		filePath: filePath,
		logger:   log,
	}
}

// Path returns the registry file location.
func (s *Store) Path() string {
	return s.filePath
}

// Load reads the registry. A missing file yields an empty registry.
// Duplicate slugs written by hand are dropped, keeping the first.
func (s *Store) Load() (*Registry, error) {
	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create registry directory: %w", err)
		}
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var doc document
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse registry file %s: %w", s.filePath, err)
		}
	}

	r := &Registry{tasks: make([]Task, 0, len(doc.Events))}
	seen := make(map[string]bool, len(doc.Events))
	for i, raw := range doc.Events {
		t, err := decodeTask(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event %d in registry file %s: %w", i, s.filePath, err)
		}
		if seen[t.Slug] {
			s.logger.Warn("duplicate slug in registry file ignored",
				logger.Field{Key: "slug", Value: t.Slug},
				logger.Field{Key: "file", Value: s.filePath})
			continue
		}
		seen[t.Slug] = true
		r.tasks = append(r.tasks, t)
	}
	return r, nil
}

// Save writes the whole registry atomically: a temporary file in the same
// directory is synced and renamed over the registry file.
func (s *Store) Save(r *Registry) error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	doc := document{Events: make([]json.RawMessage, 0, r.Len())}
	for _, t := range r.Tasks() {
		raw, err := encodeTask(t)
		if err != nil {
			return fmt.Errorf("failed to marshal task %s: %w", t.Slug, err)
		}
		doc.Events = append(doc.Events, raw)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary registry file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temporary registry file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temporary registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary registry file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set registry file mode: %w", err)
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("failed to replace registry file: %w", err)
	}

	s.logger.Debug("registry saved",
		logger.Field{Key: "count", Value: r.Len()},
		logger.Field{Key: "file", Value: s.filePath})
	return nil
}

// Update loads the registry, applies fn and saves the result. Nothing is
// written when fn returns an error.
func (s *Store) Update(fn func(*Registry) error) error {
	r, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(r); err != nil {
		return err
	}
	return s.Save(r)
}
