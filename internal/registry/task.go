// Package registry holds the set of user-registered tasks and persists it as
// a single JSON document. Every collaborator reads the whole document,
// mutates it in memory and writes the whole document back.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wasilibs/go-re2"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrDuplicateSlug     = errors.New("task already exists")
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidSlug       = errors.New("invalid slug")
	ErrEmptyCommand      = errors.New("empty command")
	ErrInvalidRecurrence = errors.New("invalid cron expression")
)

var slugPattern = re2.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}._-]{0,63}$`)

// Task is a user-registered command with its recurrence and run history.
type Task struct {
	Slug       string     `json:"slug" yaml:"slug"`
	Recurrence string     `json:"cron" yaml:"cron"`
	Command    string     `json:"command" yaml:"command"`
	Active     bool       `json:"active" yaml:"active"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	LastRun    *time.Time `json:"last_run" yaml:"last_run"`

	// extra holds fields of the registry file this version does not know,
	// written back unchanged on save.
	extra map[string]json.RawMessage
}

// NewTask builds an active task created at now. It does not validate.
func NewTask(slug, recurrence, command string, now time.Time) Task {
	return Task{
		Slug:       NormalizeSlug(slug),
		Recurrence: strings.TrimSpace(recurrence),
		Command:    strings.TrimSpace(command),
		Active:     true,
		CreatedAt:  now.UTC(),
	}
}

// UnmarshalJSON treats a missing "active" field as true; registries written
// before tasks could be paused have no such field.
func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	aux := struct {
		*plain
		Active *bool `json:"active"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.Active = aux.Active == nil || *aux.Active
	return nil
}

// clone returns a copy that shares no memory with t.
func (t Task) clone() Task {
	if t.LastRun != nil {
		lr := *t.LastRun
		t.LastRun = &lr
	}
	if t.extra != nil {
		extra := make(map[string]json.RawMessage, len(t.extra))
		for k, v := range t.extra {
			extra[k] = v
		}
		t.extra = extra
	}
	return t
}

// NormalizeSlug trims and NFC-normalises a user supplied slug so visually
// identical slugs compare equal.
func NormalizeSlug(slug string) string {
	return norm.NFC.String(strings.TrimSpace(slug))
}

// ValidateSlug checks the slug's shape.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("%w %q: use letters, digits, '.', '_' or '-' (max 64, must start with a letter or digit)", ErrInvalidSlug, slug)
	}
	return nil
}
