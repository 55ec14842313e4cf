package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/aatumaykin/singleschedule/internal/schedule"
)

// Registry is an ordered collection of tasks keyed by slug. It is not safe
// for concurrent use; owners serialise access.
type Registry struct {
	tasks []Task
}

// New creates a registry holding tasks in the given order.
func New(tasks ...Task) *Registry {
	r := &Registry{tasks: make([]Task, 0, len(tasks))}
	for _, t := range tasks {
		r.tasks = append(r.tasks, t.clone())
	}
	return r
}

// Len returns the number of tasks.
func (r *Registry) Len() int {
	return len(r.tasks)
}

// CountActive returns the number of active tasks.
func (r *Registry) CountActive() int {
	n := 0
	for _, t := range r.tasks {
		if t.Active {
			n++
		}
	}
	return n
}

// Tasks returns a deep copy of all tasks in registry order.
func (r *Registry) Tasks() []Task {
	out := make([]Task, len(r.tasks))
	for i, t := range r.tasks {
		out[i] = t.clone()
	}
	return out
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	return New(r.tasks...)
}

// Get returns the task with slug.
func (r *Registry) Get(slug string) (Task, bool) {
	if i := r.indexOf(slug); i >= 0 {
		return r.tasks[i].clone(), true
	}
	return Task{}, false
}

// Add validates t and appends it. The registry is left untouched on error.
func (r *Registry) Add(t Task, p *schedule.Parser) error {
	t.Slug = NormalizeSlug(t.Slug)
	if err := ValidateSlug(t.Slug); err != nil {
		return err
	}
	if err := p.Validate(t.Recurrence); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}
	t.Command = strings.TrimSpace(t.Command)
	if t.Command == "" {
		return fmt.Errorf("task %q: %w", t.Slug, ErrEmptyCommand)
	}
	if r.indexOf(t.Slug) >= 0 {
		return fmt.Errorf("task with slug '%s': %w", t.Slug, ErrDuplicateSlug)
	}
	r.tasks = append(r.tasks, t.clone())
	return nil
}

// Remove deletes the task with slug.
func (r *Registry) Remove(slug string) error {
	i := r.indexOf(NormalizeSlug(slug))
	if i < 0 {
		return fmt.Errorf("task with slug '%s': %w", slug, ErrTaskNotFound)
	}
	r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
	return nil
}

// SetActive sets the active flag of one task.
func (r *Registry) SetActive(slug string, active bool) error {
	i := r.indexOf(NormalizeSlug(slug))
	if i < 0 {
		return fmt.Errorf("task with slug '%s': %w", slug, ErrTaskNotFound)
	}
	r.tasks[i].Active = active
	return nil
}

// SetAllActive sets every task's active flag and returns how many changed.
func (r *Registry) SetAllActive(active bool) int {
	changed := 0
	for i := range r.tasks {
		if r.tasks[i].Active != active {
			r.tasks[i].Active = active
			changed++
		}
	}
	return changed
}

// MarkRun advances the task's last run to at. It never moves last run
// backwards and reports whether the task exists.
func (r *Registry) MarkRun(slug string, at time.Time) bool {
	i := r.indexOf(slug)
	if i < 0 {
		return false
	}
	if cur := r.tasks[i].LastRun; cur != nil && !at.After(*cur) {
		return true
	}
	at = at.UTC()
	r.tasks[i].LastRun = &at
	return true
}

// Recurrences maps every slug to its raw recurrence expression.
func (r *Registry) Recurrences() map[string]string {
	out := make(map[string]string, len(r.tasks))
	for _, t := range r.tasks {
		out[t.Slug] = t.Recurrence
	}
	return out
}

func (r *Registry) indexOf(slug string) int {
	for i, t := range r.tasks {
		if t.Slug == slug {
			return i
		}
	}
	return -1
}
