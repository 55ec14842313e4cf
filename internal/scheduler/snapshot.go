package scheduler

import (
	"context"
	"time"

	"github.com/aatumaykin/singleschedule/internal/constants"
	"github.com/aatumaykin/singleschedule/internal/registry"
	"github.com/aatumaykin/singleschedule/internal/schedule"
)

// TaskView is a task as the loop currently sees it.
type TaskView struct {
	registry.Task
	Scheduled  bool
	ParseError string
	NextRuns   []time.Time
}

// Snapshot is a read-only copy of the loop's state.
type Snapshot struct {
	State       State
	Tasks       []TaskView
	LastTick    time.Time
	ReloadError string
}

// Snapshot asks the running loop for a copy of its state. It returns
// ErrNotRunning once the loop has exited.
func (s *Scheduler) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case s.snapshots <- reply:
	case <-s.done:
		return Snapshot{}, ErrNotRunning
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// snapshot builds a Snapshot. Called only from the loop goroutine.
func (s *Scheduler) snapshot() Snapshot {
	snap := Snapshot{
		State:    s.state,
		LastTick: s.lastTick,
	}
	if s.lastReload != nil {
		snap.ReloadError = s.lastReload.Error()
	}

	from := s.clock()
	for _, task := range s.registry.Tasks() {
		view := TaskView{Task: task}
		if rule, ok := s.index.Lookup(task.Slug); ok {
			view.Scheduled = true
			view.NextRuns = schedule.Preview(rule, from, constants.NextRunPreviewCount)
		} else if err, bad := s.invalid[task.Slug]; bad {
			view.ParseError = err.Error()
		}
		snap.Tasks = append(snap.Tasks, view)
	}
	return snap
}
