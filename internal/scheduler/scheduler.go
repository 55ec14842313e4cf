// Package scheduler runs the polling loop that reloads the task registry,
// decides which tasks are due and runs them one after another.
//
// The loop owns its registry copy exclusively. Other goroutines observe it
// through Snapshot, which the loop answers between ticks.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/aatumaykin/singleschedule/internal/constants"
	"github.com/aatumaykin/singleschedule/internal/logger"
	"github.com/aatumaykin/singleschedule/internal/metrics"
	"github.com/aatumaykin/singleschedule/internal/registry"
	"github.com/aatumaykin/singleschedule/internal/runlog"
	"github.com/aatumaykin/singleschedule/internal/runner"
	"github.com/aatumaykin/singleschedule/internal/schedule"
)

// ErrNotRunning is returned by Snapshot when the loop is not serving requests.
var ErrNotRunning = errors.New("scheduler loop is not running")

// State is the loop's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "idle"
	}
}

// TaskRunner executes a command line.
type TaskRunner interface {
	Run(commandLine string) (runner.Outcome, error)
}

// Store is the durable registry.
type Store interface {
	Load() (*registry.Registry, error)
	Save(*registry.Registry) error
}

// Config wires the loop's collaborators. Store, Parser and Runner are
// required; the rest are optional.
type Config struct {
	Store        Store
	Parser       *schedule.Parser
	Runner       TaskRunner
	RunLog       *runlog.Writer
	Metrics      *metrics.Metrics
	Logger       *logger.Logger
	Clock        func() time.Time
	TickInterval time.Duration
}

// Scheduler is the polling loop.
type Scheduler struct {
	store    Store
	parser   *schedule.Parser
	runner   TaskRunner
	runLog   *runlog.Writer
	metrics  *metrics.Metrics
	logger   *logger.Logger
	clock    func() time.Time
	interval time.Duration

	state      State
	registry   *registry.Registry
	index      schedule.Index
	invalid    map[string]error
	lastTick   time.Time
	lastReload error
	lastPurge  time.Time

	snapshots chan chan Snapshot
	done      chan struct{}
}

// New creates a scheduler. Call Load or Run to start it.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = constants.TickInterval
	}
	if cfg.Parser == nil {
		cfg.Parser = schedule.NewParser(nil)
	}
	return &Scheduler{
		store:     cfg.Store,
		parser:    cfg.Parser,
		runner:    cfg.Runner,
		runLog:    cfg.RunLog,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		interval:  cfg.TickInterval,
		registry:  registry.New(),
		index:     schedule.Index{},
		snapshots: make(chan chan Snapshot),
		done:      make(chan struct{}),
	}
}

// State returns the loop state. It is only safe to call from the goroutine
// driving the loop; other goroutines use Snapshot.
func (s *Scheduler) State() State {
	return s.state
}

// Load reads the registry and builds the index. Failure here aborts
// startup; later reload failures do not.
func (s *Scheduler) Load() error {
	r, err := s.store.Load()
	if err != nil {
		return err
	}
	s.install(r)
	s.state = StateRunning
	s.logger.Info("scheduler loaded",
		logger.Field{Key: "tasks", Value: r.Len()},
		logger.Field{Key: "active", Value: r.CountActive()},
		logger.Field{Key: "invalid", Value: len(s.invalid)})
	return nil
}

// Run loads the registry and ticks until ctx is cancelled. The tick in
// progress when ctx is cancelled, including a running task, completes
// before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)

	if err := s.Load(); err != nil {
		return err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", logger.Field{Key: "interval", Value: s.interval.String()})
	s.Tick(s.clock())

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case reply := <-s.snapshots:
			reply <- s.snapshot()
		case <-ticker.C:
			if ctx.Err() != nil {
				s.shutdown()
				return nil
			}
			s.Tick(s.clock())
		}
	}
}

func (s *Scheduler) shutdown() {
	s.state = StateShuttingDown
	s.logger.Info("scheduler shutting down")
}

// Tick performs one evaluation at now: reload, rebuild the index, run due
// tasks sequentially and persist their last-run times in a single write.
func (s *Scheduler) Tick(now time.Time) TickReport {
	report := TickReport{At: now}
	s.lastTick = now
	if s.metrics != nil {
		s.metrics.RecordTick(now)
	}

	s.reload(&report)

	marks := make(map[string]time.Time)
	for _, task := range s.registry.Tasks() {
		if !task.Active {
			continue
		}
		rule, ok := s.index.Lookup(task.Slug)
		if !ok {
			report.Skipped = append(report.Skipped, task.Slug)
			continue
		}
		if !schedule.IsDue(rule, task.LastRun, now) {
			continue
		}

		if s.runTask(task, now) {
			report.Succeeded = append(report.Succeeded, task.Slug)
		} else {
			report.Failed = append(report.Failed, task.Slug)
		}
		report.Ran = append(report.Ran, task.Slug)
		marks[task.Slug] = schedule.Horizon(now)
	}

	if len(marks) > 0 {
		report.PersistErr = s.persist(marks)
	}

	s.maybePurge(now)
	return report
}

func (s *Scheduler) reload(report *TickReport) {
	r, err := s.store.Load()
	s.lastReload = err
	if err != nil {
		report.ReloadErr = err
		s.logger.Error("failed to reload registry, keeping previous state", err)
		if s.metrics != nil {
			s.metrics.RecordReloadFailure()
		}
		return
	}
	s.install(r)
}

func (s *Scheduler) install(r *registry.Registry) {
	index, failures := schedule.BuildIndex(s.parser, r.Recurrences())
	for slug, err := range failures {
		s.logger.Warn("skipping task with invalid recurrence",
			logger.Field{Key: "slug", Value: slug},
			logger.Field{Key: "error", Value: err.Error()})
	}
	s.registry = r
	s.index = index
	s.invalid = failures
	if s.metrics != nil {
		s.metrics.SetRegistrySize(r.Len(), r.CountActive(), len(failures))
	}
}

// runTask runs one task and reports whether it succeeded. Failures are
// logged and never propagate.
func (s *Scheduler) runTask(task registry.Task, now time.Time) bool {
	log := s.logger.With(logger.Field{Key: "slug", Value: task.Slug})
	log.Info("running task", logger.Field{Key: "command", Value: task.Command})

	out, err := s.runner.Run(task.Command)
	entry := runlog.Entry{
		RunID:     out.RunID,
		Command:   task.Command,
		StartedAt: out.StartedAt,
		Duration:  out.Duration,
		ExitCode:  out.ExitCode,
		Success:   out.Success,
		Stdout:    out.Stdout,
		Stderr:    out.Stderr,
		Err:       err,
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = now
	}

	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultSpawnFailed
		log.Error("task could not be started", err)
	case !out.Success:
		result = metrics.ResultFailure
		log.Warn("task failed",
			logger.Field{Key: "run_id", Value: out.RunID},
			logger.Field{Key: "exit_code", Value: out.ExitCode},
			logger.Field{Key: "duration", Value: out.Duration.String()})
	default:
		log.Info("task completed",
			logger.Field{Key: "run_id", Value: out.RunID},
			logger.Field{Key: "duration", Value: out.Duration.String()})
	}

	if s.metrics != nil {
		s.metrics.RecordRun(result, out.Duration)
	}
	if s.runLog != nil {
		if err := s.runLog.Append(task.Slug, entry); err != nil {
			log.Warn("failed to write run log", logger.Field{Key: "error", Value: err.Error()})
		}
	}
	return result == metrics.ResultSuccess
}

// persist writes the last-run marks in one whole-document save. The file is
// re-read first so that edits made since this tick's reload survive; if it
// cannot be read, the loop's own copy is written instead.
func (s *Scheduler) persist(marks map[string]time.Time) error {
	for slug, at := range marks {
		s.registry.MarkRun(slug, at)
	}

	target, err := s.store.Load()
	if err != nil {
		s.logger.Warn("failed to re-read registry before persisting, writing in-memory copy",
			logger.Field{Key: "error", Value: err.Error()})
		target = s.registry.Clone()
	} else {
		for slug, at := range marks {
			if !target.MarkRun(slug, at) {
				s.logger.Debug("task removed while running, dropping last run",
					logger.Field{Key: "slug", Value: slug})
			}
		}
	}

	if err := s.store.Save(target); err != nil {
		s.logger.Error("failed to persist last run times", err,
			logger.Field{Key: "tasks", Value: len(marks)})
		if s.metrics != nil {
			s.metrics.RecordPersistFailure()
		}
		return err
	}
	return nil
}

func (s *Scheduler) maybePurge(now time.Time) {
	if s.runLog == nil {
		return
	}
	if !s.lastPurge.IsZero() && now.Sub(s.lastPurge) < constants.RunLogJanitorInterval {
		return
	}
	s.lastPurge = now
	if _, err := s.runLog.Purge(); err != nil {
		s.logger.Warn("run log purge failed", logger.Field{Key: "error", Value: err.Error()})
	}
}

// TickReport summarises one tick.
type TickReport struct {
	At         time.Time
	Ran        []string
	Succeeded  []string
	Failed     []string
	Skipped    []string
	ReloadErr  error
	PersistErr error
}
