// Package runner executes task command lines as child processes.
//
// A command line is split on whitespace into a program and its arguments.
// There is no shell and no quoting: an argument cannot contain a space.
package runner

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/aatumaykin/singleschedule/internal/logger"
	"github.com/google/uuid"
)

var (
	// ErrEmptyCommand is returned when the command line has no tokens.
	ErrEmptyCommand = errors.New("empty command")
	// ErrSpawnFailure matches every *SpawnError.
	ErrSpawnFailure = errors.New("failed to spawn command")
)

// SpawnError reports a program that could not be launched.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %q: %v", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

func (e *SpawnError) Is(target error) bool {
	return target == ErrSpawnFailure
}

// Outcome describes a finished run.
type Outcome struct {
	RunID     string
	Program   string
	Args      []string
	StartedAt time.Time
	Duration  time.Duration
	Success   bool
	ExitCode  int
	Stdout    string
	Stderr    string
}

// Runner launches commands and waits for them.
type Runner struct {
	logger *logger.Logger
	dir    string
	now    func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithDir sets the working directory of launched commands.
func WithDir(dir string) Option {
	return func(r *Runner) { r.dir = dir }
}

// WithClock overrides the time source used for StartedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a Runner.
func New(log *logger.Logger, opts ...Option) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	r := &Runner{logger: log, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Split breaks a command line into program and arguments.
func Split(commandLine string) (string, []string, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return "", nil, ErrEmptyCommand
	}
	return fields[0], fields[1:], nil
}

// Run executes commandLine and blocks until it exits. A non-zero exit is
// reported through Outcome.Success and is not an error; only an empty
// command line or a launch failure return an error.
func (r *Runner) Run(commandLine string) (Outcome, error) {
	program, args, err := Split(commandLine)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		RunID:     uuid.NewString(),
		Program:   program,
		Args:      args,
		StartedAt: r.now(),
		ExitCode:  -1,
	}

	cmd := exec.Command(program, args...)
	cmd.Dir = r.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return out, &SpawnError{Program: program, Err: err}
	}
	waitErr := cmd.Wait()
	out.Duration = time.Since(start)
	out.Stdout = stdout.String()
	out.Stderr = stderr.String()
	out.ExitCode = exitCode(cmd, waitErr)
	out.Success = waitErr == nil

	fields := []logger.Field{
		{Key: "run_id", Value: out.RunID},
		{Key: "program", Value: program},
		{Key: "exit_code", Value: out.ExitCode},
		{Key: "duration", Value: out.Duration.String()},
	}
	r.logger.Debug("command finished", fields...)
	if out.Stdout != "" {
		r.logger.Debug("command stdout", logger.Field{Key: "run_id", Value: out.RunID}, logger.Field{Key: "output", Value: strings.TrimRight(out.Stdout, "\n")})
	}
	if out.Stderr != "" {
		r.logger.Debug("command stderr", logger.Field{Key: "run_id", Value: out.RunID}, logger.Field{Key: "output", Value: strings.TrimRight(out.Stderr, "\n")})
	}
	return out, nil
}

func exitCode(cmd *exec.Cmd, err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if err != nil || cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}
