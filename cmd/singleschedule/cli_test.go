package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aatumaykin/singleschedule/internal/constants"
	"github.com/aatumaykin/singleschedule/internal/daemon"
	"github.com/aatumaykin/singleschedule/internal/pidfile"
	"github.com/aatumaykin/singleschedule/internal/registry"
	"github.com/aatumaykin/singleschedule/internal/schedule"
)

type stubSpawner struct {
	pid   int
	calls *int
}

func (s stubSpawner) Spawn() (int, error) {
	*s.calls++
	return s.pid, nil
}

// setupHome points the data directory at a temporary directory and stubs
// out worker spawning. It returns the data directory.
func setupHome(t *testing.T, spawnPID int) (string, *int) {
	t.Helper()
	home := t.TempDir()
	t.Setenv(constants.HomeEnvVar, home)

	calls := 0
	prev := newSpawner
	newSpawner = func(args ...string) (daemon.Spawner, error) {
		return stubSpawner{pid: spawnPID, calls: &calls}, nil
	}
	t.Cleanup(func() { newSpawner = prev })
	return home, &calls
}

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func loadRegistry(t *testing.T, home string) *registry.Registry {
	t.Helper()
	r, err := registry.NewStore(filepath.Join(home, constants.RegistryFileName), nil).Load()
	require.NoError(t, err)
	return r
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"add", "remove", "list", "start", "stop", "restart", "status", "run", "config", "version"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("debug"))
}

func TestAddCommand(t *testing.T) {
	home, _ := setupHome(t, 0)

	stdout, _, err := executeCommand(t, "add", "--slug", "backup", "--cron", "0 0 3 * * *", "--", "tar", "czf", "/tmp/etc.tgz", "/etc")

	require.NoError(t, err)
	assert.Equal(t, "Task 'backup' added successfully\n", stdout)

	task, ok := loadRegistry(t, home).Get("backup")
	require.True(t, ok)
	assert.Equal(t, "0 0 3 * * *", task.Recurrence)
	assert.Equal(t, "tar czf /tmp/etc.tgz /etc", task.Command)
	assert.True(t, task.Active)
	assert.Nil(t, task.LastRun)
}

func TestAddCommand_Rejections(t *testing.T) {
	home, _ := setupHome(t, 0)
	_, _, err := executeCommand(t, "add", "-s", "job", "--cron", "*/5 * * * * *", "--", "echo", "hi")
	require.NoError(t, err)

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{
			name:    "duplicate slug",
			args:    []string{"add", "-s", "job", "--cron", "0 * * * * *", "--", "date"},
			wantErr: registry.ErrDuplicateSlug,
		},
		{
			name:    "invalid expression",
			args:    []string{"add", "-s", "other", "--cron", "bad expr", "--", "date"},
			wantErr: registry.ErrInvalidRecurrence,
		},
		{
			name:    "five fields",
			args:    []string{"add", "-s", "other", "--cron", "* * * * *", "--", "date"},
			wantErr: registry.ErrInvalidRecurrence,
		},
		{
			name:    "invalid slug",
			args:    []string{"add", "-s", "has space", "--cron", "0 * * * * *", "--", "date"},
			wantErr: registry.ErrInvalidSlug,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1, loadRegistry(t, home).Len())
		})
	}
}

func TestAddCommand_RequiresFlagsAndCommand(t *testing.T) {
	setupHome(t, 0)

	_, _, err := executeCommand(t, "add", "--cron", "0 * * * * *", "--", "date")
	assert.Error(t, err)

	_, _, err = executeCommand(t, "add", "-s", "job", "--cron", "0 * * * * *")
	assert.Error(t, err)
}

func TestRemoveCommand(t *testing.T) {
	home, _ := setupHome(t, 0)
	_, _, err := executeCommand(t, "add", "-s", "job", "--cron", "0 * * * * *", "--", "date")
	require.NoError(t, err)

	stdout, _, err := executeCommand(t, "remove", "--slug", "job")
	require.NoError(t, err)
	assert.Equal(t, "Task 'job' removed successfully\n", stdout)
	assert.Zero(t, loadRegistry(t, home).Len())

	_, _, err = executeCommand(t, "remove", "--slug", "job")
	assert.ErrorIs(t, err, registry.ErrTaskNotFound)
}

func TestListCommand_Empty(t *testing.T) {
	setupHome(t, 0)

	stdout, _, err := executeCommand(t, "list")

	require.NoError(t, err)
	assert.Equal(t, constants.MsgNoTasks, stdout)
}

func TestListCommand_Table(t *testing.T) {
	home, _ := setupHome(t, 0)
	_, _, err := executeCommand(t, "add", "-s", "tick", "--cron", "0 * * * * *", "--", "echo", "tick")
	require.NoError(t, err)
	_, _, err = executeCommand(t, "add", "-s", "paused", "--cron", "0 0 * * * *", "--", "date")
	require.NoError(t, err)
	_, _, err = executeCommand(t, "stop", "paused")
	require.NoError(t, err)

	// A hand-edited rule the parser rejects still lists.
	store := registry.NewStore(filepath.Join(home, constants.RegistryFileName), nil)
	r, err := store.Load()
	require.NoError(t, err)
	data, err := json.Marshal(map[string]any{"events": append(r.Tasks(), registry.Task{
		Slug: "broken", Recurrence: "not a rule", Command: "date", Active: true,
	})})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path(), data, 0644))

	stdout, _, err := executeCommand(t, "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "SLUG"))
	assert.Equal(t, strings.Repeat("-", constants.MsgListSeparatorLen), lines[1])

	assert.Contains(t, lines[2], "tick")
	assert.Contains(t, lines[2], "Active")
	assert.Contains(t, lines[2], "Never")

	assert.Contains(t, lines[3], "paused")
	assert.Contains(t, lines[3], "Inactive")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[3]), "-"))

	assert.Contains(t, lines[4], "broken")
	assert.Contains(t, lines[4], constants.MsgInvalidRule)
}

func TestListCommand_JSONAndYAML(t *testing.T) {
	setupHome(t, 0)
	_, _, err := executeCommand(t, "add", "-s", "job", "--cron", "0 0 12 * * *", "--", "echo", "noon")
	require.NoError(t, err)

	stdout, _, err := executeCommand(t, "list", "-o", "json")
	require.NoError(t, err)
	var fromJSON []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &fromJSON))
	require.Len(t, fromJSON, 1)
	assert.Equal(t, "job", fromJSON[0]["slug"])
	assert.Equal(t, "0 0 12 * * *", fromJSON[0]["cron"])
	assert.Equal(t, "echo noon", fromJSON[0]["command"])
	assert.Equal(t, true, fromJSON[0]["active"])
	assert.NotNil(t, fromJSON[0]["next_run"])

	stdout, _, err = executeCommand(t, "list", "--output", "yaml")
	require.NoError(t, err)
	var fromYAML []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &fromYAML))
	require.Len(t, fromYAML, 1)
	assert.Equal(t, "job", fromYAML[0]["slug"])
	assert.Equal(t, "echo noon", fromYAML[0]["command"])

	_, _, err = executeCommand(t, "list", "-o", "xml")
	assert.Error(t, err)
}

func TestBuildListings(t *testing.T) {
	r := registry.New()
	p := schedule.NewParser(time.UTC)
	now := time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC)
	require.NoError(t, r.Add(registry.NewTask("minutely", "0 * * * * *", "date", now), p))

	listings := buildListings(r, p, now)

	require.Len(t, listings, 1)
	require.NotNil(t, listings[0].NextRun)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC), *listings[0].NextRun)
	assert.Empty(t, listings[0].Error)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{name: "fits", in: "echo hi", width: 10, want: "echo hi"},
		{name: "exact", in: "0123456789", width: 10, want: "0123456789"},
		{name: "cut", in: "0123456789abc", width: 10, want: "0123456789..."},
		{name: "wide runes", in: "日本語のコマンド", width: 5, want: "日本..."},
		{name: "empty", in: "", width: 3, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncate(tt.in, tt.width))
		})
	}
}

func TestStartCommand(t *testing.T) {
	home, calls := setupHome(t, os.Getpid())
	_, _, err := executeCommand(t, "add", "-s", "job", "--cron", "0 * * * * *", "--", "date")
	require.NoError(t, err)
	require.NoError(t, loadRegistryStore(home).Update(func(r *registry.Registry) error {
		r.SetAllActive(false)
		return nil
	}))

	stdout, _, err := executeCommand(t, "start")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Started all 1 inactive task(s)")
	assert.Contains(t, stdout, "Daemon started (PID")
	assert.Equal(t, 1, *calls)

	pid, err := pidfile.New(filepath.Join(home, constants.PIDFileName)).Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	stdout, _, err = executeCommand(t, "start")
	require.NoError(t, err)
	assert.Contains(t, stdout, constants.MsgAllAlreadyActive)
	assert.Contains(t, stdout, "Daemon is already running")
	assert.Contains(t, stdout, constants.MsgPickedUpNextTick)
	assert.Equal(t, 1, *calls, "no second worker")

	stdout, _, err = executeCommand(t, "add", "-s", "other", "--cron", "0 * * * * *", "--", "date")
	require.NoError(t, err)
	assert.Contains(t, stdout, constants.MsgPickedUpNextTick)

	stdout, _, err = executeCommand(t, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Daemon is running")
	assert.Contains(t, stdout, "2 total, 2 active")
}

func TestStartCommand_Slugs(t *testing.T) {
	home, _ := setupHome(t, os.Getpid())
	_, _, err := executeCommand(t, "add", "-s", "job", "--cron", "0 * * * * *", "--", "date")
	require.NoError(t, err)
	require.NoError(t, loadRegistryStore(home).Update(func(r *registry.Registry) error {
		return r.SetActive("job", false)
	}))

	stdout, stderr, err := executeCommand(t, "start", "job", "ghost")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Started 1 task(s)")
	assert.Contains(t, stderr, "Warning: Task with slug 'ghost' not found")
	task, _ := loadRegistry(t, home).Get("job")
	assert.True(t, task.Active)
}

func TestStartCommand_NoValidSlugs(t *testing.T) {
	_, calls := setupHome(t, os.Getpid())

	_, _, err := executeCommand(t, "start", "ghost")

	assert.EqualError(t, err, constants.MsgNoValidTasksStart)
	assert.Zero(t, *calls)
}

func TestStartCommand_AllConflictsWithSlugs(t *testing.T) {
	setupHome(t, 0)

	_, _, err := executeCommand(t, "start", "--all", "job")

	assert.Error(t, err)
}

func TestStopCommand_NotRunning(t *testing.T) {
	setupHome(t, 0)

	_, _, err := executeCommand(t, "stop")

	assert.ErrorIs(t, err, daemon.ErrNotRunning)
}

func TestStopCommand_StaleMarker(t *testing.T) {
	home, _ := setupHome(t, 0)
	marker := pidfile.New(filepath.Join(home, constants.PIDFileName))
	require.NoError(t, marker.Write(2147483647))

	_, _, err := executeCommand(t, "stop")

	assert.ErrorIs(t, err, daemon.ErrStaleState)
	assert.False(t, marker.Exists())
}

func TestStopCommand_SlugsWithOthersActive(t *testing.T) {
	home, _ := setupHome(t, 0)
	_, _, err := executeCommand(t, "add", "-s", "a", "--cron", "0 * * * * *", "--", "date")
	require.NoError(t, err)
	_, _, err = executeCommand(t, "add", "-s", "b", "--cron", "0 * * * * *", "--", "date")
	require.NoError(t, err)

	stdout, _, err := executeCommand(t, "stop", "a")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Stopped 1 task(s)")
	r := loadRegistry(t, home)
	a, _ := r.Get("a")
	b, _ := r.Get("b")
	assert.False(t, a.Active)
	assert.True(t, b.Active)
}

func TestStopCommand_LastActiveStopsDaemon(t *testing.T) {
	setupHome(t, 0)
	_, _, err := executeCommand(t, "add", "-s", "a", "--cron", "0 * * * * *", "--", "date")
	require.NoError(t, err)

	stdout, _, err := executeCommand(t, "stop", "a")

	assert.Contains(t, stdout, "Stopped 1 task(s)")
	assert.ErrorIs(t, err, daemon.ErrNotRunning, "no daemon was running")
}

func TestStatusCommand_NotRunning(t *testing.T) {
	home, _ := setupHome(t, 0)

	stdout, _, err := executeCommand(t, "status")

	require.NoError(t, err)
	assert.Contains(t, stdout, constants.MsgDaemonNotRunning)
	assert.Contains(t, stdout, filepath.Join(home, constants.PIDFileName))
	assert.Contains(t, stdout, filepath.Join(home, constants.RegistryFileName))
	assert.Contains(t, stdout, "0 total, 0 active")
}

func TestConfigValidateCommand(t *testing.T) {
	setupHome(t, 0)
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.toml")
	require.NoError(t, os.WriteFile(valid, []byte(`
[logging]
level = "debug"
format = "json"

[scheduler]
timezone = "UTC"
`), 0644))

	stdout, _, err := executeCommand(t, "config", "validate", valid)
	require.NoError(t, err)
	assert.Equal(t, constants.MsgConfigValid, stdout)

	invalid := filepath.Join(dir, "invalid.toml")
	require.NoError(t, os.WriteFile(invalid, []byte(`
[logging]
level = "loud"

[runs]
retention_hours = -1
`), 0644))

	stdout, _, err = executeCommand(t, "config", "validate", invalid)
	require.Error(t, err)
	assert.Contains(t, stdout, constants.MsgConfigValidationError)
	assert.Contains(t, stdout, "logging.level")
	assert.Contains(t, stdout, "runs.retention_hours")

	broken := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("[logging\n"), 0644))
	stdout, _, err = executeCommand(t, "config", "validate", broken)
	require.Error(t, err)
	assert.Contains(t, stdout, "Failed to load configuration")
}

func TestInvalidConfigBlocksCommands(t *testing.T) {
	setupHome(t, 0)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[scheduler]\ntimezone = \"Mars/Olympus\"\n"), 0644))

	_, _, err := executeCommand(t, "--config", path, "list")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "version")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Version:")
	assert.Contains(t, stdout, "Go Version:")
}

func TestBuildMetadataDefaults(t *testing.T) {
	assert.Equal(t, constants.DefaultVersion, Version)
	assert.Equal(t, constants.DefaultBuildTime, BuildTime)
	assert.Equal(t, constants.DefaultGitCommit, GitCommit)
	assert.Equal(t, constants.DefaultGoVersion, GoVersion)
	assert.Equal(t, constants.DefaultVersion, newRootCmd().Version)

	stdout, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Version: "+constants.DefaultVersion)
}

func loadRegistryStore(home string) *registry.Store {
	return registry.NewStore(filepath.Join(home, constants.RegistryFileName), nil)
}
