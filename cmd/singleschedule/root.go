package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/singleschedule/internal/config"
	"github.com/aatumaykin/singleschedule/internal/constants"
	"github.com/aatumaykin/singleschedule/internal/daemon"
	"github.com/aatumaykin/singleschedule/internal/logger"
	"github.com/aatumaykin/singleschedule/internal/registry"
	"github.com/aatumaykin/singleschedule/internal/schedule"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	debug      bool
}

// newSpawner builds the spawner used by start and restart. Tests replace it.
var newSpawner = func(args ...string) (daemon.Spawner, error) {
	return daemon.NewExecSpawner(args...)
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "singleschedule",
		Short: "singleschedule - a single-daemon cron scheduler",
		Long: `singleschedule keeps a registry of shell-free commands with six-field
cron expressions (seconds first) and runs them from one background daemon.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default <data_dir>/config.toml)")
	cmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")

	cmd.AddCommand(
		newAddCmd(opts),
		newRemoveCmd(opts),
		newListCmd(opts),
		newStartCmd(opts),
		newStopCmd(opts),
		newRestartCmd(opts),
		newStatusCmd(opts),
		newRunCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// environment is the loaded configuration and the collaborators built from it.
type environment struct {
	configPath string
	cfg        *config.Config
	log        *logger.Logger
	store      *registry.Store
	parser     *schedule.Parser
}

// loadEnvironment loads .env and the config file, validates it and builds
// the registry store. CLI diagnostics go to stderr; the daemon log is
// opened separately by the run command.
func loadEnvironment(cmd *cobra.Command, opts *globalOptions) (*environment, error) {
	if err := config.LoadEnvOptional(filepath.Join(config.DefaultDataDir(), constants.EnvFileName)); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", constants.EnvFileName, err)
	}

	configPath := opts.configPath
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration %s: %w", configPath, errors.Join(errs...))
	}

	level := "warn"
	if opts.debug {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Format: "text", Output: "stderr"})
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}

	return &environment{
		configPath: configPath,
		cfg:        cfg,
		log:        log,
		store:      registry.NewStore(cfg.Paths.RegistryFile, log),
		parser:     schedule.NewParser(loc),
	}, nil
}

// manager builds the daemon manager. The spawned worker re-runs this binary
// with the same config file.
func (e *environment) manager(debug bool) (*daemon.Manager, error) {
	args := []string{"run", "--config", e.configPath}
	if debug {
		args = append(args, "--debug")
	}
	spawner, err := newSpawner(args...)
	if err != nil {
		return nil, err
	}
	return daemon.NewManager(e.cfg.Paths.PIDFile, spawner, e.log), nil
}
