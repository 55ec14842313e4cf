package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/aatumaykin/singleschedule/internal/constants"
	"github.com/aatumaykin/singleschedule/internal/daemon"
	"github.com/aatumaykin/singleschedule/internal/logger"
	"github.com/aatumaykin/singleschedule/internal/metrics"
	"github.com/aatumaykin/singleschedule/internal/registry"
	"github.com/aatumaykin/singleschedule/internal/runlog"
	"github.com/aatumaykin/singleschedule/internal/runner"
	"github.com/aatumaykin/singleschedule/internal/scheduler"
	"github.com/aatumaykin/singleschedule/internal/version"
)

func newStartCmd(opts *globalOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "start [slug...]",
		Short: "Activate tasks and start the daemon",
		Long: `With slugs, mark those tasks active. Without slugs (or with --all), mark
every inactive task active. Then start the daemon unless it is already running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("--all cannot be combined with slugs")
			}
			env, err := loadEnvironment(cmd, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) > 0 {
				n, err := setActive(cmd, env, args, true)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, constants.MsgTasksActivated, n)
			} else {
				changed := 0
				if err := env.store.Update(func(r *registry.Registry) error {
					changed = r.SetAllActive(true)
					return nil
				}); err != nil {
					return err
				}
				if changed > 0 {
					fmt.Fprintf(out, constants.MsgAllActivated, changed)
				} else {
					fmt.Fprint(out, constants.MsgAllAlreadyActive)
				}
			}

			mgr, err := env.manager(opts.debug)
			if err != nil {
				return err
			}
			pid, err := mgr.Start()
			var running *daemon.AlreadyRunningError
			if errors.As(err, &running) {
				fmt.Fprintf(out, constants.MsgDaemonAlreadyRunning, running.PID)
				fmt.Fprint(out, constants.MsgPickedUpNextTick)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, constants.MsgDaemonStarted, pid)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Activate every task")
	return cmd
}

func newStopCmd(opts *globalOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "stop [slug...]",
		Short: "Deactivate tasks or stop the daemon",
		Long: `With slugs, mark those tasks inactive and stop the daemon once no active
task remains. Without slugs (or with --all), stop the daemon.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("--all cannot be combined with slugs")
			}
			env, err := loadEnvironment(cmd, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) > 0 {
				n, err := setActive(cmd, env, args, false)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, constants.MsgTasksDeactivated, n)

				r, err := env.store.Load()
				if err != nil {
					return err
				}
				if r.CountActive() > 0 {
					noteRunningDaemon(cmd, env)
					return nil
				}
			}

			mgr, err := env.manager(opts.debug)
			if err != nil {
				return err
			}
			return stopDaemon(cmd, mgr)
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Stop the daemon")
	return cmd
}

func stopDaemon(cmd *cobra.Command, mgr *daemon.Manager) error {
	if _, err := mgr.Stop(); err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), constants.MsgDaemonStopped)
	return nil
}

func newRestartCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Stop the daemon if it is running and start it again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd, opts)
			if err != nil {
				return err
			}
			mgr, err := env.manager(opts.debug)
			if err != nil {
				return err
			}
			pid, err := mgr.Restart()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), constants.MsgDaemonRestarted, pid)
			return nil
		},
	}
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd, opts)
			if err != nil {
				return err
			}
			mgr, err := env.manager(false)
			if err != nil {
				return err
			}
			st, err := mgr.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if st.Running {
				fmt.Fprintf(out, constants.MsgDaemonRunning, st.PID)
			} else {
				fmt.Fprint(out, constants.MsgDaemonNotRunning)
			}
			fmt.Fprintf(out, constants.MsgDaemonPIDFile, mgr.PIDPath())
			fmt.Fprintf(out, constants.MsgDaemonRegistry, env.store.Path())

			r, err := env.store.Load()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, constants.MsgDaemonTasks, r.Len(), r.CountActive())
			return nil
		},
	}
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler in the foreground",
		Long: `Run the scheduler loop in this process until SIGINT or SIGTERM. start
launches this command detached; service managers can run it directly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd, opts)
			if err != nil {
				return err
			}
			return runDaemon(cmd.Context(), env, opts.debug)
		},
	}
}

// runDaemon wires the scheduler with its daemon log, run logs and metrics
// and runs it under the PID marker.
func runDaemon(ctx context.Context, env *environment, debug bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := env.cfg

	logCfg := cfg.LoggerConfig()
	if debug {
		logCfg.Level = "debug"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return err
	}
	defer log.Close()
	logger.SetDefault(log)
	log.Info("singleschedule daemon starting",
		logger.Field{Key: "version", Value: version.String()},
		logger.Field{Key: "config", Value: env.configPath},
		logger.Field{Key: "registry", Value: cfg.Paths.RegistryFile})

	store := registry.NewStore(cfg.Paths.RegistryFile, log)
	taskRunner := runner.New(log.With(logger.Field{Key: "component", Value: "runner"}), runner.WithDir(cfg.Paths.DataDir))

	var runLog *runlog.Writer
	if cfg.Runs.Enabled() {
		runLog = runlog.New(cfg.Runs.LogDir, cfg.Runs.Retention(), log)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(constants.MetricsNamespace, reg)

	sched := scheduler.New(scheduler.Config{
		Store:   store,
		Parser:  env.parser,
		Runner:  taskRunner,
		RunLog:  runLog,
		Metrics: m,
		Logger:  log.With(logger.Field{Key: "component", Value: "scheduler"}),
	})

	mgr := daemon.NewManager(cfg.Paths.PIDFile, nil, log)
	return mgr.RunForeground(ctx, func(ctx context.Context) error {
		if cfg.Metrics.Listen != "" {
			srv := metrics.NewServer(cfg.Metrics.Listen, reg, log)
			if err := srv.Start(); err != nil {
				log.Error("failed to start metrics endpoint", err, logger.Field{Key: "addr", Value: cfg.Metrics.Listen})
			} else {
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}
		}
		return sched.Run(ctx)
	})
}
