package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/singleschedule/internal/constants"
	"github.com/aatumaykin/singleschedule/internal/registry"
)

func newAddCmd(opts *globalOptions) *cobra.Command {
	var slug, cronExpr string

	cmd := &cobra.Command{
		Use:   "add --slug <slug> --cron <expression> -- <command> [args...]",
		Short: "Add a scheduled task",
		Long: `Add a task to the registry. The expression has six fields, seconds first:

  sec min hour day-of-month month day-of-week

The command is split on whitespace and run without a shell.`,
		Example: `  singleschedule add --slug backup --cron "0 0 3 * * *" -- tar czf /tmp/etc.tgz /etc`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd, opts)
			if err != nil {
				return err
			}

			task := registry.NewTask(slug, cronExpr, strings.Join(args, " "), time.Now())
			if err := env.store.Update(func(r *registry.Registry) error {
				return r.Add(task, env.parser)
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), constants.MsgTaskAdded, task.Slug)
			noteRunningDaemon(cmd, env)
			return nil
		},
	}
	cmd.Flags().StringVarP(&slug, "slug", "s", "", "Unique task identifier")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Six-field cron expression")
	_ = cmd.MarkFlagRequired("slug")
	_ = cmd.MarkFlagRequired("cron")
	return cmd
}

func newRemoveCmd(opts *globalOptions) *cobra.Command {
	var slug string

	cmd := &cobra.Command{
		Use:   "remove --slug <slug>",
		Short: "Remove a scheduled task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd, opts)
			if err != nil {
				return err
			}

			if err := env.store.Update(func(r *registry.Registry) error {
				return r.Remove(slug)
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), constants.MsgTaskRemoved, registry.NormalizeSlug(slug))
			noteRunningDaemon(cmd, env)
			return nil
		},
	}
	cmd.Flags().StringVarP(&slug, "slug", "s", "", "Slug of the task to remove")
	_ = cmd.MarkFlagRequired("slug")
	return cmd
}

// noteRunningDaemon tells the user when a running daemon will pick up a
// registry change on its own.
func noteRunningDaemon(cmd *cobra.Command, env *environment) {
	mgr, err := env.manager(false)
	if err != nil {
		return
	}
	if st, err := mgr.Status(); err == nil && st.Running {
		fmt.Fprint(cmd.OutOrStdout(), constants.MsgPickedUpNextTick)
	}
}

// setActive flips the active flag of the named tasks and returns how many
// were found. Unknown slugs are reported as warnings.
func setActive(cmd *cobra.Command, env *environment, slugs []string, active bool) (int, error) {
	found := 0
	err := env.store.Update(func(r *registry.Registry) error {
		for _, slug := range slugs {
			if err := r.SetActive(slug, active); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), constants.MsgTaskNotFoundWarn, slug)
				continue
			}
			found++
		}
		if found == 0 {
			if active {
				return errors.New(constants.MsgNoValidTasksStart)
			}
			return errors.New(constants.MsgNoValidTasksStop)
		}
		return nil
	})
	return found, err
}
