package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/singleschedule/internal/config"
	"github.com/aatumaykin/singleschedule/internal/constants"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `Validate and inspect the singleschedule configuration.`,
	}
	cmd.AddCommand(newConfigValidateCmd(opts))
	return cmd
}

func newConfigValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate configuration file",
		Long:  `Load the configuration file, apply defaults and report every problem found.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := opts.configPath
			if len(args) > 0 {
				configPath = args[0]
			}
			if configPath == "" {
				configPath = config.DefaultPath()
			}

			out := cmd.OutOrStdout()
			cfg, err := config.Load(configPath)
			if err != nil {
				fmt.Fprintf(out, constants.MsgConfigLoadError, err)
				return err
			}

			if errs := cfg.Validate(); len(errs) > 0 {
				fmt.Fprint(out, constants.MsgConfigValidationError)
				for _, e := range errs {
					fmt.Fprintf(out, constants.MsgConfigValidatePrefix, e)
				}
				return fmt.Errorf("%d configuration error(s)", len(errs))
			}

			fmt.Fprint(out, constants.MsgConfigValid)
			return nil
		},
	}
}
