package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/width"
	"gopkg.in/yaml.v3"

	"github.com/aatumaykin/singleschedule/internal/constants"
	"github.com/aatumaykin/singleschedule/internal/registry"
	"github.com/aatumaykin/singleschedule/internal/schedule"
)

// taskListing is a task with its computed next run, as printed by list.
type taskListing struct {
	registry.Task `yaml:",inline"`
	NextRun       *time.Time `json:"next_run" yaml:"next_run"`
	Error         string     `json:"error,omitempty" yaml:"error,omitempty"`
}

func newListCmd(opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd, opts)
			if err != nil {
				return err
			}
			r, err := env.store.Load()
			if err != nil {
				return err
			}

			listings := buildListings(r, env.parser, time.Now())
			out := cmd.OutOrStdout()
			switch strings.ToLower(output) {
			case "table", "":
				printTable(out, listings, env.parser.Location())
				return nil
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(listings)
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(listings); err != nil {
					return err
				}
				return enc.Close()
			default:
				return fmt.Errorf("unknown output format %q (expected: table, json, yaml)", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json, yaml")
	return cmd
}

func buildListings(r *registry.Registry, p *schedule.Parser, now time.Time) []taskListing {
	listings := make([]taskListing, 0, r.Len())
	for _, task := range r.Tasks() {
		l := taskListing{Task: task}
		rule, err := p.Parse(task.Recurrence)
		if err != nil {
			l.Error = err.Error()
		} else if next := rule.Next(now); !next.IsZero() {
			next = next.UTC()
			l.NextRun = &next
		}
		listings = append(listings, l)
	}
	return listings
}

func printTable(out io.Writer, listings []taskListing, loc *time.Location) {
	if len(listings) == 0 {
		fmt.Fprint(out, constants.MsgNoTasks)
		return
	}

	fmt.Fprintf(out, constants.MsgListHeaderFormat, "SLUG", "CRON", "COMMAND", "STATUS", "LAST RUN", "NEXT RUN")
	fmt.Fprintln(out, strings.Repeat("-", constants.MsgListSeparatorLen))

	for _, l := range listings {
		status := constants.MsgStatusInactive
		if l.Active {
			status = constants.MsgStatusActive
		}
		lastRun := constants.MsgNever
		if l.LastRun != nil {
			lastRun = l.LastRun.In(loc).Format(constants.ListTimeFormat)
		}
		nextRun := "-"
		switch {
		case l.Error != "":
			nextRun = constants.MsgInvalidRule
		case l.NextRun != nil && l.Active:
			nextRun = l.NextRun.In(loc).Format(constants.ListTimeFormat)
		}

		fmt.Fprintf(out, constants.MsgListRowFormat,
			l.Slug, l.Recurrence, truncate(l.Command, constants.ListCommandWidth), status, lastRun, nextRun)
	}
}

// truncate shortens s to at most maxWidth terminal columns and appends
// "..." when anything was cut. Wide East Asian characters count as two.
func truncate(s string, maxWidth int) string {
	if displayWidth(s) <= maxWidth {
		return s
	}
	var b strings.Builder
	used := 0
	for _, r := range s {
		w := runeWidth(r)
		if used+w > maxWidth {
			break
		}
		b.WriteRune(r)
		used += w
	}
	return b.String() + "..."
}

func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		n += runeWidth(r)
	}
	return n
}

func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}
