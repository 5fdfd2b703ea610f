package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"baekon/internal/calref"
	"baekon/internal/dateresolve"
	"baekon/internal/voice"
)

var errUnresolved = errors.New("phrase did not resolve")

func newResolveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <phrase>",
		Short: "Resolve a natural-language date phrase",
		Example: `  baekon resolve "next friday"
  baekon resolve "at 3pm tomorrow" --at 2025-01-15T12:00:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.setup(false)
			if err != nil {
				return err
			}
			ref, err := a.referenceTime(cfg)
			if err != nil {
				return err
			}
			return runResolve(cmd.OutOrStdout(), args[0], ref)
		},
	}
	cmd.Flags().StringVar(&a.at, "at", "", "reference time (RFC3339); defaults to now")
	return cmd
}

func runResolve(out io.Writer, phrase string, ref time.Time) error {
	t, rule, ok := dateresolve.New().ResolveRule(phrase, ref)
	if !ok {
		fmt.Fprintf(out, "%q: no match\n", phrase)
		return fmt.Errorf("%w: %q", errUnresolved, phrase)
	}
	layout := "2006-01-02 Monday"
	if rule == "time-prefixed" {
		layout = "2006-01-02 15:04 Monday"
	}
	fmt.Fprintf(out, "%s (%s)\n", t.Format(layout), rule)
	return nil
}

func newMatchCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "match <transcript>",
		Short:   "Classify a voice transcript into a planner command",
		Example: `  baekon match "schedule gym tomorrow at 7am"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.setup(false); err != nil {
				return err
			}
			return runMatch(cmd.OutOrStdout(), args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full match result as JSON")
	return cmd
}

func runMatch(out io.Writer, transcript string, asJSON bool) error {
	res := voice.Match(transcript)
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if !res.Recognized {
		fmt.Fprintf(out, "unrecognized (confidence %.2f)\n", res.Confidence)
		fmt.Fprintln(out, res.Suggestion)
		for _, c := range res.Corrections {
			fmt.Fprintf(out, "  - %s\n", c)
		}
		return nil
	}

	fmt.Fprintf(out, "%s (confidence %.2f)\n", res.Command.Action, res.Confidence)
	for _, name := range []string{"title", "when", "time", "content", "query", "view"} {
		if v := res.Arg(name); v != "" {
			fmt.Fprintf(out, "  %-8s %s\n", name+":", v)
		}
	}
	return nil
}

func newCalendarCmd(a *app) *cobra.Command {
	var upcoming bool
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Print the calendar reference for today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.setup(false)
			if err != nil {
				return err
			}
			ref, err := a.referenceTime(cfg)
			if err != nil {
				return err
			}
			return runCalendar(cmd.OutOrStdout(), ref, upcoming)
		},
	}
	cmd.Flags().StringVar(&a.at, "at", "", "reference time (RFC3339); defaults to now")
	cmd.Flags().BoolVar(&upcoming, "upcoming", false, "list every upcoming-date phrase instead of the summary")
	return cmd
}

func runCalendar(out io.Writer, ref time.Time, upcoming bool) error {
	snap := calref.New(ref)
	if !upcoming {
		_, err := io.WriteString(out, strings.TrimRight(snap.Describe(), "\n")+"\n")
		return err
	}
	var err error
	snap.Upcoming.Each(func(u calref.UpcomingDate) bool {
		_, err = fmt.Fprintf(out, "%-24s %s\n", u.Phrase, u.Date.Format("2006-01-02 Mon"))
		return err == nil
	})
	return err
}
