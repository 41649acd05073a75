// Package history provides the "sheetkit history" command.
package history

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/cmd/cmdutil"
	"github.com/klytics/sheetkit/internal/config"
	"github.com/klytics/sheetkit/internal/history"
	"github.com/klytics/sheetkit/internal/output"
)

// NewCommand returns the history command.
func NewCommand() *cobra.Command {
	var (
		limit  int
		since  time.Duration
		status string
		file   string
		clear  bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past refine requests",
		Long: `Every refine, watch and shell request is recorded in
~/.sheetkit/history.jsonl with its instruction, outcome and timing. Set
history.enabled to false to stop recording.

Examples:
  sheetkit history
  sheetkit history --status unrecovered --since 24h
  sheetkit history --clear`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			path := cmdutil.History(cfg).FilePath
			out := cmd.OutOrStdout()

			if clear {
				if err := history.Clear(path); err != nil {
					return fmt.Errorf("could not clear history: %w", err)
				}
				fmt.Fprintln(out, "History cleared")
				return nil
			}

			entries, err := history.ReadEntries(path)
			if err != nil {
				return fmt.Errorf("could not read history: %w", err)
			}
			f := history.Filter{Status: status, File: file, Limit: limit}
			if since > 0 {
				f.Since = time.Now().Add(-since)
			}
			entries = history.FilterEntries(entries, f)

			if cmdutil.JSON(cmd) {
				return output.PrintJSON(out, "history", entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No requests recorded")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tFILE\tSTATUS\tDURATION\tINSTRUCTION")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					e.Time.Local().Format("2006-01-02 15:04"),
					filepath.Base(e.File),
					statusText(e),
					cmdutil.Elapsed(time.Duration(e.DurationMs)*time.Millisecond),
					clip(e.Instruction, 60))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Show the most recent N requests (0 shows all)")
	cmd.Flags().DurationVar(&since, "since", 0, "Only requests newer than this, e.g. 24h")
	cmd.Flags().StringVar(&status, "status", "", "Only requests with this outcome: recovered, unrecovered, error")
	cmd.Flags().StringVar(&file, "file", "", "Only requests whose file path contains this text")
	cmd.Flags().BoolVar(&clear, "clear", false, "Delete the recorded history")
	return cmd
}

func statusText(e history.Entry) string {
	switch e.Status {
	case "recovered":
		return color.GreenString(e.Status)
	case "unrecovered":
		return color.YellowString(e.Status)
	}
	if e.Reason != "" {
		return color.RedString("%s (%s)", e.Status, e.Reason)
	}
	return color.RedString(e.Status)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
