// Package watch provides the "sheetkit watch" commands for refining
// spreadsheets as they arrive in a folder.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/cmd/cmdutil"
	"github.com/klytics/sheetkit/internal/config"
	"github.com/klytics/sheetkit/internal/history"
	"github.com/klytics/sheetkit/internal/output"
	"github.com/klytics/sheetkit/internal/refine"
	w "github.com/klytics/sheetkit/internal/watch"
)

// NewCommand creates the "watch" command with subcommands.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refine spreadsheets dropped into a folder",
		Long: `Watch folders for new or modified .xlsx files and refine each one with
the same instruction.

Example:
  sheetkit watch start ./inbox --recipe clean
  sheetkit watch status
  sheetkit watch stop`,
	}

	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func newStartCmd() *cobra.Command {
	var (
		promptText string
		recipe     string
		outDir     string
		pattern    string
		recursive  bool
		existing   bool
		debounce   int
	)

	cmd := &cobra.Command{
		Use:   "start <directory> [directory...]",
		Short: "Start watching folders",
		Long: `Each matching file is refined on its own. Recovered tables are written as
<name>.refined.xlsx, replies that are not a table as <name>.reply.txt,
into --out or a "refined" folder next to the file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instruction, err := cmdutil.Instruction(promptText, recipe)
			if err != nil {
				return err
			}
			if pattern != "" {
				if _, err := filepath.Match(pattern, "x.xlsx"); err != nil {
					return fmt.Errorf("invalid --pattern %q: %w", pattern, err)
				}
			}
			ref, cfg, err := cmdutil.NewRefiner(cmd)
			if err != nil {
				return err
			}

			wc := w.WatchConfig{
				Directories: args,
				Instruction: instruction,
				Recipe:      recipe,
				Pattern:     pattern,
				OutDir:      outDir,
				Recursive:   recursive,
				Existing:    existing,
				Debounce:    debounce,
			}
			watcher, err := w.New(wc)
			if err != nil {
				return err
			}
			watcher.Logger = ref.Logger.With("component", "watch")

			out := cmd.OutOrStdout()
			jsonOut := cmdutil.JSON(cmd)
			hist := cmdutil.History(cfg)
			refineFile := w.RefineHandler(ref, instruction, outDir, func(fr *refine.FileResult) {
				hist.Record(cmd.Context(), history.FileEntry(cmd.CommandPath(), ref.Provider.Name(), instruction, fr))
			})
			watcher.Handler = func(ctx context.Context, path string) (w.Processed, error) {
				res, err := refineFile(ctx, path)
				if !jsonOut {
					printProcessed(out, path, res, err)
				}
				return res, err
			}

			configDir := config.Dir()
			if err := w.WritePIDFile(configDir); err != nil {
				output.WriteWarning(cmd.ErrOrStderr(), "could not write PID file: %v", err)
			}
			defer w.RemovePIDFile(configDir)
			if err := w.SaveConfig(configDir, watcher.Config); err != nil {
				output.WriteWarning(cmd.ErrOrStderr(), "could not save watcher config: %v", err)
			}

			if !jsonOut {
				fmt.Fprintf(out, "Watching %s for .xlsx files with %s\n", strings.Join(args, ", "), ref.Provider.Name())
				fmt.Fprintln(out, "Press Ctrl+C to stop")
			}

			if err := watcher.Start(cmd.Context()); err != nil {
				return err
			}

			if jsonOut {
				return output.PrintJSON(out, "watch", watcher.GetEvents())
			}
			fmt.Fprintf(out, "\nStopped after %d file(s)\n", len(watcher.GetEvents()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&promptText, "prompt", "p", "", "Instruction applied to every file")
	cmd.Flags().StringVar(&recipe, "recipe", "", "Use a saved recipe instead of --prompt")
	cmd.Flags().StringVar(&outDir, "out", "", "Output folder (default: ./refined next to each file)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Only refine files whose name matches this glob, e.g. 'sales_*.xlsx'")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Watch folders recursively")
	cmd.Flags().BoolVar(&existing, "existing", false, "Also refine files already in the folders")
	cmd.Flags().IntVar(&debounce, "debounce", 500, "Debounce interval in milliseconds")

	return cmd
}

func printProcessed(out io.Writer, path string, res w.Processed, err error) {
	name := filepath.Base(path)
	switch {
	case err != nil:
		color.New(color.FgRed).Fprintf(out, "  ✗ %s: %s\n", name, err)
	case res.Status == w.StatusUnrecovered:
		color.New(color.FgYellow).Fprintf(out, "  ! %s: not a table, reply saved to %s\n", name, res.Output)
	default:
		color.New(color.FgGreen).Fprintf(out, "  ✓ %s → %s\n", name, res.Output)
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir := config.Dir()
			pid, err := w.ReadPIDFile(configDir)
			if err != nil {
				return fmt.Errorf("no watcher running (PID file not found)")
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("could not find process %d: %w", pid, err)
			}
			if err := process.Signal(syscall.SIGTERM); err != nil {
				w.RemovePIDFile(configDir)
				return fmt.Errorf("could not stop watcher (PID %d): %w", pid, err)
			}
			w.RemovePIDFile(configDir)

			if cmdutil.JSON(cmd) {
				return output.PrintJSON(cmd.OutOrStdout(), "watch stop", map[string]any{
					"stopped": true,
					"pid":     pid,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped watcher (PID %d)\n", pid)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a watcher is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir := config.Dir()
			out := cmd.OutOrStdout()

			pid, err := w.ReadPIDFile(configDir)
			running := err == nil
			if running {
				// Signal 0 only checks that the process exists.
				process, err := os.FindProcess(pid)
				if err != nil || process.Signal(syscall.Signal(0)) != nil {
					running = false
					w.RemovePIDFile(configDir)
				}
			}

			if !running {
				if cmdutil.JSON(cmd) {
					return output.PrintJSON(out, "watch status", map[string]any{"running": false})
				}
				fmt.Fprintln(out, "Watcher is not running")
				return nil
			}

			wc, _ := w.LoadConfig(configDir)
			if cmdutil.JSON(cmd) {
				status := map[string]any{"running": true, "pid": pid}
				if wc != nil {
					status["directories"] = wc.Directories
					status["recursive"] = wc.Recursive
					status["instruction"] = wc.Instruction
				}
				return output.PrintJSON(out, "watch status", status)
			}

			fmt.Fprintf(out, "Watcher is running (PID %d)\n", pid)
			if wc != nil {
				fmt.Fprintf(out, "  Directories: %s\n", strings.Join(wc.Directories, ", "))
				fmt.Fprintf(out, "  Recursive:   %v\n", wc.Recursive)
			}
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the configuration of the last started watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := w.LoadConfig(config.Dir())
			if err != nil {
				return fmt.Errorf("no watcher configuration found (run 'sheetkit watch start' first)")
			}

			out := cmd.OutOrStdout()
			if cmdutil.JSON(cmd) {
				return output.PrintJSON(out, "watch config", wc)
			}

			fmt.Fprintf(out, "Directories: %s\n", strings.Join(wc.Directories, ", "))
			if wc.Recipe != "" {
				fmt.Fprintf(out, "Recipe:      %s\n", wc.Recipe)
			}
			fmt.Fprintf(out, "Instruction: %s\n", wc.Instruction)
			if wc.Pattern != "" {
				fmt.Fprintf(out, "Pattern:     %s\n", wc.Pattern)
			}
			if wc.OutDir != "" {
				fmt.Fprintf(out, "Output:      %s\n", wc.OutDir)
			}
			fmt.Fprintf(out, "Recursive:   %v\n", wc.Recursive)
			fmt.Fprintf(out, "Debounce:    %dms\n", wc.Debounce)
			return nil
		},
	}
}
