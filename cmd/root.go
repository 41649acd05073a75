// Package cmd contains all CLI commands for the sheetkit binary.
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/cmd/clean"
	"github.com/klytics/sheetkit/cmd/cmdutil"
	"github.com/klytics/sheetkit/cmd/completion"
	cmdconfig "github.com/klytics/sheetkit/cmd/config"
	"github.com/klytics/sheetkit/cmd/doctor"
	"github.com/klytics/sheetkit/cmd/export"
	cmdhistory "github.com/klytics/sheetkit/cmd/history"
	"github.com/klytics/sheetkit/cmd/read"
	"github.com/klytics/sheetkit/cmd/recipe"
	cmdrefine "github.com/klytics/sheetkit/cmd/refine"
	"github.com/klytics/sheetkit/cmd/serve"
	"github.com/klytics/sheetkit/cmd/shell"
	"github.com/klytics/sheetkit/cmd/version"
	cmdwatch "github.com/klytics/sheetkit/cmd/watch"
	"github.com/klytics/sheetkit/internal/config"
	"github.com/klytics/sheetkit/internal/logging"
	"github.com/klytics/sheetkit/internal/output"
	"github.com/klytics/sheetkit/internal/refine"
)

var (
	jsonOutput bool
	verbose    bool
	modelName  string
	provider   string
	noColor    bool
	timeout    time.Duration

	closeLog = func() error { return nil }
)

// NewRootCommand creates and returns the root cobra command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sheetkit",
		Short: "Refine spreadsheets with plain-language instructions",
		Long: `sheetkit loads a spreadsheet, sends it to a chat-completion model together
with an instruction, reads the reply back as a table and saves it as .xlsx.

Replies that are not a table are never guessed at: you get the raw text and
the reason it could not be read.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	// Global persistent flags
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as machine-readable JSON")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "", "Model name override")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "AI provider: openai | groq | openrouter | together | anthropic | ollama")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable ANSI color output")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Inference timeout (default from config, 45s)")

	rootCmd.AddCommand(read.NewCommand())
	rootCmd.AddCommand(cmdrefine.NewCommand())
	rootCmd.AddCommand(clean.NewCommand())
	rootCmd.AddCommand(export.NewCommand())
	rootCmd.AddCommand(serve.NewCommand())
	rootCmd.AddCommand(shell.NewCommand())
	rootCmd.AddCommand(cmdwatch.NewCommand())
	rootCmd.AddCommand(recipe.NewCommand())
	rootCmd.AddCommand(cmdhistory.NewCommand())
	rootCmd.AddCommand(cmdconfig.NewCommand())
	rootCmd.AddCommand(doctor.NewCommand())
	rootCmd.AddCommand(completion.NewCommand(rootCmd))
	rootCmd.AddCommand(version.NewCommand())

	return rootCmd
}

func setup(cmd *cobra.Command, args []string) error {
	if jsonOutput {
		os.Setenv("SHEETKIT_JSON", "true")
	}

	lc := logging.DefaultConfig()
	if cfg, err := config.Load(); err == nil {
		lc.Level = cfg.Log.Level
		lc.FilePath = cfg.Log.File
		lc.Format = cfg.Log.Format
		if !cfg.Output.Color {
			color.NoColor = true
		}
	}
	if noColor {
		color.NoColor = true
	}
	if verbose {
		lc.Level = "debug"
	}
	closer, err := logging.Setup(lc)
	if err != nil {
		return err
	}
	closeLog = closer
	return nil
}

// Execute runs the root command and handles any returned errors.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rootCmd := NewRootCommand()
	cmd, err := rootCmd.ExecuteContextC(ctx)
	stop()
	closeLog()
	if err == nil {
		return
	}

	var reported *cmdutil.ReportedError
	if errors.As(err, &reported) {
		os.Exit(reported.Code)
	}

	code := exitCode(err)
	if jsonOutput {
		name := rootCmd.Name()
		if cmd != nil {
			name = cmd.Name()
		}
		output.PrintJSONError(os.Stdout, name, err, string(refine.Classify(err)), code)
	} else {
		output.WriteError(os.Stderr, "%s", refine.UserMessage(err))
	}
	os.Exit(code)
}

// exitCode separates problems the user can fix from failures of the
// provider or the machine.
func exitCode(err error) int {
	switch refine.Classify(err) {
	case refine.CodeOK:
		return output.ExitOK
	case refine.CodeRateLimited, refine.CodeProvider, refine.CodeTransport, refine.CodeExport:
		return output.ExitSystemError
	}
	return output.ExitUserError
}
