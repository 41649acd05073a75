// Package cmdutil holds the wiring shared by the sheetkit commands: reading
// global flags, loading configuration and building the refine pipeline.
package cmdutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/internal/ai"
	"github.com/klytics/sheetkit/internal/config"
	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/history"
	"github.com/klytics/sheetkit/internal/logging"
	"github.com/klytics/sheetkit/internal/prompt"
	"github.com/klytics/sheetkit/internal/recipes"
	"github.com/klytics/sheetkit/internal/refine"
	"github.com/klytics/sheetkit/internal/table"
)

// JSON reports whether --json was given.
func JSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// Overrides reads the global provider flags.
func Overrides(cmd *cobra.Command) config.Overrides {
	provider, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return config.Overrides{Provider: provider, Model: model, Timeout: timeout}
}

// Builder returns the prompt builder configured by cfg. The model is left to
// the provider, which already resolved it from the same settings.
func Builder(cfg *config.Config) prompt.Builder {
	b := prompt.DefaultBuilder()
	b.PreviewRows = cfg.PreviewRows
	b.MaxChars = cfg.MaxPromptChars
	b.Temperature = cfg.Temperature
	b.MaxTokens = cfg.MaxTokens
	return b
}

// Provider builds the inference adapter from config and flags.
func Provider(cmd *cobra.Command, cfg *config.Config) (ai.Provider, error) {
	return ai.NewProvider(config.ProviderSettings(cfg, Overrides(cmd)))
}

// NewRefiner loads the configuration and returns a ready pipeline.
func NewRefiner(cmd *cobra.Command) (*refine.Refiner, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("could not load configuration: %w", err)
	}
	p, err := Provider(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	return &refine.Refiner{
		Provider: p,
		Builder:  Builder(cfg),
		Logger:   logging.FromContext(cmd.Context()).With("command", cmd.Name()),
	}, cfg, nil
}

// LoadTable reads one sheet of an .xlsx file.
func LoadTable(path, sheet string) (*table.Table, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return nil, fmt.Errorf("expected an .xlsx file, got %q", path)
	}
	return xlsx.LoadFile(path, xlsx.LoadOptions{Sheet: sheet})
}

// ErrOverwriteInput is returned when -o names the file being read.
var ErrOverwriteInput = errors.New("the output file is the input file")

// OutputPath resolves where a command writes the table it made from input.
// Without -o that is cleaned_data.xlsx next to the input, or
// <name>.refined.xlsx when the input is itself cleaned_data.xlsx. An
// explicit -o that points at the input is refused.
func OutputPath(input, outPath string) (string, error) {
	if outPath != "" {
		if sameFile(input, outPath) {
			return "", fmt.Errorf("%w: %s (pass a different -o)", ErrOverwriteInput, outPath)
		}
		return outPath, nil
	}
	dir := filepath.Dir(input)
	out := filepath.Join(dir, xlsx.DefaultFilename)
	if sameFile(input, out) {
		name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		out = filepath.Join(dir, name+refine.TableSuffix)
	}
	return out, nil
}

func sameFile(a, b string) bool {
	if fa, err := os.Stat(a); err == nil {
		if fb, err := os.Stat(b); err == nil {
			return os.SameFile(fa, fb)
		}
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// Instruction resolves --prompt or --recipe into the instruction text.
func Instruction(promptText, recipe string) (string, error) {
	switch {
	case promptText != "" && recipe != "":
		return "", fmt.Errorf("use either --prompt or --recipe, not both")
	case recipe != "":
		book, err := RecipeBook()
		if err != nil {
			return "", err
		}
		r, err := book.Find(recipe)
		if err != nil {
			return "", err
		}
		return r.Instruction, nil
	case strings.TrimSpace(promptText) == "":
		return "", refine.ErrEmptyInstruction
	}
	return promptText, nil
}

// RecipeBook opens the user's recipe file.
func RecipeBook() (*recipes.Book, error) {
	return recipes.Load(recipes.DefaultPath(config.Dir()))
}

// History returns the request history configured by cfg.
func History(cfg *config.Config) *history.Logger {
	path := cfg.History.File
	if path == "" {
		path = history.DefaultPath(config.Dir())
	}
	return history.NewLogger(path, cfg.History.Enabled)
}

// Elapsed formats a duration for human output.
func Elapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// ReportedError is a failure the command has already shown to the user.
// Execute exits with its code without printing anything else.
type ReportedError struct {
	Err  error
	Code int
}

func (e *ReportedError) Error() string { return e.Err.Error() }

func (e *ReportedError) Unwrap() error { return e.Err }
