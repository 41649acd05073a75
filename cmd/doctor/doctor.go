// Package doctor provides the "sheetkit doctor" command for checking the
// local setup.
package doctor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/cmd/cmdutil"
	"github.com/klytics/sheetkit/internal/config"
	"github.com/klytics/sheetkit/internal/output"
	"github.com/klytics/sheetkit/internal/recipes"
)

// Check represents a single health check result.
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Message string `json:"message"`
}

// NewCommand creates the "doctor" command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, API keys and local files",
		Long:  "Run diagnostic checks to verify sheetkit is ready to refine spreadsheets.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("could not load configuration: %w", err)
			}
			checks := runChecks(cfg, config.Dir())

			out := cmd.OutOrStdout()
			if cmdutil.JSON(cmd) {
				return output.PrintJSON(out, "doctor", checks)
			}

			if errCount := printChecks(out, checks); errCount > 0 {
				return &cmdutil.ReportedError{Err: fmt.Errorf("%d check(s) failed", errCount), Code: output.ExitUserError}
			}
			return nil
		},
	}
}

func printChecks(out io.Writer, checks []Check) int {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintln(out, "sheetkit doctor")
	fmt.Fprintln(out, "===============")
	fmt.Fprintln(out)

	okCount, warnCount, errCount := 0, 0, 0
	for _, c := range checks {
		var icon string
		switch c.Status {
		case "ok":
			icon = green("✓")
			okCount++
		case "warning":
			icon = yellow("!")
			warnCount++
		case "error":
			icon = red("✗")
			errCount++
		}
		fmt.Fprintf(out, "  %s %s: %s\n", icon, c.Name, c.Message)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)
	return errCount
}

func runChecks(cfg *config.Config, dir string) []Check {
	checks := []Check{{
		Name:    "Runtime",
		Status:  "ok",
		Message: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}}

	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		checks = append(checks, Check{Name: "Config Directory", Status: "ok", Message: dir})
	} else {
		checks = append(checks, Check{
			Name:    "Config Directory",
			Status:  "warning",
			Message: fmt.Sprintf("%s not found, run 'sheetkit config init'", dir),
		})
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); err == nil {
		checks = append(checks, Check{Name: "Config File", Status: "ok", Message: configFile})
	} else {
		checks = append(checks, Check{
			Name:    "Config File",
			Status:  "warning",
			Message: "Not found, defaults are used; run 'sheetkit config init'",
		})
	}

	// Provider, key and limits come from the same rules as 'config validate'.
	for _, issue := range config.Validate() {
		status := issue.Severity
		if status == "info" {
			status = "ok"
		}
		msg := issue.Message
		if issue.Fix != "" {
			msg += " (fix: " + strings.ReplaceAll(issue.Fix, "\n", "; ") + ")"
		}
		checks = append(checks, Check{Name: "Config " + issue.Key, Status: status, Message: msg})
	}

	if strings.EqualFold(cfg.Provider, "ollama") && cfg.BaseURL == "" {
		if _, err := exec.LookPath("ollama"); err == nil {
			checks = append(checks, Check{Name: "Ollama", Status: "ok", Message: "Found in PATH"})
		} else {
			checks = append(checks, Check{
				Name:    "Ollama",
				Status:  "warning",
				Message: "Not found in PATH; start it or set base_url to a running server",
			})
		}
	}

	recipePath := recipes.DefaultPath(dir)
	if book, err := recipes.Load(recipePath); err != nil {
		checks = append(checks, Check{Name: "Recipes", Status: "error", Message: err.Error()})
	} else {
		checks = append(checks, Check{
			Name:    "Recipes",
			Status:  "ok",
			Message: fmt.Sprintf("%d available", len(book.List())),
		})
	}

	if cfg.Log.File != "" {
		checks = append(checks, writableCheck("Log File", cfg.Log.File))
	}
	if cfg.History.Enabled && cfg.History.File != "" {
		checks = append(checks, writableCheck("History File", cfg.History.File))
	}

	return checks
}

// writableCheck reports whether the parent directory of path exists and can
// take new files.
func writableCheck(name, path string) Check {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".sheetkit-doctor-*")
	if err != nil {
		return Check{Name: name, Status: "error", Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	f.Close()
	os.Remove(f.Name())
	return Check{Name: name, Status: "ok", Message: path}
}
