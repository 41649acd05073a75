// Package config provides CLI commands for configuration management.
package config

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/cmd/cmdutil"
	"github.com/klytics/sheetkit/internal/ai"
	"github.com/klytics/sheetkit/internal/config"
	"github.com/klytics/sheetkit/internal/output"
)

// NewCommand returns the config command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage sheetkit configuration",
		Long:  "Interactive setup, view, and modify sheetkit settings in ~/.sheetkit/config.yaml.",
	}

	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newResetCommand())
	cmd.AddCommand(newPathCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newEnvCommand())
	cmd.AddCommand(newProvidersCommand())

	return cmd
}

func newInitCommand() *cobra.Command {
	var noInteractive bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(); err != nil {
				return err
			}
			if noInteractive {
				return config.WizardNonInteractive()
			}
			return config.Wizard(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&noInteractive, "no-interactive", false, "Skip prompts, use defaults")
	return cmd
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long: `Prints the configuration file values followed by the provider a refine
would use right now: global --provider, --model and --timeout flags are
applied, preset defaults fill in what is unset and the key is masked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			resolved := config.Resolve(cfg, cmdutil.Overrides(cmd))
			out := cmd.OutOrStdout()
			if cmdutil.JSON(cmd) {
				return output.PrintJSON(out, "config show", map[string]any{
					"path":     config.ConfigPath(),
					"settings": maskedEnv(),
					"resolved": resolved,
				})
			}
			fmt.Fprint(out, config.ShowConfig())
			printResolved(out, resolved)
			return nil
		},
	}
}

func printResolved(out io.Writer, r config.Resolved) {
	fmt.Fprintln(out, "\nIn effect")
	fmt.Fprintf(out, "  provider:  %s\n", r.Provider)
	fmt.Fprintf(out, "  model:     %s\n", r.Model)
	fmt.Fprintf(out, "  endpoint:  %s\n", r.BaseURL)
	fmt.Fprintf(out, "  timeout:   %s\n", r.Timeout)

	key := r.KeySource
	switch r.KeySource {
	case config.KeyFromEnv:
		key = fmt.Sprintf("%s from $%s", r.Key, r.KeyEnv)
	case config.KeyFromFile:
		key = fmt.Sprintf("%s from api_keys.%s", r.Key, r.Provider)
	case config.KeyMissing:
		key = color.RedString("missing (set $%s or api_keys.%s)", r.KeyEnv, r.Provider)
	}
	fmt.Fprintf(out, "  key:       %s\n", key)
}

// maskedEnv is config.ToEnv with API keys masked.
func maskedEnv() map[string]string {
	env := config.ToEnv()
	for _, name := range ai.PresetNames() {
		p, _ := ai.LookupPreset(name)
		if v, ok := env[p.EnvKey]; ok && p.EnvKey != "" {
			env[p.EnvKey] = config.MaskKey(v)
		}
	}
	return env
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Example: `  sheetkit config set provider groq
  sheetkit config set api_keys.groq gsk_...
  sheetkit config set timeout 60s
  sheetkit config set preview_rows 200`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(); err != nil {
				return err
			}
			if err := config.Set(args[0], args[1]); err != nil {
				return err
			}
			shown := config.Get(args[0])
			if strings.HasPrefix(args[0], "api_keys.") {
				shown = config.MaskKey(shown)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], shown)
			return nil
		},
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(); err != nil {
				return err
			}
			val := config.Get(args[0])
			if strings.HasPrefix(args[0], "api_keys.") {
				val = config.MaskKey(val)
			}
			if val == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: (not set)\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], val)
			}
			return nil
		},
	}
}

func newResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset configuration to defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ResetConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration reset to defaults")
			return nil
		},
	}
}

func newPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.ConfigPath())
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(); err != nil {
				return err
			}
			issues := config.Validate()
			out := cmd.OutOrStdout()

			if cmdutil.JSON(cmd) {
				return output.PrintJSON(out, "config validate", issues)
			}

			errors := 0
			warnings := 0
			for _, issue := range issues {
				switch issue.Severity {
				case "error":
					errors++
				case "warning":
					warnings++
				}
			}

			if errors == 0 && warnings == 0 {
				color.New(color.FgGreen).Fprintln(out, "Configuration is valid")
				return nil
			}

			fmt.Fprintf(out, "Config validation: %d errors, %d warnings\n\n", errors, warnings)

			for _, issue := range issues {
				switch issue.Severity {
				case "error":
					color.New(color.FgRed).Fprintf(out, "  %s\n", issue.Message)
				case "warning":
					color.New(color.FgYellow).Fprintf(out, "  %s\n", issue.Message)
				case "info":
					color.New(color.FgGreen).Fprintf(out, "  %s\n", issue.Message)
				}
				if issue.Fix != "" {
					fmt.Fprintf(out, "   Fix: %s\n", issue.Fix)
				}
			}
			if errors > 0 {
				return &cmdutil.ReportedError{Err: fmt.Errorf("configuration has %d errors", errors), Code: output.ExitUserError}
			}
			return nil
		},
	}
}

func newEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Export configuration as environment variables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(); err != nil {
				return err
			}
			env := config.ToEnv()
			out := cmd.OutOrStdout()

			if cmdutil.JSON(cmd) {
				return output.PrintJSON(out, "config env", env)
			}

			keys := make([]string, 0, len(env))
			for k := range env {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				fmt.Fprintf(out, "export %s=%q\n", k, env[k])
			}
			fmt.Fprintln(out, "# Add these to your ~/.zshrc or ~/.bashrc")
			return nil
		},
	}
}

func newProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List supported providers and whether each has a key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			type row struct {
				Name      string `json:"name"`
				Model     string `json:"model"`
				KeyEnv    string `json:"keyEnv,omitempty"`
				KeySource string `json:"keySource"`
				Current   bool   `json:"current"`
			}
			var rows []row
			for _, name := range ai.PresetNames() {
				p, _ := ai.LookupPreset(name)
				rows = append(rows, row{
					Name:      name,
					Model:     p.Model,
					KeyEnv:    p.EnvKey,
					KeySource: config.APIKeySource(name),
					Current:   strings.EqualFold(name, cfg.Provider),
				})
			}

			out := cmd.OutOrStdout()
			if cmdutil.JSON(cmd) {
				return output.PrintJSON(out, "config providers", rows)
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "  \tNAME\tDEFAULT MODEL\tKEY")
			for _, r := range rows {
				mark := " "
				if r.Current {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, r.Name, r.Model, r.KeySource)
			}
			return w.Flush()
		},
	}
}
