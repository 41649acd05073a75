package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/klytics/sheetkit/internal/ai"
)

// ConfigIssue represents a validation finding.
type ConfigIssue struct {
	Key      string `json:"key"`
	Severity string `json:"severity"` // "error", "warning", "info"
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// wizardProviders is the menu order of the setup wizard.
var wizardProviders = []string{"openai", "groq", "openrouter", "together", "anthropic", "ollama"}

// Wizard runs the interactive setup wizard and writes the result.
// If reader is nil, reads from os.Stdin; if out is nil, writes to os.Stdout.
func Wizard(reader io.Reader, out io.Writer) error {
	if reader == nil {
		reader = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	scanner := bufio.NewScanner(reader)
	ask := func(prompt string) string {
		fmt.Fprint(out, prompt)
		scanner.Scan()
		return strings.TrimSpace(scanner.Text())
	}

	fmt.Fprintln(out, "sheetkit setup")
	fmt.Fprintln(out, strings.Repeat("-", 40))
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Step 1/3: AI provider")
	for i, name := range wizardProviders {
		p, _ := ai.LookupPreset(name)
		fmt.Fprintf(out, "  [%d] %-11s (default model %s)\n", i+1, name, p.Model)
	}
	fmt.Fprintf(out, "  [%d] Skip for now\n", len(wizardProviders)+1)

	var preset ai.Preset
	choice := ask("  Choice: ")
	for i, name := range wizardProviders {
		if choice == fmt.Sprint(i+1) || strings.EqualFold(choice, name) {
			preset, _ = ai.LookupPreset(name)
		}
	}
	if preset.Name == "" {
		fmt.Fprintln(out, "  Skipped")
	} else {
		viper.Set("provider", preset.Name)
		viper.Set("model", preset.Model)
		fmt.Fprintln(out)

		fmt.Fprintln(out, "Step 2/3: Credentials")
		if preset.EnvKey == "" {
			host := ask(fmt.Sprintf("  Ollama host (default: %s): ", preset.BaseURL))
			if host != "" {
				viper.Set("base_url", host)
			}
		} else if key := ask(fmt.Sprintf("  Paste your API key (or leave empty to use %s): ", preset.EnvKey)); key != "" {
			viper.Set("api_keys."+preset.Name, key)
			fmt.Fprintln(out, "  API key saved")
		}
		if model := ask(fmt.Sprintf("  Model (default: %s): ", preset.Model)); model != "" {
			viper.Set("model", model)
		}
	}
	fmt.Fprintln(out)

	if err := SaveConfig(); err != nil {
		return fmt.Errorf("could not save config: %w", err)
	}

	fmt.Fprintln(out, "Step 3/3: Done")
	fmt.Fprintln(out, strings.Repeat("-", 40))
	fmt.Fprintln(out, "Quick start:")
	fmt.Fprintln(out, "  sheetkit read data.xlsx")
	fmt.Fprintln(out, `  sheetkit refine data.xlsx --prompt "remove duplicate rows"`)
	fmt.Fprintln(out, "  sheetkit serve")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Config file: %s\n", ConfigPath())
	return nil
}

// WizardNonInteractive writes the defaults only (no user input).
func WizardNonInteractive() error {
	setDefaults()
	return SaveConfig()
}

// Validate checks config values and returns a list of issues.
func Validate() []ConfigIssue {
	var issues []ConfigIssue

	provider := strings.ToLower(viper.GetString("provider"))
	preset, ok := ai.LookupPreset(provider)
	switch {
	case !ok:
		issues = append(issues, ConfigIssue{
			Key:      "provider",
			Severity: "error",
			Message:  fmt.Sprintf("unknown provider %q", provider),
			Fix:      "sheetkit config set provider <" + strings.Join(ai.PresetNames(), "|") + ">",
		})
	case preset.EnvKey == "":
		issues = append(issues, ConfigIssue{
			Key:      "provider",
			Severity: "info",
			Message:  "Ollama configured (no API key needed)",
		})
	case GetAPIKey(provider) == "":
		issues = append(issues, ConfigIssue{
			Key:      "api_keys." + provider,
			Severity: "error",
			Message:  fmt.Sprintf("provider is %q but %s is not set", provider, preset.EnvKey),
			Fix:      fmt.Sprintf("export %s=...\nOr: sheetkit config set api_keys.%s <key>", preset.EnvKey, provider),
		})
	default:
		issues = append(issues, ConfigIssue{
			Key:      "api_keys." + provider,
			Severity: "info",
			Message:  fmt.Sprintf("%s API key configured", provider),
		})
	}

	if d := viper.GetDuration("timeout"); d <= 0 || ai.ClampTimeout(d) != d {
		issues = append(issues, ConfigIssue{
			Key:      "timeout",
			Severity: "warning",
			Message:  fmt.Sprintf("timeout %q is outside 1s..300s and will be clamped to %s", viper.GetString("timeout"), ai.ClampTimeout(d)),
			Fix:      "sheetkit config set timeout 45s",
		})
	}

	if t := viper.GetFloat64("temperature"); t < 0 || t > 2 {
		issues = append(issues, ConfigIssue{
			Key:      "temperature",
			Severity: "warning",
			Message:  fmt.Sprintf("temperature %.2f is outside 0..2; providers may reject it", t),
			Fix:      "sheetkit config set temperature 0.2",
		})
	}

	if viper.GetInt("max_prompt_chars") <= 0 {
		issues = append(issues, ConfigIssue{
			Key:      "max_prompt_chars",
			Severity: "warning",
			Message:  "max_prompt_chars is not set; large sheets are sent in full",
		})
	}

	return issues
}

// ToEnv returns all config values as a map of env var name -> value.
func ToEnv() map[string]string {
	env := make(map[string]string)

	for _, key := range []string{"provider", "model", "base_url", "timeout", "server.addr", "log.level", "log.file", "history.enabled", "history.file"} {
		if v := viper.GetString(key); v != "" {
			env[envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))] = v
		}
	}
	for _, name := range ai.PresetNames() {
		p, _ := ai.LookupPreset(name)
		if p.EnvKey == "" {
			continue
		}
		if k := viper.GetString("api_keys." + name); k != "" {
			env[p.EnvKey] = k
		}
	}
	return env
}

// Set checks a config value, stores it with its proper type and saves to
// disk.
func Set(key, value string) error {
	v, err := parseValue(key, value)
	if err != nil {
		return err
	}
	viper.Set(key, v)
	return SaveConfig()
}

// parseValue converts value for the keys sheetkit reads with a type. Other
// keys, including api_keys.*, are stored as given.
func parseValue(key, value string) (any, error) {
	switch key {
	case "provider":
		name := strings.ToLower(strings.TrimSpace(value))
		if _, ok := ai.LookupPreset(name); !ok {
			return nil, fmt.Errorf("unknown provider %q; choose one of %s", value, strings.Join(ai.PresetNames(), ", "))
		}
		return name, nil
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("timeout must be a duration such as 45s, got %q", value)
		}
		return d.String(), nil
	case "temperature":
		t, err := strconv.ParseFloat(value, 64)
		if err != nil || t < 0 || t > 2 {
			return nil, fmt.Errorf("temperature must be a number from 0 to 2, got %q", value)
		}
		return t, nil
	case "max_tokens", "preview_rows", "max_prompt_chars", "server.max_upload_mb":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s must be a whole number of 0 or more, got %q", key, value)
		}
		return n, nil
	case "history.enabled", "output.color":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false, got %q", key, value)
		}
		return b, nil
	case "log.level":
		switch value {
		case "debug", "info", "warn", "warning", "error":
			return value, nil
		}
		return nil, fmt.Errorf("log.level must be debug, info, warn or error, got %q", value)
	}
	return value, nil
}

// Get retrieves a config value.
func Get(key string) string {
	return viper.GetString(key)
}

// ResetConfig resets all config to defaults.
func ResetConfig() error {
	path := ConfigPath()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete config: %w", err)
	}
	for k, v := range defaults {
		viper.Set(k, v)
	}
	viper.Set("api_keys", map[string]string{})
	return nil
}

// SaveConfig writes the current config to ~/.sheetkit/config.yaml.
func SaveConfig() error {
	dir := configDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("could not write config: %w", err)
	}

	// API keys live in this file.
	os.Chmod(path, 0600)
	return nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// ShowConfig returns a formatted string of the current configuration.
// Keys are masked.
func ShowConfig() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Config: %s\n\n", ConfigPath()))

	sb.WriteString("AI\n")
	sb.WriteString(fmt.Sprintf("  provider:     %s\n", viper.GetString("provider")))
	model := viper.GetString("model")
	if model == "" {
		model = "(provider default)"
	}
	sb.WriteString(fmt.Sprintf("  model:        %s\n", model))
	if u := viper.GetString("base_url"); u != "" {
		sb.WriteString(fmt.Sprintf("  base_url:     %s\n", u))
	}
	sb.WriteString(fmt.Sprintf("  timeout:      %s\n", viper.GetString("timeout")))
	sb.WriteString(fmt.Sprintf("  temperature:  %s\n", viper.GetString("temperature")))
	for _, name := range ai.PresetNames() {
		if k := viper.GetString("api_keys." + name); k != "" {
			sb.WriteString(fmt.Sprintf("  key (%s): %s\n", name, MaskKey(k)))
		}
	}
	sb.WriteString("\n")

	sb.WriteString("Prompt\n")
	sb.WriteString(fmt.Sprintf("  preview_rows:     %d\n", viper.GetInt("preview_rows")))
	sb.WriteString(fmt.Sprintf("  max_prompt_chars: %d\n", viper.GetInt("max_prompt_chars")))
	sb.WriteString("\n")

	sb.WriteString("Server\n")
	sb.WriteString(fmt.Sprintf("  addr:          %s\n", viper.GetString("server.addr")))
	sb.WriteString(fmt.Sprintf("  max_upload_mb: %d\n", viper.GetInt("server.max_upload_mb")))
	sb.WriteString("\n")

	sb.WriteString("Logging\n")
	sb.WriteString(fmt.Sprintf("  level: %s\n", viper.GetString("log.level")))
	if f := viper.GetString("log.file"); f != "" {
		sb.WriteString(fmt.Sprintf("  file:  %s\n", f))
	}

	return sb.String()
}
