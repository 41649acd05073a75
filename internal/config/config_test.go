package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func setupTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	viper.Reset()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(dir)
	setDefaults()

	// Override configDir for tests
	t.Setenv("HOME", dir)
	t.Setenv("SHEETKIT_SYSTEM_CONFIG", filepath.Join(dir, "none.yaml"))
	for _, k := range []string{"OPENAI_API_KEY", "GROQ_API_KEY", "OPENROUTER_API_KEY", "TOGETHER_API_KEY", "ANTHROPIC_API_KEY"} {
		t.Setenv(k, "")
	}
	t.Cleanup(func() {
		viper.Reset()
	})
	return dir
}

func TestLoadDefaults(t *testing.T) {
	setupTestConfig(t)
	viper.Reset()

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("default provider = %q", cfg.Provider)
	}
	if cfg.Model != "" {
		t.Errorf("default model should be left to the provider preset, got %q", cfg.Model)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("default timeout = %v", cfg.Timeout)
	}
	if cfg.Temperature != 0.2 {
		t.Errorf("default temperature = %v", cfg.Temperature)
	}
	if cfg.MaxPromptChars != 60000 {
		t.Errorf("default max_prompt_chars = %d", cfg.MaxPromptChars)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.MaxUploadMB != 20 {
		t.Errorf("default server = %+v", cfg.Server)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default log level = %q", cfg.Log.Level)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setupTestConfig(t)
	viper.Reset()
	t.Setenv("SHEETKIT_PROVIDER", "groq")
	t.Setenv("SHEETKIT_SERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("SHEETKIT_TIMEOUT", "10s")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "groq" {
		t.Errorf("provider = %q", cfg.Provider)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("timeout = %v", cfg.Timeout)
	}
}

func TestLoadFile(t *testing.T) {
	dir := setupTestConfig(t)
	viper.Reset()
	os.MkdirAll(filepath.Join(dir, ".sheetkit"), 0700)
	content := "provider: anthropic\nmodel: claude-test\napi_keys:\n  anthropic: sk-ant-file\npreview_rows: 50\n"
	if err := os.WriteFile(filepath.Join(dir, ".sheetkit", "config.yaml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "anthropic" || cfg.Model != "claude-test" {
		t.Errorf("provider/model = %q/%q", cfg.Provider, cfg.Model)
	}
	if cfg.PreviewRows != 50 {
		t.Errorf("preview_rows = %d", cfg.PreviewRows)
	}
	if cfg.APIKeys["anthropic"] != "sk-ant-file" {
		t.Errorf("api_keys = %v", cfg.APIKeys)
	}
}

func TestSystemDefaults(t *testing.T) {
	dir := setupTestConfig(t)
	viper.Reset()
	path := filepath.Join(dir, "defaults.yaml")
	os.WriteFile(path, []byte("provider: ollama\nmodel: llama3.2\n"), 0644)
	t.Setenv("SHEETKIT_SYSTEM_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "ollama" || cfg.Model != "llama3.2" {
		t.Errorf("provider/model = %q/%q", cfg.Provider, cfg.Model)
	}
}

func TestLoadSystemDefaultsMissing(t *testing.T) {
	sd, err := LoadSystemDefaults("/nonexistent/defaults.yaml")
	if err != nil {
		t.Fatalf("expected nil error for missing file, got: %v", err)
	}
	if sd != nil {
		t.Error("expected nil defaults for missing file")
	}
}

func TestLoadSystemDefaultsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	os.WriteFile(path, []byte("provider: [unclosed"), 0644)
	if _, err := LoadSystemDefaults(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestGetAPIKeyPrefersEnv(t *testing.T) {
	setupTestConfig(t)
	viper.Set("api_keys.groq", "from-file")

	if got := GetAPIKey("groq"); got != "from-file" {
		t.Errorf("GetAPIKey(groq) = %q, want file key", got)
	}
	t.Setenv("GROQ_API_KEY", "from-env")
	if got := GetAPIKey("groq"); got != "from-env" {
		t.Errorf("GetAPIKey(groq) = %q, want env key", got)
	}
	if got := GetAPIKey("ollama"); got != "" {
		t.Errorf("ollama needs no key, got %q", got)
	}
}

func TestProviderSettings(t *testing.T) {
	setupTestConfig(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg := &Config{Provider: "openai", Model: "gpt-4o", BaseURL: "https://proxy.local/v1", Timeout: 20 * time.Second}

	s := ProviderSettings(cfg, Overrides{})
	if s.Provider != "openai" || s.Model != "gpt-4o" || s.BaseURL != "https://proxy.local/v1" {
		t.Errorf("settings = %+v", s)
	}
	if s.APIKey != "sk-test" {
		t.Errorf("api key = %q", s.APIKey)
	}
	if s.Timeout != 20*time.Second {
		t.Errorf("timeout = %v", s.Timeout)
	}

	s = ProviderSettings(cfg, Overrides{Provider: "ollama", Timeout: time.Hour})
	if s.Provider != "ollama" || s.Model != "" || s.BaseURL != "" {
		t.Errorf("switching provider should drop model and base url: %+v", s)
	}
	if s.Timeout != 300*time.Second {
		t.Errorf("timeout should be clamped, got %v", s.Timeout)
	}

	s = ProviderSettings(cfg, Overrides{Model: "gpt-4.1"})
	if s.Model != "gpt-4.1" {
		t.Errorf("model override = %q", s.Model)
	}
}

func TestValidateNoAPIKey(t *testing.T) {
	setupTestConfig(t)
	viper.Set("provider", "anthropic")

	issues := Validate()
	hasError := false
	for _, issue := range issues {
		if issue.Severity == "error" && strings.Contains(issue.Message, "ANTHROPIC_API_KEY") {
			hasError = true
		}
	}
	if !hasError {
		t.Error("expected error about missing API key")
	}
}

func TestValidateWithAPIKey(t *testing.T) {
	setupTestConfig(t)
	t.Setenv("OPENAI_API_KEY", "sk-test-key")

	for _, issue := range Validate() {
		if issue.Severity == "error" {
			t.Errorf("unexpected error: %s", issue.Message)
		}
	}
}

func TestValidateUnknownProvider(t *testing.T) {
	setupTestConfig(t)
	viper.Set("provider", "bard")

	issues := Validate()
	if len(issues) == 0 || issues[0].Severity != "error" || !strings.Contains(issues[0].Message, "bard") {
		t.Errorf("issues = %+v", issues)
	}
}

func TestValidateWarnings(t *testing.T) {
	setupTestConfig(t)
	viper.Set("provider", "ollama")
	viper.Set("timeout", "1h")
	viper.Set("temperature", 3.5)

	var keys []string
	for _, issue := range Validate() {
		if issue.Severity == "warning" {
			keys = append(keys, issue.Key)
		}
	}
	got := strings.Join(keys, ",")
	if !strings.Contains(got, "timeout") || !strings.Contains(got, "temperature") {
		t.Errorf("warnings = %q", got)
	}
}

func TestToEnv(t *testing.T) {
	setupTestConfig(t)
	viper.Set("provider", "anthropic")
	viper.Set("model", "claude-test")
	viper.Set("api_keys.anthropic", "sk-ant-test")

	env := ToEnv()
	if env["SHEETKIT_PROVIDER"] != "anthropic" {
		t.Errorf("SHEETKIT_PROVIDER = %q", env["SHEETKIT_PROVIDER"])
	}
	if env["SHEETKIT_MODEL"] != "claude-test" {
		t.Errorf("SHEETKIT_MODEL = %q", env["SHEETKIT_MODEL"])
	}
	if env["SHEETKIT_SERVER_ADDR"] != ":8080" {
		t.Errorf("SHEETKIT_SERVER_ADDR = %q", env["SHEETKIT_SERVER_ADDR"])
	}
	if env["ANTHROPIC_API_KEY"] != "sk-ant-test" {
		t.Errorf("ANTHROPIC_API_KEY = %q", env["ANTHROPIC_API_KEY"])
	}
}

func TestSetAndGet(t *testing.T) {
	dir := setupTestConfig(t)

	if err := Set("provider", "groq"); err != nil {
		t.Fatal(err)
	}
	if got := Get("provider"); got != "groq" {
		t.Errorf("Get(provider) = %q, want %q", got, "groq")
	}
	info, err := os.Stat(filepath.Join(dir, ".sheetkit", "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v", info.Mode().Perm())
	}
}

func TestShowConfigMasksKeys(t *testing.T) {
	setupTestConfig(t)
	viper.Set("model", "gpt-4.1")
	viper.Set("api_keys.openai", "sk-abcdefghijklmnop")

	output := ShowConfig()
	if !strings.Contains(output, "gpt-4.1") {
		t.Error("ShowConfig should contain model")
	}
	if strings.Contains(output, "sk-abcdefghijklmnop") {
		t.Error("ShowConfig must not print the full key")
	}
	if !strings.Contains(output, "sk-abc****") {
		t.Errorf("expected masked key in %q", output)
	}
}

func TestWizardNonInteractive(t *testing.T) {
	dir := setupTestConfig(t)
	viper.Reset()
	viper.SetConfigType("yaml")

	if err := WizardNonInteractive(); err != nil {
		t.Fatal(err)
	}
	if viper.GetString("provider") != "openai" {
		t.Errorf("provider = %q", viper.GetString("provider"))
	}
	if _, err := os.Stat(filepath.Join(dir, ".sheetkit", "config.yaml")); err != nil {
		t.Errorf("config not written: %v", err)
	}
}

func TestWizardInteractive(t *testing.T) {
	setupTestConfig(t)

	// groq, key, default model
	input := strings.NewReader("2\ngsk-test\n\n")
	var out strings.Builder
	if err := Wizard(input, &out); err != nil {
		t.Fatal(err)
	}
	if viper.GetString("provider") != "groq" {
		t.Errorf("provider = %q", viper.GetString("provider"))
	}
	if viper.GetString("model") != "llama-3.1-8b-instant" {
		t.Errorf("model = %q", viper.GetString("model"))
	}
	if viper.GetString("api_keys.groq") != "gsk-test" {
		t.Errorf("key = %q", viper.GetString("api_keys.groq"))
	}
	if !strings.Contains(out.String(), "Config file:") {
		t.Errorf("wizard output = %q", out.String())
	}
}

func TestWizardSkip(t *testing.T) {
	setupTestConfig(t)
	if err := Wizard(strings.NewReader("7\n"), &strings.Builder{}); err != nil {
		t.Fatal(err)
	}
	if viper.GetString("provider") != "openai" {
		t.Errorf("skipping should keep the default provider, got %q", viper.GetString("provider"))
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if !strings.Contains(path, ".sheetkit") || !strings.Contains(path, "config.yaml") {
		t.Errorf("unexpected path: %q", path)
	}
}

func TestResetConfig(t *testing.T) {
	setupTestConfig(t)

	viper.Set("provider", "anthropic")
	if err := SaveConfig(); err != nil {
		t.Fatal(err)
	}

	if err := ResetConfig(); err != nil {
		t.Fatal(err)
	}
	if viper.GetString("provider") != "openai" {
		t.Errorf("provider should reset to default, got %q", viper.GetString("provider"))
	}
	if _, err := os.Stat(ConfigPath()); !os.IsNotExist(err) {
		t.Errorf("config file should be removed, stat err = %v", err)
	}
}

func TestAPIKeySource(t *testing.T) {
	setupTestConfig(t)
	viper.Set("api_keys.openai", "sk-file")
	t.Setenv("GROQ_API_KEY", "gsk-env")

	tests := map[string]string{
		"openai":    KeyFromFile,
		"groq":      KeyFromEnv,
		"anthropic": KeyMissing,
		"ollama":    KeyNotNeeded,
		"bard":      KeyUnknownProvider,
	}
	for provider, want := range tests {
		if got := APIKeySource(provider); got != want {
			t.Errorf("APIKeySource(%s) = %q, want %q", provider, got, want)
		}
	}
}

func TestResolveFillsPresetDefaults(t *testing.T) {
	setupTestConfig(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-secret")
	cfg := &Config{Provider: "openai", Model: "gpt-4.1", Timeout: 20 * time.Second}

	r := Resolve(cfg, Overrides{Provider: "anthropic"})
	if r.Provider != "anthropic" || r.Model != "claude-sonnet-4-20250514" || r.BaseURL != "https://api.anthropic.com" {
		t.Errorf("resolved = %+v", r)
	}
	if r.KeySource != KeyFromEnv || r.KeyEnv != "ANTHROPIC_API_KEY" || r.Key != "sk-ant****" {
		t.Errorf("key = %+v", r)
	}
	if r.Timeout != "20s" {
		t.Errorf("timeout = %q", r.Timeout)
	}
}

func TestSetParsesTypes(t *testing.T) {
	setupTestConfig(t)
	if err := Set("server.max_upload_mb", "50"); err != nil {
		t.Fatal(err)
	}
	if got := viper.Get("server.max_upload_mb"); got != 50 {
		t.Errorf("max_upload_mb stored as %T %v", got, got)
	}
	if err := Set("provider", " Groq "); err != nil {
		t.Fatal(err)
	}
	if got := Get("provider"); got != "groq" {
		t.Errorf("provider = %q", got)
	}
	for key, value := range map[string]string{"provider": "bard", "timeout": "-5s", "log.level": "loud"} {
		if err := Set(key, value); err == nil {
			t.Errorf("Set(%s, %s) should fail", key, value)
		}
	}
}

func TestMaskKey(t *testing.T) {
	if got := MaskKey(""); got != "" {
		t.Errorf("MaskKey(\"\") = %q", got)
	}
	if got := MaskKey("abc"); got != "****" {
		t.Errorf("MaskKey(abc) = %q", got)
	}
	if got := MaskKey("sk-abcdefghijklmnop"); got != "sk-abc****" {
		t.Errorf("MaskKey = %q", got)
	}
}
