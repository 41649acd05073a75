package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/klytics/sheetkit/internal/ai"
)

// GetAPIKey retrieves the API key for the given provider, checking the
// provider's environment variable first and falling back to
// api_keys.<provider> in the config file. Providers without a key return "".
func GetAPIKey(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	preset, ok := ai.LookupPreset(provider)
	if !ok || preset.EnvKey == "" {
		return ""
	}
	if key := os.Getenv(preset.EnvKey); key != "" {
		return key
	}
	return viper.GetString("api_keys." + provider)
}

// Overrides carries command-line flags that take precedence over the file.
type Overrides struct {
	Provider string
	Model    string
	Timeout  time.Duration
}

// ProviderSettings assembles the inference settings from cfg and flags.
// When the provider is changed by a flag, the configured model and base URL
// belong to the old provider and are dropped in favour of the preset's.
func ProviderSettings(cfg *Config, o Overrides) ai.Settings {
	s := ai.Settings{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
		Timeout:  cfg.Timeout,
	}
	if o.Provider != "" && !strings.EqualFold(o.Provider, cfg.Provider) {
		s.Provider = o.Provider
		s.Model = ""
		s.BaseURL = ""
	}
	if o.Model != "" {
		s.Model = o.Model
	}
	if o.Timeout > 0 {
		s.Timeout = o.Timeout
	}
	s.Timeout = ai.ClampTimeout(s.Timeout)
	s.APIKey = GetAPIKey(s.Provider)
	return s
}

// Where an API key was found.
const (
	KeyFromEnv    = "env"
	KeyFromFile   = "config"
	KeyNotNeeded  = "not needed"
	KeyMissing    = "missing"
	KeyUnknownProvider = "unknown provider"
)

// APIKeySource reports where GetAPIKey would find the key for provider.
func APIKeySource(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	preset, ok := ai.LookupPreset(provider)
	switch {
	case !ok:
		return KeyUnknownProvider
	case preset.EnvKey == "":
		return KeyNotNeeded
	case os.Getenv(preset.EnvKey) != "":
		return KeyFromEnv
	case viper.GetString("api_keys."+provider) != "":
		return KeyFromFile
	}
	return KeyMissing
}

// MaskKey keeps the first six characters of a key. Keys too short to hide
// anything are masked entirely.
func MaskKey(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 12:
		return "****"
	}
	return key[:6] + "****"
}

// Resolved is the provider a command would actually talk to, with preset
// defaults filled in and the key masked.
type Resolved struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	BaseURL   string `json:"baseUrl"`
	Timeout   string `json:"timeout"`
	KeyEnv    string `json:"keyEnv,omitempty"`
	KeySource string `json:"keySource"`
	Key       string `json:"key,omitempty"`
}

// Resolve applies o to cfg the way the refine commands do and fills in the
// preset's model and base URL where the settings leave them empty.
func Resolve(cfg *Config, o Overrides) Resolved {
	s := ProviderSettings(cfg, o)
	r := Resolved{
		Provider:  strings.ToLower(strings.TrimSpace(s.Provider)),
		Model:     s.Model,
		BaseURL:   s.BaseURL,
		Timeout:   s.Timeout.String(),
		KeySource: APIKeySource(s.Provider),
		Key:       MaskKey(s.APIKey),
	}
	if preset, ok := ai.LookupPreset(r.Provider); ok {
		r.KeyEnv = preset.EnvKey
		if r.Model == "" {
			r.Model = preset.Model
		}
		if r.BaseURL == "" {
			r.BaseURL = preset.BaseURL
		}
	}
	return r
}
