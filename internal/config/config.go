// Package config manages application configuration from files and environment.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "SHEETKIT"

// Config holds the application configuration.
type Config struct {
	Provider       string            `mapstructure:"provider"`
	Model          string            `mapstructure:"model"`
	BaseURL        string            `mapstructure:"base_url"`
	Timeout        time.Duration     `mapstructure:"timeout"`
	Temperature    float64           `mapstructure:"temperature"`
	MaxTokens      int               `mapstructure:"max_tokens"`
	PreviewRows    int               `mapstructure:"preview_rows"`
	MaxPromptChars int               `mapstructure:"max_prompt_chars"`
	APIKeys        map[string]string `mapstructure:"api_keys"`
	Server         struct {
		Addr        string `mapstructure:"addr"`
		MaxUploadMB int    `mapstructure:"max_upload_mb"`
	} `mapstructure:"server"`
	Log struct {
		Level  string `mapstructure:"level"`
		File   string `mapstructure:"file"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Output struct {
		Color bool `mapstructure:"color"`
	} `mapstructure:"output"`
	History struct {
		Enabled bool   `mapstructure:"enabled"`
		File    string `mapstructure:"file"`
	} `mapstructure:"history"`
}

// defaults are applied before the system layer, the user file and the
// environment, in that order of increasing precedence.
var defaults = map[string]any{
	"provider":             "openai",
	"model":                "",
	"base_url":             "",
	"timeout":              "45s",
	"temperature":          0.2,
	"max_tokens":           0,
	"preview_rows":         0,
	"max_prompt_chars":     60000,
	"server.addr":          ":8080",
	"server.max_upload_mb": 20,
	"log.level":            "info",
	"log.file":             "",
	"log.format":           "text",
	"output.color":         true,
	"history.enabled":      true,
	"history.file":         "",
}

// Load reads the configuration from ~/.sheetkit/config.yaml and SHEETKIT_*
// environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir())

	setDefaults()
	if err := applySystemDefaults(); err != nil {
		return nil, err
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (non-fatal if missing)
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults() {
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sheetkit"
	}
	return filepath.Join(home, ".sheetkit")
}

// Dir returns the directory holding config.yaml and recipes.yaml.
func Dir() string {
	return configDir()
}
