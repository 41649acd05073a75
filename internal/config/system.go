package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// SystemDefaults is the machine-wide layer an administrator can deploy to
// pin a provider for every user. User config and environment still win.
type SystemDefaults struct {
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`
	BaseURL  string `yaml:"base_url" json:"base_url"`
	Timeout  string `yaml:"timeout" json:"timeout"`
}

// SystemConfigPath returns the platform path for the system layer.
// SHEETKIT_SYSTEM_CONFIG overrides it.
func SystemConfigPath() string {
	if p := os.Getenv(envPrefix + "_SYSTEM_CONFIG"); p != "" {
		return p
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("ProgramData"), "sheetkit", "defaults.yaml")
	}
	return "/etc/sheetkit/defaults.yaml"
}

// LoadSystemDefaults reads the system layer. Returns nil (not error) if the
// file does not exist.
func LoadSystemDefaults(path string) (*SystemDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read system config at %s: %w", path, err)
	}

	var sd SystemDefaults
	if err := yaml.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("invalid system config at %s: %w", path, err)
	}
	return &sd, nil
}

func applySystemDefaults() error {
	sd, err := LoadSystemDefaults(SystemConfigPath())
	if err != nil || sd == nil {
		return err
	}
	for key, val := range map[string]string{
		"provider": sd.Provider,
		"model":    sd.Model,
		"base_url": sd.BaseURL,
		"timeout":  sd.Timeout,
	} {
		if val != "" {
			viper.SetDefault(key, val)
		}
	}
	return nil
}
