package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".stratamem"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// envPrefix namespaces all environment overrides.
	envPrefix = "STRATAMEM"
)

// ConfigPath returns the path to the config file. STRATAMEM_CONFIG
// overrides the default ~/.stratamem/config.json.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("STRATAMEM_CONFIG")); explicit != "" {
		return expandHome(explicit)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", goerr.Wrap(err, "resolve home directory")
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load loads the configuration.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := defaults()

	path, err := ConfigPath()
	if err == nil {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, goerr.Wrap(err, "parse config file", goerr.Value("path", path))
			}
		} else if !os.IsNotExist(err) {
			return nil, goerr.Wrap(err, "read config file", goerr.Value("path", path))
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, goerr.Wrap(err, "apply environment overrides")
	}

	resolved, err := expandHome(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	cfg.Database.Path = resolved

	return &cfg, nil
}

// Save writes the configuration as indented JSON, creating the config
// directory if needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return goerr.Wrap(err, "create config directory")
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "encode config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return goerr.Wrap(err, "write config file", goerr.Value("path", path))
	}
	return nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", goerr.Wrap(err, "resolve home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
