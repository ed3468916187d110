// Package config provides configuration management for the VPN Core
// session manager. It handles loading, saving, and validating application
// settings persisted as YAML in the user's config directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ecarrera/vpn-core/common"
)

// Config represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	// AccessScope names the access-group boundary shared with the
	// privileged packet-processing process. The credential store scope
	// and the statistics surface namespace both derive from it.
	AccessScope string `yaml:"access_scope"`
	// SharedDir overrides the directory backing the statistics surface.
	// When empty the per-scope default under the data directory is used.
	SharedDir string `yaml:"shared_dir,omitempty"`
	// StatsInterval is the statistics publication period of the
	// packet-processing side.
	StatsInterval time.Duration `yaml:"stats_interval"`
	// StatsStaleAfter is the age after which a statistics sample is
	// reported as stale.
	StatsStaleAfter time.Duration `yaml:"stats_stale_after"`
	// DirectoryURL is the base URL of the server directory API.
	DirectoryURL string `yaml:"directory_url"`
	// Verbose enables debug-level logging.
	Verbose bool `yaml:"verbose"`
	// LogToFile enables logging to a rotated file in addition to stdout.
	LogToFile bool `yaml:"log_to_file"`
}

// DefaultConfig returns the default configuration.
// These are sensible defaults for most deployments.
func DefaultConfig() *Config {
	return &Config{
		AccessScope:     common.DefaultAccessScope,
		StatsInterval:   common.StatsPublishInterval,
		StatsStaleAfter: common.StatsStaleThreshold,
		DirectoryURL:    "https://api.vpncore.example",
		Verbose:         false,
		LogToFile:       true,
	}
}

// Load loads the configuration from the config file.
// If the file doesn't exist, it creates one with default values.
func Load() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return loadFrom(configPath)
}

func loadFrom(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.saveTo(configPath); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	var config Config
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
	}

	config.validate()
	return &config, nil
}

// validate replaces invalid values with defaults rather than failing:
// a damaged setting should not keep the application from starting.
func (c *Config) validate() {
	def := DefaultConfig()
	if c.AccessScope == "" {
		c.AccessScope = def.AccessScope
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = def.StatsInterval
	}
	if c.StatsStaleAfter <= 0 {
		c.StatsStaleAfter = def.StatsStaleAfter
	}
	if c.DirectoryURL == "" {
		c.DirectoryURL = def.DirectoryURL
	}
}

// Save saves the configuration to the config file.
func (c *Config) Save() error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}
	return c.saveTo(configPath)
}

func (c *Config) saveTo(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}

	return nil
}

func getConfigPath() (string, error) {
	configDir, err := common.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, common.ConfigFileName), nil
}
