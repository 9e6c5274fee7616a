// Package config handles configuration loading and management for Ordo.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Ordo.
type Config struct {
	State     StateConfig     `mapstructure:"state"`
	Blob      BlobConfig      `mapstructure:"blob"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// StateConfig holds persistence settings.
type StateConfig struct {
	// DBPath is the SQLite database location. Empty selects the XDG default.
	DBPath string `mapstructure:"db_path"`
}

// BlobConfig holds blob store settings.
type BlobConfig struct {
	// Dir is the blob store directory. Empty selects the XDG default.
	Dir string `mapstructure:"dir"`
	// InlineThreshold is the payload size in bytes above which inputs and
	// results are stored as blob references.
	InlineThreshold int `mapstructure:"inline_threshold"`
}

// ExecutorConfig holds worker pool settings.
type ExecutorConfig struct {
	// Workers is the number of concurrent workers draining the queue.
	Workers int `mapstructure:"workers"`
	// PollInterval is how long an idle worker waits before re-polling.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// AnthropicConfig holds model adapter settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key.
	APIKey string `mapstructure:"api_key"`
	// Model is the model name for model-backed strategies.
	Model string `mapstructure:"model"`
	// UseBedrock routes requests through AWS Bedrock.
	UseBedrock bool `mapstructure:"use_bedrock"`
	// AWSRegion is the Bedrock region.
	AWSRegion string `mapstructure:"aws_region"`
	// AWSProfile is the optional AWS profile.
	AWSProfile string `mapstructure:"aws_profile"`
}

// DebugConfig holds debug logging settings.
type DebugConfig struct {
	// LogPath is the debug log file. Empty disables debug logging.
	LogPath string `mapstructure:"log_path"`
}

// DBPath returns the configured database path or the XDG default.
func (c *Config) DBPath() string {
	if c.State.DBPath != "" {
		return c.State.DBPath
	}
	return filepath.Join(dataDir(), "ordo", "ordo.db")
}

// BlobDir returns the configured blob directory or the XDG default.
func (c *Config) BlobDir() string {
	if c.Blob.Dir != "" {
		return c.Blob.Dir
	}
	return filepath.Join(dataDir(), "ordo", "blobs")
}

// Load reads configuration with the following precedence:
// 1. Environment variables
// 2. Project config (.ordo/config.yaml, walking up from the working directory)
// 3. User config (~/.config/ordo/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		v.SetConfigFile(projectConfig)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config: %w", err)
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("state.db_path", "ORDO_DB_PATH")
	v.BindEnv("blob.dir", "ORDO_BLOB_DIR")
	v.BindEnv("debug.log_path", "ORDO_DEBUG_LOG")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("state.db_path", "")
	v.SetDefault("blob.dir", "")
	v.SetDefault("blob.inline_threshold", 4096)
	v.SetDefault("executor.workers", 4)
	v.SetDefault("executor.poll_interval", "100ms")
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("debug.log_path", "")
}

// userConfigDir returns the XDG config directory for ordo.
func userConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "ordo")
}

// dataDir returns the XDG data directory.
func dataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return dataDir
}

// findProjectConfig walks up from the working directory looking for
// .ordo/config.yaml.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".ordo", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
