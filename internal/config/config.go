// Package config handles configuration loading for Maestro.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Maestro.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// Model is the default model for agent execution.
	Model string `mapstructure:"model"`
	// MaxTokens bounds each agent response.
	MaxTokens int64 `mapstructure:"max_tokens"`
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	// Path is the SQLite database file. Empty uses the XDG data path.
	Path string `mapstructure:"path"`
}

// WorkflowConfig holds workflow engine settings.
type WorkflowConfig struct {
	// NodeTimeout bounds each action node's agent call.
	NodeTimeout time.Duration `mapstructure:"node_timeout"`
	// MaxSteps bounds a single run's node executions.
	MaxSteps int `mapstructure:"max_steps"`
	// PersonaDir holds YAML persona definitions.
	PersonaDir string `mapstructure:"persona_dir"`
}

// ChatConfig holds group chat settings.
type ChatConfig struct {
	// ConsensusThreshold is the agreement fraction required (0, 1].
	ConsensusThreshold float64 `mapstructure:"consensus_threshold"`
	// MaxRounds bounds consensus-mode discussions.
	MaxRounds int `mapstructure:"max_rounds"`
}

// CleanupConfig holds retention settings.
type CleanupConfig struct {
	// MaxAgeDays is the default age threshold for cleanup runs.
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, MAESTRO_*)
// 2. Project config (.maestro.yaml in current directory or parent)
// 3. User config (~/.config/maestro/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("MAESTRO")
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("database.path", "MAESTRO_DB_PATH")
	v.BindEnv("anthropic.model", "MAESTRO_MODEL")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
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

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("database.path", cfg.Database.Path)
	v.Set("workflow.node_timeout", cfg.Workflow.NodeTimeout.String())
	v.Set("workflow.max_steps", cfg.Workflow.MaxSteps)
	v.Set("workflow.persona_dir", cfg.Workflow.PersonaDir)
	v.Set("chat.consensus_threshold", cfg.Chat.ConsensusThreshold)
	v.Set("chat.max_rounds", cfg.Chat.MaxRounds)
	v.Set("cleanup.max_age_days", cfg.Cleanup.MaxAgeDays)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 8192)

	v.SetDefault("database.path", "")

	v.SetDefault("workflow.node_timeout", "5m")
	v.SetDefault("workflow.max_steps", 100)
	v.SetDefault("workflow.persona_dir", "")

	v.SetDefault("chat.consensus_threshold", 0.7)
	v.SetDefault("chat.max_rounds", 10)

	v.SetDefault("cleanup.max_age_days", 30)
}

// getUserConfigDir returns the XDG config directory for Maestro.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "maestro")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "maestro")
	}
	return filepath.Join(home, ".config", "maestro")
}

// findProjectConfig searches for .maestro.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".maestro.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 8192,
		},
		Workflow: WorkflowConfig{
			NodeTimeout: 5 * time.Minute,
			MaxSteps:    100,
		},
		Chat: ChatConfig{
			ConsensusThreshold: 0.7,
			MaxRounds:          10,
		},
		Cleanup: CleanupConfig{
			MaxAgeDays: 30,
		},
	}
}
