package config

import (
	"errors"
	"fmt"
)

// Config is the root configuration for mnemo
type Config struct {
	Project   ProjectConfig   `mapstructure:"project" json:"project"`
	Database  DatabaseConfig  `mapstructure:"database" json:"database"`
	Embedding EmbeddingConfig `mapstructure:"embedding" json:"embedding"`
	Search    SearchConfig    `mapstructure:"search" json:"search"`
	Log       LogConfig       `mapstructure:"log" json:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics" json:"metrics"`
}

// ProjectConfig scopes stored observations
type ProjectConfig struct {
	ID string `mapstructure:"id" json:"id"`
}

// DatabaseConfig holds storage settings
type DatabaseConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// EmbeddingConfig holds embedding provider settings
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider" json:"provider"`
	APIKey   string `mapstructure:"api_key" json:"api_key"`
	Model    string `mapstructure:"model" json:"model"`
}

// SearchConfig holds search defaults
type SearchConfig struct {
	DefaultLimit int `mapstructure:"default_limit" json:"default_limit"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level   string `mapstructure:"level" json:"level"`
	File    string `mapstructure:"file" json:"file"`
	Console bool   `mapstructure:"console" json:"console"`
	Pretty  bool   `mapstructure:"pretty" json:"pretty"`
}

// MetricsConfig holds prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Addr    string `mapstructure:"addr" json:"addr"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			ID: "default",
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Search: SearchConfig{
			DefaultLimit: 10,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9090",
		},
	}
}

// Validate checks the configuration for required fields
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return errors.New("project id is required")
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Embedding.Provider != "openai" {
		return fmt.Errorf("unknown embedding provider: %s", c.Embedding.Provider)
	}
	if c.Embedding.APIKey == "" {
		return errors.New("embedding api key is required")
	}
	if c.Search.DefaultLimit <= 0 {
		return errors.New("search default limit must be positive")
	}
	return nil
}
