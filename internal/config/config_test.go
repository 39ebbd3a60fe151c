package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Database.Path = "/tmp/mnemo.db"
	cfg.Embedding.APIKey = "sk-test"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "default", cfg.Project.ID)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing project id", func(c *Config) { c.Project.ID = "" }},
		{"missing database path", func(c *Config) { c.Database.Path = "" }},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "acme" }},
		{"missing api key", func(c *Config) { c.Embedding.APIKey = "" }},
		{"non-positive limit", func(c *Config) { c.Search.DefaultLimit = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoaderMissingFileFallsBackToDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "does-not-exist.json"))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Project.ID)
	assert.NotEmpty(t, cfg.Database.Path)
}

func TestLoaderEnvOverrides(t *testing.T) {
	t.Setenv("MNEMO_EMBEDDING_API_KEY", "sk-from-env")
	t.Setenv("MNEMO_DATABASE_PATH", "/custom/path.db")

	loader := NewLoader(filepath.Join(t.TempDir(), "missing.json"))
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.Embedding.APIKey)
	assert.Equal(t, "/custom/path.db", cfg.Database.Path)
}

func TestLoaderOpenAIKeyFallback(t *testing.T) {
	t.Setenv("MNEMO_EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	loader := NewLoader(filepath.Join(t.TempDir(), "missing.json"))
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-openai", cfg.Embedding.APIKey)
}

func TestLoaderSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mnemo.json")
	loader := NewLoader(path)

	cfg := validConfig()
	cfg.Project.ID = "my-project"
	cfg.Search.DefaultLimit = 25
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "my-project", loaded.Project.ID)
	assert.Equal(t, 25, loaded.Search.DefaultLimit)
	assert.Equal(t, "/tmp/mnemo.db", loaded.Database.Path)
}
