package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("APP_SERVER_PORT", "")
	t.Setenv("SEMANTIC_PROVIDER", "")
	t.Setenv("SEMANTIC_MODEL_NAME", "")
	t.Setenv("RANKING_DEFAULT_TOP_K", "")
	t.Setenv("APP_LOG_LEVEL", "")
	t.Setenv("SEMANTIC_WORKER_COUNT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Development, cfg.App.Env)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "8085", cfg.App.ServerPort)
	assert.Equal(t, ProviderPython, cfg.Semantic.Provider)
	assert.Equal(t, "paraphrase-MiniLM-L6-v2", cfg.Semantic.Model)
	assert.Equal(t, 20, cfg.Ranking.DefaultTopK)
	assert.GreaterOrEqual(t, cfg.Semantic.WorkerCount, 1)
	assert.LessOrEqual(t, cfg.Semantic.WorkerCount, 4)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "PRODUCTION")
	t.Setenv("APP_LOG_LEVEL", "")
	t.Setenv("APP_SERVER_PORT", "9000")
	t.Setenv("APP_RAW_BODY_LOG", "true")
	t.Setenv("SEMANTIC_PROVIDER", "OpenAI")
	t.Setenv("SEMANTIC_MODEL_NAME", "")
	t.Setenv("SEMANTIC_OPENAI_TOKEN", "secret")
	t.Setenv("SEMANTIC_CACHE_SIZE", "not-a-number")
	t.Setenv("RANKING_DEFAULT_TOP_K", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Production, cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "9000", cfg.App.ServerPort)
	assert.True(t, cfg.App.RawBodyLog)
	assert.Equal(t, ProviderOpenAI, cfg.Semantic.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Semantic.Model)
	assert.Equal(t, 4096, cfg.Semantic.Cache.Size)
	assert.Equal(t, 5, cfg.Ranking.DefaultTopK)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			App:      AppConfig{ServerPort: "8085"},
			Semantic: SemanticConfig{Provider: ProviderPython, Model: "m", WorkerCount: 1},
			Ranking:  RankingConfig{DefaultTopK: 20},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "no port", mutate: func(c *Config) { c.App.ServerPort = "" }, wantErr: "APP_SERVER_PORT"},
		{name: "negative top k", mutate: func(c *Config) { c.Ranking.DefaultTopK = -1 }, wantErr: "RANKING_DEFAULT_TOP_K"},
		{name: "no workers", mutate: func(c *Config) { c.Semantic.WorkerCount = 0 }, wantErr: "SEMANTIC_WORKER_COUNT"},
		{name: "openai without token", mutate: func(c *Config) {
			c.Semantic.Provider = ProviderOpenAI
			c.Semantic.OpenAI.URL = "http://localhost"
		}, wantErr: "SEMANTIC_OPENAI_TOKEN"},
		{name: "gemini without key", mutate: func(c *Config) { c.Semantic.Provider = ProviderGemini }, wantErr: "SEMANTIC_GEMINI_API_KEY"},
		{name: "unknown provider", mutate: func(c *Config) { c.Semantic.Provider = "onnx" }, wantErr: "unsupported"},
		{name: "no model", mutate: func(c *Config) { c.Semantic.Model = "" }, wantErr: "SEMANTIC_MODEL_NAME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
