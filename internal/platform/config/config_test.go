package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.RetryLimit)
	assert.Equal(t, 4096, cfg.DefaultMaxTokens)
	assert.Equal(t, 0.3, cfg.DefaultTemperature)
	assert.Equal(t, 2555, cfg.RetentionDays)
	assert.Equal(t, 1024, cfg.Embedding.Dimension)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("RETRY_LIMIT", "5")
	t.Setenv("DEFAULT_MAX_TOKENS", "2048")
	t.Setenv("DEFAULT_TEMPERATURE", "0.5")
	t.Setenv("VLLM_CONTRACT_URL", "http://contract:8000")
	t.Setenv("VLLM_CONTRACT_MODEL", "llama-3-70b")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.RetryLimit)
	assert.Equal(t, 2048, cfg.DefaultMaxTokens)
	assert.Equal(t, 0.5, cfg.DefaultTemperature)
	assert.Equal(t, "http://contract:8000", cfg.Backends["contract_review"].Endpoint)
	assert.Equal(t, "llama-3-70b", cfg.Backends["contract_review"].Model)
}
