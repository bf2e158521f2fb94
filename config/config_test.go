package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LISTINGAI_AI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)

	assert.Equal(t, "data/verification.db", cfg.Store.Path)

	assert.Equal(t, 30*time.Second, cfg.Catalog.Timeout)

	assert.Equal(t, "test-key", cfg.AI.APIKey)
	assert.Equal(t, 120*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 20, cfg.AI.RequestsPerMinute)
	assert.Equal(t, 1, cfg.AI.MaxConcurrent)

	assert.Equal(t, 500*time.Millisecond, cfg.Sync.RequestDelay)

	assert.Equal(t, 3, cfg.Verification.BatchSize)
	assert.Equal(t, []string{"US", "UK", "DE"}, cfg.Verification.PriorityMarkets)
	assert.Equal(t, "marketplace_id", cfg.Verification.RestrictedField)
	assert.Equal(t, time.Hour, cfg.Verification.SchemaCacheTTL)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("LISTINGAI_AI_API_KEY", "test-key")
	t.Setenv("LISTINGAI_SERVER_PORT", "9090")
	t.Setenv("LISTINGAI_VERIFICATION_BATCH_SIZE", "5")
	t.Setenv("LISTINGAI_AI_REQUESTS_PER_MINUTE", "60")
	t.Setenv("LISTINGAI_SYNC_REQUEST_DELAY", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Verification.BatchSize)
	assert.Equal(t, 60, cfg.AI.RequestsPerMinute)
	assert.Equal(t, 2*time.Second, cfg.Sync.RequestDelay)
}

func TestLoad_RequiresAPIKey(t *testing.T) {
	t.Setenv("LISTINGAI_AI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestLoad_RejectsInvalidBatchSize(t *testing.T) {
	t.Setenv("LISTINGAI_AI_API_KEY", "test-key")
	t.Setenv("LISTINGAI_VERIFICATION_BATCH_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch size")
}

func TestLoad_RejectsInvalidMaxConcurrent(t *testing.T) {
	t.Setenv("LISTINGAI_AI_API_KEY", "test-key")
	t.Setenv("LISTINGAI_AI_MAX_CONCURRENT", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent")
}
