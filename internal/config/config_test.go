package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsPortWhenUnset(t *testing.T) {
	os.Unsetenv("PORT")
	cfg, err := Load(false)
	require.NoError(t, err)
	assert.Equal(t, defaultPort, cfg.Port)
}

func TestLoadReadsPortFromEnv(t *testing.T) {
	t.Setenv("PORT", "4000")
	cfg, err := Load(false)
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
}

func TestLoadFailsFastInProductionWithoutAPIKey(t *testing.T) {
	os.Unsetenv("LLM_API_KEY")
	_, err := Load(true)
	require.Error(t, err)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadAcceptsAPIKeyFromEnv(t *testing.T) {
	t.Setenv("LLM_API_KEY", "secret-key")
	cfg, err := Load(true)
	require.NoError(t, err)
	assert.Equal(t, "secret-key", cfg.LLMAPIKey)
	assert.False(t, cfg.TestMode)
}

func TestLoadDefaultsAuditRetentionDays(t *testing.T) {
	os.Unsetenv("AUDIT_RETENTION_DAYS")
	cfg, err := Load(false)
	require.NoError(t, err)
	assert.Equal(t, defaultAuditRetentionDays, cfg.AuditRetentionDays)
}

func TestLoadS3ConfigDisabledWithoutEndpoint(t *testing.T) {
	os.Unsetenv("ARTIFACT_S3_ENDPOINT")
	cfg, err := Load(false)
	require.NoError(t, err)
	assert.False(t, cfg.S3.Enabled)
}
