package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 30*time.Minute, cfg.PreTenantTokenTTL)
	assert.Equal(t, 8*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.TenantCacheTTL)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("GRIDBASE_TEST_KEY", "set")
	assert.Equal(t, "set", GetEnv("GRIDBASE_TEST_KEY", "default"))
	assert.Equal(t, "default", GetEnv("GRIDBASE_TEST_MISSING", "default"))
}

func TestGetEnvMinutes(t *testing.T) {
	t.Setenv("GRIDBASE_TEST_TTL", "15")
	assert.Equal(t, 15*time.Minute, GetEnvMinutes("GRIDBASE_TEST_TTL", 5))

	t.Setenv("GRIDBASE_TEST_TTL_BAD", "nope")
	assert.Equal(t, 5*time.Minute, GetEnvMinutes("GRIDBASE_TEST_TTL_BAD", 5))

	t.Setenv("GRIDBASE_TEST_TTL_NEG", "-3")
	assert.Equal(t, 5*time.Minute, GetEnvMinutes("GRIDBASE_TEST_TTL_NEG", 5))
}
