package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsmart/authcore/pkg/config"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load[Config](config.WithEnvironment(map[string]string{
		"DATABASE_URL": "postgres://localhost/authcore",
		"JWT_SECRET":   "0123456789abcdef0123456789abcdef",
	}))
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, "http://localhost:5173", cfg.Account.FrontendURL)
	assert.True(t, cfg.Account.Cookie.Secure)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Passkey.RPOrigins)
	assert.Equal(t, "https://accounts.google.com", cfg.Google.IssuerURL)
	assert.False(t, cfg.Google.Enabled())
	assert.False(t, cfg.needsRedis())
	assert.Empty(t, cfg.ClientIP.TrustedHeaders)
}

func TestConfigTrustedIPHeaders(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load[Config](config.WithEnvironment(map[string]string{
		"DATABASE_URL":       "postgres://localhost/authcore",
		"JWT_SECRET":         "0123456789abcdef0123456789abcdef",
		"TRUSTED_IP_HEADERS": "X-Forwarded-For,X-Real-IP",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"X-Forwarded-For", "X-Real-IP"}, cfg.ClientIP.TrustedHeaders)
}

func TestConfigRequiresSecrets(t *testing.T) {
	t.Parallel()

	_, err := config.Load[Config](config.WithEnvironment(map[string]string{}))
	assert.Error(t, err)
}

func TestConfigRedisBackends(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load[Config](config.WithEnvironment(map[string]string{
		"DATABASE_URL":       "postgres://localhost/authcore",
		"JWT_SECRET":         "0123456789abcdef0123456789abcdef",
		"RATE_LIMIT_BACKEND": "redis",
		"RP_ORIGIN":          "https://app.logsmart.io,https://admin.logsmart.io",
	}))
	require.NoError(t, err)
	assert.True(t, cfg.needsRedis())
	assert.Len(t, cfg.Passkey.RPOrigins, 2)
}
