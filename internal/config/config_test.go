package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 14*24*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.Auth.ExpiryWarning)
	assert.Equal(t, "refresh", cfg.Auth.RefreshCookieName)
	assert.True(t, cfg.Auth.RefreshCookieSecure)
	assert.False(t, cfg.Auth.RotationCAS)
	assert.Equal(t, 500*time.Millisecond, cfg.Redis.OpTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL", "15m")
	t.Setenv("AUTH_REFRESH_TOKEN_TTL", "72h")
	t.Setenv("AUTH_REFRESH_ROTATION_CAS", "true")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 72*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.True(t, cfg.Auth.RotationCAS)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("AUTH_REFRESH_TOKEN_TTL", "two weeks")

	_, err := Load()
	assert.ErrorContains(t, err, "AUTH_REFRESH_TOKEN_TTL")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			App:   AppConfig{Env: "production"},
			Redis: RedisConfig{OpTimeout: time.Second},
			Auth: AuthConfig{
				JWTSecret:       "0123456789abcdef0123456789abcdef",
				AccessTokenTTL:  time.Hour,
				RefreshTokenTTL: 24 * time.Hour,
			},
		}
	}

	assert.NoError(t, base().Validate())

	short := base()
	short.Auth.JWTSecret = "dev-secret"
	assert.Error(t, short.Validate())

	short.App.Env = "development"
	assert.NoError(t, short.Validate())

	zeroTTL := base()
	zeroTTL.Auth.RefreshTokenTTL = 0
	assert.Error(t, zeroTTL.Validate())
}
