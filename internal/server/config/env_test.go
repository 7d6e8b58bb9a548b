package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_parseEnv(t *testing.T) {
	t.Setenv("SK_HTTP_ADDR", ":9999")
	t.Setenv("SK_DATABASE_DSN", "postgres://env/sk")
	t.Setenv("SK_REDIS_ADDR", "env-redis:6379")
	t.Setenv("SK_TOKEN_VALIDITY", "168h")
	t.Setenv("SK_SESSION_MAX_AGE", "8h")
	t.Setenv("SK_COOKIE_SECURE", "false")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, ":9999", cfg.EndpointAddrHTTP)
	assert.Equal(t, "postgres://env/sk", cfg.DatabaseDSN)
	assert.Equal(t, "env-redis:6379", cfg.RedisAddr)
	assert.Equal(t, 168*time.Hour, cfg.TokenValidityDuration)
	assert.Equal(t, 8*time.Hour, cfg.SessionMaxAge)
	assert.False(t, cfg.CookieSecure)
}

func Test_parseEnv_IgnoresInvalidValues(t *testing.T) {
	t.Setenv("SK_TOKEN_VALIDITY", "not-a-duration")
	t.Setenv("SK_COOKIE_SECURE", "not-a-bool")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, 30*24*time.Hour, cfg.TokenValidityDuration)
	assert.True(t, cfg.CookieSecure)
}
