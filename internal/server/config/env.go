package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables. A .env file in
// the working directory is loaded first when present; existing process
// variables take precedence over the file.
//
// Recognized variables:
//
//	SK_HTTP_ADDR, SK_DATABASE_DSN, SK_REDIS_ADDR, SK_REDIS_PASSWORD,
//	SK_TOKEN_VALIDITY, SK_SESSION_MAX_AGE, SK_COOKIE_SECURE
//
// Duration values use time.ParseDuration syntax ("720h", "24h").
func parseEnv(config *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("SK_HTTP_ADDR"); v != "" {
		config.EndpointAddrHTTP = v
	}
	if v := os.Getenv("SK_DATABASE_DSN"); v != "" {
		config.DatabaseDSN = v
	}
	if v := os.Getenv("SK_REDIS_ADDR"); v != "" {
		config.RedisAddr = v
	}
	if v := os.Getenv("SK_REDIS_PASSWORD"); v != "" {
		config.RedisPassword = v
	}
	if v := os.Getenv("SK_TOKEN_VALIDITY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.TokenValidityDuration = d
		}
	}
	if v := os.Getenv("SK_SESSION_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.SessionMaxAge = d
		}
	}
	if v := os.Getenv("SK_COOKIE_SECURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.CookieSecure = b
		}
	}
}
