package config

import (
	"encoding/json"
	"os"

	"github.com/chrishksang/sessionkeeper/internal/flagx"
	"github.com/chrishksang/sessionkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "24h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP      string         `json:"endpoint_addr_http"`
	DatabaseDSN           string         `json:"database_dsn"`
	RedisAddr             string         `json:"redis_addr"`
	RedisPassword         string         `json:"redis_password"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	SessionMaxAge         timex.Duration `json:"session_max_age"`
	LoginMaxAttempts      int64          `json:"login_max_attempts"`
	LoginAttemptWindow    timex.Duration `json:"login_attempt_window"`
	LockoutDuration       timex.Duration `json:"lockout_duration"`
	CleanupInterval       timex.Duration `json:"cleanup_interval"`
	CookieSecure          *bool          `json:"cookie_secure"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags; when neither
// is set, no JSON file is loaded. If the file cannot be read or contains
// invalid JSON, the function panics: a requested but broken config file is a
// deployment error that must not be silently ignored.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	if c.EndpointAddrHTTP != "" {
		config.EndpointAddrHTTP = c.EndpointAddrHTTP
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.RedisAddr != "" {
		config.RedisAddr = c.RedisAddr
	}
	if c.RedisPassword != "" {
		config.RedisPassword = c.RedisPassword
	}
	if c.TokenValidityDuration.Duration != 0 {
		config.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	if c.SessionMaxAge.Duration != 0 {
		config.SessionMaxAge = c.SessionMaxAge.Duration
	}
	if c.LoginMaxAttempts != 0 {
		config.LoginMaxAttempts = c.LoginMaxAttempts
	}
	if c.LoginAttemptWindow.Duration != 0 {
		config.LoginAttemptWindow = c.LoginAttemptWindow.Duration
	}
	if c.LockoutDuration.Duration != 0 {
		config.LockoutDuration = c.LockoutDuration.Duration
	}
	if c.CleanupInterval.Duration != 0 {
		config.CleanupInterval = c.CleanupInterval.Duration
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
}
