package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name     string
		args     []string
		expected *Config
	}{
		{
			name: "all flags set",
			args: []string{"cmd",
				"-a", "127.0.0.1:9090", "-d", "db", "-r", "redis:6379",
				"-t", "168", "-m", "12", "-i", "30",
			},
			expected: &Config{
				EndpointAddrHTTP:      "127.0.0.1:9090",
				DatabaseDSN:           "db",
				RedisAddr:             "redis:6379",
				TokenValidityDuration: 168 * time.Hour,
				SessionMaxAge:         12 * time.Hour,
				CleanupInterval:       30 * time.Minute,
			},
		},
		{
			name: "no flags keeps existing values",
			args: []string{"cmd"},
			expected: &Config{
				EndpointAddrHTTP:      ":8080",
				DatabaseDSN:           "dsn",
				RedisAddr:             "r:6379",
				TokenValidityDuration: 2 * time.Hour,
				SessionMaxAge:         3 * time.Hour,
				CleanupInterval:       60 * time.Minute,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{
				EndpointAddrHTTP:      ":8080",
				DatabaseDSN:           "dsn",
				RedisAddr:             "r:6379",
				TokenValidityDuration: 2 * time.Hour,
				SessionMaxAge:         3 * time.Hour,
				CleanupInterval:       60 * time.Minute,
			}
			require.NotPanics(t, func() { parseFlags(config) })
			assert.Equal(t, tt.expected, config)
		})
	}
}
