package config

import (
	"flag"
	"os"
	"time"

	"github.com/chrishksang/sessionkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-r string   Redis address (host:port)
//	-t int      remember-me token validity, hours
//	-m int      session max age, hours
//	-i int      cleanup interval, minutes
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers and then converted to
//     time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-r", "-t", "-m", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")

	tokenValidityHours := fs.Int("t", int(config.TokenValidityDuration.Hours()), "token_validity_duration (in hours)")
	sessionMaxAgeHours := fs.Int("m", int(config.SessionMaxAge.Hours()), "session_max_age (in hours)")
	cleanupIntervalMinutes := fs.Int("i", int(config.CleanupInterval.Minutes()), "cleanup_interval (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidityHours) * time.Hour
	config.SessionMaxAge = time.Duration(*sessionMaxAgeHours) * time.Hour
	config.CleanupInterval = time.Duration(*cleanupIntervalMinutes) * time.Minute
}
