// Package loginattempts declares the repository contract for the failed
// password-login records that back the lockout policy.
package loginattempts

import (
	"context"
	"time"
)

// Repository tracks failed login attempts per email and source address.
type Repository interface {
	// Record stores one failed attempt.
	Record(ctx context.Context, email, ipAddress string, at time.Time) error

	// CountSince returns the number of failed attempts for the email or the
	// address since the given instant.
	CountSince(ctx context.Context, email, ipAddress string, since time.Time) (int64, error)

	// LatestSince returns the time of the most recent failed attempt for the
	// email or the address since the given instant, or the zero time when
	// there is none.
	LatestSince(ctx context.Context, email, ipAddress string, since time.Time) (time.Time, error)

	// ClearForEmail removes all attempts recorded for the email, called on
	// successful login.
	ClearForEmail(ctx context.Context, email string) error

	// DeleteBefore purges attempts older than the cutoff and returns the
	// number of rows deleted.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
