// Package tokens declares the server-side repository contract for durable
// remember-me token records.
package tokens

import (
	"context"
	"time"

	"github.com/chrishksang/sessionkeeper/internal/server/models"
)

// Repository defines CRUD plus the conditional rotation update over
// remember-me token records.
type Repository interface {
	// Create persists a new token record and fills in its storage ID.
	Create(ctx context.Context, token *models.RememberToken) error

	// FindBySeries looks up a record by its unique series value.
	// Returns common.ErrorNotFound when the series is absent.
	FindBySeries(ctx context.Context, series string) (*models.RememberToken, error)

	// Rotate atomically replaces the token hash, escrow blob, and lifecycle
	// timestamps of the record identified by series, but only if the stored
	// hash still equals oldHash. It reports whether a row was updated; false
	// means a concurrent rotation won the race and the caller must treat the
	// presented token as spent.
	Rotate(ctx context.Context, series, oldHash, newHash string, encryptedKey []byte, lastUsedAt, expiresAt time.Time) (bool, error)

	// DeleteBySeries removes one record. Deleting a non-existent series is
	// not an error.
	DeleteBySeries(ctx context.Context, series string) error

	// DeleteAllForUser removes every record belonging to userID.
	DeleteAllForUser(ctx context.Context, userID int64) error

	// ListActiveForUser returns the user's unexpired records ordered by
	// last_used_at descending (never-used records last).
	ListActiveForUser(ctx context.Context, userID int64, now time.Time) ([]*models.RememberToken, error)

	// DeleteExpired removes all records expired as of now and returns the
	// number of rows deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
