// Package users declares the repository contract for user accounts.
package users

import (
	"context"

	"github.com/chrishksang/sessionkeeper/internal/server/models"
)

// Repository defines persistence operations over user accounts.
type Repository interface {
	// Create stores a new user and fills in its storage ID.
	// A duplicate email yields common.ErrEmailTaken.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail returns the user with the given email, or common.ErrorNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID returns the user with the given ID, or common.ErrorNotFound.
	GetByID(ctx context.Context, id int64) (*models.User, error)
}
