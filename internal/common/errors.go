// Package common defines shared constants and sentinel errors used across
// the sessionkeeper components. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed credential).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// Login throttling.
	ErrRateLimited = errors.New("too many login attempts")

	// Registration.
	ErrEmailTaken = errors.New("email already registered")
)
