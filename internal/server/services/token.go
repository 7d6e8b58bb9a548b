// Package services contains server-side business logic. This file implements
// TokenService, the lifecycle manager for remember-me tokens: issuing,
// validating, rotating, and revoking, including the theft response.
package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/chrishksang/sessionkeeper/internal/common"
	"github.com/chrishksang/sessionkeeper/internal/cryptox"
	"github.com/chrishksang/sessionkeeper/internal/logging"
	"github.com/chrishksang/sessionkeeper/internal/server/config"
	"github.com/chrishksang/sessionkeeper/internal/server/metrics"
	"github.com/chrishksang/sessionkeeper/internal/server/models"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/repomanager"
)

// randEntropyBytes is the entropy of the series and raw token values.
// Hex-encoded this yields 64-character strings.
const randEntropyBytes = 32

// IssuedToken is the result of creating a remember-me token. RawToken is the
// only copy of the unhashed secret; it exists solely to build the cookie.
type IssuedToken struct {
	Series    string
	RawToken  string
	ExpiresAt time.Time
}

// RotationResult is the outcome of a successful validate-and-rotate call.
// EscrowKey is nil when no escrow payload was stored or it could not be
// recovered.
type RotationResult struct {
	UserID      int64
	NewRawToken string
	ExpiresAt   time.Time
	EscrowKey   []byte
}

// TokenService implements the remember-me token protocol.
type TokenService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	logger   logging.Logger
	validity time.Duration

	// now is a seam for tests.
	now func() time.Time
}

// NewTokenService constructs a TokenService using repositories and server config.
func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *TokenService {
	return &TokenService{
		db:       db,
		repos:    m,
		logger:   logger,
		validity: cfg.TokenValidityDuration,
		now:      time.Now,
	}
}

// Issue creates a new remember-me token for userID. Series and raw token are
// independent 256-bit random values; only the bcrypt hash of the raw token is
// persisted. When escrowKey is non-empty it is encrypted under a key derived
// from the raw token and stored alongside the hash.
func (s *TokenService) Issue(ctx context.Context, userID int64, userAgent, ipAddress string, escrowKey []byte) (*IssuedToken, error) {
	series, err := common.MakeRandHexString(randEntropyBytes)
	if err != nil {
		return nil, common.ErrorInternal
	}
	rawToken, err := common.MakeRandHexString(randEntropyBytes)
	if err != nil {
		return nil, common.ErrorInternal
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawToken), bcrypt.DefaultCost)
	if err != nil {
		return nil, common.ErrorInternal
	}

	var encrypted []byte
	if len(escrowKey) > 0 {
		encrypted, err = cryptox.EncryptEscrow(escrowKey, rawToken)
		if err != nil {
			return nil, common.ErrorInternal
		}
	}

	now := s.now()
	token := &models.RememberToken{
		UserID:       userID,
		Series:       series,
		TokenHash:    string(hash),
		EncryptedKey: encrypted,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.validity),
		UserAgent:    userAgent,
		IPAddress:    ipAddress,
	}
	if err := s.repos.Tokens(s.db).Create(ctx, token); err != nil {
		return nil, fmt.Errorf("error creating remember token: %w", err)
	}

	metrics.TokensIssued.Inc()
	return &IssuedToken{Series: series, RawToken: rawToken, ExpiresAt: token.ExpiresAt}, nil
}

// ValidateAndRotate implements the four-outcome state machine around a
// presented series/token pair:
//
//  1. unknown series           -> ErrInvalidToken
//  2. expired record           -> record deleted, ErrTokenExpired
//  3. series valid, hash wrong -> theft signal: every token of the owning
//     user is revoked, ErrInvalidToken
//  4. hash verifies            -> escrow recovered (best effort), new raw
//     token minted, record rotated via conditional update
//
// A conditional update that matches zero rows means a concurrent request
// rotated the record after our read; the presented token is spent, but this
// is not treated as theft.
func (s *TokenService) ValidateAndRotate(ctx context.Context, series, rawToken, userAgent, ipAddress string) (*RotationResult, error) {
	repo := s.repos.Tokens(s.db)

	token, err := repo.FindBySeries(ctx, series)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			metrics.RotationTotal.WithLabelValues("not_found").Inc()
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error searching remember token: %w", err)
	}

	now := s.now()
	if token.Expired(now) {
		if err := repo.DeleteBySeries(ctx, series); err != nil {
			return nil, fmt.Errorf("error deleting expired token: %w", err)
		}
		metrics.RotationTotal.WithLabelValues("expired").Inc()
		return nil, common.ErrTokenExpired
	}

	if bcrypt.CompareHashAndPassword([]byte(token.TokenHash), []byte(rawToken)) != nil {
		// A known series with a wrong secret means the cookie was copied and
		// one of the holders already rotated it. Contain the blast radius by
		// revoking every token the user has.
		metrics.TheftSignals.Inc()
		s.logger.Warn(ctx, "remember-me theft signal, revoking all user tokens",
			"user_id", token.UserID, "series", series, "ip", ipAddress)
		if err := repo.DeleteAllForUser(ctx, token.UserID); err != nil {
			return nil, fmt.Errorf("error revoking user tokens: %w", err)
		}
		return nil, common.ErrInvalidToken
	}

	// Escrow recovery is best effort: a corrupt blob must not block
	// re-authentication.
	var escrowKey []byte
	if len(token.EncryptedKey) > 0 {
		escrowKey, err = cryptox.DecryptEscrow(token.EncryptedKey, rawToken)
		if err != nil {
			s.logger.Warn(ctx, "escrow key unrecoverable, continuing without it",
				"user_id", token.UserID, "series", series, "error", err.Error())
			escrowKey = nil
		}
	}

	newRawToken, err := common.MakeRandHexString(randEntropyBytes)
	if err != nil {
		return nil, common.ErrorInternal
	}
	newHash, err := bcrypt.GenerateFromPassword([]byte(newRawToken), bcrypt.DefaultCost)
	if err != nil {
		return nil, common.ErrorInternal
	}
	var newEncrypted []byte
	if escrowKey != nil {
		newEncrypted, err = cryptox.EncryptEscrow(escrowKey, newRawToken)
		if err != nil {
			return nil, common.ErrorInternal
		}
	}

	expiresAt := now.Add(s.validity)
	rotated, err := repo.Rotate(ctx, series, token.TokenHash, string(newHash), newEncrypted, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("error rotating remember token: %w", err)
	}
	if !rotated {
		metrics.RotationTotal.WithLabelValues("lost_race").Inc()
		return nil, common.ErrInvalidToken
	}

	metrics.RotationTotal.WithLabelValues("rotated").Inc()
	return &RotationResult{
		UserID:      token.UserID,
		NewRawToken: newRawToken,
		ExpiresAt:   expiresAt,
		EscrowKey:   escrowKey,
	}, nil
}

// RevokeBySeries removes one token record. Revoking an unknown series is a no-op.
func (s *TokenService) RevokeBySeries(ctx context.Context, series string) error {
	return s.repos.Tokens(s.db).DeleteBySeries(ctx, series)
}

// RevokeAllForUser removes every token record belonging to userID.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID int64) error {
	return s.repos.Tokens(s.db).DeleteAllForUser(ctx, userID)
}

// ListActiveForUser returns the user's unexpired tokens, most recently used
// first, for session-list display.
func (s *TokenService) ListActiveForUser(ctx context.Context, userID int64) ([]*models.RememberToken, error) {
	return s.repos.Tokens(s.db).ListActiveForUser(ctx, userID, s.now())
}

// CleanupExpired removes all expired token records and returns how many were
// deleted. Intended for periodic invocation.
func (s *TokenService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.repos.Tokens(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	metrics.TokensCleaned.Add(float64(n))
	return n, nil
}

// FormatCookie encodes a series/raw-token pair into the public cookie value:
// base64(series ":" raw_token).
func (s *TokenService) FormatCookie(series, rawToken string) string {
	return base64.StdEncoding.EncodeToString([]byte(series + ":" + rawToken))
}

// ParseCookie is the inverse of FormatCookie. Any malformed value (bad
// base64, missing delimiter, empty part) yields ErrInvalidToken; it never
// panics and never touches storage.
func (s *TokenService) ParseCookie(value string) (series, rawToken string, err error) {
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", "", common.ErrInvalidToken
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", common.ErrInvalidToken
	}
	return parts[0], parts[1], nil
}
