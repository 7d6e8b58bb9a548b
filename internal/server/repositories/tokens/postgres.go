// Package tokens provides a PostgreSQL-backed repository for remember-me
// token records used in the cookie re-authentication flow.
package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chrishksang/sessionkeeper/internal/common"
	"github.com/chrishksang/sessionkeeper/internal/dbx"
	"github.com/chrishksang/sessionkeeper/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.RememberToken) error {
	query := `
		INSERT INTO remember_tokens (user_id, series, token_hash, encrypted_key, created_at, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query,
		token.UserID, token.Series, token.TokenHash, token.EncryptedKey,
		token.CreatedAt, token.ExpiresAt, token.UserAgent, token.IPAddress,
	).Scan(&token.ID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindBySeries(ctx context.Context, series string) (*models.RememberToken, error) {
	query := `
		SELECT id, user_id, series, token_hash, encrypted_key, created_at, expires_at, last_used_at, user_agent, ip_address
		FROM remember_tokens
		WHERE series = $1
	`
	token := &models.RememberToken{}
	var lastUsed sql.NullTime
	var userAgent, ipAddress sql.NullString
	if err := r.db.QueryRowContext(ctx, query, series).Scan(
		&token.ID, &token.UserID, &token.Series, &token.TokenHash, &token.EncryptedKey,
		&token.CreatedAt, &token.ExpiresAt, &lastUsed, &userAgent, &ipAddress,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if lastUsed.Valid {
		token.LastUsedAt = &lastUsed.Time
	}
	token.UserAgent = userAgent.String
	token.IPAddress = ipAddress.String
	return token, nil
}

// Rotate performs the conditional hash swap. The WHERE clause pins the update
// to the hash observed at read time, so two requests racing with the same
// cookie cannot both rotate: the loser matches zero rows.
func (r *PostgresRepository) Rotate(ctx context.Context, series, oldHash, newHash string, encryptedKey []byte, lastUsedAt, expiresAt time.Time) (bool, error) {
	query := `
		UPDATE remember_tokens
		SET token_hash = $3, encrypted_key = $4, last_used_at = $5, expires_at = $6
		WHERE series = $1 AND token_hash = $2
	`
	res, err := r.db.ExecContext(ctx, query, series, oldHash, newHash, encryptedKey, lastUsedAt, expiresAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) DeleteBySeries(ctx context.Context, series string) error {
	query := `
		DELETE FROM remember_tokens
		WHERE series = $1
	`
	if _, err := r.db.ExecContext(ctx, query, series); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID int64) error {
	query := `
		DELETE FROM remember_tokens
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListActiveForUser(ctx context.Context, userID int64, now time.Time) ([]*models.RememberToken, error) {
	query := `
		SELECT id, user_id, series, token_hash, encrypted_key, created_at, expires_at, last_used_at, user_agent, ip_address
		FROM remember_tokens
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY last_used_at DESC NULLS LAST
	`
	rows, err := r.db.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.RememberToken
	for rows.Next() {
		token := &models.RememberToken{}
		var lastUsed sql.NullTime
		var userAgent, ipAddress sql.NullString
		if err := rows.Scan(
			&token.ID, &token.UserID, &token.Series, &token.TokenHash, &token.EncryptedKey,
			&token.CreatedAt, &token.ExpiresAt, &lastUsed, &userAgent, &ipAddress,
		); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if lastUsed.Valid {
			token.LastUsedAt = &lastUsed.Time
		}
		token.UserAgent = userAgent.String
		token.IPAddress = ipAddress.String
		result = append(result, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM remember_tokens
		WHERE expires_at <= $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
