package loginattempts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chrishksang/sessionkeeper/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Record(ctx context.Context, email, ipAddress string, at time.Time) error {
	query := `
		INSERT INTO login_attempts (email, ip_address, attempted_at)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, email, ipAddress, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountSince(ctx context.Context, email, ipAddress string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM login_attempts
		WHERE (email = $1 OR ip_address = $2) AND attempted_at > $3
	`
	var n int64
	if err := r.db.QueryRowContext(ctx, query, email, ipAddress, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) LatestSince(ctx context.Context, email, ipAddress string, since time.Time) (time.Time, error) {
	query := `
		SELECT attempted_at
		FROM login_attempts
		WHERE (email = $1 OR ip_address = $2) AND attempted_at > $3
		ORDER BY attempted_at DESC
		LIMIT 1
	`
	var at time.Time
	if err := r.db.QueryRowContext(ctx, query, email, ipAddress, since).Scan(&at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("db error: %w", err)
	}
	return at, nil
}

func (r *PostgresRepository) ClearForEmail(ctx context.Context, email string) error {
	query := `
		DELETE FROM login_attempts
		WHERE email = $1
	`
	if _, err := r.db.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM login_attempts
		WHERE attempted_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
