// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/chrishksang/sessionkeeper/internal/dbx"
	"github.com/chrishksang/sessionkeeper/internal/server/migrations"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/loginattempts"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/tokens"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/users"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// Tokens returns a tokens.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Tokens(db dbx.DBTX) tokens.Repository {
	return tokens.NewPostgresRepository(db)
}

// LoginAttempts returns a loginattempts.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) LoginAttempts(db dbx.DBTX) loginattempts.Repository {
	return loginattempts.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
