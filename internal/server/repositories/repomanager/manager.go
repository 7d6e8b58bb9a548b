// Package repomanager wires repository constructors together behind a single
// interface so services can obtain repositories bound to either a *sql.DB or
// an in-flight transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/chrishksang/sessionkeeper/internal/dbx"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/loginattempts"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/tokens"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to the provided
// DBTX and exposes a schema migration hook.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Tokens(db dbx.DBTX) tokens.Repository
	LoginAttempts(db dbx.DBTX) loginattempts.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
