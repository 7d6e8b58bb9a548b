package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"

	"github.com/chrishksang/sessionkeeper/internal/server/repositories/loginattempts"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/tokens"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/users"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestManagers_SatisfyInterface(t *testing.T) {
	var _ RepositoryManager = NewPostgresRepositoryManager()
	var _ RepositoryManager = NewMemoryRepositoryManager()
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db := newDB(t)
	m := NewPostgresRepositoryManager()

	var _ users.Repository = m.Users(db)
	var _ tokens.Repository = m.Tokens(db)
	var _ loginattempts.Repository = m.LoginAttempts(db)

	if m.Users(db) == nil || m.Tokens(db) == nil || m.LoginAttempts(db) == nil {
		t.Fatal("factory returned nil repository")
	}
}

func TestRunMigrations_Success(t *testing.T) {
	db := newDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := NewPostgresRepositoryManager()
	if err := m.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db := newDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := NewPostgresRepositoryManager()
	if err := m.RunMigrations(context.Background(), db); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}
