package loginattempts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestRecord(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+login_attempts\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*$`

	at := time.Now()
	mock.ExpectExec(q).
		WithArgs("a@b.cc", "10.0.0.1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Record(context.Background(), "a@b.cc", "10.0.0.1", at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCountSince(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+COUNT\(\*\)\s+FROM\s+login_attempts\s+WHERE\s+\(email\s*=\s*\$1\s+OR\s+ip_address\s*=\s*\$2\)\s+AND\s+attempted_at\s*>\s*\$3\s*$`

	since := time.Now().Add(-15 * time.Minute)
	mock.ExpectQuery(q).
		WithArgs("a@b.cc", "10.0.0.1", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	n, err := repo.CountSince(context.Background(), "a@b.cc", "10.0.0.1", since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("want 3, got %d", n)
	}
}

func TestLatestSince_NoRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+attempted_at\s+FROM\s+login_attempts\b`

	mock.ExpectQuery(q).
		WithArgs("a@b.cc", "10.0.0.1", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	at, err := repo.LatestSince(context.Background(), "a@b.cc", "10.0.0.1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !at.IsZero() {
		t.Fatalf("want zero time, got %v", at)
	}
}

func TestClearForEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+login_attempts\s+WHERE\s+email\s*=\s*\$1\s*$`

	mock.ExpectExec(q).
		WithArgs("a@b.cc").
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.ClearForEmail(context.Background(), "a@b.cc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteBefore(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+login_attempts\s+WHERE\s+attempted_at\s*<\s*\$1\s*$`

	mock.ExpectExec(q).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteBefore(context.Background(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Fatalf("want 4 deleted, got %d", n)
	}
}

func TestDeleteBefore_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+login_attempts\b`

	mock.ExpectExec(q).
		WithArgs(sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	_, err := repo.DeleteBefore(context.Background(), time.Now())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
