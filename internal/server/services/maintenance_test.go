package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrishksang/sessionkeeper/internal/server/repositories/repomanager"
)

func newMaintenanceWithMock(t *testing.T) (*MaintenanceService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	svc := NewMaintenanceService(db, repomanager.NewPostgresRepositoryManager(), testConfig(), testLogger())
	return svc, mock
}

func TestSweep_DeletesInOneTransaction(t *testing.T) {
	svc, mock := newMaintenanceWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+remember_tokens\s+WHERE\s+expires_at\s*<=\s*\$1\s*$`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+login_attempts\s+WHERE\s+attempted_at\s*<\s*\$1\s*$`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tokensDeleted, attemptsDeleted, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), tokensDeleted)
	assert.Equal(t, int64(2), attemptsDeleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSweep_RollsBackOnError(t *testing.T) {
	svc, mock := newMaintenanceWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+remember_tokens\b`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	_, _, err := svc.Sweep(context.Background())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
