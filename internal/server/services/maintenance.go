// This file implements MaintenanceService, the periodic sweep over expired
// remember-me tokens and stale login-attempt rows.
package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/chrishksang/sessionkeeper/internal/dbx"
	"github.com/chrishksang/sessionkeeper/internal/logging"
	"github.com/chrishksang/sessionkeeper/internal/server/config"
	"github.com/chrishksang/sessionkeeper/internal/server/metrics"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/repomanager"
)

// MaintenanceService removes rows no decision depends on anymore. It is
// driven by the in-process ticker in the server and by the one-shot cleanup
// binary for cron setups.
type MaintenanceService struct {
	db            *sql.DB
	repos         repomanager.RepositoryManager
	logger        logging.Logger
	attemptMaxAge time.Duration

	now func() time.Time
}

func NewMaintenanceService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *MaintenanceService {
	return &MaintenanceService{
		db:            db,
		repos:         m,
		logger:        logger,
		attemptMaxAge: cfg.LoginAttemptWindow + cfg.LockoutDuration,
		now:           time.Now,
	}
}

// Sweep deletes expired token records and login attempts older than the
// lockout horizon inside one transaction, and returns both counts.
func (s *MaintenanceService) Sweep(ctx context.Context) (tokensDeleted, attemptsDeleted int64, err error) {
	now := s.now()
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var txErr error
		tokensDeleted, txErr = s.repos.Tokens(tx).DeleteExpired(ctx, now)
		if txErr != nil {
			return txErr
		}
		attemptsDeleted, txErr = s.repos.LoginAttempts(tx).DeleteBefore(ctx, now.Add(-s.attemptMaxAge))
		return txErr
	})
	if err != nil {
		return 0, 0, err
	}

	metrics.TokensCleaned.Add(float64(tokensDeleted))
	if tokensDeleted > 0 || attemptsDeleted > 0 {
		s.logger.Info(ctx, "maintenance sweep",
			"tokens_deleted", tokensDeleted, "attempts_deleted", attemptsDeleted)
	}
	return tokensDeleted, attemptsDeleted, nil
}

// RunPeriodic runs Sweep every interval until ctx is cancelled.
func (s *MaintenanceService) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := s.Sweep(ctx); err != nil {
				s.logger.Error(ctx, "maintenance sweep failed", "error", err.Error())
			}
		}
	}
}
