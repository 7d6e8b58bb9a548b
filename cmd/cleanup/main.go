// Command cleanup runs one maintenance sweep and exits. Intended for cron
// setups that prefer an external scheduler over the in-process ticker.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/chrishksang/sessionkeeper/internal/logging"
	"github.com/chrishksang/sessionkeeper/internal/server/config"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/repomanager"
	"github.com/chrishksang/sessionkeeper/internal/server/services"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stdout)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	maintenance := services.NewMaintenanceService(db, rm, cfg, logger)

	tokens, attempts, err := maintenance.Sweep(ctx)
	if err != nil {
		log.Fatalf("sweep error: %v", err)
	}
	logger.Info(ctx, "cleanup finished", "tokens_deleted", tokens, "attempts_deleted", attempts)
}
