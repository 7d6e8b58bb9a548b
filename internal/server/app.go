// Package server initializes and runs the main application server. It
// configures the database and session store, runs migrations, handles
// graceful shutdown, and starts the HTTP endpoint together with the
// periodic maintenance sweep.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/chrishksang/sessionkeeper/internal/logging"
	"github.com/chrishksang/sessionkeeper/internal/server/config"
	"github.com/chrishksang/sessionkeeper/internal/server/httpapi"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/repomanager"
	"github.com/chrishksang/sessionkeeper/internal/server/services"
	"github.com/chrishksang/sessionkeeper/internal/server/sessions"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	httpServer  *httpapi.Server
	maintenance *services.MaintenanceService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	store := sessions.NewRedisStore(redisClient, cfg.SessionMaxAge)

	tokenService := services.NewTokenService(db, rm, cfg, logger)
	sessionService := services.NewSessionService(db, rm, tokenService, cfg, logger)
	maintenance := services.NewMaintenanceService(db, rm, cfg, logger)

	httpServer := httpapi.NewServer(cfg, logger, store, sessionService)

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		httpServer:  httpServer,
		maintenance: maintenance,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddrHTTP)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.maintenance.RunPeriodic(ctx, app.config.CleanupInterval)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
}
