// Package httpapi exposes the authentication operations over HTTP. It owns
// the gin router, the session-loading middleware, and the cookie adapter
// handed to the session service.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chrishksang/sessionkeeper/internal/logging"
	"github.com/chrishksang/sessionkeeper/internal/server/config"
	"github.com/chrishksang/sessionkeeper/internal/server/services"
	"github.com/chrishksang/sessionkeeper/internal/server/sessions"
)

// Server wires the session service to HTTP routes.
type Server struct {
	cfg      *config.Config
	logger   logging.Logger
	sessions sessions.Store
	svc      *services.SessionService
	engine   *gin.Engine
}

// NewServer builds the router and returns a ready-to-run server.
func NewServer(cfg *config.Config, logger logging.Logger, store sessions.Store, svc *services.SessionService) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		sessions: store,
		svc:      svc,
		engine:   gin.New(),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(s.requestLogger())

	s.engine.GET("/healthz", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api/v1/auth")
	api.Use(s.sessionMiddleware())
	{
		api.POST("/register", s.register)
		api.POST("/login", s.login)
		api.POST("/logout", s.logout)
		api.GET("/session", s.currentSession)
		api.GET("/sessions", s.listSessions)
		api.DELETE("/sessions/:series", s.revokeSession)
	}

	return s
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.EndpointAddrHTTP,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
