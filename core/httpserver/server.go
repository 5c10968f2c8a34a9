// Package httpserver hosts the inbound HTTP surface of a bot: the Telegram
// webhook, provider callbacks and any public links the bot hands out.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/m3rciful/neuroquiz/core/buildinfo"
	coreconfig "github.com/m3rciful/neuroquiz/core/config"
	"github.com/m3rciful/neuroquiz/core/logger"
)

// Server wraps a gin engine with lifecycle management.
type Server struct {
	Engine *gin.Engine

	addr     string
	shutdown time.Duration
	srv      *http.Server
}

// New builds an engine with request id, access log and panic recovery middleware
// plus the /healthcheck route.
func New(cfg coreconfig.HTTPConfig) *Server {
	engine := gin.New()
	engine.Use(RequestID(), RequestLogger(), Recovery())
	engine.GET("/healthcheck", HealthCheck)

	shutdown := time.Duration(cfg.ShutdownSeconds) * time.Second
	if shutdown <= 0 {
		shutdown = 10 * time.Second
	}
	return &Server{
		Engine:   engine,
		addr:     cfg.Addr(),
		shutdown: shutdown,
	}
}

// Run serves until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.HTTP.Info("http listening",
			slog.String("event", "http.listen"),
			slog.String("listen", s.addr),
		)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	start := time.Now()
	err := s.srv.Shutdown(shutdownCtx)
	logger.HTTP.Info("http stopped",
		slog.String("event", "http.shutdown"),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	)
	if err != nil {
		return fmt.Errorf("http: shutdown: %w", err)
	}
	return nil
}

// HealthCheck reports liveness and the running build.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": buildinfo.String()})
}
