// Package api serves the relay's HTTP interface: health, trace queries,
// monitor management, result submission and metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/aocrank/internal/crank"
	"github.com/zulandar/aocrank/internal/logging"
	"github.com/zulandar/aocrank/internal/models"
	"github.com/zulandar/aocrank/internal/trace"
)

// TraceFinder queries lineage traces.
type TraceFinder interface {
	Find(ctx context.Context, c trace.Criteria) ([]models.MessageTrace, error)
}

// MonitorStore manages monitored processes.
type MonitorStore interface {
	Save(ctx context.Context, p models.MonitoredProcess) (string, error)
	FindAll(ctx context.Context) ([]models.MonitoredProcess, error)
	Get(ctx context.Context, id string) (models.MonitoredProcess, error)
	Delete(ctx context.Context, id string) (string, error)
}

// Cranker cranks a submitted result.
type Cranker interface {
	CrankResult(ctx context.Context, r crank.Result) (crank.Outcome, error)
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Traces   TraceFinder
	Monitors MonitorStore
	// Cranker is optional; without it results cannot be submitted.
	Cranker Cranker
	Port    int
	Logger  *slog.Logger
	Out     io.Writer
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Traces == nil {
		return nil, fmt.Errorf("api: trace finder is required")
	}
	if opts.Monitors == nil {
		return nil, fmt.Errorf("api: monitor store is required")
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logging.For(opts.Logger, "api")))
	registerRoutes(router, opts)
	return router, nil
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 3004
	}
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// requestLogger logs each request at debug level.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Handled request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
