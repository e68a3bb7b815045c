package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/zulandar/aocrank/internal/alert"
	"github.com/zulandar/aocrank/internal/compute"
	"github.com/zulandar/aocrank/internal/config"
	"github.com/zulandar/aocrank/internal/crank"
	"github.com/zulandar/aocrank/internal/db"
	"github.com/zulandar/aocrank/internal/locator"
	"github.com/zulandar/aocrank/internal/logging"
	"github.com/zulandar/aocrank/internal/monitor"
	"github.com/zulandar/aocrank/internal/signer"
	"github.com/zulandar/aocrank/internal/store"
	"github.com/zulandar/aocrank/internal/trace"
	"gorm.io/gorm"
)

// connectFromConfig loads the config at configPath, opens the database and
// makes sure its tables exist.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logging.NewWithWriter(cfg.Log, w)
}

// newLocationCache returns the configured location cache.
func newLocationCache(ctx context.Context, cfg config.CacheConfig) (locator.Cache, error) {
	if cfg.Type != "redis" {
		return locator.NewMemoryCache(), nil
	}
	cache, err := locator.NewRedisCache(ctx, &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, "crank:")
	if err != nil {
		return nil, err
	}
	return cache, nil
}

// components holds everything a crank needs, built from one config.
type components struct {
	store    *store.Store
	recorder *trace.Recorder
	service  *crank.Service
	cache    locator.Cache
}

func (c *components) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

func buildComponents(ctx context.Context, cfg *config.Config, gormDB *gorm.DB, logger *slog.Logger) (*components, error) {
	cache, err := newLocationCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	loc := locator.NewCached(locator.NewClient(locator.ClientConfig{
		RouterURL:     cfg.Locator.RouterURL,
		GatewayURL:    cfg.Locator.GatewayURL,
		RatePerSecond: cfg.Locator.RatePerSecond,
		Burst:         cfg.Locator.Burst,
		Timeout:       cfg.Locator.Timeout,
	}), cache, cfg.Locator.CacheTTL, logger)
	sig := signer.NewRemote(cfg.Signer.URL, cfg.Signer.Timeout)

	st := store.New(gormDB, logger)
	rec := trace.NewRecorder(gormDB, logger)
	pipeline := crank.NewPipeline(loc, sig, logger)
	return &components{
		store:    st,
		recorder: rec,
		service:  crank.NewService(pipeline, st, rec, cfg.Crank.Concurrency, logger),
		cache:    cache,
	}, nil
}

func newPoller(cfg *config.Config, gormDB *gorm.DB, comps *components, logger *slog.Logger) *monitor.Poller {
	return monitor.NewPoller(monitor.PollerConfig{
		Registry:    monitor.NewRegistry(gormDB, logger),
		Source:      compute.NewClient(cfg.Compute.URL, cfg.Compute.Timeout),
		Cranker:     comps.service,
		Notifier:    alert.FromConfig(cfg.Alert, logger),
		PageLimit:   cfg.Compute.PageLimit,
		Concurrency: cfg.Monitor.Concurrency,
		Logger:      logger,
	})
}
