package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"gigalert/discovery-service/internal/config"
	"gigalert/discovery-service/internal/db"
	"gigalert/discovery-service/internal/logger"
	"gigalert/discovery-service/internal/store"
	"gigalert/discovery-service/internal/subscriber"
)

// app holds the connections shared by every subcommand.
type app struct {
	cfg  *config.Config
	log  logger.Logger
	pool *pgxpool.Pool // nil without DATABASE_URL
	rdb  *redis.Client // nil without REDIS_URL
	repo store.Repository
}

// bootstrap loads config, builds the logger, opens the configured backends
// and selects the listing store. Call close when done.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log.With(logger.String("service", "discovery-service"))}

	if cfg.DatabaseURL != "" {
		a.log.Info("Connecting to PostgreSQL")
		if a.pool, err = db.NewPostgresPool(ctx, cfg.DatabaseURL); err != nil {
			a.close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
	}
	if cfg.RedisURL != "" {
		a.log.Info("Connecting to Redis")
		if a.rdb, err = db.NewRedisClient(ctx, cfg.RedisURL); err != nil {
			a.close()
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		a.repo = store.NewPostgresStore(a.pool)
	case config.BackendRedis:
		a.repo = store.NewRedisStore(a.rdb)
	default:
		a.log.Warn("Using in-memory listing store; dedup state is lost on restart")
		a.repo = store.NewMemoryStore()
	}
	a.log.Info("Listing store selected", logger.String("backend", cfg.StoreBackend))

	return a, nil
}

// directory returns the subscriber directory. Without PostgreSQL it is empty.
func (a *app) directory() subscriber.Directory {
	if a.pool == nil {
		a.log.Warn("DATABASE_URL not set; subscriber lookups will fail")
		return subscriber.NewStaticDirectory()
	}
	return subscriber.NewPostgresDirectory(a.pool)
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.log.Sync()
}
