// cmd/app-deployer/store.go
package main

import (
	"context"
	"fmt"
	"time"

	"app-deployer/internal/common/config"
	"app-deployer/internal/common/database"
	"app-deployer/internal/common/logger"
	"app-deployer/internal/roundstate"
	"app-deployer/internal/server"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// buildStore selects the round state backend and returns readiness checks
// and a close function for it.
func buildStore(ctx context.Context, cfg *config.Config, log logger.Logger) (roundstate.Store, []server.ReadinessCheck, func(), error) {
	switch cfg.Registry.Backend {
	case config.BackendRedis:
		var rc *database.RedisClient
		err := retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rc.Ping(ctx)
		}, 10, 2*time.Second, log, "Redis connection")
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("Redis round state connected", map[string]interface{}{"address": cfg.Database.Redis.Address})

		ttl := time.Duration(cfg.Registry.TTL) * time.Second
		store := roundstate.NewRedisStore(rc.Client, rc.KeyPrefix, ttl)
		checks := []server.ReadinessCheck{{Name: "redis", Check: rc.Ping}}
		return store, checks, func() { _ = rc.Close() }, nil

	case config.BackendPostgres:
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("PostgreSQL round state connected", map[string]interface{}{"host": cfg.Database.Postgres.Host})

		store := roundstate.NewPostgresStore(pg.DB)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, nil, err
		}
		checks := []server.ReadinessCheck{{Name: "postgres", Check: pg.Ping}}
		return store, checks, func() { _ = pg.Close() }, nil

	case config.BackendMemory, "":
		log.Warn("Using in-memory round state; round 2 after a restart relies on repository discovery", nil)
		return roundstate.NewMemoryStore(), nil, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend)
	}
}
