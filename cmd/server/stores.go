package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/notifyagg/internal/config"
	"github.com/fastygo/notifyagg/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/notifyagg/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/notifyagg/internal/infrastructure/redis"
	"github.com/fastygo/notifyagg/internal/infrastructure/sink"
	"github.com/fastygo/notifyagg/internal/services/lifecycle"
	"github.com/fastygo/notifyagg/repository"
	"github.com/fastygo/notifyagg/repository/bolt"
	"github.com/fastygo/notifyagg/repository/memory"
	"github.com/fastygo/notifyagg/repository/postgres"
	redisRepo "github.com/fastygo/notifyagg/repository/redis"
	"github.com/fastygo/notifyagg/usecase"
)

// openPreferencesStore connects the configured backend and registers its
// health probe and shutdown hook.
func openPreferencesStore(ctx context.Context, cfg *config.Config, mon *monitor.Monitor, manager *lifecycle.Manager, logger *zap.Logger) (repository.PreferencesRepository, error) {
	switch cfg.Storage.PreferencesBackend {
	case "postgres":
		if err := pgInfra.RunMigrations(cfg.Database, cfg.Migrations, logger); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		manager.Register("postgres", func(context.Context) error {
			pool.Close()
			return nil
		})
		mon.AddProbe("postgres", monitor.PostgresProbe(pool), true)
		return postgres.NewPreferencesRepository(pool), nil
	case "redis":
		client, err := redisInfra.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		manager.RegisterCloser("redis", client)
		mon.AddProbe("redis", monitor.RedisProbe(client), true)
		return redisRepo.NewPreferencesRepository(client, cfg.Redis.PreferencesTTL), nil
	default:
		return memory.NewPreferencesRepository(), nil
	}
}

func openDigestStore(cfg *config.Config, mon *monitor.Monitor, manager *lifecycle.Manager, logger *zap.Logger) (repository.DigestRepository, error) {
	if cfg.Storage.DigestBackend != "bolt" {
		return memory.NewDigestRepository(), nil
	}
	store, err := bolt.Open(cfg.Storage.BoltPath, cfg.Storage.BoltBucket, logger)
	if err != nil {
		return nil, fmt.Errorf("open digest store: %w", err)
	}
	manager.RegisterCloser("digest_store", store)
	mon.AddProbe("digest_store", monitor.BoltProbe(store), true)
	mon.AddGauge("digest_store_entries", func() int {
		n, _ := store.Size()
		return n
	})
	return store, nil
}

func newSink(cfg config.SinkConfig, logger *zap.Logger) (usecase.NotificationSink, error) {
	if cfg.Kind != "webhook" {
		return sink.NewLogSink(logger), nil
	}
	webhook, err := sink.NewWebhookSink(sink.WebhookConfig{
		URL:                 cfg.WebhookURL,
		Timeout:             cfg.Timeout,
		ConsecutiveFailures: cfg.BreakerFailures,
		OpenFor:             cfg.BreakerOpenFor,
		HalfOpenRequests:    cfg.BreakerHalfOpen,
		Interval:            cfg.BreakerResetTime,
	}, logger)
	if err != nil {
		return nil, err
	}
	return webhook, nil
}
