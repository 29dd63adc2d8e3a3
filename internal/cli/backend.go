package cli

import (
	"context"
	"fmt"
	"time"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/config"
	"classroom-quiz-service/internal/events"
	"classroom-quiz-service/internal/infra/memory"
	pgstore "classroom-quiz-service/internal/infra/postgres"
	redisinfra "classroom-quiz-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// store is what both the quiz lifecycle and the catalog need from persistence.
type store interface {
	app.QuizStore
	app.CatalogStore
	memory.PoolLoader
}

// backend bundles the infrastructure selected by config.
type backend struct {
	store  store
	pools  app.PoolRepository
	index  events.Index
	closes []func()
}

func (b *backend) Close() {
	for i := len(b.closes) - 1; i >= 0; i-- {
		b.closes[i]()
	}
}

// openBackend uses Postgres and Redis when configured and falls back to
// in-memory implementations otherwise.
func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	b := &backend{}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closes = append(b.closes, pool.Close)
		b.store = pgstore.NewStore(pool)
	} else {
		logger.Warn("postgres url not configured, using in-memory store")
		b.store = memory.NewStore()
	}

	poolTTL := config.TTLDuration(cfg.Quiz.PoolTTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closes = append(b.closes, func() { _ = client.Close() })
		b.pools = redisinfra.NewPoolRepository(client, b.store, config.TTLDuration(cfg.Redis.TTL, poolTTL), logger)
		b.index = redisinfra.NewAdminIndex(client)
	} else {
		warnProcessLocalPoolCache(cfg, poolTTL, logger)
		b.pools = memory.NewPoolRepository(b.store, poolTTL)
		b.index = memory.NewAdminIndex()
	}
	return b, nil
}

// warnProcessLocalPoolCache flags the Postgres-without-Redis setup: `seed` or
// another process can add questions, but only this process's cache would be
// invalidated, so the server keeps serving the old pool until it expires.
func warnProcessLocalPoolCache(cfg config.Config, poolTTL time.Duration, logger *zap.Logger) {
	if cfg.Postgres.URL == "" || cfg.Redis.Addr != "" {
		return
	}
	logger.Warn("question pool cache is process-local; questions added by other processes appear after pool_ttl, configure redis.addr to share it",
		zap.Duration("pool_ttl", poolTTL))
}

func (b *backend) catalog(notifier app.Notifier, cfg config.Config, logger *zap.Logger, opts ...app.CatalogOption) *app.CatalogService {
	opts = append([]app.CatalogOption{app.WithDefaultClasses(cfg.Quiz.DefaultClasses)}, opts...)
	return app.NewCatalogService(b.store, b.pools, notifier, logger, opts...)
}

// loadRuntime reads config and builds a logger for one-shot commands.
func loadRuntime(configPath string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func requirePostgres(cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	return nil
}
