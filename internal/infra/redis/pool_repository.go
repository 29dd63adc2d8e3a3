package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/url"
	"time"

	"classroom-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// PoolLoader fetches a question pool from a backing store.
type PoolLoader interface {
	LoadPool(ctx context.Context, className, quizCode string) ([]domain.Question, error)
}

// PoolRepository caches question pools in Redis and falls back to a loader on
// cache miss. Each pool is a JSON array stored at
// quiz:pool:{className}:{quizCode}, both parts query-escaped.
type PoolRepository struct {
	client *redis.Client
	loader PoolLoader
	ttl    time.Duration
	logger *zap.Logger
	sf     singleflight.Group
}

func NewPoolRepository(client *redis.Client, loader PoolLoader, ttl time.Duration, logger *zap.Logger) *PoolRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *PoolRepository) GetPool(ctx context.Context, className, quizCode string) ([]domain.Question, error) {
	key := r.poolKey(className, quizCode)
	if pool, ok := r.cached(ctx, key); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if pool, ok := r.cached(ctx, key); ok {
			return pool, nil
		}

		pool, err := r.loader.LoadPool(ctx, className, quizCode)
		if err != nil {
			return nil, err
		}
		if len(pool) == 0 {
			return pool, nil
		}

		data, err := json.Marshal(pool)
		if err != nil {
			return nil, err
		}
		// the cache is an optimization; a failed write still serves the loaded pool
		if err := r.client.Set(ctx, key, data, r.ttlWithJitter()).Err(); err != nil {
			r.logger.Warn("pool cache write failed", zap.String("key", key), zap.Error(err))
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops a cached pool.
func (r *PoolRepository) Invalidate(ctx context.Context, className, quizCode string) error {
	return r.client.Del(ctx, r.poolKey(className, quizCode)).Err()
}

func (r *PoolRepository) cached(ctx context.Context, key string) ([]domain.Question, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("pool cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var pool []domain.Question
	if err := json.Unmarshal(data, &pool); err != nil {
		r.logger.Warn("pool cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return pool, len(pool) > 0
}

// poolKey escapes both parts so a ':' inside a class name or quiz code cannot
// make two pools share a key.
func (r *PoolRepository) poolKey(className, quizCode string) string {
	return "quiz:pool:" + url.QueryEscape(className) + ":" + url.QueryEscape(quizCode)
}

func (r *PoolRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(rand.Int64N(jitterMax+1))
}
