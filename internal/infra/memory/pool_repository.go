package memory

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"classroom-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// PoolLoader fetches a question pool from a backing store.
type PoolLoader interface {
	LoadPool(ctx context.Context, className, quizCode string) ([]domain.Question, error)
}

// PoolRepository caches question pools with TTL to avoid repeated DB hits.
type PoolRepository struct {
	loader PoolLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewPoolRepository(loader PoolLoader, ttl time.Duration) *PoolRepository {
	return &PoolRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[string]cachedPool),
	}
}

func (r *PoolRepository) GetPool(ctx context.Context, className, quizCode string) ([]domain.Question, error) {
	key := poolKey(className, quizCode)
	if pool, ok := r.lookup(key, r.clock()); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		now := r.clock()
		if pool, ok := r.lookup(key, now); ok {
			return pool, nil
		}

		pool, err := r.loader.LoadPool(ctx, className, quizCode)
		if err != nil {
			return nil, err
		}
		// Empty pools are not cached so newly added questions show up at once.
		if len(pool) > 0 && r.ttl > 0 {
			r.mu.Lock()
			r.cache[key] = cachedPool{questions: pool, expiresAt: now.Add(r.ttlWithJitter())}
			r.mu.Unlock()
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops a cached pool.
func (r *PoolRepository) Invalidate(_ context.Context, className, quizCode string) error {
	r.mu.Lock()
	delete(r.cache, poolKey(className, quizCode))
	r.mu.Unlock()
	return nil
}

func (r *PoolRepository) lookup(key string, now time.Time) ([]domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || !entry.expiresAt.After(now) {
		return nil, false
	}
	return entry.questions, true
}

func (r *PoolRepository) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(rand.Int64N(jitterMax+1))
}

func poolKey(className, quizCode string) string {
	return className + "\x00" + quizCode
}
