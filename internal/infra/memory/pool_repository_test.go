package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"classroom-quiz-service/internal/domain"
)

func TestPoolRepositoryCaches(t *testing.T) {
	loader := &countingLoader{PoolLoader: seededStore(t)}
	repo := NewPoolRepository(loader, time.Minute)

	pool, err := repo.GetPool(context.Background(), "BCA-I", "AI-2025")
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if len(pool) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(pool))
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls.Load())
	}

	if _, err := repo.GetPool(context.Background(), "BCA-I", "AI-2025"); err != nil {
		t.Fatalf("get pool 2: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls.Load())
	}
}

func TestPoolRepositoryExpiresAndInvalidates(t *testing.T) {
	loader := &countingLoader{PoolLoader: seededStore(t)}
	repo := NewPoolRepository(loader, time.Minute)
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }
	ctx := context.Background()

	if _, err := repo.GetPool(ctx, "BCA-I", "AI-2025"); err != nil {
		t.Fatalf("get pool: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := repo.GetPool(ctx, "BCA-I", "AI-2025"); err != nil {
		t.Fatalf("get pool after ttl: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls.Load())
	}

	if err := repo.Invalidate(ctx, "BCA-I", "AI-2025"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := repo.GetPool(ctx, "BCA-I", "AI-2025"); err != nil {
		t.Fatalf("get pool after invalidate: %v", err)
	}
	if loader.calls.Load() != 3 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls.Load())
	}
}

func TestPoolRepositoryDoesNotCacheEmptyPools(t *testing.T) {
	loader := &countingLoader{PoolLoader: seededStore(t)}
	repo := NewPoolRepository(loader, time.Minute)

	for i := 0; i < 2; i++ {
		pool, err := repo.GetPool(context.Background(), "BCA-I", "NONE")
		if err != nil {
			t.Fatalf("get pool: %v", err)
		}
		if len(pool) != 0 {
			t.Fatalf("expected empty pool, got %d", len(pool))
		}
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected empty pool to be reloaded, loader calls %d", loader.calls.Load())
	}
}

func TestPoolRepositoryCollapsesConcurrentLoads(t *testing.T) {
	release := make(chan struct{})
	loader := &countingLoader{PoolLoader: seededStore(t), gate: release}
	repo := NewPoolRepository(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.GetPool(context.Background(), "BCA-I", "AI-2025"); err != nil {
				t.Errorf("get pool: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if loader.calls.Load() != 1 {
		t.Fatalf("expected a single load, got %d", loader.calls.Load())
	}
}

type countingLoader struct {
	PoolLoader
	calls atomic.Int32
	gate  chan struct{}
}

func (l *countingLoader) LoadPool(ctx context.Context, className, quizCode string) ([]domain.Question, error) {
	l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	return l.PoolLoader.LoadPool(ctx, className, quizCode)
}

func seededStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore()
	for _, q := range []domain.Question{
		{ID: "q1", ClassName: "BCA-I", QuizCode: "AI-2025", QuestionText: "2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectAnswer: "4"},
		{ID: "q2", ClassName: "BCA-I", QuizCode: "AI-2025", QuestionText: "3 * 3?", Options: []string{"6", "9", "12", "33"}, CorrectAnswer: "9"},
		{ID: "q3", ClassName: "BCA-II", QuizCode: "AI-2025", QuestionText: "1 + 1?", Options: []string{"1", "2", "3", "4"}, CorrectAnswer: "2"},
	} {
		if err := store.InsertQuestion(context.Background(), q); err != nil {
			t.Fatalf("insert question: %v", err)
		}
	}
	return store
}
