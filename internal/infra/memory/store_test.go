package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"classroom-quiz-service/internal/domain"
)

func TestStoreRecordAttemptOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if err := store.InsertContestants(ctx, []domain.Contestant{{ID: "c1", USN: "TY25BCA007", Name: "Asha", ClassName: "BCA-I"}}); err != nil {
		t.Fatalf("insert contestants: %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attempt := domain.Attempt{ID: "a" + string(rune('0'+i)), Score: i}
			result := domain.Result{ID: "r" + string(rune('0'+i)), AttemptID: attempt.ID, ClassName: "BCA-I"}
			err := store.RecordAttempt(ctx, "c1", attempt, result)
			if err != nil && !errors.Is(err, domain.ErrAlreadyAttempted) {
				t.Errorf("record attempt: %v", err)
			}
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("expected exactly one accepted attempt, got %d", accepted)
	}
	contestant, err := store.FindContestant(ctx, "TY25BCA007")
	if err != nil {
		t.Fatalf("find contestant: %v", err)
	}
	if len(contestant.Results) != 1 {
		t.Fatalf("expected 1 embedded attempt, got %d", len(contestant.Results))
	}
	results, _ := store.ListResults(ctx, nil, 0)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	if err := store.RecordAttempt(ctx, "missing", domain.Attempt{ID: "x"}, domain.Result{ID: "y"}); !errors.Is(err, domain.ErrContestantNotFound) {
		t.Fatalf("expected contestant not found, got %v", err)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	_ = store.InsertContestants(ctx, []domain.Contestant{{ID: "c1", USN: "U1"}})

	contestant, _ := store.FindContestant(ctx, "U1")
	contestant.Results = append(contestant.Results, domain.Attempt{ID: "forged"})

	again, _ := store.FindContestant(ctx, "U1")
	if again.Attempted() {
		t.Fatalf("mutating a returned contestant must not change the store")
	}
}

func TestStoreInsertContestantsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	_ = store.InsertContestants(ctx, []domain.Contestant{{ID: "c1", USN: "U1"}})

	err := store.InsertContestants(ctx, []domain.Contestant{{ID: "c2", USN: "U2"}, {ID: "c3", USN: "U1"}})
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if _, err := store.FindContestant(ctx, "U2"); !errors.Is(err, domain.ErrContestantNotFound) {
		t.Fatalf("expected U2 to be absent, got %v", err)
	}
}

func TestStoreFindQuestionsKeepsRequestOrder(t *testing.T) {
	store := seededStore(t)

	got, err := store.FindQuestions(context.Background(), []string{"q2", "missing", "q1"})
	if err != nil {
		t.Fatalf("find questions: %v", err)
	}
	if len(got) != 2 || got[0].ID != "q2" || got[1].ID != "q1" {
		t.Fatalf("unexpected questions %+v", got)
	}
}

func TestStoreListResultsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	for i, c := range []domain.Contestant{
		{ID: "c1", USN: "U1", ClassName: "BCA-I"},
		{ID: "c2", USN: "U2", ClassName: "BCA-II"},
		{ID: "c3", USN: "U3", ClassName: "BCA-I"},
	} {
		_ = store.InsertContestants(ctx, []domain.Contestant{c})
		result := domain.Result{ID: "r" + c.ID, ClassName: c.ClassName, SubmittedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.RecordAttempt(ctx, c.ID, domain.Attempt{ID: "a" + c.ID}, result); err != nil {
			t.Fatalf("record attempt: %v", err)
		}
	}

	all, _ := store.ListResults(ctx, nil, 0)
	if len(all) != 3 || all[0].ID != "rc3" || all[2].ID != "rc1" {
		t.Fatalf("unexpected order %+v", all)
	}
	filtered, _ := store.ListResults(ctx, []string{"BCA-I"}, 1)
	if len(filtered) != 1 || filtered[0].ID != "rc3" {
		t.Fatalf("unexpected filtered results %+v", filtered)
	}

	if _, err := store.DeleteResult(ctx, "rc3"); err != nil {
		t.Fatalf("delete result: %v", err)
	}
	if _, err := store.DeleteResult(ctx, "rc3"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected result not found, got %v", err)
	}
	contestant, _ := store.FindContestant(ctx, "U3")
	if !contestant.Attempted() {
		t.Fatalf("deleting a result must keep the contestant completed")
	}
}

func TestStoreClasses(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = store.InsertClasses(ctx, []domain.Class{{Name: "BCA-II", CreatedAt: created}, {Name: "BCA-I", CreatedAt: created}})
	_ = store.InsertClasses(ctx, []domain.Class{{Name: "BCA-I", QuizTime: 900, CreatedAt: created}})

	classes, _ := store.ListClasses(ctx)
	if len(classes) != 2 || classes[0].Name != "BCA-I" || classes[1].Name != "BCA-II" {
		t.Fatalf("unexpected classes %+v", classes)
	}
	if classes[0].QuizTime != domain.DefaultQuizTime {
		t.Fatalf("existing class must not be overwritten, quiz time %d", classes[0].QuizTime)
	}

	if err := store.SetQuizTime(ctx, "BCA-III", 120); err != nil {
		t.Fatalf("set quiz time: %v", err)
	}
	class, err := store.FindClass(ctx, "BCA-III")
	if err != nil || class.QuizTime != 120 {
		t.Fatalf("expected upserted class with 120s, got %+v %v", class, err)
	}

	_ = store.DeleteClass(ctx, "BCA-III")
	if _, err := store.FindClass(ctx, "BCA-III"); !errors.Is(err, domain.ErrClassNotFound) {
		t.Fatalf("expected class not found, got %v", err)
	}
}

func TestStoreUpdateContestantCredentials(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if err := store.InsertContestants(ctx, []domain.Contestant{{ID: "c1", USN: "U1", ClassName: "BCA-I", QuizCode: "AI-2025", QuizPassword: "old"}}); err != nil {
		t.Fatalf("insert contestants: %v", err)
	}
	if err := store.RecordAttempt(ctx, "c1", domain.Attempt{ID: "a1"}, domain.Result{ID: "r1", AttemptID: "a1", ClassName: "BCA-I"}); err != nil {
		t.Fatalf("record attempt: %v", err)
	}

	if err := store.UpdateContestantCredentials(ctx, "U1", "", "new"); err != nil {
		t.Fatalf("update credentials: %v", err)
	}
	contestant, _ := store.FindContestant(ctx, "U1")
	if contestant.QuizCode != "AI-2025" || contestant.QuizPassword != "new" {
		t.Fatalf("unexpected credentials %q/%q", contestant.QuizCode, contestant.QuizPassword)
	}

	if err := store.UpdateContestantCredentials(ctx, "U1", "AI-2026", "newer"); err != nil {
		t.Fatalf("update credentials: %v", err)
	}
	contestant, _ = store.FindContestant(ctx, "U1")
	if contestant.QuizCode != "AI-2026" || contestant.QuizPassword != "newer" {
		t.Fatalf("unexpected credentials %q/%q", contestant.QuizCode, contestant.QuizPassword)
	}
	if len(contestant.Results) != 1 {
		t.Fatalf("embedded attempts must survive a credential update")
	}
	if results, _ := store.ListResults(ctx, nil, 0); len(results) != 1 {
		t.Fatalf("results must survive a credential update, got %d", len(results))
	}

	if err := store.UpdateContestantCredentials(ctx, "U2", "", "x"); !errors.Is(err, domain.ErrContestantNotFound) {
		t.Fatalf("expected contestant not found, got %v", err)
	}
}

func TestStoreCountRecords(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if err := store.InsertContestants(ctx, []domain.Contestant{
		{ID: "c1", USN: "U1", ClassName: "BCA-I"},
		{ID: "c2", USN: "U2", ClassName: "BCA-I"},
		{ID: "c3", USN: "U3", ClassName: "BCA-II"},
	}); err != nil {
		t.Fatalf("insert contestants: %v", err)
	}
	for _, q := range []domain.Question{
		{ID: "q1", ClassName: "BCA-I"},
		{ID: "q2", ClassName: "BCA-II"},
		{ID: "q3", ClassName: "MBA-I"},
	} {
		if err := store.InsertQuestion(ctx, q); err != nil {
			t.Fatalf("insert question: %v", err)
		}
	}
	if err := store.RecordAttempt(ctx, "c1", domain.Attempt{ID: "a1"}, domain.Result{ID: "r1", ClassName: "BCA-I"}); err != nil {
		t.Fatalf("record attempt: %v", err)
	}

	got, err := store.CountRecords(ctx, []string{"BCA-I", "BCA-II"})
	if err != nil {
		t.Fatalf("count records: %v", err)
	}
	if want := (domain.Overview{TotalContestants: 3, TotalQuestions: 2, TotalResults: 1}); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	got, _ = store.CountRecords(ctx, nil)
	if got != (domain.Overview{}) {
		t.Fatalf("no classes must count nothing, got %+v", got)
	}
}
