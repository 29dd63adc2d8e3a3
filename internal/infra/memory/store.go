package memory

import (
	"context"
	"sort"
	"sync"

	"classroom-quiz-service/internal/domain"
)

// Store is an in-memory implementation of the persistent store. A single
// mutex guards every map, so RecordAttempt checks and appends atomically.
type Store struct {
	mu          sync.RWMutex
	classes     map[string]domain.Class
	contestants map[string]*domain.Contestant
	byUSN       map[string]string
	questions   map[string]domain.Question
	order       []string
	results     map[string]domain.Result
}

func NewStore() *Store {
	return &Store{
		classes:     make(map[string]domain.Class),
		contestants: make(map[string]*domain.Contestant),
		byUSN:       make(map[string]string),
		questions:   make(map[string]domain.Question),
		results:     make(map[string]domain.Result),
	}
}

func (s *Store) FindContestant(_ context.Context, usn string) (domain.Contestant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUSN[usn]
	if !ok {
		return domain.Contestant{}, domain.ErrContestantNotFound
	}
	return cloneContestant(s.contestants[id]), nil
}

func (s *Store) RecordAttempt(_ context.Context, contestantID string, attempt domain.Attempt, result domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	contestant, ok := s.contestants[contestantID]
	if !ok {
		return domain.ErrContestantNotFound
	}
	if len(contestant.Results) > 0 {
		return domain.ErrAlreadyAttempted
	}
	contestant.Results = append(contestant.Results, attempt)
	s.results[result.ID] = result
	return nil
}

func (s *Store) InsertContestants(_ context.Context, contestants []domain.Contestant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range contestants {
		if _, exists := s.byUSN[c.USN]; exists {
			return domain.ErrDuplicate
		}
	}
	for _, c := range contestants {
		c.Results = nil
		s.contestants[c.ID] = &c
		s.byUSN[c.USN] = c.ID
	}
	return nil
}

func (s *Store) UpdateContestantCredentials(_ context.Context, usn, quizCode, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byUSN[usn]
	if !ok {
		return domain.ErrContestantNotFound
	}
	contestant := s.contestants[id]
	if quizCode != "" {
		contestant.QuizCode = quizCode
	}
	contestant.QuizPassword = password
	return nil
}

func (s *Store) FindQuestions(_ context.Context, ids []string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := s.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

// LoadPool returns the questions of one (className, quizCode) pool in
// insertion order.
func (s *Store) LoadPool(_ context.Context, className, quizCode string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Question
	for _, id := range s.order {
		q := s.questions[id]
		if q.ClassName == className && q.QuizCode == quizCode {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *Store) InsertQuestion(_ context.Context, question domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.questions[question.ID]; exists {
		return domain.ErrDuplicate
	}
	s.questions[question.ID] = question
	s.order = append(s.order, question.ID)
	return nil
}

func (s *Store) FindClass(_ context.Context, name string) (domain.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	class, ok := s.classes[name]
	if !ok {
		return domain.Class{}, domain.ErrClassNotFound
	}
	return class, nil
}

func (s *Store) ListClasses(_ context.Context) ([]domain.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Class, 0, len(s.classes))
	for _, class := range s.classes {
		out = append(out, class)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) InsertClasses(_ context.Context, classes []domain.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, class := range classes {
		if _, exists := s.classes[class.Name]; exists {
			continue
		}
		if class.QuizTime == 0 {
			class.QuizTime = domain.DefaultQuizTime
		}
		s.classes[class.Name] = class
	}
	return nil
}

func (s *Store) UpsertClass(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.classes[name]; !exists {
		s.classes[name] = domain.Class{Name: name, QuizTime: domain.DefaultQuizTime}
	}
	return nil
}

func (s *Store) DeleteClass(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.classes, name)
	return nil
}

func (s *Store) SetQuizTime(_ context.Context, name string, seconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	class, ok := s.classes[name]
	if !ok {
		class = domain.Class{Name: name}
	}
	class.QuizTime = seconds
	s.classes[name] = class
	return nil
}

func (s *Store) ListResults(_ context.Context, classNames []string, limit int) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	filter := make(map[string]struct{}, len(classNames))
	for _, name := range classNames {
		filter[name] = struct{}{}
	}
	out := make([]domain.Result, 0, len(s.results))
	for _, r := range s.results {
		if len(filter) > 0 {
			if _, ok := filter[r.ClassName]; !ok {
				continue
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteResult(_ context.Context, id string) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if !ok {
		return domain.Result{}, domain.ErrResultNotFound
	}
	delete(s.results, id)
	return r, nil
}

func (s *Store) CountRecords(_ context.Context, classNames []string) (domain.Overview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in := make(map[string]struct{}, len(classNames))
	for _, name := range classNames {
		in[name] = struct{}{}
	}
	var out domain.Overview
	for _, c := range s.contestants {
		if _, ok := in[c.ClassName]; ok {
			out.TotalContestants++
		}
	}
	for _, q := range s.questions {
		if _, ok := in[q.ClassName]; ok {
			out.TotalQuestions++
		}
	}
	for _, r := range s.results {
		if _, ok := in[r.ClassName]; ok {
			out.TotalResults++
		}
	}
	return out, nil
}

func cloneContestant(c *domain.Contestant) domain.Contestant {
	out := *c
	out.Results = append([]domain.Attempt(nil), c.Results...)
	return out
}
