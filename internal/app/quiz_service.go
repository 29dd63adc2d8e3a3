package app

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"classroom-quiz-service/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultSampleSize is the number of questions handed to a contestant.
	DefaultSampleSize = 5

	notAnswered = "Not answered"
)

// ContestantRepository abstracts how contestants and their attempts are stored.
type ContestantRepository interface {
	FindContestant(ctx context.Context, usn string) (domain.Contestant, error)
	// RecordAttempt appends attempt to the contestant and creates result as one
	// unit. It returns domain.ErrAlreadyAttempted when the contestant already
	// holds an attempt at write time.
	RecordAttempt(ctx context.Context, contestantID string, attempt domain.Attempt, result domain.Result) error
}

// QuestionRepository resolves questions by ID, in the requested order,
// skipping unknown IDs.
type QuestionRepository interface {
	FindQuestions(ctx context.Context, ids []string) ([]domain.Question, error)
}

// ClassRepository looks up class settings.
type ClassRepository interface {
	FindClass(ctx context.Context, name string) (domain.Class, error)
}

// QuizStore is the slice of the persistent store used by the attempt lifecycle.
type QuizStore interface {
	ContestantRepository
	QuestionRepository
	ClassRepository
}

// PoolRepository loads question pools (from cache/backing store).
type PoolRepository interface {
	GetPool(ctx context.Context, className, quizCode string) ([]domain.Question, error)
}

// Notifier receives record-created events. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, event domain.RecordCreated) error
}

// QuizService contains the attempt lifecycle use cases.
type QuizService struct {
	store      QuizStore
	pools      PoolRepository
	notifier   Notifier
	logger     *zap.Logger
	matcher    CredentialMatcher
	now        func() time.Time
	intn       func(n int) int
	newID      func() string
	sampleSize int
}

// Option customizes a QuizService.
type Option func(*QuizService)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithRandom replaces the source used to sample pools.
func WithRandom(intn func(n int) int) Option {
	return func(s *QuizService) { s.intn = intn }
}

// WithSampleSize sets how many questions are sampled per quiz.
func WithSampleSize(n int) Option {
	return func(s *QuizService) {
		if n > 0 {
			s.sampleSize = n
		}
	}
}

// WithCredentialMatcher swaps the password comparison.
func WithCredentialMatcher(m CredentialMatcher) Option {
	return func(s *QuizService) {
		if m != nil {
			s.matcher = m
		}
	}
}

// WithIDGenerator replaces the attempt/result ID generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *QuizService) { s.newID = newID }
}

func NewQuizService(store QuizStore, pools PoolRepository, notifier Notifier, logger *zap.Logger, opts ...Option) *QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &QuizService{
		store:      store,
		pools:      pools,
		notifier:   notifier,
		logger:     logger,
		matcher:    DefaultCredentialMatcher,
		now:        time.Now,
		intn:       rand.IntN,
		newID:      uuid.NewString,
		sampleSize: DefaultSampleSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Eligibility validates identity and one-time eligibility. Checks run in a
// fixed order: existence, already attempted, quiz code, password.
func (s *QuizService) Eligibility(ctx context.Context, usn, quizCode, password string) (domain.Eligibility, error) {
	usn = NormalizeUSN(usn)
	quizCode = strings.TrimSpace(quizCode)
	if usn == "" || quizCode == "" || strings.TrimSpace(password) == "" {
		return domain.Eligibility{}, domain.Invalid("USN, quiz code and password are required")
	}

	contestant, err := s.store.FindContestant(ctx, usn)
	if err != nil {
		return domain.Eligibility{}, s.storeError("find contestant", err)
	}
	if contestant.Attempted() {
		return domain.Eligibility{}, domain.ErrAlreadyAttempted
	}
	if strings.TrimSpace(contestant.QuizCode) != quizCode {
		return domain.Eligibility{}, domain.ErrInvalidCredentials
	}
	if !s.matcher(contestant.QuizPassword, password) {
		return domain.Eligibility{}, domain.ErrInvalidCredentials
	}

	return domain.Eligibility{
		ContestantID: contestant.ID,
		USN:          contestant.USN,
		Name:         contestant.Name,
		ClassName:    contestant.ClassName,
		QuizCode:     contestant.QuizCode,
	}, nil
}

// RandomQuiz gates the contestant and returns an answer-free sample of their
// pool together with the class time budget.
func (s *QuizService) RandomQuiz(ctx context.Context, usn, quizCode, password string) (domain.QuizPayload, error) {
	eligibility, err := s.Eligibility(ctx, usn, quizCode, password)
	if err != nil {
		return domain.QuizPayload{}, err
	}

	pool, err := s.pools.GetPool(ctx, eligibility.ClassName, eligibility.QuizCode)
	if err != nil {
		return domain.QuizPayload{}, s.storeError("load pool", err)
	}
	if len(pool) == 0 {
		return domain.QuizPayload{}, domain.ErrNoQuestionsAvailable
	}

	quizTime, err := s.quizTime(ctx, eligibility.ClassName)
	if err != nil {
		return domain.QuizPayload{}, err
	}

	return domain.QuizPayload{
		Name:      eligibility.Name,
		Questions: samplePool(pool, s.sampleSize, s.intn),
		QuizTime:  quizTime,
	}, nil
}

// Submit grades responses and records the attempt exactly once.
func (s *QuizService) Submit(ctx context.Context, usn string, responses map[string]string) (domain.Submission, error) {
	usn = NormalizeUSN(usn)
	if usn == "" || len(responses) == 0 {
		return domain.Submission{}, domain.Invalid("USN and responses are required")
	}

	contestant, err := s.store.FindContestant(ctx, usn)
	if err != nil {
		return domain.Submission{}, s.storeError("find contestant", err)
	}
	if contestant.Attempted() {
		return domain.Submission{}, domain.ErrAlreadyAttempted
	}

	ids := questionIDs(responses)
	if len(ids) == 0 {
		return domain.Submission{}, domain.Invalid("Invalid question IDs")
	}

	questions, err := s.store.FindQuestions(ctx, ids)
	if err != nil {
		return domain.Submission{}, s.storeError("find questions", err)
	}
	if len(questions) == 0 {
		return domain.Submission{}, domain.Invalid("No valid questions found")
	}

	score, reviews := grade(questions, responses)

	now := s.now()
	snapshot := make(map[string]string, len(responses))
	for k, v := range responses {
		snapshot[k] = v
	}
	attempt := domain.Attempt{
		ID:        s.newID(),
		Responses: snapshot,
		Score:     score,
		CreatedAt: now,
	}
	result := domain.Result{
		ID:           s.newID(),
		AttemptID:    attempt.ID,
		ContestantID: contestant.ID,
		ClassName:    contestant.ClassName,
		QuizCode:     contestant.QuizCode,
		Name:         contestant.Name,
		USN:          contestant.USN,
		Responses:    snapshot,
		Score:        score,
		SubmittedAt:  now,
	}
	if err := s.store.RecordAttempt(ctx, contestant.ID, attempt, result); err != nil {
		return domain.Submission{}, s.storeError("record attempt", err)
	}

	s.notify(ctx, domain.RecordCreated{
		ClassName: contestant.ClassName,
		Kind:      domain.KindResults,
		IDs:       []string{result.ID},
		At:        now,
	})

	return domain.Submission{
		Score:          score,
		TotalQuestions: len(questions),
		Name:           contestant.Name,
		USN:            contestant.USN,
		ClassName:      contestant.ClassName,
		CorrectAnswers: reviews,
	}, nil
}

func (s *QuizService) quizTime(ctx context.Context, className string) (int, error) {
	class, err := s.store.FindClass(ctx, className)
	if errors.Is(err, domain.ErrClassNotFound) {
		return domain.DefaultQuizTime, nil
	}
	if err != nil {
		return 0, s.storeError("find class", err)
	}
	if class.QuizTime <= 0 {
		return domain.DefaultQuizTime, nil
	}
	return class.QuizTime, nil
}

// notify never fails the caller; delivery errors are only logged.
func (s *QuizService) notify(ctx context.Context, event domain.RecordCreated) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("record-created notification failed",
			zap.String("class", event.ClassName),
			zap.String("kind", event.Kind),
			zap.Strings("ids", event.IDs),
			zap.Error(err))
	}
}

// storeError passes domain errors through and marks everything else internal.
func (s *QuizService) storeError(op string, err error) error {
	return translateStoreError(s.logger, op, err)
}

func translateStoreError(logger *zap.Logger, op string, err error) error {
	for _, known := range []error{
		domain.ErrContestantNotFound,
		domain.ErrAlreadyAttempted,
		domain.ErrClassNotFound,
		domain.ErrQuestionNotFound,
		domain.ErrResultNotFound,
		domain.ErrDuplicate,
		domain.ErrValidation,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	logger.Error("store failure", zap.String("op", op), zap.Error(err))
	return errors.Join(domain.ErrInternal, err)
}

// questionIDs keeps the well-formed identifiers, sorted for a stable review order.
func questionIDs(responses map[string]string) []string {
	ids := make([]string, 0, len(responses))
	for id := range responses {
		if _, err := uuid.Parse(id); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// grade scores exact matches and builds the post-submission answer key.
func grade(questions []domain.Question, responses map[string]string) (int, []domain.AnswerReview) {
	score := 0
	reviews := make([]domain.AnswerReview, 0, len(questions))
	for _, q := range questions {
		answer, ok := responses[q.ID]
		if ok && answer == q.CorrectAnswer {
			score++
		}
		if !ok || answer == "" {
			answer = notAnswered
		}
		reviews = append(reviews, domain.AnswerReview{
			QuestionID:    q.ID,
			QuestionText:  q.QuestionText,
			CorrectAnswer: q.CorrectAnswer,
			UserAnswer:    answer,
		})
	}
	return score, reviews
}
