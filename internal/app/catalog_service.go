package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"classroom-quiz-service/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResultListLimit caps how many results a listing returns.
const ResultListLimit = 200

// CatalogStore is the administrative slice of the persistent store.
type CatalogStore interface {
	ClassRepository
	ListClasses(ctx context.Context) ([]domain.Class, error)
	// InsertClasses creates the given classes, skipping names that exist.
	InsertClasses(ctx context.Context, classes []domain.Class) error
	UpsertClass(ctx context.Context, name string) error
	DeleteClass(ctx context.Context, name string) error
	SetQuizTime(ctx context.Context, name string, seconds int) error
	// InsertContestants is all-or-nothing; a clashing USN yields domain.ErrDuplicate.
	InsertContestants(ctx context.Context, contestants []domain.Contestant) error
	// UpdateContestantCredentials replaces the password and, when quizCode is
	// non-empty, the quiz code. Recorded attempts are left untouched.
	UpdateContestantCredentials(ctx context.Context, usn, quizCode, password string) error
	// CountRecords counts contestants, questions and results in the given classes.
	CountRecords(ctx context.Context, classNames []string) (domain.Overview, error)
	InsertQuestion(ctx context.Context, question domain.Question) error
	ListResults(ctx context.Context, classNames []string, limit int) ([]domain.Result, error)
	DeleteResult(ctx context.Context, id string) (domain.Result, error)
}

// PoolInvalidator is implemented by pool caches that can drop an entry.
type PoolInvalidator interface {
	Invalidate(ctx context.Context, className, quizCode string) error
}

// ContestantInput is one row of a bulk contestant import.
type ContestantInput struct {
	USN          string `yaml:"usn" json:"usn"`
	Name         string `yaml:"name" json:"name"`
	ClassName    string `yaml:"className" json:"className"`
	QuizCode     string `yaml:"quizCode" json:"quizCode"`
	QuizPassword string `yaml:"quizPassword" json:"quizPassword"`
}

// QuestionInput describes a question to add to a pool.
type QuestionInput struct {
	ClassName     string   `yaml:"className" json:"className"`
	QuizCode      string   `yaml:"quizCode" json:"quizCode"`
	QuestionText  string   `yaml:"questionText" json:"questionText"`
	Options       []string `yaml:"options" json:"options"`
	CorrectAnswer string   `yaml:"correctAnswer" json:"correctAnswer"`
}

// CatalogService holds the administrative use cases the quiz depends on.
type CatalogService struct {
	store          CatalogStore
	pools          PoolRepository
	notifier       Notifier
	logger         *zap.Logger
	defaultClasses []string
	hashPasswords  bool
	now            func() time.Time
}

// CatalogOption customizes a CatalogService.
type CatalogOption func(*CatalogService)

// WithDefaultClasses sets the classes seeded when none exist.
func WithDefaultClasses(names []string) CatalogOption {
	return func(c *CatalogService) {
		if len(names) > 0 {
			c.defaultClasses = names
		}
	}
}

// WithPasswordHashing stores imported quiz passwords as bcrypt hashes.
func WithPasswordHashing(enabled bool) CatalogOption {
	return func(c *CatalogService) { c.hashPasswords = enabled }
}

// WithCatalogClock is used by tests for deterministic timestamps.
func WithCatalogClock(now func() time.Time) CatalogOption {
	return func(c *CatalogService) { c.now = now }
}

func NewCatalogService(store CatalogStore, pools PoolRepository, notifier Notifier, logger *zap.Logger, opts ...CatalogOption) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &CatalogService{
		store:          store,
		pools:          pools,
		notifier:       notifier,
		logger:         logger,
		defaultClasses: []string{"BCA-I", "BCA-II", "BCA-III"},
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidClasses lists class names, seeding the defaults once when none exist.
func (c *CatalogService) ValidClasses(ctx context.Context) ([]string, error) {
	classes, err := c.store.ListClasses(ctx)
	if err != nil {
		return nil, c.storeError("list classes", err)
	}
	if len(classes) == 0 {
		now := c.now()
		seed := make([]domain.Class, 0, len(c.defaultClasses))
		for _, name := range c.defaultClasses {
			seed = append(seed, domain.Class{Name: name, QuizTime: domain.DefaultQuizTime, CreatedAt: now})
		}
		if err := c.store.InsertClasses(ctx, seed); err != nil {
			return nil, c.storeError("seed classes", err)
		}
		if classes, err = c.store.ListClasses(ctx); err != nil {
			return nil, c.storeError("list classes", err)
		}
	}
	names := make([]string, 0, len(classes))
	for _, class := range classes {
		names = append(names, class.Name)
	}
	return names, nil
}

func (c *CatalogService) AddClass(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Invalid("Class name is required")
	}
	if err := c.store.UpsertClass(ctx, name); err != nil {
		return c.storeError("upsert class", err)
	}
	return nil
}

// DeleteClass removes the class record only; contestants, questions and
// results that reference it are left in place.
func (c *CatalogService) DeleteClass(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Invalid("Class name required")
	}
	if err := c.store.DeleteClass(ctx, name); err != nil {
		return c.storeError("delete class", err)
	}
	return nil
}

// QuizTime returns the class time budget in seconds.
func (c *CatalogService) QuizTime(ctx context.Context, name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, domain.Invalid("Class name required")
	}
	class, err := c.store.FindClass(ctx, name)
	if errors.Is(err, domain.ErrClassNotFound) {
		return domain.DefaultQuizTime, nil
	}
	if err != nil {
		return 0, c.storeError("find class", err)
	}
	if class.QuizTime <= 0 {
		return domain.DefaultQuizTime, nil
	}
	return class.QuizTime, nil
}

func (c *CatalogService) SetQuizTime(ctx context.Context, name string, seconds int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Invalid("Class name required")
	}
	if seconds < domain.MinQuizTime || seconds > domain.MaxQuizTime {
		return domain.Invalid("Quiz time must be between 60 and 3600 seconds")
	}
	if err := c.store.SetQuizTime(ctx, name, seconds); err != nil {
		return c.storeError("set quiz time", err)
	}
	return nil
}

// ImportContestants normalizes and inserts contestants, returning how many
// were created.
func (c *CatalogService) ImportContestants(ctx context.Context, inputs []ContestantInput) (int, error) {
	if len(inputs) == 0 {
		return 0, domain.Invalid("No student data provided")
	}
	valid, err := c.classSet(ctx)
	if err != nil {
		return 0, err
	}

	now := c.now()
	seen := make(map[string]struct{}, len(inputs))
	contestants := make([]domain.Contestant, 0, len(inputs))
	for _, in := range inputs {
		contestant := domain.Contestant{
			ID:           uuid.NewString(),
			USN:          NormalizeUSN(in.USN),
			Name:         strings.TrimSpace(in.Name),
			ClassName:    strings.TrimSpace(in.ClassName),
			QuizCode:     strings.TrimSpace(in.QuizCode),
			QuizPassword: in.QuizPassword,
			CreatedAt:    now,
		}
		if contestant.USN == "" || contestant.Name == "" || contestant.ClassName == "" ||
			contestant.QuizCode == "" || strings.TrimSpace(contestant.QuizPassword) == "" {
			return 0, domain.Invalid("Each contestant needs usn, name, className, quizCode and quizPassword")
		}
		if _, ok := valid[contestant.ClassName]; !ok {
			return 0, domain.Invalid("Invalid className: " + contestant.ClassName)
		}
		if _, dup := seen[contestant.USN]; dup {
			return 0, domain.Invalid("Duplicate USN in import: " + contestant.USN)
		}
		seen[contestant.USN] = struct{}{}
		if c.hashPasswords {
			hash, err := HashPassword(contestant.QuizPassword)
			if err != nil {
				return 0, errors.Join(domain.ErrInternal, err)
			}
			contestant.QuizPassword = hash
		}
		contestants = append(contestants, contestant)
	}

	if err := c.store.InsertContestants(ctx, contestants); err != nil {
		return 0, c.storeError("insert contestants", err)
	}

	byClass := make(map[string][]string)
	for _, contestant := range contestants {
		byClass[contestant.ClassName] = append(byClass[contestant.ClassName], contestant.ID)
	}
	for className, ids := range byClass {
		c.notify(ctx, domain.RecordCreated{ClassName: className, Kind: domain.KindContestants, IDs: ids, At: now})
	}
	return len(contestants), nil
}

// UpdateCredentials changes a contestant's quiz password and optionally the
// quiz code. An empty quizCode keeps the current one.
func (c *CatalogService) UpdateCredentials(ctx context.Context, usn, quizCode, password string) error {
	usn = NormalizeUSN(usn)
	quizCode = strings.TrimSpace(quizCode)
	if usn == "" {
		return domain.Invalid("USN is required")
	}
	if strings.TrimSpace(password) == "" {
		return domain.Invalid("Quiz password is required")
	}
	if c.hashPasswords {
		hash, err := HashPassword(password)
		if err != nil {
			return errors.Join(domain.ErrInternal, err)
		}
		password = hash
	}
	if err := c.store.UpdateContestantCredentials(ctx, usn, quizCode, password); err != nil {
		return c.storeError("update credentials", err)
	}
	c.logger.Info("contestant credentials updated",
		zap.String("usn", usn),
		zap.Bool("quizCodeChanged", quizCode != ""))
	return nil
}

// AddQuestion validates and stores a question, then drops the cached pool.
func (c *CatalogService) AddQuestion(ctx context.Context, in QuestionInput) (domain.Question, error) {
	question := domain.Question{
		ID:            uuid.NewString(),
		ClassName:     strings.TrimSpace(in.ClassName),
		QuizCode:      strings.TrimSpace(in.QuizCode),
		QuestionText:  strings.TrimSpace(in.QuestionText),
		CorrectAnswer: strings.TrimSpace(in.CorrectAnswer),
		CreatedAt:     c.now(),
	}
	for _, opt := range in.Options {
		question.Options = append(question.Options, strings.TrimSpace(opt))
	}
	if question.ClassName == "" || question.QuizCode == "" || question.QuestionText == "" ||
		len(question.Options) != domain.OptionsPerQuestion || question.CorrectAnswer == "" {
		return domain.Question{}, domain.Invalid("Provide className, quizCode, questionText, 4 options, and correctAnswer.")
	}
	for _, opt := range question.Options {
		if opt == "" {
			return domain.Question{}, domain.Invalid("Options must not be empty.")
		}
	}
	if !contains(question.Options, question.CorrectAnswer) {
		return domain.Question{}, domain.Invalid("Correct answer must match one of the options.")
	}
	valid, err := c.classSet(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	if _, ok := valid[question.ClassName]; !ok {
		return domain.Question{}, domain.Invalid("Invalid className: " + question.ClassName)
	}

	if err := c.store.InsertQuestion(ctx, question); err != nil {
		return domain.Question{}, c.storeError("insert question", err)
	}
	if inv, ok := c.pools.(PoolInvalidator); ok {
		if err := inv.Invalidate(ctx, question.ClassName, question.QuizCode); err != nil {
			c.logger.Warn("pool cache invalidation failed",
				zap.String("class", question.ClassName),
				zap.String("quizCode", question.QuizCode),
				zap.Error(err))
		}
	}
	c.notify(ctx, domain.RecordCreated{
		ClassName: question.ClassName,
		Kind:      domain.KindQuestions,
		IDs:       []string{question.ID},
		At:        question.CreatedAt,
	})
	return question, nil
}

// ListResults returns the newest results first, optionally limited to classes.
func (c *CatalogService) ListResults(ctx context.Context, classNames []string) ([]domain.Result, error) {
	results, err := c.store.ListResults(ctx, classNames, ResultListLimit)
	if err != nil {
		return nil, c.storeError("list results", err)
	}
	return results, nil
}

// DeleteResult removes the audit record. The contestant keeps its embedded
// attempt, so the contestant stays completed.
func (c *CatalogService) DeleteResult(ctx context.Context, id string) (domain.Result, error) {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return domain.Result{}, domain.Invalid("Invalid result id")
	}
	result, err := c.store.DeleteResult(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Result{}, c.storeError("delete result", err)
	}
	return result, nil
}

// Overview totals classes, contestants, questions and results. With no
// classNames it covers every valid class.
func (c *CatalogService) Overview(ctx context.Context, classNames []string) (domain.Overview, error) {
	if len(classNames) == 0 {
		names, err := c.ValidClasses(ctx)
		if err != nil {
			return domain.Overview{}, err
		}
		classNames = names
	}
	overview, err := c.store.CountRecords(ctx, classNames)
	if err != nil {
		return domain.Overview{}, c.storeError("count records", err)
	}
	overview.TotalClasses = len(classNames)
	return overview, nil
}

func (c *CatalogService) classSet(ctx context.Context) (map[string]struct{}, error) {
	names, err := c.ValidClasses(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set, nil
}

func (c *CatalogService) notify(ctx context.Context, event domain.RecordCreated) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, event); err != nil {
		c.logger.Warn("record-created notification failed",
			zap.String("class", event.ClassName),
			zap.String("kind", event.Kind),
			zap.Error(err))
	}
}

func (c *CatalogService) storeError(op string, err error) error {
	return translateStoreError(c.logger, op, err)
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
