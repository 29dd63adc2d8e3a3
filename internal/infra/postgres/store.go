package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"classroom-quiz-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const uniqueViolation = "23505"

// Store persists classes, contestants, questions and results in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const contestantColumns = `id::text, usn, name, class_name, quiz_code, quiz_password, results, created_at`

func (s *Store) FindContestant(ctx context.Context, usn string) (domain.Contestant, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+contestantColumns+` FROM contestants WHERE usn = $1`, usn)
	var (
		c       domain.Contestant
		results []byte
	)
	err := row.Scan(&c.ID, &c.USN, &c.Name, &c.ClassName, &c.QuizCode, &c.QuizPassword, &results, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Contestant{}, domain.ErrContestantNotFound
	}
	if err != nil {
		return domain.Contestant{}, fmt.Errorf("find contestant: %w", err)
	}
	if err := json.Unmarshal(results, &c.Results); err != nil {
		return domain.Contestant{}, fmt.Errorf("unmarshal attempts: %w", err)
	}
	return c, nil
}

// RecordAttempt appends the attempt only while the contestant has none and
// inserts the result in the same transaction. Concurrent callers serialize on
// the contestant row; the loser sees zero affected rows.
func (s *Store) RecordAttempt(ctx context.Context, contestantID string, attempt domain.Attempt, result domain.Result) error {
	attempts, err := json.Marshal([]domain.Attempt{attempt})
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	responses, err := json.Marshal(result.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		UPDATE contestants SET results = results || $2::jsonb
		WHERE id = $1::uuid AND jsonb_array_length(results) = 0`,
		contestantID, string(attempts))
	if err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM contestants WHERE id = $1::uuid)`, contestantID).Scan(&exists); err != nil {
			return fmt.Errorf("check contestant: %w", err)
		}
		if !exists {
			return domain.ErrContestantNotFound
		}
		return domain.ErrAlreadyAttempted
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO results (id, attempt_id, contestant_id, class_name, quiz_code, name, usn, responses, score, submitted_at)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7, $8::jsonb, $9, $10)`,
		result.ID, result.AttemptID, result.ContestantID, result.ClassName, result.QuizCode,
		result.Name, result.USN, string(responses), result.Score, result.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// InsertContestants is all-or-nothing.
func (s *Store) InsertContestants(ctx context.Context, contestants []domain.Contestant) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, c := range contestants {
		_, err := tx.Exec(ctx, `
			INSERT INTO contestants (id, usn, name, class_name, quiz_code, quiz_password, created_at)
			VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)`,
			c.ID, c.USN, c.Name, c.ClassName, c.QuizCode, c.QuizPassword, c.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicate
			}
			return fmt.Errorf("insert contestant %s: %w", c.USN, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpdateContestantCredentials never touches the results column.
func (s *Store) UpdateContestantCredentials(ctx context.Context, usn, quizCode, password string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE contestants
		SET quiz_password = $2, quiz_code = COALESCE(NULLIF($3, ''), quiz_code)
		WHERE usn = $1`, usn, password, quizCode)
	if err != nil {
		return fmt.Errorf("update credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrContestantNotFound
	}
	return nil
}

const questionColumns = `id::text, class_name, quiz_code, question_text, options, correct_answer, created_at`

// FindQuestions returns questions in the order of ids, skipping unknown ones.
func (s *Store) FindQuestions(ctx context.Context, ids []string) ([]domain.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+questionColumns+` FROM questions WHERE id::text = ANY($1::text[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}
	found, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	out := make([]domain.Question, 0, len(found))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *Store) LoadPool(ctx context.Context, className, quizCode string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+questionColumns+` FROM questions
		WHERE class_name = $1 AND quiz_code = $2
		ORDER BY created_at, id`, className, quizCode)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	return scanQuestions(rows)
}

func (s *Store) InsertQuestion(ctx context.Context, q domain.Question) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO questions (id, class_name, quiz_code, question_text, options, correct_answer, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)`,
		q.ID, q.ClassName, q.QuizCode, q.QuestionText, q.Options, q.CorrectAnswer, q.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func scanQuestions(rows pgx.Rows) ([]domain.Question, error) {
	defer rows.Close()
	var out []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.ClassName, &q.QuizCode, &q.QuestionText, &q.Options, &q.CorrectAnswer, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

func (s *Store) FindClass(ctx context.Context, name string) (domain.Class, error) {
	var c domain.Class
	err := s.pool.QueryRow(ctx, `SELECT name, quiz_time, created_at FROM classes WHERE name = $1`, name).
		Scan(&c.Name, &c.QuizTime, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Class{}, domain.ErrClassNotFound
	}
	if err != nil {
		return domain.Class{}, fmt.Errorf("find class: %w", err)
	}
	return c, nil
}

func (s *Store) ListClasses(ctx context.Context) ([]domain.Class, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, quiz_time, created_at FROM classes ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()
	var out []domain.Class
	for rows.Next() {
		var c domain.Class
		if err := rows.Scan(&c.Name, &c.QuizTime, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertClasses skips names that already exist, so concurrent seeding cannot
// duplicate entries.
func (s *Store) InsertClasses(ctx context.Context, classes []domain.Class) error {
	if len(classes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range classes {
		quizTime := c.QuizTime
		if quizTime == 0 {
			quizTime = domain.DefaultQuizTime
		}
		batch.Queue(`INSERT INTO classes (name, quiz_time, created_at) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
			c.Name, quizTime, c.CreatedAt)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range classes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert class: %w", err)
		}
	}
	return nil
}

func (s *Store) UpsertClass(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO classes (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("upsert class: %w", err)
	}
	return nil
}

func (s *Store) DeleteClass(ctx context.Context, name string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM classes WHERE name = $1`, name); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

func (s *Store) SetQuizTime(ctx context.Context, name string, seconds int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO classes (name, quiz_time) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET quiz_time = EXCLUDED.quiz_time`, name, seconds)
	if err != nil {
		return fmt.Errorf("set quiz time: %w", err)
	}
	return nil
}

const resultColumns = `id::text, attempt_id::text, COALESCE(contestant_id::text, ''), class_name, quiz_code, name, usn, responses, score, submitted_at`

func (s *Store) ListResults(ctx context.Context, classNames []string, limit int) ([]domain.Result, error) {
	query := `SELECT ` + resultColumns + ` FROM results`
	args := []interface{}{}
	if len(classNames) > 0 {
		query += ` WHERE class_name = ANY($1::text[])`
		args = append(args, classNames)
	}
	query += ` ORDER BY submitted_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()
	var out []domain.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeleteResult(ctx context.Context, id string) (domain.Result, error) {
	row := s.pool.QueryRow(ctx, `DELETE FROM results WHERE id = $1::uuid RETURNING `+resultColumns, id)
	r, err := scanResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Result{}, domain.ErrResultNotFound
	}
	return r, err
}

func (s *Store) CountRecords(ctx context.Context, classNames []string) (domain.Overview, error) {
	var out domain.Overview
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM contestants WHERE class_name = ANY($1::text[])),
			(SELECT count(*) FROM questions WHERE class_name = ANY($1::text[])),
			(SELECT count(*) FROM results WHERE class_name = ANY($1::text[]))`, classNames).
		Scan(&out.TotalContestants, &out.TotalQuestions, &out.TotalResults)
	if err != nil {
		return domain.Overview{}, fmt.Errorf("count records: %w", err)
	}
	return out, nil
}

func scanResult(row pgx.Row) (domain.Result, error) {
	var (
		r         domain.Result
		responses []byte
	)
	err := row.Scan(&r.ID, &r.AttemptID, &r.ContestantID, &r.ClassName, &r.QuizCode, &r.Name, &r.USN, &responses, &r.Score, &r.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Result{}, err
		}
		return domain.Result{}, fmt.Errorf("scan result: %w", err)
	}
	if err := json.Unmarshal(responses, &r.Responses); err != nil {
		return domain.Result{}, fmt.Errorf("unmarshal responses: %w", err)
	}
	return r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
