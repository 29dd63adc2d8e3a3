package domain

import "time"

// Result kinds carried by RecordCreated events. They mirror the per-class
// reference groups kept by the admin index.
const (
	KindContestants = "contestants"
	KindQuestions   = "questions"
	KindResults     = "results"
)

const (
	// DefaultQuizTime is the time budget in seconds used when a class has none.
	DefaultQuizTime = 300
	MinQuizTime     = 60
	MaxQuizTime     = 3600

	// OptionsPerQuestion is the exact number of options a question carries.
	OptionsPerQuestion = 4
)

// Class identifies a cohort and its quiz time budget.
type Class struct {
	Name      string    `json:"name"`
	QuizTime  int       `json:"quizTime"`
	CreatedAt time.Time `json:"createdAt"`
}

// Contestant is one quiz-taker. Results holds at most one attempt.
type Contestant struct {
	ID           string    `json:"id"`
	USN          string    `json:"usn"`
	Name         string    `json:"name"`
	ClassName    string    `json:"className"`
	QuizCode     string    `json:"quizCode"`
	QuizPassword string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	Results      []Attempt `json:"results"`
}

// Attempted reports whether the contestant already completed the quiz.
func (c Contestant) Attempted() bool {
	return len(c.Results) > 0
}

// Attempt is the attempt record embedded on a contestant. ID is shared with
// the Result audit record created for the same submission.
type Attempt struct {
	ID        string            `json:"id"`
	Responses map[string]string `json:"responses"`
	Score     int               `json:"score"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Question is a four-option MCQ belonging to one (className, quizCode) pool.
type Question struct {
	ID            string    `json:"id"`
	ClassName     string    `json:"className"`
	QuizCode      string    `json:"quizCode"`
	QuestionText  string    `json:"questionText"`
	Options       []string  `json:"options"`
	CorrectAnswer string    `json:"correctAnswer"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Public strips the answer from a question before it reaches a contestant.
func (q Question) Public() PublicQuestion {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return PublicQuestion{ID: q.ID, QuestionText: q.QuestionText, Options: options}
}

// PublicQuestion is the answer-free projection handed out at sampling time.
type PublicQuestion struct {
	ID           string   `json:"_id"`
	QuestionText string   `json:"questionText"`
	Options      []string `json:"options"`
}

// Result is the admin-facing audit record of one attempt.
type Result struct {
	ID           string            `json:"id"`
	AttemptID    string            `json:"attemptId"`
	ContestantID string            `json:"contestantId"`
	ClassName    string            `json:"className"`
	QuizCode     string            `json:"quizCode"`
	Name         string            `json:"name"`
	USN          string            `json:"usn"`
	Responses    map[string]string `json:"responses"`
	Score        int               `json:"score"`
	SubmittedAt  time.Time         `json:"submittedAt"`
}

// Eligibility is produced by a successful gate check and consumed by sampling.
type Eligibility struct {
	ContestantID string
	USN          string
	Name         string
	ClassName    string
	QuizCode     string
}

// QuizPayload is everything the timed client session receives.
type QuizPayload struct {
	Name      string           `json:"name"`
	Questions []PublicQuestion `json:"questions"`
	QuizTime  int              `json:"quizTime"`
}

// AnswerReview discloses the answer key for one question after submission.
type AnswerReview struct {
	QuestionID    string `json:"questionId"`
	QuestionText  string `json:"questionText"`
	CorrectAnswer string `json:"correctAnswer"`
	UserAnswer    string `json:"userAnswer"`
}

// Submission summarizes a scored attempt.
type Submission struct {
	Score          int            `json:"score"`
	TotalQuestions int            `json:"totalQuestions"`
	Name           string         `json:"name"`
	USN            string         `json:"usn"`
	ClassName      string         `json:"className"`
	CorrectAnswers []AnswerReview `json:"correctAnswers"`
}

// RecordCreated announces a new contestant, question or result for a class.
type RecordCreated struct {
	ClassName string    `json:"className"`
	Kind      string    `json:"kind"`
	IDs       []string  `json:"ids"`
	At        time.Time `json:"at"`
}

// Overview holds admin dashboard totals.
type Overview struct {
	TotalClasses     int `json:"totalClasses"`
	TotalContestants int `json:"totalContestants"`
	TotalQuestions   int `json:"totalQuestions"`
	TotalResults     int `json:"totalResults"`
}
