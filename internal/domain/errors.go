package domain

import "errors"

var (
	// ErrValidation is returned for missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrContestantNotFound is returned when no contestant matches a USN.
	ErrContestantNotFound = errors.New("contestant not found")
	// ErrQuestionNotFound indicates a question ID is unknown.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrClassNotFound indicates a class name is unknown.
	ErrClassNotFound = errors.New("class not found")
	// ErrResultNotFound indicates a result ID is unknown.
	ErrResultNotFound = errors.New("result not found")
	// ErrAlreadyAttempted is terminal: the contestant has a recorded attempt.
	ErrAlreadyAttempted = errors.New("quiz already attempted")
	// ErrInvalidCredentials covers both quiz code and password mismatches.
	ErrInvalidCredentials = errors.New("invalid quiz code or password")
	// ErrNoQuestionsAvailable is returned when a pool is empty.
	ErrNoQuestionsAvailable = errors.New("no questions available")
	// ErrDuplicate indicates a uniqueness constraint was violated.
	ErrDuplicate = errors.New("duplicate record")
	// ErrInternal marks store or unexpected failures.
	ErrInternal = errors.New("internal error")
)

// ValidationError carries a client-facing message and matches ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError.
func Invalid(message string) error {
	return &ValidationError{Message: message}
}
