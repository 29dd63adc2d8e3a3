package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/domain"
	"classroom-quiz-service/internal/metrics"
	"go.uber.org/zap"
)

// QuizHandler serves the contestant-facing quiz endpoints.
type QuizHandler struct {
	service *app.QuizService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewQuizHandler(service *app.QuizService, m *metrics.Metrics, logger *zap.Logger) *QuizHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizHandler{service: service, metrics: m, logger: logger}
}

type errorBody struct {
	Error string `json:"error"`
}

type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type submitRequest struct {
	Name      string            `json:"name"`
	USN       string            `json:"usn"`
	Responses map[string]string `json:"responses"`
}

type submitResponse struct {
	Status string `json:"status"`
	domain.Submission
}

// RandomQuiz handles GET /api/quiz/random?usn&quizCode&password.
func (h *QuizHandler) RandomQuiz(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	payload, err := h.service.RandomQuiz(r.Context(), q.Get("usn"), q.Get("quizCode"), q.Get("password"))
	if err != nil {
		status, message := randomQuizError(err)
		h.metrics.QuizEvent("sample", outcome(err))
		if status == http.StatusInternalServerError {
			h.logger.Error("fetch quiz questions", zap.Error(err))
		}
		writeJSON(w, status, errorBody{Error: message})
		return
	}
	h.metrics.QuizEvent("sample", "ok")
	writeJSON(w, http.StatusOK, payload)
}

// Submit handles POST /api/quiz.
func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.QuizEvent("submit", "invalid")
		writeJSON(w, http.StatusBadRequest, statusBody{Status: "error", Message: "Invalid request body"})
		return
	}
	submission, err := h.service.Submit(r.Context(), req.USN, req.Responses)
	if err != nil {
		status, message := submitError(err)
		h.metrics.QuizEvent("submit", outcome(err))
		if status == http.StatusInternalServerError {
			h.logger.Error("submit quiz", zap.Error(err))
		}
		writeJSON(w, status, statusBody{Status: "error", Message: message})
		return
	}
	h.metrics.QuizEvent("submit", "ok")
	writeJSON(w, http.StatusOK, submitResponse{Status: "success", Submission: submission})
}

func randomQuizError(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, domain.ErrContestantNotFound):
		return http.StatusNotFound, "Contestant not found"
	case errors.Is(err, domain.ErrAlreadyAttempted):
		return http.StatusForbidden, "Quiz already attempted"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusForbidden, "Invalid quiz code or password"
	case errors.Is(err, domain.ErrNoQuestionsAvailable):
		return http.StatusNotFound, "No questions available for this quiz"
	default:
		return http.StatusInternalServerError, "Failed to fetch questions"
	}
}

func submitError(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, domain.ErrContestantNotFound):
		return http.StatusBadRequest, "Contestant not found"
	case errors.Is(err, domain.ErrAlreadyAttempted):
		return http.StatusForbidden, "Quiz already attempted"
	default:
		return http.StatusInternalServerError, "Server error"
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyAttempted):
		return "already_attempted"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrContestantNotFound), errors.Is(err, domain.ErrNoQuestionsAvailable):
		return "not_found"
	default:
		return "error"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
