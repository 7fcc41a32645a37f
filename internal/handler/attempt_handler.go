package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/middleware"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stemsi/mocktest-backend/internal/validator"
)

// AttemptHandler handles the attempt lifecycle endpoints.
type AttemptHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "attempt_handler").Logger(),
	}
}

// parseIDParam reads a UUID path parameter, writing a 400 when it is malformed.
func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// StartAttempt godoc
// POST /api/v1/attempts
// Creates a new attempt for an active test.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.StartAttempt(c.Request.Context(), middleware.GetUserID(c), req.TestID, model.ParseLanguage(req.Language))
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, model.StartAttemptResponse{
		AttemptID: attempt.ID,
		StartedAt: attempt.StartedAt,
	})
}

// ListAttempts godoc
// GET /api/v1/attempts
// Returns the caller's attempts, newest first.
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	attempts, err := h.attemptService.ListAttempts(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// GetAttempt godoc
// GET /api/v1/attempts/:id
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attemptID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.attemptService.GetAttempt(c.Request.Context(), middleware.GetUserID(c), attemptID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}

// GetPaper godoc
// GET /api/v1/attempts/:id/paper?lang=HINDI
// Returns the ordered questions without answer keys.
func (h *AttemptHandler) GetPaper(c *gin.Context) {
	attemptID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var lang model.Language
	if raw := c.Query("lang"); raw != "" {
		lang = model.ParseLanguage(raw)
	}

	paper, err := h.attemptService.GetPaper(c.Request.Context(), middleware.GetUserID(c), attemptID, lang)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, paper)
}

// GetState godoc
// GET /api/v1/attempts/:id/state
// Returns stored answers, navigator counts and the remaining time.
func (h *AttemptHandler) GetState(c *gin.Context) {
	attemptID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	state, err := h.attemptService.GetAttemptState(c.Request.Context(), middleware.GetUserID(c), attemptID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// RecordAnswer godoc
// PUT /api/v1/attempts/:id/answers/:question_id
// Upserts the answer for one question. Last write wins.
func (h *AttemptHandler) RecordAnswer(c *gin.Context) {
	attemptID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := parseIDParam(c, "question_id")
	if !ok {
		return
	}

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		if err := h.attemptService.EnsureOpen(c.Request.Context(), middleware.GetUserID(c), attemptID); err != nil {
			failWith(c, h.log, err)
			return
		}
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if _, err := h.attemptService.RecordAnswer(c.Request.Context(), middleware.GetUserID(c), attemptID, questionID, req.SelectedOption, req.Status); err != nil {
		failWith(c, h.log, err)
		return
	}
	response.NoContent(c)
}

// ToggleReview godoc
// POST /api/v1/attempts/:id/answers/:question_id/review
// Flips the review flag and returns the stored record.
func (h *AttemptHandler) ToggleReview(c *gin.Context) {
	attemptID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := parseIDParam(c, "question_id")
	if !ok {
		return
	}

	rec, err := h.attemptService.ToggleReview(c.Request.Context(), middleware.GetUserID(c), attemptID, questionID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, rec)
}

// Submit godoc
// POST /api/v1/attempts/:id/submit
// Scores and completes the attempt. Repeated calls return the same result.
func (h *AttemptHandler) Submit(c *gin.Context) {
	attemptID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.attemptService.SubmitAttempt(c.Request.Context(), middleware.GetUserID(c), attemptID, model.TriggerManual)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Review godoc
// GET /api/v1/attempts/:id/review
// Returns the graded breakdown of a completed attempt.
func (h *AttemptHandler) Review(c *gin.Context) {
	attemptID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	review, err := h.attemptService.ReviewAttempt(c.Request.Context(), middleware.GetUserID(c), attemptID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, review)
}
