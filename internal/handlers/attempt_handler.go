package handlers

import (
	"net/http"
	"strconv"

	"eduassist/internal/config"
	"eduassist/internal/observability"
	"eduassist/internal/services"
	contextutils "eduassist/internal/utils"

	"github.com/gin-gonic/gin"
)

// AttemptHandler handles quiz attempt lifecycle HTTP requests.
type AttemptHandler struct {
	attemptService services.AttemptServiceInterface
	cfg            *config.Config
	logger         *observability.Logger
}

// NewAttemptHandler creates a new AttemptHandler
func NewAttemptHandler(attemptService services.AttemptServiceInterface, cfg *config.Config, logger *observability.Logger) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService, cfg: cfg, logger: logger}
}

type startAttemptRequest struct {
	QuizID int `json:"quiz_id" binding:"required"`
}

type recordAnswerRequest struct {
	QuestionID       int `json:"question_id" binding:"required"`
	SelectedIndex    int `json:"selected_index" binding:"min=0"`
	TimeSpentSeconds int `json:"time_spent_seconds" binding:"min=0"`
}

// StartAttempt opens an attempt against an existing quiz.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "start_attempt")
	defer span.End()

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req startAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", "", err.Error())
		return
	}

	attempt, err := h.attemptService.StartAttempt(ctx, userID, req.QuizID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attempt": attempt})
}

// RecordAnswer grades and stores one answer on an open attempt.
func (h *AttemptHandler) RecordAnswer(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "record_answer")
	defer span.End()

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}

	attemptID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleValidationError(c, "attempt id", c.Param("id"), "must be an integer")
		return
	}

	var req recordAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", "", err.Error())
		return
	}

	answer, err := h.attemptService.RecordAnswer(ctx, attemptID, userID, req.QuestionID, req.SelectedIndex, req.TimeSpentSeconds)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// CompleteAttempt finalizes an attempt and returns the scored result.
func (h *AttemptHandler) CompleteAttempt(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "complete_attempt")
	defer span.End()

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}

	attemptID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleValidationError(c, "attempt id", c.Param("id"), "must be an integer")
		return
	}

	attempt, err := h.attemptService.CompleteAttempt(ctx, attemptID, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempt": attempt})
}

// GetAttempt returns one of the learner's attempts.
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_attempt")
	defer span.End()

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}

	attemptID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleValidationError(c, "attempt id", c.Param("id"), "must be an integer")
		return
	}

	attempt, err := h.attemptService.GetAttemptByID(ctx, attemptID, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempt": attempt})
}
