package handlers

import (
	"net/http"
	"strconv"

	"eduassist/internal/config"
	"eduassist/internal/models"
	"eduassist/internal/observability"
	"eduassist/internal/services"
	contextutils "eduassist/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// QuizHandler handles quiz generation and retrieval HTTP requests.
type QuizHandler struct {
	quizService     services.QuizServiceInterface
	questionService services.QuestionServiceInterface
	cfg             *config.Config
	logger          *observability.Logger
}

// NewQuizHandler creates a new QuizHandler
func NewQuizHandler(quizService services.QuizServiceInterface, questionService services.QuestionServiceInterface, cfg *config.Config, logger *observability.Logger) *QuizHandler {
	return &QuizHandler{
		quizService:     quizService,
		questionService: questionService,
		cfg:             cfg,
		logger:          logger,
	}
}

type generateQuizRequest struct {
	TopicID          int    `json:"topic_id" binding:"required"`
	SubjectID        int    `json:"subject_id" binding:"required"`
	QuestionCount    int    `json:"question_count" binding:"required,min=1,max=50"`
	SessionType      string `json:"session_type"`
	TimeLimitMinutes int    `json:"time_limit_minutes"`
}

// GenerateQuiz runs the personalization pipeline for the authenticated
// learner. Repeating the same logical request returns the same quiz.
func (h *QuizHandler) GenerateQuiz(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "generate_quiz")
	defer span.End()

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req generateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", "", err.Error())
		return
	}

	span.SetAttributes(
		attribute.Int("quiz.topic_id", req.TopicID),
		attribute.Int("quiz.question_count", req.QuestionCount),
	)

	quiz, err := h.quizService.GenerateQuiz(ctx, &models.QuizGenerationRequest{
		UserID:           userID,
		TopicID:          req.TopicID,
		SubjectID:        req.SubjectID,
		QuestionCount:    req.QuestionCount,
		SessionType:      req.SessionType,
		TimeLimitMinutes: req.TimeLimitMinutes,
	})
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quiz":    quiz,
		"partial": quiz.IsPartial(),
	})
}

// GetQuiz returns a quiz with its full question set. Correct answers are
// stripped so the payload can be shown to the learner.
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_quiz")
	defer span.End()

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}

	quizID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleValidationError(c, "quiz id", c.Param("id"), "must be an integer")
		return
	}

	quiz, err := h.quizService.GetQuizByID(ctx, quizID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if quiz.UserID != userID {
		StandardizeAppError(c, contextutils.ErrForbidden)
		return
	}

	questions, err := h.questionService.GetQuestionsByIDs(ctx, quiz.QuestionIDs)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quiz":      quiz,
		"questions": sanitizeQuestions(questions),
	})
}

// sanitizeQuestions strips grading fields from questions before they are
// sent to the learner.
func sanitizeQuestions(questions []*models.Question) []gin.H {
	out := make([]gin.H, 0, len(questions))
	for _, q := range questions {
		out = append(out, gin.H{
			"id":         q.ID,
			"topic_id":   q.TopicID,
			"subject_id": q.SubjectID,
			"difficulty": q.Difficulty,
			"content":    q.Content,
		})
	}
	return out
}
