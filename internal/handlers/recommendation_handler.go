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
)

// RecommendationHandler serves study recommendation HTTP requests.
type RecommendationHandler struct {
	recommendationService services.RecommendationServiceInterface
	cfg                   *config.Config
	logger                *observability.Logger
}

// NewRecommendationHandler creates a new RecommendationHandler
func NewRecommendationHandler(recommendationService services.RecommendationServiceInterface, cfg *config.Config, logger *observability.Logger) *RecommendationHandler {
	return &RecommendationHandler{recommendationService: recommendationService, cfg: cfg, logger: logger}
}

// ListRecommendations returns the learner's recommendations, optionally
// filtered by ?status=.
func (h *RecommendationHandler) ListRecommendations(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_recommendations")
	defer span.End()

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var status models.RecommendationStatus
	if raw := c.Query("status"); raw != "" {
		parsed, valid := models.ParseRecommendationStatus(raw)
		if !valid {
			HandleValidationError(c, "status", raw, "must be one of pending, accepted, rejected, completed")
			return
		}
		status = parsed
	}

	recs, err := h.recommendationService.ListRecommendations(ctx, userID, status)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

// SmartRecommendations returns the learner's pending recommendations ranked
// by priority, then urgency.
func (h *RecommendationHandler) SmartRecommendations(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "smart_recommendations")
	defer span.End()

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}

	recs, err := h.recommendationService.SmartRecommendations(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus applies an explicit status transition to a recommendation.
func (h *RecommendationHandler) UpdateStatus(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "update_recommendation_status")
	defer span.End()

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}

	recommendationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleValidationError(c, "recommendation id", c.Param("id"), "must be an integer")
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", "", err.Error())
		return
	}

	status, valid := models.ParseRecommendationStatus(req.Status)
	if !valid {
		HandleValidationError(c, "status", req.Status, "must be one of pending, accepted, rejected, completed")
		return
	}

	if err := h.recommendationService.UpdateStatus(ctx, recommendationID, userID, status); err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}
