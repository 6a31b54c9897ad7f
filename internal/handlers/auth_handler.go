package handlers

import (
	"net/http"

	"eduassist/internal/config"
	"eduassist/internal/middleware"
	"eduassist/internal/observability"
	"eduassist/internal/services"
	contextutils "eduassist/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// AuthHandler serves signup, login, logout and session introspection.
type AuthHandler struct {
	userService services.UserServiceInterface
	cfg         *config.Config
	logger      *observability.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(userService services.UserServiceInterface, cfg *config.Config, logger *observability.Logger) *AuthHandler {
	return &AuthHandler{userService: userService, cfg: cfg, logger: logger}
}

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Signup creates a new learner account and opens a session.
func (h *AuthHandler) Signup(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "signup")
	defer span.End()

	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", "", err.Error())
		return
	}

	user, err := h.userService.CreateUserWithPassword(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	if err := h.saveSession(c, user.ID, user.Username); err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login authenticates a learner and opens a session.
func (h *AuthHandler) Login(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "login")
	defer span.End()

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", "", err.Error())
		return
	}

	user, err := h.userService.AuthenticateUser(ctx, req.Username, req.Password)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	if err := h.saveSession(c, user.ID, user.Username); err != nil {
		HandleAppError(c, err)
		return
	}

	if err := h.userService.UpdateLastActive(ctx, user.ID); err != nil {
		h.logger.Warn(ctx, "Failed to update last active", map[string]interface{}{"error": err.Error()})
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout clears the session.
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to clear session"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated learner's account.
func (h *AuthHandler) Me(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "me")
	defer span.End()

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeAppError(c, contextutils.ErrUnauthorized)
		return
	}

	user, err := h.userService.GetUserByID(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if user == nil {
		StandardizeAppError(c, contextutils.ErrRecordNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Status reports whether the caller has an authenticated session.
func (h *AuthHandler) Status(c *gin.Context) {
	if _, ok := GetUserIDFromSession(c); ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": false})
}

func (h *AuthHandler) saveSession(c *gin.Context, userID int, username string) error {
	session := sessions.Default(c)
	session.Set(middleware.UserIDKey, userID)
	session.Set(middleware.UsernameKey, username)
	if err := session.Save(); err != nil {
		return contextutils.WrapError(err, "failed to save session")
	}
	return nil
}
