package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"eduassist/internal/config"
	"eduassist/internal/middleware"
	"eduassist/internal/observability"
	"eduassist/internal/services"
	"eduassist/internal/version"
)

// NewRouter creates the API router with all middleware and routes wired in.
func NewRouter(
	cfg *config.Config,
	userService services.UserServiceInterface,
	questionService services.QuestionServiceInterface,
	quizService services.QuizServiceInterface,
	attemptService services.AttemptServiceInterface,
	recommendationService services.RecommendationServiceInterface,
	logger *observability.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// HTTP request logging through the observability logger
	router.Use(func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  latency.Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		if statusCode >= 500 {
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		} else if statusCode >= 400 {
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		} else {
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	})

	// Health check endpoint (defined before any middleware)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "eduassist"})
	})

	// OpenTelemetry middleware for HTTP tracing and context propagation
	router.Use(observability.GinMiddlewareWithErrorHandling("eduassist"))

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   config.SessionSecure,
	}
	if cfg.Server.Debug {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	} else {
		sessionOpts.SameSite = http.SameSiteLaxMode
		sessionOpts.Secure = true
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	router.Use(middleware.ErrorRecoveryMiddleware(middleware.DefaultErrorRecoveryConfig()))

	authHandler := NewAuthHandler(userService, cfg, logger)
	quizHandler := NewQuizHandler(quizService, questionService, cfg, logger)
	attemptHandler := NewAttemptHandler(attemptService, cfg, logger)
	recommendationHandler := NewRecommendationHandler(recommendationService, cfg, logger)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"service":   "eduassist",
				"version":   version.Version,
				"commit":    version.Commit,
				"buildTime": version.BuildTime,
			})
		})

		auth := v1.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/status", authHandler.Status)
			auth.GET("/me", middleware.RequireAuth(), authHandler.Me)
		}

		quiz := v1.Group("/quiz")
		quiz.Use(middleware.RequireAuth())
		{
			quiz.POST("/generate", quizHandler.GenerateQuiz)
			quiz.GET("/:id", quizHandler.GetQuiz)
		}

		attempts := v1.Group("/attempts")
		attempts.Use(middleware.RequireAuth())
		{
			attempts.POST("", attemptHandler.StartAttempt)
			attempts.GET("/:id", attemptHandler.GetAttempt)
			attempts.POST("/:id/answers", attemptHandler.RecordAnswer)
			attempts.POST("/:id/complete", attemptHandler.CompleteAttempt)
		}

		recommendations := v1.Group("/recommendations")
		recommendations.Use(middleware.RequireAuth())
		{
			recommendations.GET("", recommendationHandler.ListRecommendations)
			recommendations.GET("/smart", recommendationHandler.SmartRecommendations)
			recommendations.PUT("/:id/status", recommendationHandler.UpdateStatus)
		}
	}

	return router
}
