// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"eduassist/internal/config"
	"eduassist/internal/database"
	"eduassist/internal/observability"
	"eduassist/internal/services"
	contextutils "eduassist/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetUserService() (services.UserServiceInterface, error)
	GetQuestionService() (services.QuestionServiceInterface, error)
	GetPerformanceService() (services.PerformanceServiceInterface, error)
	GetQuizService() (services.QuizServiceInterface, error)
	GetAttemptService() (services.AttemptServiceInterface, error)
	GetRecommendationService() (services.RecommendationServiceInterface, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(_ context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	sc.initializeServices()
	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetUserService returns the user service
func (sc *ServiceContainer) GetUserService() (services.UserServiceInterface, error) {
	return GetServiceAs[services.UserServiceInterface](sc, "user")
}

// GetQuestionService returns the question service
func (sc *ServiceContainer) GetQuestionService() (services.QuestionServiceInterface, error) {
	return GetServiceAs[services.QuestionServiceInterface](sc, "question")
}

// GetPerformanceService returns the performance profiling service
func (sc *ServiceContainer) GetPerformanceService() (services.PerformanceServiceInterface, error) {
	return GetServiceAs[services.PerformanceServiceInterface](sc, "performance")
}

// GetQuizService returns the quiz generation service
func (sc *ServiceContainer) GetQuizService() (services.QuizServiceInterface, error) {
	return GetServiceAs[services.QuizServiceInterface](sc, "quiz")
}

// GetAttemptService returns the attempt lifecycle service
func (sc *ServiceContainer) GetAttemptService() (services.AttemptServiceInterface, error) {
	return GetServiceAs[services.AttemptServiceInterface](sc, "attempt")
}

// GetRecommendationService returns the recommendation service
func (sc *ServiceContainer) GetRecommendationService() (services.RecommendationServiceInterface, error) {
	return GetServiceAs[services.RecommendationServiceInterface](sc, "recommendation")
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var errors []error
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errors = append(errors, err)
		}
	}
	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices() {
	userService := services.NewUserService(sc.db, sc.cfg, sc.logger)
	sc.services["user"] = userService

	questionService := services.NewQuestionService(sc.db, sc.logger, sc.cfg)
	sc.services["question"] = questionService

	performanceService := services.NewPerformanceService(sc.db, sc.logger, sc.cfg)
	sc.services["performance"] = performanceService

	quizCache := services.NewTTLCache(sc.cfg.Engine.QuizCacheSize, sc.cfg.Engine.QuizCacheTTL)
	quizService := services.NewQuizService(sc.db, sc.logger, sc.cfg, performanceService, questionService, quizCache)
	sc.services["quiz"] = quizService

	recommendationService := services.NewRecommendationService(sc.db, sc.logger, sc.cfg, quizService)
	sc.services["recommendation"] = recommendationService

	attemptService := services.NewAttemptService(sc.db, sc.logger, sc.cfg, quizService, questionService, performanceService, recommendationService)
	sc.services["attempt"] = attemptService
}
