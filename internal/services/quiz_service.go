package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"eduassist/internal/config"
	"eduassist/internal/models"
	"eduassist/internal/observability"
	contextutils "eduassist/internal/utils"

	"github.com/lib/pq"
)

// QuizServiceInterface defines quiz generation and lookup operations.
type QuizServiceInterface interface {
	GenerateQuiz(ctx context.Context, req *models.QuizGenerationRequest) (*models.Quiz, error)
	GetQuizByID(ctx context.Context, id int) (*models.Quiz, error)
	GetQuizBySessionID(ctx context.Context, sessionID string) (*models.Quiz, error)
	FindQuizzesByDifficulty(ctx context.Context, topicID, subjectID int, tier models.DifficultyLevel, limit int) ([]*models.Quiz, error)
}

// QuizService assembles quizzes from the selection pipeline and guarantees
// idempotent regeneration: the same logical request always returns the same
// quiz, via an in-process TTL cache, a durable lookup by session identifier,
// and a unique constraint resolved by re-fetch on conflict.
type QuizService struct {
	db          *sql.DB
	logger      *observability.Logger
	cfg         *config.Config
	performance PerformanceServiceInterface
	questions   QuestionServiceInterface
	cache       *TTLCache
}

// NewQuizService creates a new quiz service. The cache is injected so tests
// and callers control its lifecycle.
func NewQuizService(db *sql.DB, logger *observability.Logger, cfg *config.Config, performance PerformanceServiceInterface, questions QuestionServiceInterface, cache *TTLCache) *QuizService {
	return &QuizService{
		db:          db,
		logger:      logger,
		cfg:         cfg,
		performance: performance,
		questions:   questions,
		cache:       cache,
	}
}

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// GenerateQuiz runs the full generation pipeline: profile, quota, session
// identifier, idempotency lookups, seeded selection with fallback cascade,
// persist. Partial fulfillment (fewer questions than requested but more than
// zero) is accepted and visible via Quiz.IsPartial.
func (s *QuizService) GenerateQuiz(ctx context.Context, req *models.QuizGenerationRequest) (result0 *models.Quiz, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "generate_quiz",
		observability.AttributeUserID(req.UserID),
		observability.AttributeTopicID(req.TopicID),
		observability.AttributeSubjectID(req.SubjectID),
	)
	defer observability.FinishSpan(span, &err)

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	profile, err := s.performance.AnalyzePerformance(ctx, req.UserID, req.TopicID)
	if err != nil {
		return nil, err
	}

	dist := PlanDistribution(profile, req.QuestionCount)
	sessionID := BuildSessionID(req, dist)

	if quiz := s.cache.Get(sessionID); quiz != nil {
		s.logger.Debug(ctx, "Quiz cache hit", map[string]interface{}{"session_id": sessionID})
		return quiz, nil
	}

	// Durable idempotency guard: a restart empties the cache but not the store.
	existing, err := s.GetQuizBySessionID(ctx, sessionID)
	if err != nil && !contextutils.IsError(err, contextutils.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		s.cache.Put(sessionID, existing)
		return existing, nil
	}

	var excluded []int
	if req.SessionType != models.SessionTypeAssessment {
		excluded, err = s.questions.GetRecentlyServedQuestionIDs(ctx, req.UserID, req.TopicID)
		if err != nil {
			return nil, err
		}
	}

	questionIDs, err := s.selectQuestions(ctx, req, dist, excluded, sessionID)
	if err != nil {
		return nil, err
	}

	realized, err := s.realizedDistribution(ctx, questionIDs)
	if err != nil {
		return nil, err
	}

	quiz := &models.Quiz{
		SessionID:        sessionID,
		UserID:           req.UserID,
		TopicID:          req.TopicID,
		SubjectID:        req.SubjectID,
		Title:            fmt.Sprintf("%s session %s", titleForSessionType(req.SessionType), sessionID[:6]),
		QuestionIDs:      questionIDs,
		Distribution:     realized,
		RequestedCount:   req.QuestionCount,
		SessionType:      req.SessionType,
		TimeLimitMinutes: roundToNearest(req.TimeLimitMinutes, config.DefaultTimeLimitRoundingMinutes),
	}

	if err := s.insertQuiz(ctx, quiz); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			// Lost a concurrent write race; converge to the winner's record.
			s.logger.Info(ctx, "Quiz already exists, returning existing", map[string]interface{}{"session_id": sessionID})
			winner, fetchErr := s.GetQuizBySessionID(ctx, sessionID)
			if fetchErr != nil {
				return nil, fetchErr
			}
			s.cache.Put(sessionID, winner)
			return winner, nil
		}
		return nil, err
	}

	// Usage analytics are best-effort; never fail the generation over them.
	if err := s.questions.IncrementUsage(ctx, questionIDs); err != nil {
		s.logger.Warn(ctx, "Failed to increment question usage", map[string]interface{}{"error": err.Error()})
	}

	s.cache.Put(sessionID, quiz)
	return quiz, nil
}

func (s *QuizService) validateRequest(req *models.QuizGenerationRequest) error {
	if err := contextutils.ValidateIDs(map[string]int{
		"user_id":    req.UserID,
		"topic_id":   req.TopicID,
		"subject_id": req.SubjectID,
	}); err != nil {
		return err
	}
	if req.QuestionCount <= 0 {
		return contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn, "question count must be positive", "")
	}
	if req.SessionType == "" {
		req.SessionType = models.SessionTypePractice
	}
	if req.SessionType != models.SessionTypePractice && req.SessionType != models.SessionTypeAssessment {
		return contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn, fmt.Sprintf("unknown session type: %s", req.SessionType), "")
	}
	return nil
}

// selectQuestions runs the per-tier selection with the topic and subject
// fallback cascade, finishing with a seeded shuffle of the whole set.
func (s *QuizService) selectQuestions(ctx context.Context, req *models.QuizGenerationRequest, dist models.DifficultyDistribution, excluded []int, sessionID string) ([]int, error) {
	rng := newSeededRand(seedFromSessionID(sessionID))
	overfetch := s.cfg.Engine.OverfetchFactor
	if overfetch <= 0 {
		overfetch = config.DefaultOverfetchFactor
	}

	var selected []int
	for _, tier := range models.AllDifficulties {
		quota := dist.CountFor(tier)
		if quota == 0 {
			continue
		}
		candidates, err := s.questions.GetCandidateIDs(ctx, req.TopicID, tier, excluded, quota*overfetch)
		if err != nil {
			return nil, err
		}
		// An empty tier is not a failure here; the fallbacks below top up.
		selected = append(selected, rng.Sample(candidates, quota)...)
	}

	total := dist.Total()
	if len(selected) < total {
		remainder := total - len(selected)
		candidates, err := s.questions.GetTopicFallbackIDs(ctx, req.TopicID, append(excluded, selected...), remainder*overfetch)
		if err != nil {
			return nil, err
		}
		selected = append(selected, rng.Sample(candidates, remainder)...)
	}

	if len(selected) < total {
		remainder := total - len(selected)
		candidates, err := s.questions.GetSubjectFallbackIDs(ctx, req.SubjectID, append(excluded, selected...), remainder*overfetch)
		if err != nil {
			return nil, err
		}
		selected = append(selected, rng.Sample(candidates, remainder)...)
	}

	if len(selected) == 0 {
		return nil, &NoContentAvailableError{
			TopicID:       req.TopicID,
			SubjectID:     req.SubjectID,
			Requested:     total,
			ExcludedCount: len(excluded),
		}
	}

	return rng.Shuffle(selected), nil
}

// realizedDistribution counts the actually selected questions per tier, which
// may differ from the planned quota after fallbacks or partial fulfillment.
func (s *QuizService) realizedDistribution(ctx context.Context, questionIDs []int) (models.DifficultyDistribution, error) {
	questions, err := s.questions.GetQuestionsByIDs(ctx, questionIDs)
	if err != nil {
		return models.DifficultyDistribution{}, err
	}
	var dist models.DifficultyDistribution
	for _, q := range questions {
		switch q.Difficulty {
		case models.DifficultyLow:
			dist.Low++
		case models.DifficultyMedium:
			dist.Medium++
		case models.DifficultyHigh:
			dist.High++
		}
	}
	return dist, nil
}

func titleForSessionType(sessionType string) string {
	if sessionType == models.SessionTypeAssessment {
		return "Assessment"
	}
	return "Practice"
}

func (s *QuizService) insertQuiz(ctx context.Context, quiz *models.Quiz) error {
	questionIDsJSON, err := json.Marshal(quiz.QuestionIDs)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal question ids")
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO quizzes (session_id, user_id, topic_id, subject_id, title, session_type,
		                     question_ids, requested_count, low_count, medium_count, high_count,
		                     time_limit_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`,
		quiz.SessionID, quiz.UserID, quiz.TopicID, quiz.SubjectID, quiz.Title, quiz.SessionType,
		questionIDsJSON, quiz.RequestedCount, quiz.Distribution.Low, quiz.Distribution.Medium,
		quiz.Distribution.High, quiz.TimeLimitMinutes,
	).Scan(&quiz.ID, &quiz.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return err
		}
		return contextutils.WrapError(err, "failed to insert quiz")
	}
	return nil
}

const quizSelectFields = `id, session_id, user_id, topic_id, subject_id, title, session_type, question_ids, requested_count, low_count, medium_count, high_count, time_limit_minutes, created_at`

func scanQuizFromRows(rows *sql.Rows) (*models.Quiz, error) {
	quiz := &models.Quiz{}
	var questionIDsJSON []byte

	err := rows.Scan(
		&quiz.ID,
		&quiz.SessionID,
		&quiz.UserID,
		&quiz.TopicID,
		&quiz.SubjectID,
		&quiz.Title,
		&quiz.SessionType,
		&questionIDsJSON,
		&quiz.RequestedCount,
		&quiz.Distribution.Low,
		&quiz.Distribution.Medium,
		&quiz.Distribution.High,
		&quiz.TimeLimitMinutes,
		&quiz.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(questionIDsJSON) > 0 {
		if err := json.Unmarshal(questionIDsJSON, &quiz.QuestionIDs); err != nil {
			return nil, contextutils.WrapError(err, "failed to unmarshal quiz question ids")
		}
	}
	return quiz, nil
}

// GetQuizByID returns a quiz by its numeric ID.
func (s *QuizService) GetQuizByID(ctx context.Context, id int) (result0 *models.Quiz, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "get_quiz_by_id",
		observability.AttributeLimit(id),
	)
	defer observability.FinishSpan(span, &err)

	return s.queryOneQuiz(ctx, `SELECT `+quizSelectFields+` FROM quizzes WHERE id = $1`, id)
}

// GetQuizBySessionID returns the quiz owning the session identifier, or
// contextutils.ErrRecordNotFound.
func (s *QuizService) GetQuizBySessionID(ctx context.Context, sessionID string) (result0 *models.Quiz, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "get_quiz_by_session_id",
		observability.AttributeSessionID(sessionID),
	)
	defer observability.FinishSpan(span, &err)

	return s.queryOneQuiz(ctx, `SELECT `+quizSelectFields+` FROM quizzes WHERE session_id = $1`, sessionID)
}

// FindQuizzesByDifficulty returns recent quizzes for the topic (falling back
// to the whole subject) whose realized distribution leans toward the tier.
// Used by the recommendation engine to attach suggestions.
func (s *QuizService) FindQuizzesByDifficulty(ctx context.Context, topicID, subjectID int, tier models.DifficultyLevel, limit int) (result0 []*models.Quiz, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "find_quizzes_by_difficulty",
		observability.AttributeTopicID(topicID),
		observability.AttributeSubjectID(subjectID),
		observability.AttributeDifficulty(string(tier)),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	tierColumn := "medium_count"
	switch tier {
	case models.DifficultyLow:
		tierColumn = "low_count"
	case models.DifficultyHigh:
		tierColumn = "high_count"
	}

	query := `SELECT ` + quizSelectFields + ` FROM quizzes
		WHERE (topic_id = $1 OR subject_id = $2) AND ` + tierColumn + ` > 0
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, topicID, subjectID, limit)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query quizzes by difficulty")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var quizzes []*models.Quiz
	for rows.Next() {
		quiz, scanErr := scanQuizFromRows(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

func (s *QuizService) queryOneQuiz(ctx context.Context, query string, args ...interface{}) (*models.Quiz, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query quiz")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, contextutils.WrapError(err, "failed to iterate quiz rows")
		}
		return nil, contextutils.ErrRecordNotFound
	}
	return scanQuizFromRows(rows)
}
