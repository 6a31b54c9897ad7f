package services

import (
	"context"
	"database/sql"
	"encoding/json"

	"eduassist/internal/config"
	"eduassist/internal/models"
	"eduassist/internal/observability"
	contextutils "eduassist/internal/utils"

	"github.com/lib/pq"
)

// QuestionServiceInterface defines the interface for question-related
// operations. This allows for easier mocking in tests.
type QuestionServiceInterface interface {
	SaveQuestion(ctx context.Context, question *models.Question) error
	GetQuestionByID(ctx context.Context, id int) (*models.Question, error)
	GetQuestionsByIDs(ctx context.Context, ids []int) ([]*models.Question, error)
	GetCandidateIDs(ctx context.Context, topicID int, tier models.DifficultyLevel, excluded []int, limit int) ([]int, error)
	GetTopicFallbackIDs(ctx context.Context, topicID int, excluded []int, limit int) ([]int, error)
	GetSubjectFallbackIDs(ctx context.Context, subjectID int, excluded []int, limit int) ([]int, error)
	GetRecentlyServedQuestionIDs(ctx context.Context, userID, topicID int) ([]int, error)
	IncrementUsage(ctx context.Context, ids []int) error
	DB() *sql.DB
}

// QuestionService provides question storage and the candidate queries behind
// quiz selection.
type QuestionService struct {
	db     *sql.DB
	logger *observability.Logger
	cfg    *config.Config
}

// NewQuestionService creates a new question service.
func NewQuestionService(db *sql.DB, logger *observability.Logger, cfg *config.Config) *QuestionService {
	return &QuestionService{db: db, logger: logger, cfg: cfg}
}

// DB returns the underlying database handle.
func (s *QuestionService) DB() *sql.DB {
	return s.db
}

const questionSelectFields = `id, topic_id, subject_id, difficulty, content, correct_answer, explanation, is_active, usage_count, created_at`

// scanQuestionFromRows scans a database row into a models.Question struct
func (s *QuestionService) scanQuestionFromRows(rows *sql.Rows) (*models.Question, error) {
	question := &models.Question{}
	var contentJSON []byte
	var explanation sql.NullString

	err := rows.Scan(
		&question.ID,
		&question.TopicID,
		&question.SubjectID,
		&question.Difficulty,
		&contentJSON,
		&question.CorrectAnswer,
		&explanation,
		&question.IsActive,
		&question.UsageCount,
		&question.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if explanation.Valid {
		question.Explanation = explanation.String
	}
	if len(contentJSON) > 0 {
		if err := json.Unmarshal(contentJSON, &question.Content); err != nil {
			return nil, contextutils.WrapError(err, "failed to unmarshal question content")
		}
	}
	return question, nil
}

// SaveQuestion persists a new question and fills in its generated ID.
func (s *QuestionService) SaveQuestion(ctx context.Context, question *models.Question) (err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "save_question",
		observability.AttributeTopicID(question.TopicID),
		observability.AttributeDifficulty(string(question.Difficulty)),
	)
	defer observability.FinishSpan(span, &err)

	if !question.Difficulty.IsValid() {
		return contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn, "invalid difficulty level", "")
	}

	contentJSON, err := json.Marshal(question.Content)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal question content")
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO questions (topic_id, subject_id, difficulty, content, correct_answer, explanation, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id, created_at`,
		question.TopicID, question.SubjectID, question.Difficulty, contentJSON,
		question.CorrectAnswer, question.Explanation,
	).Scan(&question.ID, &question.CreatedAt)
	if err != nil {
		return contextutils.WrapError(err, "failed to insert question")
	}
	question.IsActive = true
	return nil
}

// GetQuestionByID returns a single question by its ID.
func (s *QuestionService) GetQuestionByID(ctx context.Context, id int) (result0 *models.Question, err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "get_question_by_id",
		observability.AttributeQuestionID(id),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `SELECT `+questionSelectFields+` FROM questions WHERE id = $1`, id)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query question")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, contextutils.WrapError(err, "failed to iterate question rows")
		}
		return nil, contextutils.ErrRecordNotFound
	}
	return s.scanQuestionFromRows(rows)
}

// GetQuestionsByIDs returns the questions for the given ids, preserving the
// order of ids in the result.
func (s *QuestionService) GetQuestionsByIDs(ctx context.Context, ids []int) (result0 []*models.Question, err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "get_questions_by_ids",
		observability.AttributeLimit(len(ids)),
	)
	defer observability.FinishSpan(span, &err)

	if len(ids) == 0 {
		return []*models.Question{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionSelectFields+` FROM questions WHERE id = ANY($1)`,
		pq.Int64Array(toInt64Slice(ids)))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query questions by ids")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	byID := make(map[int]*models.Question, len(ids))
	for rows.Next() {
		question, scanErr := s.scanQuestionFromRows(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		byID[question.ID] = question
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate question rows")
	}

	ordered := make([]*models.Question, 0, len(ids))
	for _, id := range ids {
		if question, ok := byID[id]; ok {
			ordered = append(ordered, question)
		}
	}
	return ordered, nil
}

// GetCandidateIDs returns active question ids of the exact tier in the exact
// topic, excluding recently served ids, capped at limit. Ordering is stable
// (by id) so the seeded sampler sees a deterministic input.
func (s *QuestionService) GetCandidateIDs(ctx context.Context, topicID int, tier models.DifficultyLevel, excluded []int, limit int) (result0 []int, err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "get_candidate_ids",
		observability.AttributeTopicID(topicID),
		observability.AttributeDifficulty(string(tier)),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	return s.queryIDs(ctx, `
		SELECT id FROM questions
		WHERE topic_id = $1 AND difficulty = $2 AND is_active = TRUE AND id <> ALL($3)
		ORDER BY id
		LIMIT $4`,
		topicID, tier, pq.Int64Array(toInt64Slice(excluded)), limit)
}

// GetTopicFallbackIDs returns active question ids in the topic regardless of
// tier, excluding the given ids.
func (s *QuestionService) GetTopicFallbackIDs(ctx context.Context, topicID int, excluded []int, limit int) (result0 []int, err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "get_topic_fallback_ids",
		observability.AttributeTopicID(topicID),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	return s.queryIDs(ctx, `
		SELECT id FROM questions
		WHERE topic_id = $1 AND is_active = TRUE AND id <> ALL($2)
		ORDER BY id
		LIMIT $3`,
		topicID, pq.Int64Array(toInt64Slice(excluded)), limit)
}

// GetSubjectFallbackIDs widens the search to any active question across all
// topics of the subject.
func (s *QuestionService) GetSubjectFallbackIDs(ctx context.Context, subjectID int, excluded []int, limit int) (result0 []int, err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "get_subject_fallback_ids",
		observability.AttributeSubjectID(subjectID),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	return s.queryIDs(ctx, `
		SELECT id FROM questions
		WHERE subject_id = $1 AND is_active = TRUE AND id <> ALL($2)
		ORDER BY id
		LIMIT $3`,
		subjectID, pq.Int64Array(toInt64Slice(excluded)), limit)
}

// GetRecentlyServedQuestionIDs returns the question ids from the learner's
// most recent attempts on the topic, capped at cfg.Engine.MaxExcludedQuestions.
func (s *QuestionService) GetRecentlyServedQuestionIDs(ctx context.Context, userID, topicID int) (result0 []int, err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "get_recently_served_question_ids",
		observability.AttributeUserID(userID),
		observability.AttributeTopicID(topicID),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT answers FROM quiz_attempts
		WHERE user_id = $1 AND topic_id = $2
		ORDER BY started_at DESC
		LIMIT $3`,
		userID, topicID, s.cfg.Engine.RecentAttemptWindow)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query recent attempts")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	maxExcluded := s.cfg.Engine.MaxExcludedQuestions
	seen := make(map[int]struct{})
	var ids []int
	for rows.Next() {
		var answersJSON []byte
		if err := rows.Scan(&answersJSON); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan attempt answers")
		}
		var answers []models.AnswerRecord
		if len(answersJSON) > 0 {
			if err := json.Unmarshal(answersJSON, &answers); err != nil {
				return nil, contextutils.WrapError(err, "failed to unmarshal attempt answers")
			}
		}
		for _, answer := range answers {
			if _, ok := seen[answer.QuestionID]; ok {
				continue
			}
			seen[answer.QuestionID] = struct{}{}
			ids = append(ids, answer.QuestionID)
			if len(ids) >= maxExcluded {
				return ids, rows.Err()
			}
		}
	}
	return ids, rows.Err()
}

// IncrementUsage bumps the usage counter for the served questions. Usage
// analytics are best-effort; callers log failures rather than failing the
// generation.
func (s *QuestionService) IncrementUsage(ctx context.Context, ids []int) (err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "increment_usage",
		observability.AttributeLimit(len(ids)),
	)
	defer observability.FinishSpan(span, &err)

	if len(ids) == 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE questions SET usage_count = usage_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ANY($1)`,
		pq.Int64Array(toInt64Slice(ids)))
	if err != nil {
		return contextutils.WrapError(err, "failed to increment question usage")
	}
	return nil
}

func (s *QuestionService) queryIDs(ctx context.Context, query string, args ...interface{}) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query question ids")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan question id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate question id rows")
	}
	return ids, nil
}

// toInt64Slice converts ids for use with pq.Int64Array. An empty input yields
// an empty (non-nil) array so `id <> ALL($n)` matches everything.
func toInt64Slice(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
