package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/rand"
	"sort"
	"time"

	"eduassist/internal/config"
	"eduassist/internal/models"
	"eduassist/internal/observability"
	contextutils "eduassist/internal/utils"
)

// RecommendationServiceInterface defines recommendation operations.
type RecommendationServiceInterface interface {
	CreateFromAttempt(ctx context.Context, input *RecommendationInput) (*models.Recommendation, error)
	ListRecommendations(ctx context.Context, userID int, status models.RecommendationStatus) ([]*models.Recommendation, error)
	SmartRecommendations(ctx context.Context, userID int) ([]*models.Recommendation, error)
	UpdateStatus(ctx context.Context, recommendationID, userID int, status models.RecommendationStatus) error
	DeleteByAttemptID(ctx context.Context, attemptID int) error
}

// RecommendationInput carries the parameters of a recommendFromAttempt call.
type RecommendationInput struct {
	UserID        int
	AttemptID     int
	SubjectID     int
	TopicID       int
	AttemptScore  float64
	RecentAverage float64
}

// RecommendationService ranks topics by how urgently a learner should revisit
// them. It consumes the same performance data as quiz generation but the two
// pipelines share no mutable state.
type RecommendationService struct {
	db      *sql.DB
	logger  *observability.Logger
	cfg     *config.Config
	quizzes QuizServiceInterface
}

// NewRecommendationService creates a new recommendation service.
func NewRecommendationService(db *sql.DB, logger *observability.Logger, cfg *config.Config, quizzes QuizServiceInterface) *RecommendationService {
	return &RecommendationService{db: db, logger: logger, cfg: cfg, quizzes: quizzes}
}

// priorityBand is one rung of the priority ladder; evaluated in order, first
// match wins. Higher priority means the learner needs more help.
type priorityBand struct {
	matches  func(score, target float64) bool
	priority int
	tier     models.DifficultyLevel
	reason   string
}

var priorityLadder = []priorityBand{
	{
		matches:  func(score, target float64) bool { return score < 50 },
		priority: 95,
		tier:     models.DifficultyLow,
		reason:   "Your recent score shows this topic needs urgent attention. Start with foundational questions to rebuild the basics.",
	},
	{
		matches:  func(score, target float64) bool { return score < 65 },
		priority: 85,
		tier:     models.DifficultyLow,
		reason:   "You are below the passing threshold here. A round of foundational practice will close the gap fastest.",
	},
	{
		matches:  func(score, target float64) bool { return score < target },
		priority: 70,
		tier:     models.DifficultyMedium,
		reason:   "You are close to your target. Standard practice questions will get you over the line.",
	},
	{
		matches:  func(score, target float64) bool { return score < 90 },
		priority: 40,
		tier:     models.DifficultyMedium,
		reason:   "Solid performance. Keep practicing at this level to make it stick.",
	},
	{
		matches:  func(score, target float64) bool { return true },
		priority: 20,
		tier:     models.DifficultyHigh,
		reason:   "Excellent mastery. Try challenge questions to push further.",
	},
}

const (
	priorityMin       = 15
	priorityMax       = 100
	trendSwingPoints  = 15.0
	decliningBoost    = 20
	improvingNudge    = 5
	improvingDiscount = 10
)

// computePriority applies the band ladder plus the trend adjustment and
// clamps the result to [15, 100]. Pure function.
func computePriority(score, recentAverage, target float64) (int, models.DifficultyLevel, string) {
	var band priorityBand
	for _, b := range priorityLadder {
		if b.matches(score, target) {
			band = b
			break
		}
	}

	priority := band.priority
	delta := score - recentAverage
	switch {
	case delta < -trendSwingPoints:
		priority += decliningBoost
	case delta > trendSwingPoints && score < target:
		priority += improvingNudge
	case delta > trendSwingPoints:
		priority -= improvingDiscount
	}

	if priority > priorityMax {
		priority = priorityMax
	}
	if priority < priorityMin {
		priority = priorityMin
	}
	return priority, band.tier, band.reason
}

// urgencyBaseline is the urgency of a recommendation less than a day old,
// and therefore of every recommendation at creation time.
const urgencyBaseline = 10

// computeUrgency maps how long a recommendation has sat pending to a
// time-decaying urgency value. Computed from created_at at read time so it
// rises without row rewrites.
func computeUrgency(createdAt, now time.Time) int {
	age := now.Sub(createdAt)
	switch {
	case age < 24*time.Hour:
		return urgencyBaseline
	case age < 3*24*time.Hour:
		return 30
	case age < 7*24*time.Hour:
		return 60
	default:
		return 90
	}
}

// CreateFromAttempt computes priority and rationale for a completed attempt,
// attaches up to MaxSuggestedQuizzes matching quizzes, and persists the
// recommendation. Any previous recommendation for the same attempt is removed
// first rather than overwritten.
func (s *RecommendationService) CreateFromAttempt(ctx context.Context, input *RecommendationInput) (result0 *models.Recommendation, err error) {
	ctx, span := observability.TraceRecommendationFunction(ctx, "create_from_attempt",
		observability.AttributeUserID(input.UserID),
		observability.AttributeTopicID(input.TopicID),
		observability.AttributeAttemptID(input.AttemptID),
	)
	defer observability.FinishSpan(span, &err)

	if err := contextutils.ValidateIDs(map[string]int{
		"user_id":    input.UserID,
		"attempt_id": input.AttemptID,
		"topic_id":   input.TopicID,
		"subject_id": input.SubjectID,
	}); err != nil {
		return nil, err
	}

	target := float64(s.cfg.Engine.TargetScore)
	if target <= 0 {
		target = float64(config.DefaultTargetScore)
	}
	priority, tier, reason := computePriority(input.AttemptScore, input.RecentAverage, target)

	suggested, err := s.suggestQuizIDs(ctx, input.TopicID, input.SubjectID, tier)
	if err != nil {
		// Suggestions are decoration; an empty list is acceptable.
		s.logger.Warn(ctx, "Failed to collect suggested quizzes", map[string]interface{}{"error": err.Error()})
		suggested = nil
	}

	if err := s.DeleteByAttemptID(ctx, input.AttemptID); err != nil {
		return nil, err
	}

	suggestedJSON, err := json.Marshal(suggested)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to marshal suggested quiz ids")
	}
	if suggested == nil {
		suggestedJSON = []byte("[]")
	}

	rec := &models.Recommendation{
		UserID:                input.UserID,
		QuizAttemptID:         input.AttemptID,
		TopicID:               input.TopicID,
		SubjectID:             input.SubjectID,
		Priority:              priority,
		Urgency:               urgencyBaseline,
		RecommendedDifficulty: tier,
		Reason:                reason,
		Status:                models.RecommendationPending,
		SuggestedQuizIDs:      suggested,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO recommendations (user_id, quiz_attempt_id, topic_id, subject_id, priority,
		                             recommended_difficulty, reason, status, suggested_quiz_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		rec.UserID, rec.QuizAttemptID, rec.TopicID, rec.SubjectID, rec.Priority,
		rec.RecommendedDifficulty, rec.Reason, rec.Status, suggestedJSON,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert recommendation")
	}

	s.logger.Info(ctx, "Created recommendation", map[string]interface{}{
		"user_id":    rec.UserID,
		"attempt_id": rec.QuizAttemptID,
		"priority":   rec.Priority,
		"difficulty": rec.RecommendedDifficulty,
	})
	return rec, nil
}

// suggestQuizIDs picks up to MaxSuggestedQuizzes existing quizzes matching
// the tier and topic/subject. Plain math/rand here: suggestion lists are not
// reproducible assessments, so no seeding requirement applies.
func (s *RecommendationService) suggestQuizIDs(ctx context.Context, topicID, subjectID int, tier models.DifficultyLevel) ([]int, error) {
	limit := s.cfg.Engine.MaxSuggestedQuizzes
	if limit <= 0 {
		limit = config.DefaultMaxSuggestedQuizzes
	}

	quizzes, err := s.quizzes.FindQuizzesByDifficulty(ctx, topicID, subjectID, tier, limit*4)
	if err != nil {
		return nil, err
	}
	if len(quizzes) == 0 {
		return nil, nil
	}

	rand.Shuffle(len(quizzes), func(i, j int) {
		quizzes[i], quizzes[j] = quizzes[j], quizzes[i]
	})
	if len(quizzes) > limit {
		quizzes = quizzes[:limit]
	}

	ids := make([]int, len(quizzes))
	for i, quiz := range quizzes {
		ids[i] = quiz.ID
	}
	return ids, nil
}

const recommendationSelectFields = `id, user_id, quiz_attempt_id, topic_id, subject_id, priority, recommended_difficulty, reason, status, suggested_quiz_ids, created_at, updated_at`

func scanRecommendationFromRows(rows *sql.Rows, now time.Time) (*models.Recommendation, error) {
	rec := &models.Recommendation{}
	var suggestedJSON []byte

	err := rows.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.QuizAttemptID,
		&rec.TopicID,
		&rec.SubjectID,
		&rec.Priority,
		&rec.RecommendedDifficulty,
		&rec.Reason,
		&rec.Status,
		&suggestedJSON,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(suggestedJSON) > 0 {
		if err := json.Unmarshal(suggestedJSON, &rec.SuggestedQuizIDs); err != nil {
			return nil, contextutils.WrapError(err, "failed to unmarshal suggested quiz ids")
		}
	}
	rec.Urgency = computeUrgency(rec.CreatedAt, now)
	return rec, nil
}

// ListRecommendations returns the learner's recommendations, optionally
// filtered by status, newest first.
func (s *RecommendationService) ListRecommendations(ctx context.Context, userID int, status models.RecommendationStatus) (result0 []*models.Recommendation, err error) {
	ctx, span := observability.TraceRecommendationFunction(ctx, "list_recommendations",
		observability.AttributeUserID(userID),
		observability.AttributeStatusFilter(string(status)),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + recommendationSelectFields + ` FROM recommendations WHERE user_id = $1`
	args := []interface{}{userID}
	if status != "" {
		if !status.IsValid() {
			return nil, contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn, "invalid recommendation status filter", string(status))
		}
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	return s.queryRecommendations(ctx, query, args...)
}

// SmartRecommendations ranks the learner's pending recommendations by
// priority, then urgency, returning the top SmartRecommendationLimit.
func (s *RecommendationService) SmartRecommendations(ctx context.Context, userID int) (result0 []*models.Recommendation, err error) {
	ctx, span := observability.TraceRecommendationFunction(ctx, "smart_recommendations",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	recs, err := s.queryRecommendations(ctx,
		`SELECT `+recommendationSelectFields+` FROM recommendations WHERE user_id = $1 AND status = $2`,
		userID, models.RecommendationPending)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority > recs[j].Priority
		}
		return recs[i].Urgency > recs[j].Urgency
	})

	limit := s.cfg.Engine.SmartRecommendationLimit
	if limit <= 0 {
		limit = config.DefaultSmartRecommendationLimit
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// validStatusTransitions maps each status to the statuses it may move to.
// Rejected and completed are terminal.
var validStatusTransitions = map[models.RecommendationStatus][]models.RecommendationStatus{
	models.RecommendationPending:  {models.RecommendationAccepted, models.RecommendationRejected, models.RecommendationCompleted},
	models.RecommendationAccepted: {models.RecommendationCompleted, models.RecommendationRejected},
}

// UpdateStatus applies an explicit status transition. Anything outside the
// transition table fails with INVALID_STATUS_TRANSITION.
func (s *RecommendationService) UpdateStatus(ctx context.Context, recommendationID, userID int, status models.RecommendationStatus) (err error) {
	ctx, span := observability.TraceRecommendationFunction(ctx, "update_status",
		observability.AttributeUserID(userID),
		observability.AttributeStatusFilter(string(status)),
	)
	defer observability.FinishSpan(span, &err)

	if !status.IsValid() {
		return contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn, "invalid recommendation status", string(status))
	}

	var current models.RecommendationStatus
	err = s.db.QueryRowContext(ctx,
		`SELECT status FROM recommendations WHERE id = $1 AND user_id = $2`,
		recommendationID, userID).Scan(&current)
	if err == sql.ErrNoRows {
		return contextutils.ErrRecordNotFound
	}
	if err != nil {
		return contextutils.WrapError(err, "failed to load recommendation status")
	}

	allowed := false
	for _, next := range validStatusTransitions[current] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return contextutils.WrapErrorf(contextutils.ErrInvalidStatusTransition, "cannot move recommendation from %s to %s", current, status)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE recommendations SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND user_id = $3`,
		status, recommendationID, userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to update recommendation status")
	}
	return nil
}

// DeleteByAttemptID removes any recommendation triggered by the attempt.
// Superseded recommendations are deleted, never regenerated in place.
func (s *RecommendationService) DeleteByAttemptID(ctx context.Context, attemptID int) (err error) {
	ctx, span := observability.TraceRecommendationFunction(ctx, "delete_by_attempt_id",
		observability.AttributeAttemptID(attemptID),
	)
	defer observability.FinishSpan(span, &err)

	_, err = s.db.ExecContext(ctx, `DELETE FROM recommendations WHERE quiz_attempt_id = $1`, attemptID)
	if err != nil {
		return contextutils.WrapError(err, "failed to delete recommendation by attempt id")
	}
	return nil
}

func (s *RecommendationService) queryRecommendations(ctx context.Context, query string, args ...interface{}) ([]*models.Recommendation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query recommendations")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	now := time.Now()
	var recs []*models.Recommendation
	for rows.Next() {
		rec, scanErr := scanRecommendationFromRows(rows, now)
		if scanErr != nil {
			return nil, scanErr
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
