package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"

	"eduassist/internal/config"
	"eduassist/internal/models"
	"eduassist/internal/observability"
	contextutils "eduassist/internal/utils"

	"github.com/lib/pq"
)

// PerformanceServiceInterface defines performance profiling operations.
type PerformanceServiceInterface interface {
	AnalyzePerformance(ctx context.Context, userID, topicID int) (*models.PerformanceProfile, error)
}

// PerformanceService reduces a learner's recent attempt history on a topic
// into a numeric performance profile. It is a pure read: nothing is persisted
// and the profile is recomputed per request.
type PerformanceService struct {
	db     *sql.DB
	logger *observability.Logger
	cfg    *config.Config
}

// NewPerformanceService creates a new performance service.
func NewPerformanceService(db *sql.DB, logger *observability.Logger, cfg *config.Config) *PerformanceService {
	return &PerformanceService{db: db, logger: logger, cfg: cfg}
}

// AnalyzePerformance builds the performance profile for a (learner, topic)
// pair from the most recent completed attempts. A learner with no history
// gets a neutral default profile, never an error.
func (s *PerformanceService) AnalyzePerformance(ctx context.Context, userID, topicID int) (result0 *models.PerformanceProfile, err error) {
	ctx, span := observability.TracePerformanceFunction(ctx, "analyze_performance",
		observability.AttributeUserID(userID),
		observability.AttributeTopicID(topicID),
	)
	defer observability.FinishSpan(span, &err)

	if err := contextutils.ValidateIDs(map[string]int{"user_id": userID, "topic_id": topicID}); err != nil {
		return nil, err
	}

	window := s.cfg.Engine.HistoryWindow
	if window <= 0 {
		window = config.DefaultHistoryWindow
	}
	if window > s.cfg.Engine.MaxHistoryWindow && s.cfg.Engine.MaxHistoryWindow > 0 {
		window = s.cfg.Engine.MaxHistoryWindow
	}

	attempts, err := s.fetchRecentAttempts(ctx, userID, topicID, window)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to fetch recent attempts")
	}

	difficulties, err := s.fetchDifficulties(ctx, attempts)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to fetch question difficulties")
	}

	profile := computeProfile(attempts, difficulties, s.cfg.Engine.PassingScore)
	s.logger.Debug(ctx, "Computed performance profile", map[string]interface{}{
		"user_id":     userID,
		"topic_id":    topicID,
		"mastery":     profile.Mastery,
		"consistency": profile.Consistency,
		"trend":       profile.Trend,
		"sample_size": profile.SampleSize,
	})
	return profile, nil
}

// fetchRecentAttempts returns up to limit completed attempts, newest first.
func (s *PerformanceService) fetchRecentAttempts(ctx context.Context, userID, topicID, limit int) ([]*models.QuizAttempt, error) {
	query := `
		SELECT id, user_id, quiz_id, topic_id, subject_id, answers, score,
		       total_questions, correct_answers, started_at, completed_at, is_completed
		FROM quiz_attempts
		WHERE user_id = $1 AND topic_id = $2 AND is_completed = TRUE
		ORDER BY completed_at DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, userID, topicID, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var attempts []*models.QuizAttempt
	for rows.Next() {
		attempt, err := scanAttemptFromRows(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// fetchDifficulties loads the difficulty tier for every question referenced
// in the attempts' answer logs.
func (s *PerformanceService) fetchDifficulties(ctx context.Context, attempts []*models.QuizAttempt) (map[int]models.DifficultyLevel, error) {
	idSet := make(map[int]struct{})
	for _, attempt := range attempts {
		for _, answer := range attempt.Answers {
			idSet[answer.QuestionID] = struct{}{}
		}
	}

	difficulties := make(map[int]models.DifficultyLevel, len(idSet))
	if len(idSet) == 0 {
		return difficulties, nil
	}

	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, int64(id))
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, difficulty FROM questions WHERE id = ANY($1)`, pq.Int64Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	for rows.Next() {
		var id int
		var difficulty models.DifficultyLevel
		if err := rows.Scan(&id, &difficulty); err != nil {
			return nil, err
		}
		difficulties[id] = difficulty
	}
	return difficulties, rows.Err()
}

// scanAttemptFromRows scans a database row into a models.QuizAttempt struct
func scanAttemptFromRows(rows *sql.Rows) (*models.QuizAttempt, error) {
	attempt := &models.QuizAttempt{}
	var answersJSON []byte

	err := rows.Scan(
		&attempt.ID,
		&attempt.UserID,
		&attempt.QuizID,
		&attempt.TopicID,
		&attempt.SubjectID,
		&answersJSON,
		&attempt.Score,
		&attempt.TotalQuestions,
		&attempt.CorrectAnswers,
		&attempt.StartedAt,
		&attempt.CompletedAt,
		&attempt.IsCompleted,
	)
	if err != nil {
		return nil, err
	}

	if len(answersJSON) > 0 {
		if err := json.Unmarshal(answersJSON, &attempt.Answers); err != nil {
			return nil, contextutils.WrapError(err, "failed to unmarshal attempt answers")
		}
	}
	return attempt, nil
}

const (
	weakTierThreshold   = 0.60
	strongTierThreshold = 0.80
	trendBand           = 5.0
)

// computeProfile derives the profile from attempts ordered newest first. Pure
// function so the arithmetic is unit-testable without a database.
func computeProfile(attempts []*models.QuizAttempt, difficulties map[int]models.DifficultyLevel, passingScore float64) *models.PerformanceProfile {
	if len(attempts) == 0 {
		// Neutral default for new learners.
		return &models.PerformanceProfile{
			Consistency: 0.5,
			Trend:       models.TrendSteady,
		}
	}

	var sum float64
	for _, a := range attempts {
		sum += a.Score
	}
	mastery := sum / float64(len(attempts))

	var varianceSum float64
	for _, a := range attempts {
		diff := a.Score - mastery
		varianceSum += diff * diff
	}
	stddev := math.Sqrt(varianceSum / float64(len(attempts)))
	consistency := math.Max(0, 1-stddev/100)

	// Streak: consecutive passing attempts from most recent, stopping at the
	// first failure.
	streak := 0
	for _, a := range attempts {
		if a.Score < passingScore {
			break
		}
		streak++
	}

	// Per-tier correctness across all answer logs.
	correctByTier := make(map[models.DifficultyLevel]int)
	totalByTier := make(map[models.DifficultyLevel]int)
	var totalSeconds, totalAnswers int
	for _, a := range attempts {
		for _, answer := range a.Answers {
			totalSeconds += answer.TimeSpentSeconds
			totalAnswers++
			tier, ok := difficulties[answer.QuestionID]
			if !ok {
				continue
			}
			totalByTier[tier]++
			if answer.IsCorrect {
				correctByTier[tier]++
			}
		}
	}

	var weak, strong []models.DifficultyLevel
	for _, tier := range models.AllDifficulties {
		total := totalByTier[tier]
		if total == 0 {
			continue
		}
		ratio := float64(correctByTier[tier]) / float64(total)
		if ratio < weakTierThreshold {
			weak = append(weak, tier)
		} else if ratio > strongTierThreshold {
			strong = append(strong, tier)
		}
	}

	var avgSeconds float64
	if totalAnswers > 0 {
		avgSeconds = float64(totalSeconds) / float64(totalAnswers)
	}

	return &models.PerformanceProfile{
		Mastery:             mastery,
		Consistency:         consistency,
		Trend:               computeTrend(attempts),
		WeakDifficulties:    weak,
		StrongDifficulties:  strong,
		Streak:              streak,
		AvgSecondsPerAnswer: avgSeconds,
		SampleSize:          len(attempts),
	}
}

// computeTrend compares the newer half of the window against the older half.
// Fewer than four attempts is too small a sample to call a direction.
func computeTrend(attempts []*models.QuizAttempt) models.Trend {
	if len(attempts) < 4 {
		return models.TrendSteady
	}

	mid := len(attempts) / 2
	var recentSum, olderSum float64
	for _, a := range attempts[:mid] {
		recentSum += a.Score
	}
	for _, a := range attempts[mid:] {
		olderSum += a.Score
	}
	recentAvg := recentSum / float64(mid)
	olderAvg := olderSum / float64(len(attempts)-mid)

	switch {
	case recentAvg-olderAvg > trendBand:
		return models.TrendImproving
	case recentAvg-olderAvg < -trendBand:
		return models.TrendDeclining
	default:
		return models.TrendSteady
	}
}
