package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"eduassist/internal/config"
	"eduassist/internal/models"
	"eduassist/internal/observability"
	contextutils "eduassist/internal/utils"
)

// AttemptServiceInterface defines the attempt lifecycle operations.
type AttemptServiceInterface interface {
	StartAttempt(ctx context.Context, userID, quizID int) (*models.QuizAttempt, error)
	RecordAnswer(ctx context.Context, attemptID, userID, questionID, selectedIndex, timeSpentSeconds int) (*models.AnswerRecord, error)
	CompleteAttempt(ctx context.Context, attemptID, userID int) (*models.QuizAttempt, error)
	GetAttemptByID(ctx context.Context, attemptID, userID int) (*models.QuizAttempt, error)
}

// AttemptService manages the lifecycle of quiz attempts: started, answered
// one question at a time, then finalized. Core fields are immutable once the
// attempt completes. Completion pushes a recommendation as a best-effort side
// effect that never fails the primary operation.
type AttemptService struct {
	db              *sql.DB
	logger          *observability.Logger
	cfg             *config.Config
	quizzes         QuizServiceInterface
	questions       QuestionServiceInterface
	performance     PerformanceServiceInterface
	recommendations RecommendationServiceInterface
}

// NewAttemptService creates a new attempt service.
func NewAttemptService(db *sql.DB, logger *observability.Logger, cfg *config.Config, quizzes QuizServiceInterface, questions QuestionServiceInterface, performance PerformanceServiceInterface, recommendations RecommendationServiceInterface) *AttemptService {
	return &AttemptService{
		db:              db,
		logger:          logger,
		cfg:             cfg,
		quizzes:         quizzes,
		questions:       questions,
		performance:     performance,
		recommendations: recommendations,
	}
}

// StartAttempt opens a new attempt against an existing quiz.
func (s *AttemptService) StartAttempt(ctx context.Context, userID, quizID int) (result0 *models.QuizAttempt, err error) {
	ctx, span := observability.TraceAttemptFunction(ctx, "start_attempt",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	if err := contextutils.ValidateIDs(map[string]int{"user_id": userID, "quiz_id": quizID}); err != nil {
		return nil, err
	}

	quiz, err := s.quizzes.GetQuizByID(ctx, quizID)
	if err != nil {
		return nil, err
	}

	attempt := &models.QuizAttempt{
		UserID:         userID,
		QuizID:         sql.NullInt32{Int32: int32(quiz.ID), Valid: true},
		TopicID:        quiz.TopicID,
		SubjectID:      quiz.SubjectID,
		Answers:        []models.AnswerRecord{},
		TotalQuestions: len(quiz.QuestionIDs),
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO quiz_attempts (user_id, quiz_id, topic_id, subject_id, answers, total_questions)
		VALUES ($1, $2, $3, $4, '[]', $5)
		RETURNING id, started_at`,
		attempt.UserID, attempt.QuizID, attempt.TopicID, attempt.SubjectID, attempt.TotalQuestions,
	).Scan(&attempt.ID, &attempt.StartedAt)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert attempt")
	}

	s.logger.Info(ctx, "Started attempt", map[string]interface{}{
		"attempt_id": attempt.ID,
		"user_id":    userID,
		"quiz_id":    quizID,
	})
	return attempt, nil
}

// quizContainsQuestion reports whether the question is part of the quiz.
func quizContainsQuestion(questionIDs []int, questionID int) bool {
	for _, id := range questionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// appendAnswerRecord appends the answer to the log, rejecting a second answer
// for the same question. One log entry per quiz question keeps
// correct_answers <= total_questions, so a completed score stays in [0, 100].
func appendAnswerRecord(answers []models.AnswerRecord, record models.AnswerRecord) ([]models.AnswerRecord, error) {
	for _, a := range answers {
		if a.QuestionID == record.QuestionID {
			return nil, contextutils.WrapErrorf(contextutils.ErrConflict, "question %d already answered in this attempt", record.QuestionID)
		}
	}
	return append(answers, record), nil
}

// countCorrectAnswers recounts the log so the stored counter can never drift
// from it.
func countCorrectAnswers(answers []models.AnswerRecord) int {
	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}
	return correct
}

// RecordAnswer grades one answer and appends it to the attempt's answer log.
// The answered question must belong to the attempt's quiz and may only be
// answered once. Fails with ATTEMPT_ALREADY_COMPLETED once the attempt is
// finalized. The log is re-read under a row lock so concurrent answers to the
// same attempt cannot overwrite each other.
func (s *AttemptService) RecordAnswer(ctx context.Context, attemptID, userID, questionID, selectedIndex, timeSpentSeconds int) (result0 *models.AnswerRecord, err error) {
	ctx, span := observability.TraceAttemptFunction(ctx, "record_answer",
		observability.AttributeAttemptID(attemptID),
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	attempt, err := s.GetAttemptByID(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.IsCompleted {
		return nil, contextutils.ErrAttemptAlreadyCompleted
	}

	quiz, err := s.quizzes.GetQuizByID(ctx, int(attempt.QuizID.Int32))
	if err != nil {
		return nil, err
	}
	if !quizContainsQuestion(quiz.QuestionIDs, questionID) {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "question %d is not part of quiz %d", questionID, quiz.ID)
	}

	question, err := s.questions.GetQuestionByID(ctx, questionID)
	if err != nil {
		return nil, err
	}

	answer := models.AnswerRecord{
		QuestionID:       questionID,
		SelectedIndex:    selectedIndex,
		IsCorrect:        selectedIndex == question.CorrectAnswer,
		TimeSpentSeconds: timeSpentSeconds,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin answer transaction")
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn(ctx, "Failed to roll back answer transaction", map[string]interface{}{"error": rbErr.Error()})
		}
	}()

	var answersJSON []byte
	var isCompleted bool
	err = tx.QueryRowContext(ctx, `
		SELECT answers, is_completed FROM quiz_attempts
		WHERE id = $1 AND user_id = $2
		FOR UPDATE`,
		attemptID, userID).Scan(&answersJSON, &isCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contextutils.ErrRecordNotFound
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to lock attempt")
	}
	if isCompleted {
		return nil, contextutils.ErrAttemptAlreadyCompleted
	}

	var answers []models.AnswerRecord
	if len(answersJSON) > 0 {
		if err := json.Unmarshal(answersJSON, &answers); err != nil {
			return nil, contextutils.WrapError(err, "failed to unmarshal attempt answers")
		}
	}

	answers, err = appendAnswerRecord(answers, answer)
	if err != nil {
		return nil, err
	}

	updatedJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to marshal answers")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE quiz_attempts
		SET answers = $1, correct_answers = $2
		WHERE id = $3 AND user_id = $4 AND is_completed = FALSE`,
		updatedJSON, countCorrectAnswers(answers), attemptID, userID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to record answer")
	}

	if err := tx.Commit(); err != nil {
		return nil, contextutils.WrapError(err, "failed to commit answer")
	}
	return &answer, nil
}

// CompleteAttempt finalizes the attempt: computes the aggregate score, marks
// it immutable, and pushes a recommendation in the background.
func (s *AttemptService) CompleteAttempt(ctx context.Context, attemptID, userID int) (result0 *models.QuizAttempt, err error) {
	ctx, span := observability.TraceAttemptFunction(ctx, "complete_attempt",
		observability.AttributeAttemptID(attemptID),
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	attempt, err := s.GetAttemptByID(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.IsCompleted {
		return nil, contextutils.ErrAttemptAlreadyCompleted
	}

	// Recent average is captured before this attempt enters the history so
	// the trend adjustment compares against the prior baseline.
	recentAverage := 0.0
	if profile, profileErr := s.performance.AnalyzePerformance(ctx, userID, attempt.TopicID); profileErr == nil {
		recentAverage = profile.Mastery
	} else {
		s.logger.Warn(ctx, "Failed to compute recent average for recommendation", map[string]interface{}{"error": profileErr.Error()})
	}

	score := 0.0
	if attempt.TotalQuestions > 0 {
		score = float64(attempt.CorrectAnswers) / float64(attempt.TotalQuestions) * 100
	}

	err = s.db.QueryRowContext(ctx, `
		UPDATE quiz_attempts
		SET score = $1, is_completed = TRUE, completed_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND user_id = $3 AND is_completed = FALSE
		RETURNING completed_at`,
		score, attemptID, userID,
	).Scan(&attempt.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.ErrAttemptAlreadyCompleted
		}
		return nil, contextutils.WrapError(err, "failed to complete attempt")
	}
	attempt.Score = score
	attempt.IsCompleted = true

	// Best-effort push: a failed recommendation must never roll back the
	// completion. Detached from the request context on purpose.
	go func(input RecommendationInput) {
		bgCtx := context.Background()
		if _, recErr := s.recommendations.CreateFromAttempt(bgCtx, &input); recErr != nil {
			s.logger.Warn(bgCtx, "Failed to create recommendation from attempt", map[string]interface{}{
				"attempt_id": input.AttemptID,
				"error":      recErr.Error(),
			})
		}
	}(RecommendationInput{
		UserID:        userID,
		AttemptID:     attemptID,
		SubjectID:     attempt.SubjectID,
		TopicID:       attempt.TopicID,
		AttemptScore:  score,
		RecentAverage: recentAverage,
	})

	s.logger.Info(ctx, "Completed attempt", map[string]interface{}{
		"attempt_id": attemptID,
		"user_id":    userID,
		"score":      score,
	})
	return attempt, nil
}

// GetAttemptByID returns the learner's attempt, or RECORD_NOT_FOUND.
func (s *AttemptService) GetAttemptByID(ctx context.Context, attemptID, userID int) (result0 *models.QuizAttempt, err error) {
	ctx, span := observability.TraceAttemptFunction(ctx, "get_attempt_by_id",
		observability.AttributeAttemptID(attemptID),
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, quiz_id, topic_id, subject_id, answers, score,
		       total_questions, correct_answers, started_at, completed_at, is_completed
		FROM quiz_attempts
		WHERE id = $1 AND user_id = $2`,
		attemptID, userID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query attempt")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, contextutils.WrapError(err, "failed to iterate attempt rows")
		}
		return nil, contextutils.ErrRecordNotFound
	}
	return scanAttemptFromRows(rows)
}
