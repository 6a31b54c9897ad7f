// Package models defines data structures used throughout the personalization engine.
package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DifficultyLevel classifies question difficulty into three tiers.
type DifficultyLevel string

const (
	// DifficultyLow is for foundational questions
	DifficultyLow DifficultyLevel = "low"
	// DifficultyMedium is for standard practice questions
	DifficultyMedium DifficultyLevel = "medium"
	// DifficultyHigh is for challenge questions
	DifficultyHigh DifficultyLevel = "high"
)

// AllDifficulties lists the tiers in ascending order of difficulty.
var AllDifficulties = []DifficultyLevel{DifficultyLow, DifficultyMedium, DifficultyHigh}

// IsValid reports whether the difficulty is one of the known tiers.
func (d DifficultyLevel) IsValid() bool {
	switch d {
	case DifficultyLow, DifficultyMedium, DifficultyHigh:
		return true
	}
	return false
}

// Session types supported by quiz generation
const (
	// SessionTypePractice is a regular practice session with repeat avoidance
	SessionTypePractice = "practice"
	// SessionTypeAssessment is a first-time diagnostic; repeat avoidance is skipped
	SessionTypeAssessment = "assessment"
)

// User represents a learner in the system
type User struct {
	ID           int            `json:"id" yaml:"id"`
	Username     string         `json:"username" yaml:"username"`
	Email        sql.NullString `json:"email" yaml:"email"`
	PasswordHash sql.NullString `json:"-" yaml:"-"` // Omit from JSON responses
	LastActive   sql.NullTime   `json:"last_active" yaml:"last_active"`
	CreatedAt    time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" yaml:"updated_at"`
}

// MarshalJSON customizes JSON marshaling for User to handle sql.Null types properly
func (u User) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID         int        `json:"id"`
		Username   string     `json:"username"`
		Email      *string    `json:"email"`
		LastActive *time.Time `json:"last_active"`
		CreatedAt  time.Time  `json:"created_at"`
		UpdatedAt  time.Time  `json:"updated_at"`
	}{
		ID:         u.ID,
		Username:   u.Username,
		Email:      nullStringToPointer(u.Email),
		LastActive: nullTimeToPointer(u.LastActive),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	})
}

// Helper functions for converting sql.Null types to pointers
func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

func nullInt32ToPointer(ni sql.NullInt32) *int32 {
	if ni.Valid {
		return &ni.Int32
	}
	return nil
}

// Subject represents a curriculum area grouping multiple topics
type Subject struct {
	ID          int       `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Topic represents a single study topic within a subject
type Topic struct {
	ID          int       `json:"id" yaml:"id"`
	SubjectID   int       `json:"subject_id" yaml:"subject_id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	IsActive    bool      `json:"is_active" yaml:"is_active"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Question represents a practice question. Content holds the prompt and the
// answer options; it is immutable once created except for the usage counter.
type Question struct {
	ID            int                    `json:"id" yaml:"id"`
	TopicID       int                    `json:"topic_id" yaml:"topic_id"`
	SubjectID     int                    `json:"subject_id" yaml:"subject_id"` // denormalized from topic
	Difficulty    DifficultyLevel        `json:"difficulty" yaml:"difficulty"`
	Content       map[string]interface{} `json:"content" yaml:"content"`
	CorrectAnswer int                    `json:"correct_answer" yaml:"correct_answer"`
	Explanation   string                 `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	IsActive      bool                   `json:"is_active" yaml:"is_active"`
	UsageCount    int                    `json:"usage_count" yaml:"usage_count"`
	CreatedAt     time.Time              `json:"created_at" yaml:"created_at"`
}

// GetCorrectAnswerText returns the text of the correct answer from the question content
func (q *Question) GetCorrectAnswerText() string {
	if optionsRaw, ok := q.Content["options"]; ok {
		if options, ok := optionsRaw.([]interface{}); ok {
			if q.CorrectAnswer >= 0 && q.CorrectAnswer < len(options) {
				if optStr, ok := options[q.CorrectAnswer].(string); ok {
					return optStr
				}
			}
		}
	}
	return ""
}

// AnswerRecord is one entry in a quiz attempt's answer log
type AnswerRecord struct {
	QuestionID       int  `json:"question_id" yaml:"question_id"`
	SelectedIndex    int  `json:"selected_index" yaml:"selected_index"`
	IsCorrect        bool `json:"is_correct" yaml:"is_correct"`
	TimeSpentSeconds int  `json:"time_spent_seconds" yaml:"time_spent_seconds"`
}

// QuizAttempt represents one learner's session against one quiz. Core fields
// become immutable once IsCompleted is set.
type QuizAttempt struct {
	ID              int            `json:"id" yaml:"id"`
	UserID          int            `json:"user_id" yaml:"user_id"`
	QuizID          sql.NullInt32  `json:"quiz_id" yaml:"quiz_id"`
	TopicID         int            `json:"topic_id" yaml:"topic_id"`
	SubjectID       int            `json:"subject_id" yaml:"subject_id"`
	Answers         []AnswerRecord `json:"answers" yaml:"answers"`
	Score           float64        `json:"score" yaml:"score"`
	TotalQuestions  int            `json:"total_questions" yaml:"total_questions"`
	CorrectAnswers  int            `json:"correct_answers" yaml:"correct_answers"`
	StartedAt       time.Time      `json:"started_at" yaml:"started_at"`
	CompletedAt     sql.NullTime   `json:"completed_at" yaml:"completed_at"`
	IsCompleted     bool           `json:"is_completed" yaml:"is_completed"`
}

// MarshalJSON customizes JSON marshaling for QuizAttempt to handle sql.Null types properly
func (a QuizAttempt) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID             int            `json:"id"`
		UserID         int            `json:"user_id"`
		QuizID         *int32         `json:"quiz_id"`
		TopicID        int            `json:"topic_id"`
		SubjectID      int            `json:"subject_id"`
		Answers        []AnswerRecord `json:"answers"`
		Score          float64        `json:"score"`
		TotalQuestions int            `json:"total_questions"`
		CorrectAnswers int            `json:"correct_answers"`
		StartedAt      time.Time      `json:"started_at"`
		CompletedAt    *time.Time     `json:"completed_at"`
		IsCompleted    bool           `json:"is_completed"`
	}{
		ID:             a.ID,
		UserID:         a.UserID,
		QuizID:         nullInt32ToPointer(a.QuizID),
		TopicID:        a.TopicID,
		SubjectID:      a.SubjectID,
		Answers:        a.Answers,
		Score:          a.Score,
		TotalQuestions: a.TotalQuestions,
		CorrectAnswers: a.CorrectAnswers,
		StartedAt:      a.StartedAt,
		CompletedAt:    nullTimeToPointer(a.CompletedAt),
		IsCompleted:    a.IsCompleted,
	})
}

// DifficultyDistribution is a quota of questions per difficulty tier
type DifficultyDistribution struct {
	Low    int `json:"low" yaml:"low"`
	Medium int `json:"medium" yaml:"medium"`
	High   int `json:"high" yaml:"high"`
}

// Total returns the sum of the tier quotas
func (d DifficultyDistribution) Total() int {
	return d.Low + d.Medium + d.High
}

// Key returns a canonical string form used inside the session identifier hash
func (d DifficultyDistribution) Key() string {
	return fmt.Sprintf("low:%d|medium:%d|high:%d", d.Low, d.Medium, d.High)
}

// CountFor returns the quota for a single tier
func (d DifficultyDistribution) CountFor(level DifficultyLevel) int {
	switch level {
	case DifficultyLow:
		return d.Low
	case DifficultyMedium:
		return d.Medium
	case DifficultyHigh:
		return d.High
	}
	return 0
}

// Quiz represents a generated, ordered selection of questions. SessionID is
// unique: at most one quiz may exist per identifier.
type Quiz struct {
	ID               int                    `json:"id" yaml:"id"`
	SessionID        string                 `json:"session_id" yaml:"session_id"`
	UserID           int                    `json:"user_id" yaml:"user_id"`
	TopicID          int                    `json:"topic_id" yaml:"topic_id"`
	SubjectID        int                    `json:"subject_id" yaml:"subject_id"`
	Title            string                 `json:"title" yaml:"title"`
	QuestionIDs      []int                  `json:"question_ids" yaml:"question_ids"`
	Distribution     DifficultyDistribution `json:"distribution" yaml:"distribution"` // realized quota
	RequestedCount   int                    `json:"requested_count" yaml:"requested_count"`
	SessionType      string                 `json:"session_type" yaml:"session_type"`
	TimeLimitMinutes int                    `json:"time_limit_minutes" yaml:"time_limit_minutes"`
	CreatedAt        time.Time              `json:"created_at" yaml:"created_at"`
}

// IsPartial reports whether the quiz fulfilled fewer questions than requested
func (q *Quiz) IsPartial() bool {
	return len(q.QuestionIDs) < q.RequestedCount
}

// QuizGenerationRequest carries the parameters of a generate call
type QuizGenerationRequest struct {
	UserID           int    `json:"user_id"`
	TopicID          int    `json:"topic_id"`
	SubjectID        int    `json:"subject_id"`
	QuestionCount    int    `json:"question_count"`
	SessionType      string `json:"session_type"`
	TimeLimitMinutes int    `json:"time_limit_minutes"`
}

// Trend describes the direction of a learner's recent scores
type Trend string

const (
	// TrendImproving means recent scores are rising
	TrendImproving Trend = "improving"
	// TrendDeclining means recent scores are falling
	TrendDeclining Trend = "declining"
	// TrendSteady means recent scores are flat or the sample is too small
	TrendSteady Trend = "steady"
)

// PerformanceProfile is the derived numeric summary of a learner's recent
// attempt history on one topic. It is recomputed per request, never persisted.
type PerformanceProfile struct {
	Mastery             float64           `json:"mastery"`     // [0,100]
	Consistency         float64           `json:"consistency"` // [0,1]
	Trend               Trend             `json:"trend"`
	WeakDifficulties    []DifficultyLevel `json:"weak_difficulties"`
	StrongDifficulties  []DifficultyLevel `json:"strong_difficulties"`
	Streak              int               `json:"streak"`
	AvgSecondsPerAnswer float64           `json:"avg_seconds_per_answer"`
	SampleSize          int               `json:"sample_size"`
}

// HasWeakness reports whether the given tier is flagged weak
func (p *PerformanceProfile) HasWeakness(level DifficultyLevel) bool {
	for _, d := range p.WeakDifficulties {
		if d == level {
			return true
		}
	}
	return false
}

// RecommendationStatus tracks the lifecycle of a recommendation
type RecommendationStatus string

const (
	// RecommendationPending is the initial status
	RecommendationPending RecommendationStatus = "pending"
	// RecommendationAccepted means the learner picked it up
	RecommendationAccepted RecommendationStatus = "accepted"
	// RecommendationRejected means the learner dismissed it
	RecommendationRejected RecommendationStatus = "rejected"
	// RecommendationCompleted means the suggested work was finished
	RecommendationCompleted RecommendationStatus = "completed"
)

// IsValid reports whether the status is one of the known values.
func (s RecommendationStatus) IsValid() bool {
	switch s {
	case RecommendationPending, RecommendationAccepted, RecommendationRejected, RecommendationCompleted:
		return true
	}
	return false
}

// ParseRecommendationStatus parses a status string case-insensitively
func ParseRecommendationStatus(s string) (RecommendationStatus, bool) {
	status := RecommendationStatus(strings.ToLower(strings.TrimSpace(s)))
	return status, status.IsValid()
}

// Recommendation is one study suggestion per (learner, topic, triggering attempt).
// Reason is computed once at creation and stored verbatim so the displayed
// rationale never drifts while the recommendation is pending.
type Recommendation struct {
	ID                    int                  `json:"id" yaml:"id"`
	UserID                int                  `json:"user_id" yaml:"user_id"`
	QuizAttemptID         int                  `json:"quiz_attempt_id" yaml:"quiz_attempt_id"`
	TopicID               int                  `json:"topic_id" yaml:"topic_id"`
	SubjectID             int                  `json:"subject_id" yaml:"subject_id"`
	Priority              int                  `json:"priority" yaml:"priority"` // [15,100]
	Urgency               int                  `json:"urgency" yaml:"urgency"`   // [0,100], time-decayed
	RecommendedDifficulty DifficultyLevel      `json:"recommended_difficulty" yaml:"recommended_difficulty"`
	Reason                string               `json:"reason" yaml:"reason"`
	Status                RecommendationStatus `json:"status" yaml:"status"`
	SuggestedQuizIDs      []int                `json:"suggested_quiz_ids" yaml:"suggested_quiz_ids"`
	CreatedAt             time.Time            `json:"created_at" yaml:"created_at"`
	UpdatedAt             time.Time            `json:"updated_at" yaml:"updated_at"`
}
