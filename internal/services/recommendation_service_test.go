package services

import (
	"testing"
	"time"

	"eduassist/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestComputePriority_Bands(t *testing.T) {
	tests := []struct {
		name             string
		score            float64
		recentAverage    float64
		expectedPriority int
		expectedTier     models.DifficultyLevel
	}{
		{"urgent", 42, 45, 95, models.DifficultyLow},
		{"below passing", 60, 58, 85, models.DifficultyLow},
		{"below target", 75, 74, 70, models.DifficultyMedium},
		{"solid", 85, 84, 40, models.DifficultyMedium},
		{"challenge", 95, 93, 20, models.DifficultyHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			priority, tier, reason := computePriority(tt.score, tt.recentAverage, 80)
			assert.Equal(t, tt.expectedPriority, priority)
			assert.Equal(t, tt.expectedTier, tier)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestComputePriority_DecliningClippedAtMax(t *testing.T) {
	// Score 42 vs recent average 70: decline of 28 on the top band.
	priority, tier, _ := computePriority(42, 70, 80)

	assert.Equal(t, 100, priority)
	assert.Equal(t, models.DifficultyLow, tier)
}

func TestComputePriority_ImprovingBelowTarget(t *testing.T) {
	// Jumped from 50 to 75 but still below the 80 target.
	priority, _, _ := computePriority(75, 50, 80)
	assert.Equal(t, 75, priority)
}

func TestComputePriority_ImprovingAtTarget(t *testing.T) {
	// Jumped from 60 to 95, already past the target: back off. The -10
	// adjustment lands below the floor, so the clamp kicks in.
	priority, tier, _ := computePriority(95, 60, 80)
	assert.Equal(t, priorityMin, priority)
	assert.Equal(t, models.DifficultyHigh, tier)
}

func TestComputePriority_Bounds(t *testing.T) {
	for score := 0.0; score <= 100; score += 5 {
		for avg := 0.0; avg <= 100; avg += 10 {
			priority, _, _ := computePriority(score, avg, 80)
			assert.GreaterOrEqual(t, priority, priorityMin)
			assert.LessOrEqual(t, priority, priorityMax)
		}
	}
}

func TestComputeUrgency(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		age      time.Duration
		expected int
	}{
		{"fresh", 2 * time.Hour, 10},
		{"two days", 2 * 24 * time.Hour, 30},
		{"five days", 5 * 24 * time.Hour, 60},
		{"stale", 10 * 24 * time.Hour, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			urgency := computeUrgency(now.Add(-tt.age), now)
			assert.Equal(t, tt.expected, urgency)
			assert.GreaterOrEqual(t, urgency, 0)
			assert.LessOrEqual(t, urgency, 100)
		})
	}
}

func TestComputeUrgency_BaselineAtCreation(t *testing.T) {
	now := time.Now()
	assert.Equal(t, urgencyBaseline, computeUrgency(now, now))
}

func TestStatusTransitions(t *testing.T) {
	assert.Contains(t, validStatusTransitions[models.RecommendationPending], models.RecommendationAccepted)
	assert.Contains(t, validStatusTransitions[models.RecommendationAccepted], models.RecommendationCompleted)

	// Terminal statuses allow no further transitions.
	assert.Empty(t, validStatusTransitions[models.RecommendationRejected])
	assert.Empty(t, validStatusTransitions[models.RecommendationCompleted])
}
