package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"eduassist/internal/config"
	"eduassist/internal/models"
)

// BuildSessionID canonicalizes a generation request into a stable identifier.
// Field order is fixed and the time limit is rounded to the nearest
// config.DefaultTimeLimitRoundingMinutes, so semantically identical requests
// collapse to the same identifier. The identifier doubles as the idempotency
// cache key and the selection RNG seed source.
func BuildSessionID(req *models.QuizGenerationRequest, dist models.DifficultyDistribution) string {
	canonical := fmt.Sprintf("user:%d|topic:%d|subject:%d|count:%d|type:%s|limit:%d|%s",
		req.UserID,
		req.TopicID,
		req.SubjectID,
		req.QuestionCount,
		req.SessionType,
		roundToNearest(req.TimeLimitMinutes, config.DefaultTimeLimitRoundingMinutes),
		dist.Key(),
	)

	sum := sha256.Sum256([]byte(canonical))
	// Collision resistance is a uniqueness property here, not a security one;
	// 16 hex chars (64 bits) is plenty for one store.
	return hex.EncodeToString(sum[:])[:16]
}

// seedFromSessionID derives the RNG seed from the identifier via a
// character-code rolling hash, masked non-negative.
func seedFromSessionID(id string) int64 {
	var h int64
	for _, c := range id {
		h = h*31 + int64(c)
	}
	return h & 0x7FFFFFFF
}

// roundToNearest rounds v to the nearest multiple of step.
func roundToNearest(v, step int) int {
	if step <= 0 {
		return v
	}
	if v < 0 {
		return -roundToNearest(-v, step)
	}
	return ((v + step/2) / step) * step
}
