package services

import (
	"fmt"

	contextutils "eduassist/internal/utils"
)

// NoContentAvailableError is returned when the full fallback cascade (exact
// tier, then topic-wide, then subject-wide) yields zero questions.
type NoContentAvailableError struct {
	TopicID       int
	SubjectID     int
	Requested     int
	ExcludedCount int
}

func (e *NoContentAvailableError) Error() string {
	return fmt.Sprintf("no content available for quiz generation (topic=%d subject=%d requested=%d excluded=%d)", e.TopicID, e.SubjectID, e.Requested, e.ExcludedCount)
}

// Unwrap allows errors.Is(..., contextutils.ErrNoContentAvailable) to work.
func (e *NoContentAvailableError) Unwrap() error {
	return contextutils.ErrNoContentAvailable
}
