package contextutils

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrorCodeInvalidInput, SeverityWarn, "Invalid input", "field must be positive")
	assert.Equal(t, "INVALID_INPUT: Invalid input - field must be positive", err.Error())

	noDetails := NewAppError(ErrorCodeInternalError, SeverityError, "Boom", "")
	assert.Equal(t, "INTERNAL_SERVER_ERROR: Boom", noDetails.Error())
}

func TestWrapError_PreservesCode(t *testing.T) {
	wrapped := WrapError(ErrNoContentAvailable, "failed to generate quiz")
	require.Error(t, wrapped)

	var appErr *AppError
	require.True(t, AsError(wrapped, &appErr))
	assert.Equal(t, ErrorCodeNoContentAvailable, appErr.Code)
	assert.True(t, errors.Is(wrapped, ErrNoContentAvailable))
}

func TestWrapErrorf_WithWVerb(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	wrapped := WrapErrorf(cause, "failed to query attempts: %w", cause)
	require.Error(t, wrapped)
	assert.Equal(t, ErrorCodeInternalError, GetErrorCode(wrapped))
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestWrapError_Nil(t *testing.T) {
	assert.NoError(t, WrapError(nil, "context"))
	assert.NoError(t, WrapErrorf(nil, "context %d", 1))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrDatabaseConnection))
	assert.True(t, IsRetryable(ErrServiceUnavailable))
	assert.False(t, IsRetryable(ErrNoContentAvailable))
	assert.False(t, IsRetryable(ErrInvalidIdentifier))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestGetErrorSeverity(t *testing.T) {
	assert.Equal(t, SeverityInfo, GetErrorSeverity(ErrRecordNotFound))
	assert.Equal(t, SeverityError, GetErrorSeverity(errors.New("plain")))
}

func TestToJSON(t *testing.T) {
	err := NewAppErrorWithCause(ErrorCodeDatabaseQuery, SeverityError, "Query failed", "timeout", errors.New("ctx deadline"))
	out := err.ToJSON()
	assert.Equal(t, "DATABASE_QUERY_ERROR", out["code"])
	assert.Equal(t, "Query failed", out["message"])
	assert.Equal(t, "timeout", out["details"])
	assert.Equal(t, "ctx deadline", out["cause"])
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("user_id", 1))

	err := ValidateID("topic_id", 0)
	require.Error(t, err)
	assert.Equal(t, ErrorCodeInvalidIdentifier, GetErrorCode(err))
	assert.Contains(t, err.Error(), "topic_id")

	assert.Error(t, ValidateID("subject_id", -4))
}

func TestValidateIDs(t *testing.T) {
	assert.NoError(t, ValidateIDs(map[string]int{"user_id": 1, "topic_id": 2}))
	assert.Error(t, ValidateIDs(map[string]int{"user_id": 1, "topic_id": -1}))
}

func TestIsValidUsername(t *testing.T) {
	assert.True(t, IsValidUsername("learner42"))
	assert.False(t, IsValidUsername("ab"))
	assert.False(t, IsValidUsername("has spaces"))
}

func TestUserIDContext(t *testing.T) {
	ctx := WithUserID(context.Background(), 7)
	assert.Equal(t, 7, GetUserIDFromContext(ctx))
	assert.Equal(t, 0, GetUserIDFromContext(context.Background()))
}
