package observability

import (
	"context"
	"testing"

	"eduassist/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Disabled(t *testing.T) {
	logger := NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	require.NotNil(t, logger)

	// No-op logger must accept all levels without panicking
	ctx := context.Background()
	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message", map[string]interface{}{"key": "value"})
	logger.Warn(ctx, "warn message", nil)
	logger.Error(ctx, "error message", assert.AnError)
}

func TestNewLogger_NilConfig(t *testing.T) {
	logger := NewLogger(nil)
	require.NotNil(t, logger)
	logger.Info(context.Background(), "still works")
}

func TestLogger_MergeFields(t *testing.T) {
	logger := NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	merged := logger.mergeFields(
		map[string]interface{}{"a": 1},
		nil,
		map[string]interface{}{"b": 2, "a": 3},
	)
	assert.Equal(t, 3, merged["a"])
	assert.Equal(t, 2, merged["b"])

	assert.Empty(t, logger.mergeFields())
	assert.Empty(t, logger.mergeFields(nil))
}

func TestTraceFunction_SpanNaming(t *testing.T) {
	ctx, span := TraceQuizFunction(context.Background(), "generate_quiz", AttributeUserID(1))
	require.NotNil(t, span)
	require.NotNil(t, ctx)
	span.End()
}
