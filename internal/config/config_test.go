package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineConfig_ApplyDefaults(t *testing.T) {
	var e EngineConfig
	e.ApplyDefaults()

	assert.Equal(t, DefaultHistoryWindow, e.HistoryWindow)
	assert.Equal(t, MaxHistoryWindow, e.MaxHistoryWindow)
	assert.Equal(t, DefaultPassingScore, e.PassingScore)
	assert.Equal(t, DefaultTargetScore, e.TargetScore)
	assert.Equal(t, DefaultQuizCacheTTL, e.QuizCacheTTL)
	assert.Equal(t, DefaultQuizCacheSize, e.QuizCacheSize)
	assert.Equal(t, DefaultRecentAttemptWindow, e.RecentAttemptWindow)
	assert.Equal(t, DefaultMaxExcludedQuestions, e.MaxExcludedQuestions)
	assert.Equal(t, DefaultOverfetchFactor, e.OverfetchFactor)
	assert.Equal(t, DefaultMaxSuggestedQuizzes, e.MaxSuggestedQuizzes)
	assert.Equal(t, DefaultSmartRecommendationLimit, e.SmartRecommendationLimit)
}

func TestEngineConfig_ApplyDefaults_CapsHistoryWindow(t *testing.T) {
	e := EngineConfig{HistoryWindow: 500}
	e.ApplyDefaults()
	assert.Equal(t, MaxHistoryWindow, e.HistoryWindow)
}

func TestEngineConfig_ApplyDefaults_KeepsExplicitValues(t *testing.T) {
	e := EngineConfig{
		HistoryWindow: 10,
		PassingScore:  60,
		QuizCacheTTL:  5 * time.Minute,
	}
	e.ApplyDefaults()
	assert.Equal(t, 10, e.HistoryWindow)
	assert.Equal(t, 60.0, e.PassingScore)
	assert.Equal(t, 5*time.Minute, e.QuizCacheTTL)
}

func TestNewConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: "8080"
  log_level: debug
database:
  url: postgres://localhost/eduassist_test
engine:
  history_window: 15
  target_score: 85
open_telemetry:
  service_name: eduassist-backend
  enable_logging: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("EDUASSIST_CONFIG_FILE", path)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/eduassist_test", cfg.Database.URL)
	assert.Equal(t, 15, cfg.Engine.HistoryWindow)
	assert.Equal(t, 85.0, cfg.Engine.TargetScore)
	// Unspecified engine values come from defaults
	assert.Equal(t, DefaultQuizCacheTTL, cfg.Engine.QuizCacheTTL)
	assert.Equal(t, "eduassist-backend", cfg.OpenTelemetry.ServiceName)
}

func TestNewConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"8080\"\n"), 0o600))
	t.Setenv("EDUASSIST_CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ENGINE_HISTORY_WINDOW", "12")
	t.Setenv("DATABASE_URL", "postgres://override/db")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 12, cfg.Engine.HistoryWindow)
	assert.Equal(t, "postgres://override/db", cfg.Database.URL)
}
