// Package config handles application configuration loading from a YAML file
// with environment variable overrides.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "eduassist/internal/utils"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Personalization engine tuning
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port          string   `json:"port" yaml:"port"`
	Debug         bool     `json:"debug" yaml:"debug"`
	LogLevel      string   `json:"log_level" yaml:"log_level"`
	SessionSecret string   `json:"session_secret" yaml:"session_secret"`
	CORSOrigins   []string `json:"cors_origins" yaml:"cors_origins"`
	AppBaseURL    string   `json:"app_base_url" yaml:"app_base_url"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// EngineConfig tunes the personalization engine heuristics. All fields have
// working defaults applied by ApplyDefaults, so a zero config is usable.
type EngineConfig struct {
	// HistoryWindow is the number of recent completed attempts used to build a
	// performance profile. Capped at MaxHistoryWindow.
	HistoryWindow    int `json:"history_window" yaml:"history_window"`
	MaxHistoryWindow int `json:"max_history_window" yaml:"max_history_window"`

	// PassingScore is the score treated as a pass when computing streaks.
	PassingScore float64 `json:"passing_score" yaml:"passing_score"`
	// TargetScore is the learner goal used by the recommendation priority bands.
	TargetScore float64 `json:"target_score" yaml:"target_score"`

	// QuizCacheTTL bounds how long a generated quiz stays in the in-process cache.
	QuizCacheTTL time.Duration `json:"quiz_cache_ttl" yaml:"quiz_cache_ttl"`
	// QuizCacheSize bounds how many entries the in-process cache may hold.
	QuizCacheSize int `json:"quiz_cache_size" yaml:"quiz_cache_size"`

	// RecentAttemptWindow is how many recent attempts feed the served-question
	// exclusion set; MaxExcludedQuestions caps the set itself.
	RecentAttemptWindow  int `json:"recent_attempt_window" yaml:"recent_attempt_window"`
	MaxExcludedQuestions int `json:"max_excluded_questions" yaml:"max_excluded_questions"`

	// OverfetchFactor is how many times the needed count each tier query pulls
	// before seeded sampling trims it down.
	OverfetchFactor int `json:"overfetch_factor" yaml:"overfetch_factor"`

	// MaxSuggestedQuizzes caps quiz suggestions attached to a recommendation.
	MaxSuggestedQuizzes int `json:"max_suggested_quizzes" yaml:"max_suggested_quizzes"`
	// SmartRecommendationLimit caps the ranked recommendation listing.
	SmartRecommendationLimit int `json:"smart_recommendation_limit" yaml:"smart_recommendation_limit"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`
	Protocol       string            `json:"protocol" yaml:"protocol"` // "grpc" or "http"
	Insecure       bool              `json:"insecure" yaml:"insecure"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	ServiceName    string            `json:"service_name" yaml:"service_name"`
	ServiceVersion string            `json:"service_version" yaml:"service_version"`
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"`
}

// ApplyDefaults fills in zero-valued engine fields with the documented defaults.
func (e *EngineConfig) ApplyDefaults() {
	if e.HistoryWindow <= 0 {
		e.HistoryWindow = DefaultHistoryWindow
	}
	if e.MaxHistoryWindow <= 0 {
		e.MaxHistoryWindow = MaxHistoryWindow
	}
	if e.HistoryWindow > e.MaxHistoryWindow {
		e.HistoryWindow = e.MaxHistoryWindow
	}
	if e.PassingScore <= 0 {
		e.PassingScore = DefaultPassingScore
	}
	if e.TargetScore <= 0 {
		e.TargetScore = DefaultTargetScore
	}
	if e.QuizCacheTTL <= 0 {
		e.QuizCacheTTL = DefaultQuizCacheTTL
	}
	if e.QuizCacheSize <= 0 {
		e.QuizCacheSize = DefaultQuizCacheSize
	}
	if e.RecentAttemptWindow <= 0 {
		e.RecentAttemptWindow = DefaultRecentAttemptWindow
	}
	if e.MaxExcludedQuestions <= 0 {
		e.MaxExcludedQuestions = DefaultMaxExcludedQuestions
	}
	if e.OverfetchFactor <= 0 {
		e.OverfetchFactor = DefaultOverfetchFactor
	}
	if e.MaxSuggestedQuizzes <= 0 {
		e.MaxSuggestedQuizzes = DefaultMaxSuggestedQuizzes
	}
	if e.SmartRecommendationLimit <= 0 {
		e.SmartRecommendationLimit = DefaultSmartRecommendationLimit
	}
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	config.overrideFromEnv()
	config.Engine.ApplyDefaults()

	return config, nil
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnvWithPrefix(c, "")
}

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if field.Type() == reflect.TypeOf(time.Duration(0)) {
					if d, err := time.ParseDuration(envVal); err == nil {
						field.SetInt(int64(d))
					}
				} else if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				if field.Type().Elem().Kind() == reflect.String {
					slice := strings.Split(envVal, ",")
					field.Set(reflect.ValueOf(slice))
				}
			}
		case reflect.Struct:
			if field.CanAddr() {
				fieldPrefix := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
				if prefix != "" {
					fieldPrefix = prefix + "_" + fieldPrefix
				}
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), fieldPrefix)
			}
		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				fieldPrefix := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
				if prefix != "" {
					fieldPrefix = prefix + "_" + fieldPrefix
				}
				overrideStructFromEnvWithPrefix(field.Interface(), fieldPrefix)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file, preferring EDUASSIST_CONFIG_FILE
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv("EDUASSIST_CONFIG_FILE"); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	// Missing default file is fine; env overrides and defaults still apply.
	if _, statErr := os.Stat("config.yaml"); os.IsNotExist(statErr) {
		return &Config{}, nil
	}
	return loadConfigFromFile("config.yaml")
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
