package config

import "time"

// Timeout constants
const (
	ServerShutdownTimeout = 30 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute

	// Session timeouts
	SessionMaxAge = 7 * 24 * time.Hour // 7 days
)

// Personalization engine defaults
const (
	DefaultHistoryWindow            = 20
	MaxHistoryWindow                = 50
	DefaultPassingScore             = 70.0
	DefaultTargetScore              = 80.0
	DefaultQuizCacheTTL             = 1 * time.Hour
	DefaultQuizCacheSize            = 1024
	DefaultRecentAttemptWindow      = 5
	DefaultMaxExcludedQuestions     = 20
	DefaultOverfetchFactor          = 3
	DefaultMaxSuggestedQuizzes      = 5
	DefaultSmartRecommendationLimit = 10
	DefaultTimeLimitRoundingMinutes = 5
)

// Session configuration constants
const (
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	SessionName = "eduassist-session"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:;"
)
