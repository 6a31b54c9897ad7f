package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eduassist/internal/config"
	"eduassist/internal/models"
	"eduassist/internal/observability"
	"eduassist/internal/services"
	contextutils "eduassist/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserService struct {
	users map[string]*models.User
}

func newFakeUserService() *fakeUserService {
	return &fakeUserService{users: make(map[string]*models.User)}
}

func (f *fakeUserService) CreateUserWithPassword(_ context.Context, username, email, _ string) (*models.User, error) {
	if _, ok := f.users[username]; ok {
		return nil, contextutils.WrapError(contextutils.ErrRecordExists, "username already taken")
	}
	user := &models.User{ID: len(f.users) + 1, Username: username}
	user.Email = sql.NullString{String: email, Valid: email != ""}
	f.users[username] = user
	return user, nil
}

func (f *fakeUserService) GetUserByID(_ context.Context, id int) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserService) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return f.users[username], nil
}

func (f *fakeUserService) AuthenticateUser(_ context.Context, username, password string) (*models.User, error) {
	user, ok := f.users[username]
	if !ok || password != "correct-horse" {
		return nil, contextutils.ErrInvalidCredentials
	}
	return user, nil
}

func (f *fakeUserService) UpdateLastActive(_ context.Context, _ int) error { return nil }
func (f *fakeUserService) GetDB() *sql.DB                                  { return nil }

type fakeQuizService struct {
	quizzes map[int]*models.Quiz
}

func (f *fakeQuizService) GenerateQuiz(_ context.Context, req *models.QuizGenerationRequest) (*models.Quiz, error) {
	return &models.Quiz{
		ID:             7,
		UserID:         req.UserID,
		TopicID:        req.TopicID,
		SubjectID:      req.SubjectID,
		SessionID:      "deadbeefdeadbeef",
		QuestionIDs:    []int{1, 2, 3},
		RequestedCount: req.QuestionCount,
		CreatedAt:      time.Now(),
	}, nil
}

func (f *fakeQuizService) GetQuizByID(_ context.Context, id int) (*models.Quiz, error) {
	quiz, ok := f.quizzes[id]
	if !ok {
		return nil, contextutils.ErrRecordNotFound
	}
	return quiz, nil
}

func (f *fakeQuizService) GetQuizBySessionID(_ context.Context, _ string) (*models.Quiz, error) {
	return nil, contextutils.ErrRecordNotFound
}

func (f *fakeQuizService) FindQuizzesByDifficulty(_ context.Context, _, _ int, _ models.DifficultyLevel, _ int) ([]*models.Quiz, error) {
	return nil, nil
}

type fakeQuestionService struct {
	questions map[int]*models.Question
}

func (f *fakeQuestionService) SaveQuestion(_ context.Context, _ *models.Question) error { return nil }

func (f *fakeQuestionService) GetQuestionByID(_ context.Context, id int) (*models.Question, error) {
	return f.questions[id], nil
}

func (f *fakeQuestionService) GetQuestionsByIDs(_ context.Context, ids []int) ([]*models.Question, error) {
	out := make([]*models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := f.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestionService) GetCandidateIDs(_ context.Context, _ int, _ models.DifficultyLevel, _ []int, _ int) ([]int, error) {
	return nil, nil
}
func (f *fakeQuestionService) GetTopicFallbackIDs(_ context.Context, _ int, _ []int, _ int) ([]int, error) {
	return nil, nil
}
func (f *fakeQuestionService) GetSubjectFallbackIDs(_ context.Context, _ int, _ []int, _ int) ([]int, error) {
	return nil, nil
}
func (f *fakeQuestionService) GetRecentlyServedQuestionIDs(_ context.Context, _, _ int) ([]int, error) {
	return nil, nil
}
func (f *fakeQuestionService) IncrementUsage(_ context.Context, _ []int) error { return nil }
func (f *fakeQuestionService) DB() *sql.DB                                     { return nil }

type fakeAttemptService struct{}

func (f *fakeAttemptService) StartAttempt(_ context.Context, userID, quizID int) (*models.QuizAttempt, error) {
	attempt := &models.QuizAttempt{ID: 11, UserID: userID, TotalQuestions: 3, StartedAt: time.Now()}
	attempt.QuizID = sql.NullInt32{Int32: int32(quizID), Valid: true}
	return attempt, nil
}

func (f *fakeAttemptService) RecordAnswer(_ context.Context, _, _, questionID, selectedIndex, timeSpent int) (*models.AnswerRecord, error) {
	return &models.AnswerRecord{QuestionID: questionID, SelectedIndex: selectedIndex, IsCorrect: true, TimeSpentSeconds: timeSpent}, nil
}

func (f *fakeAttemptService) CompleteAttempt(_ context.Context, attemptID, userID int) (*models.QuizAttempt, error) {
	return &models.QuizAttempt{ID: attemptID, UserID: userID, IsCompleted: true, Score: 66.7}, nil
}

func (f *fakeAttemptService) GetAttemptByID(_ context.Context, attemptID, userID int) (*models.QuizAttempt, error) {
	return &models.QuizAttempt{ID: attemptID, UserID: userID}, nil
}

type fakeRecommendationService struct {
	recs []*models.Recommendation
}

func (f *fakeRecommendationService) CreateFromAttempt(_ context.Context, _ *services.RecommendationInput) (*models.Recommendation, error) {
	return nil, nil
}

func (f *fakeRecommendationService) ListRecommendations(_ context.Context, _ int, status models.RecommendationStatus) ([]*models.Recommendation, error) {
	if status == "" {
		return f.recs, nil
	}
	out := []*models.Recommendation{}
	for _, r := range f.recs {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecommendationService) SmartRecommendations(_ context.Context, _ int) ([]*models.Recommendation, error) {
	return f.recs, nil
}

func (f *fakeRecommendationService) UpdateStatus(_ context.Context, _, _ int, status models.RecommendationStatus) error {
	if status == models.RecommendationPending {
		return contextutils.WrapError(contextutils.ErrInvalidStatusTransition, "cannot transition back to pending")
	}
	return nil
}

func (f *fakeRecommendationService) DeleteByAttemptID(_ context.Context, _ int) error { return nil }

type routerFixture struct {
	router          *gin.Engine
	quizService     *fakeQuizService
	questionService *fakeQuestionService
	recommendations *fakeRecommendationService
}

func newRouterFixture() *routerFixture {
	cfg := &config.Config{}
	cfg.Server.SessionSecret = "test-secret"
	cfg.Server.CORSOrigins = []string{"http://localhost:5173"}
	cfg.Server.Debug = true
	cfg.Engine.ApplyDefaults()

	logger := observability.NewLogger(&cfg.OpenTelemetry)
	quizService := &fakeQuizService{quizzes: map[int]*models.Quiz{}}
	questionService := &fakeQuestionService{questions: map[int]*models.Question{}}
	recommendations := &fakeRecommendationService{}

	router := NewRouter(cfg, newFakeUserService(), questionService, quizService, &fakeAttemptService{}, recommendations, logger)
	return &routerFixture{
		router:          router,
		quizService:     quizService,
		questionService: questionService,
		recommendations: recommendations,
	}
}

// login signs up a fresh user and returns the session cookies.
func (fx *routerFixture) login(t *testing.T) []*http.Cookie {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"username": "learner",
		"password": "correct-horse",
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/signup", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	fx.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return w.Result().Cookies()
}

func (fx *routerFixture) do(t *testing.T, method, path string, payload interface{}, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	fx.router.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthAndVersion(t *testing.T) {
	fx := newRouterFixture()

	w := fx.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "eduassist")

	w = fx.do(t, http.MethodGet, "/v1/version", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "version")
}

func TestRouter_QuizRoutesRequireAuth(t *testing.T) {
	fx := newRouterFixture()

	w := fx.do(t, http.MethodPost, "/v1/quiz/generate", map[string]int{"topic_id": 1}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestGenerateQuiz_ReturnsQuizForSessionUser(t *testing.T) {
	fx := newRouterFixture()
	cookies := fx.login(t)

	w := fx.do(t, http.MethodPost, "/v1/quiz/generate", map[string]interface{}{
		"topic_id":       3,
		"subject_id":     1,
		"question_count": 3,
	}, cookies)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Quiz    models.Quiz `json:"quiz"`
		Partial bool        `json:"partial"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "deadbeefdeadbeef", resp.Quiz.SessionID)
	assert.Equal(t, []int{1, 2, 3}, resp.Quiz.QuestionIDs)
	assert.False(t, resp.Partial)
}

func TestGenerateQuiz_RejectsMissingFields(t *testing.T) {
	fx := newRouterFixture()
	cookies := fx.login(t)

	w := fx.do(t, http.MethodPost, "/v1/quiz/generate", map[string]interface{}{
		"topic_id": 3,
	}, cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetQuiz_StripsGradingFields(t *testing.T) {
	fx := newRouterFixture()
	cookies := fx.login(t)

	fx.quizService.quizzes[7] = &models.Quiz{
		ID:          7,
		UserID:      1,
		QuestionIDs: []int{1},
	}
	fx.questionService.questions[1] = &models.Question{
		ID:            1,
		TopicID:       3,
		SubjectID:     1,
		Difficulty:    models.DifficultyLow,
		Content:       map[string]interface{}{"question": "2+2?", "options": []string{"3", "4"}},
		CorrectAnswer: 1,
		Explanation:   "basic addition",
	}

	w := fx.do(t, http.MethodGet, "/v1/quiz/7", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "2+2?")
	assert.NotContains(t, w.Body.String(), "correct_answer")
	assert.NotContains(t, w.Body.String(), "basic addition")
}

func TestGetQuiz_ForbidsOtherUsersQuiz(t *testing.T) {
	fx := newRouterFixture()
	cookies := fx.login(t)

	fx.quizService.quizzes[8] = &models.Quiz{ID: 8, UserID: 999}

	w := fx.do(t, http.MethodGet, "/v1/quiz/8", nil, cookies)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAttemptLifecycleRoutes(t *testing.T) {
	fx := newRouterFixture()
	cookies := fx.login(t)

	w := fx.do(t, http.MethodPost, "/v1/attempts", map[string]int{"quiz_id": 7}, cookies)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = fx.do(t, http.MethodPost, "/v1/attempts/11/answers", map[string]int{
		"question_id":        1,
		"selected_index":     1,
		"time_spent_seconds": 20,
	}, cookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "is_correct")

	w = fx.do(t, http.MethodPost, "/v1/attempts/11/complete", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "66.7")

	w = fx.do(t, http.MethodPost, "/v1/attempts/abc/answers", map[string]int{"question_id": 1}, cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecommendationRoutes(t *testing.T) {
	fx := newRouterFixture()
	cookies := fx.login(t)
	fx.recommendations.recs = []*models.Recommendation{
		{ID: 1, UserID: 1, Priority: 95, Status: models.RecommendationPending, Reason: "Focus on fundamentals"},
		{ID: 2, UserID: 1, Priority: 40, Status: models.RecommendationCompleted},
	}

	w := fx.do(t, http.MethodGet, "/v1/recommendations", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Focus on fundamentals")

	w = fx.do(t, http.MethodGet, "/v1/recommendations?status=bogus", nil, cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = fx.do(t, http.MethodGet, "/v1/recommendations/smart", nil, cookies)
	assert.Equal(t, http.StatusOK, w.Code)

	w = fx.do(t, http.MethodPut, "/v1/recommendations/1/status", map[string]string{"status": "accepted"}, cookies)
	assert.Equal(t, http.StatusOK, w.Code)

	w = fx.do(t, http.MethodPut, "/v1/recommendations/1/status", map[string]string{"status": "pending"}, cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthFlow_LoginLogoutStatus(t *testing.T) {
	fx := newRouterFixture()
	cookies := fx.login(t)

	w := fx.do(t, http.MethodGet, "/v1/auth/status", nil, cookies)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "true")

	w = fx.do(t, http.MethodGet, "/v1/auth/me", nil, cookies)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "learner")

	w = fx.do(t, http.MethodPost, "/v1/auth/login", map[string]string{
		"username": "learner",
		"password": "wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = fx.do(t, http.MethodPost, "/v1/auth/logout", nil, cookies)
	assert.Equal(t, http.StatusOK, w.Code)
}
