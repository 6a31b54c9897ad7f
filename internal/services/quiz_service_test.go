package services

import (
	"context"
	"database/sql"
	"testing"

	"eduassist/internal/config"
	"eduassist/internal/models"
	contextutils "eduassist/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQuestionStore is an in-memory QuestionServiceInterface for exercising
// the selection cascade without a database.
type fakeQuestionStore struct {
	questions []*models.Question
}

func (f *fakeQuestionStore) SaveQuestion(_ context.Context, q *models.Question) error {
	f.questions = append(f.questions, q)
	return nil
}

func (f *fakeQuestionStore) GetQuestionByID(_ context.Context, id int) (*models.Question, error) {
	for _, q := range f.questions {
		if q.ID == id {
			return q, nil
		}
	}
	return nil, contextutils.ErrRecordNotFound
}

func (f *fakeQuestionStore) GetQuestionsByIDs(_ context.Context, ids []int) ([]*models.Question, error) {
	var out []*models.Question
	for _, id := range ids {
		for _, q := range f.questions {
			if q.ID == id {
				out = append(out, q)
			}
		}
	}
	return out, nil
}

func (f *fakeQuestionStore) GetCandidateIDs(_ context.Context, topicID int, tier models.DifficultyLevel, excluded []int, limit int) ([]int, error) {
	return f.filter(func(q *models.Question) bool {
		return q.TopicID == topicID && q.Difficulty == tier
	}, excluded, limit), nil
}

func (f *fakeQuestionStore) GetTopicFallbackIDs(_ context.Context, topicID int, excluded []int, limit int) ([]int, error) {
	return f.filter(func(q *models.Question) bool {
		return q.TopicID == topicID
	}, excluded, limit), nil
}

func (f *fakeQuestionStore) GetSubjectFallbackIDs(_ context.Context, subjectID int, excluded []int, limit int) ([]int, error) {
	return f.filter(func(q *models.Question) bool {
		return q.SubjectID == subjectID
	}, excluded, limit), nil
}

func (f *fakeQuestionStore) GetRecentlyServedQuestionIDs(context.Context, int, int) ([]int, error) {
	return nil, nil
}

func (f *fakeQuestionStore) IncrementUsage(context.Context, []int) error { return nil }
func (f *fakeQuestionStore) DB() *sql.DB                                { return nil }

func (f *fakeQuestionStore) filter(match func(*models.Question) bool, excluded []int, limit int) []int {
	skip := make(map[int]bool, len(excluded))
	for _, id := range excluded {
		skip[id] = true
	}
	var ids []int
	for _, q := range f.questions {
		if !q.IsActive || skip[q.ID] || !match(q) {
			continue
		}
		ids = append(ids, q.ID)
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	return ids
}

func storeWithQuestions(counts map[models.DifficultyLevel]int) *fakeQuestionStore {
	store := &fakeQuestionStore{}
	id := 1
	for _, tier := range models.AllDifficulties {
		for i := 0; i < counts[tier]; i++ {
			store.questions = append(store.questions, &models.Question{
				ID:         id,
				TopicID:    2,
				SubjectID:  3,
				Difficulty: tier,
				IsActive:   true,
			})
			id++
		}
	}
	return store
}

func newSelectionService(store *fakeQuestionStore) *QuizService {
	cfg := &config.Config{}
	cfg.Engine.ApplyDefaults()
	return &QuizService{
		cfg:       cfg,
		questions: store,
		cache:     NewTTLCache(8, cfg.Engine.QuizCacheTTL),
	}
}

func selectionRequest() *models.QuizGenerationRequest {
	return &models.QuizGenerationRequest{
		UserID:        1,
		TopicID:       2,
		SubjectID:     3,
		QuestionCount: 10,
		SessionType:   models.SessionTypePractice,
	}
}

func TestSelectQuestions_Deterministic(t *testing.T) {
	store := storeWithQuestions(map[models.DifficultyLevel]int{
		models.DifficultyLow: 20, models.DifficultyMedium: 20, models.DifficultyHigh: 10,
	})
	svc := newSelectionService(store)
	dist := models.DifficultyDistribution{Low: 7, Medium: 2, High: 1}

	first, err := svc.selectQuestions(context.Background(), selectionRequest(), dist, nil, "a1b2c3d4e5f60718")
	require.NoError(t, err)
	second, err := svc.selectQuestions(context.Background(), selectionRequest(), dist, nil, "a1b2c3d4e5f60718")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 10)
}

func TestSelectQuestions_ExclusionRespected(t *testing.T) {
	store := storeWithQuestions(map[models.DifficultyLevel]int{
		models.DifficultyLow: 20, models.DifficultyMedium: 20, models.DifficultyHigh: 10,
	})
	svc := newSelectionService(store)
	dist := models.DifficultyDistribution{Low: 3, Medium: 3, High: 1}
	excluded := []int{1, 2, 3}

	selected, err := svc.selectQuestions(context.Background(), selectionRequest(), dist, excluded, "a1b2c3d4e5f60718")
	require.NoError(t, err)

	for _, id := range excluded {
		assert.NotContains(t, selected, id)
	}
}

func TestSelectQuestions_TopicFallbackTopsUp(t *testing.T) {
	// No high questions at all: the high quota is topped up from the topic.
	store := storeWithQuestions(map[models.DifficultyLevel]int{
		models.DifficultyLow: 20, models.DifficultyMedium: 20,
	})
	svc := newSelectionService(store)
	dist := models.DifficultyDistribution{Low: 4, Medium: 4, High: 2}

	selected, err := svc.selectQuestions(context.Background(), selectionRequest(), dist, nil, "a1b2c3d4e5f60718")
	require.NoError(t, err)
	assert.Len(t, selected, 10)
}

func TestSelectQuestions_SubjectFallback(t *testing.T) {
	// The requested topic is empty but a sibling topic in the subject has
	// supply: generation still returns a non-empty set.
	store := &fakeQuestionStore{}
	for i := 1; i <= 10; i++ {
		store.questions = append(store.questions, &models.Question{
			ID: i, TopicID: 99, SubjectID: 3, Difficulty: models.DifficultyMedium, IsActive: true,
		})
	}
	svc := newSelectionService(store)
	dist := models.DifficultyDistribution{Low: 2, Medium: 2, High: 1}

	selected, err := svc.selectQuestions(context.Background(), selectionRequest(), dist, nil, "a1b2c3d4e5f60718")
	require.NoError(t, err)
	assert.NotEmpty(t, selected)
	assert.Len(t, selected, 5)
}

func TestSelectQuestions_PartialFulfillmentAccepted(t *testing.T) {
	store := storeWithQuestions(map[models.DifficultyLevel]int{
		models.DifficultyLow: 3,
	})
	svc := newSelectionService(store)
	dist := models.DifficultyDistribution{Low: 7, Medium: 2, High: 1}

	selected, err := svc.selectQuestions(context.Background(), selectionRequest(), dist, nil, "a1b2c3d4e5f60718")
	require.NoError(t, err)
	assert.Len(t, selected, 3)
}

func TestSelectQuestions_NoContentAvailable(t *testing.T) {
	svc := newSelectionService(&fakeQuestionStore{})
	dist := models.DifficultyDistribution{Low: 7, Medium: 2, High: 1}

	_, err := svc.selectQuestions(context.Background(), selectionRequest(), dist, nil, "a1b2c3d4e5f60718")
	require.Error(t, err)

	var noContent *NoContentAvailableError
	require.ErrorAs(t, err, &noContent)
	assert.ErrorIs(t, err, contextutils.ErrNoContentAvailable)
	assert.Equal(t, 2, noContent.TopicID)
}

func TestValidateRequest(t *testing.T) {
	svc := newSelectionService(&fakeQuestionStore{})

	valid := selectionRequest()
	require.NoError(t, svc.validateRequest(valid))

	noCount := selectionRequest()
	noCount.QuestionCount = 0
	assert.Error(t, svc.validateRequest(noCount))

	badUser := selectionRequest()
	badUser.UserID = 0
	assert.Error(t, svc.validateRequest(badUser))

	badType := selectionRequest()
	badType.SessionType = "cram"
	assert.Error(t, svc.validateRequest(badType))

	defaulted := selectionRequest()
	defaulted.SessionType = ""
	require.NoError(t, svc.validateRequest(defaulted))
	assert.Equal(t, models.SessionTypePractice, defaulted.SessionType)
}
