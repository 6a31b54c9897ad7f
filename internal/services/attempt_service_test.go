package services

import (
	"testing"

	"eduassist/internal/models"
	contextutils "eduassist/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuizContainsQuestion(t *testing.T) {
	ids := []int{4, 9, 17}

	assert.True(t, quizContainsQuestion(ids, 9))
	assert.False(t, quizContainsQuestion(ids, 5))
	assert.False(t, quizContainsQuestion(nil, 4))
}

func TestAppendAnswerRecord_AppendsNewQuestion(t *testing.T) {
	log := []models.AnswerRecord{{QuestionID: 4, IsCorrect: true}}

	updated, err := appendAnswerRecord(log, models.AnswerRecord{QuestionID: 9, SelectedIndex: 2})
	require.NoError(t, err)
	assert.Len(t, updated, 2)
	assert.Equal(t, 9, updated[1].QuestionID)
}

func TestAppendAnswerRecord_RejectsDuplicateQuestion(t *testing.T) {
	log := []models.AnswerRecord{{QuestionID: 4, SelectedIndex: 1, IsCorrect: true}}

	_, err := appendAnswerRecord(log, models.AnswerRecord{QuestionID: 4, SelectedIndex: 3, IsCorrect: true})
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrConflict))
}

func TestCountCorrectAnswers(t *testing.T) {
	log := []models.AnswerRecord{
		{QuestionID: 1, IsCorrect: true},
		{QuestionID: 2, IsCorrect: false},
		{QuestionID: 3, IsCorrect: true},
	}

	assert.Equal(t, 2, countCorrectAnswers(log))
	assert.Equal(t, 0, countCorrectAnswers(nil))
}

func TestAnswerLog_CorrectCountBoundedByQuizSize(t *testing.T) {
	// A single-question quiz answered correctly twice: the duplicate is
	// rejected, so the correct count never exceeds the quiz size and the
	// completion score stays at or below 100.
	quizQuestionIDs := []int{4}

	log, err := appendAnswerRecord(nil, models.AnswerRecord{QuestionID: 4, IsCorrect: true})
	require.NoError(t, err)

	_, err = appendAnswerRecord(log, models.AnswerRecord{QuestionID: 4, IsCorrect: true})
	require.Error(t, err)

	correct := countCorrectAnswers(log)
	assert.LessOrEqual(t, correct, len(quizQuestionIDs))
	score := float64(correct) / float64(len(quizQuestionIDs)) * 100
	assert.LessOrEqual(t, score, 100.0)
}
