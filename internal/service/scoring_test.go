package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func question(marks int, negative float64, correct model.OptionKey) model.TestQuestion {
	return model.TestQuestion{Question: model.Question{
		ID:            uuid.New(),
		CorrectOption: correct,
		Marks:         marks,
		NegativeMarks: negative,
	}}
}

func answer(q model.TestQuestion, selected model.OptionKey) model.AnswerRecord {
	rec := model.AnswerRecord{QuestionID: q.ID, Status: model.StatusNotAttempted}
	if selected != "" {
		rec.SelectedOption = &selected
		rec.Status = model.StatusAnswered
	}
	return rec
}

func TestScoreAnswers(t *testing.T) {
	qs := []model.TestQuestion{
		question(2, 0.5, model.OptionA),
		question(2, 0.5, model.OptionB),
		question(1, 0.25, model.OptionC),
	}

	tests := []struct {
		name       string
		selected   []model.OptionKey
		total      float64
		percentage float64
	}{
		{"one right one wrong one blank", []model.OptionKey{"A", "C", ""}, 1.5, 30},
		{"all right", []model.OptionKey{"A", "B", "C"}, 5, 100},
		{"all blank", []model.OptionKey{"", "", ""}, 0, 0},
		{"all wrong clamps to zero", []model.OptionKey{"B", "A", "D"}, 0, 0},
		{"negative partials offset before clamp", []model.OptionKey{"", "B", "A"}, 1.75, 35},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers := make([]model.AnswerRecord, len(qs))
			for i, k := range tt.selected {
				answers[i] = answer(qs[i], k)
			}
			s := ScoreAnswers(qs, answers, 5)
			assert.Equal(t, tt.total, s.Total)
			assert.Equal(t, tt.percentage, s.Percentage)
			assert.Len(t, s.Graded, 3)
		})
	}
}

func TestScoreAnswersGradesEachRecord(t *testing.T) {
	qs := []model.TestQuestion{
		question(2, 0.5, model.OptionA),
		question(2, 0.5, model.OptionB),
		question(1, 0.25, model.OptionC),
	}
	stale := true
	blank := answer(qs[2], "")
	blank.IsCorrect = &stale
	blank.MarksAwarded = 3

	s := ScoreAnswers(qs, []model.AnswerRecord{blank, answer(qs[1], "D"), answer(qs[0], "A")}, 5)
	require.Len(t, s.Graded, 3)

	byID := make(map[uuid.UUID]model.AnswerRecord)
	for _, g := range s.Graded {
		byID[g.QuestionID] = g
	}

	right := byID[qs[0].ID]
	require.NotNil(t, right.IsCorrect)
	assert.True(t, *right.IsCorrect)
	assert.Equal(t, 2.0, right.MarksAwarded)

	wrong := byID[qs[1].ID]
	require.NotNil(t, wrong.IsCorrect)
	assert.False(t, *wrong.IsCorrect)
	assert.Equal(t, -0.5, wrong.MarksAwarded)

	unanswered := byID[qs[2].ID]
	assert.Nil(t, unanswered.IsCorrect)
	assert.Zero(t, unanswered.MarksAwarded)
}

func TestScoreAnswersIgnoresForeignQuestions(t *testing.T) {
	qs := []model.TestQuestion{question(4, 1, model.OptionA)}
	stray := answer(question(9, 0, model.OptionA), "A")

	s := ScoreAnswers(qs, []model.AnswerRecord{stray, answer(qs[0], "A")}, 4)
	assert.Equal(t, 4.0, s.Total)
	assert.Equal(t, 100.0, s.Percentage)
	assert.Len(t, s.Graded, 1)
}

func TestScoreAnswersRoundsToTwoDecimals(t *testing.T) {
	qs := []model.TestQuestion{
		question(1, 0.25, model.OptionA),
		question(1, 0.25, model.OptionA),
		question(1, 0.25, model.OptionA),
	}
	answers := []model.AnswerRecord{answer(qs[0], "A"), answer(qs[1], "A"), answer(qs[2], "")}

	s := ScoreAnswers(qs, answers, 3)
	assert.Equal(t, 2.0, s.Total)
	assert.Equal(t, 66.67, s.Percentage)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 30.0, Percentage(1.5, 5))
	assert.Equal(t, 33.33, Percentage(1, 3))
	assert.Zero(t, Percentage(3, 0))
	assert.Zero(t, Percentage(3, -1))
}

func TestDurationTaken(t *testing.T) {
	assert.Equal(t, 0, DurationTaken(10, 10*time.Minute))
	assert.Equal(t, 5, DurationTaken(10, 5*time.Minute+30*time.Second))
	assert.Equal(t, 1, DurationTaken(10, 9*time.Minute+59*time.Second))
	assert.Equal(t, 10, DurationTaken(10, 0))
}
