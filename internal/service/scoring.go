package service

import (
	"math"
	"time"

	"github.com/stemsi/mocktest-backend/internal/model"
)

// Score is the outcome of grading a set of answers.
type Score struct {
	Total      float64
	Percentage float64
	Graded     []model.AnswerRecord
}

// ScoreAnswers grades answers against the ordered question list. Correct
// selections earn the question's marks, wrong ones cost its negative marks and
// blanks cost nothing. The sum is clamped at zero once, after accumulation.
func ScoreAnswers(questions []model.TestQuestion, answers []model.AnswerRecord, totalMarks int) Score {
	byQuestion := make(map[string]model.AnswerRecord, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID.String()] = a
	}

	var raw float64
	graded := make([]model.AnswerRecord, 0, len(answers))
	for _, q := range questions {
		rec, ok := byQuestion[q.ID.String()]
		if !ok {
			continue
		}
		rec.IsCorrect = nil
		rec.MarksAwarded = 0
		if rec.HasSelection() {
			correct := *rec.SelectedOption == q.CorrectOption
			rec.IsCorrect = &correct
			if correct {
				rec.MarksAwarded = float64(q.Marks)
			} else {
				rec.MarksAwarded = -q.NegativeMarks
			}
			raw += rec.MarksAwarded
		}
		graded = append(graded, rec)
	}

	total := math.Max(0, raw)
	return Score{
		Total:      model.Round2(total),
		Percentage: Percentage(total, totalMarks),
		Graded:     graded,
	}
}

// Percentage is round2(100 × score / totalMarks), or 0 for a test without marks.
func Percentage(score float64, totalMarks int) float64 {
	if totalMarks <= 0 {
		return 0
	}
	return model.Round2(100 * score / float64(totalMarks))
}

// DurationTaken is the test duration minus the whole minutes still remaining.
func DurationTaken(durationMinutes int, remaining time.Duration) int {
	return durationMinutes - int(remaining/time.Minute)
}
