package model

import (
	"time"

	"github.com/google/uuid"
)

// Test is a published mock test. It is read-only for the attempt lifecycle.
type Test struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	TestType        string    `json:"test_type"`
	ExamType        string    `json:"exam_type"`
	DurationMinutes int       `json:"duration_minutes"`
	TotalMarks      int       `json:"total_marks"`
	TotalQuestions  int       `json:"total_questions"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Duration returns the test's time limit.
func (t *Test) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}

// TestSummary is the subset of a test joined onto attempt responses.
type TestSummary struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	TotalQuestions  int       `json:"total_questions"`
	TotalMarks      int       `json:"total_marks"`
}

// Summary projects t onto a TestSummary.
func (t *Test) Summary() TestSummary {
	return TestSummary{
		ID:              t.ID,
		Title:           t.Title,
		DurationMinutes: t.DurationMinutes,
		TotalQuestions:  t.TotalQuestions,
		TotalMarks:      t.TotalMarks,
	}
}
