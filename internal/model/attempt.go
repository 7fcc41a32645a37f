package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// AttemptState enumerates the lifecycle states of an attempt.
type AttemptState string

const (
	AttemptStateCreated   AttemptState = "CREATED"
	AttemptStateCompleted AttemptState = "COMPLETED"
)

// SubmitTrigger records what completed an attempt.
type SubmitTrigger string

const (
	TriggerManual  SubmitTrigger = "MANUAL"
	TriggerTimer   SubmitTrigger = "TIMER"
	TriggerSweeper SubmitTrigger = "SWEEPER"
)

// Attempt is one user's timed attempt at one test.
// It accepts mutations only while IsCompleted is false.
type Attempt struct {
	ID            uuid.UUID      `json:"id"`
	UserID        uuid.UUID      `json:"user_id"`
	TestID        uuid.UUID      `json:"test_id"`
	StartedAt     time.Time      `json:"started_at"`
	IsCompleted   bool           `json:"is_completed"`
	SubmittedAt   *time.Time     `json:"submitted_at,omitempty"`
	DurationTaken *int           `json:"duration_taken,omitempty"`
	TotalScore    float64        `json:"total_score"`
	Percentage    float64        `json:"percentage"`
	LanguageUsed  Language       `json:"language_used"`
	SubmittedBy   *SubmitTrigger `json:"submitted_by,omitempty"`
}

// State derives the lifecycle state from the completion flag.
func (a *Attempt) State() AttemptState {
	if a.IsCompleted {
		return AttemptStateCompleted
	}
	return AttemptStateCreated
}

// Deadline is the instant the attempt's time runs out.
func (a *Attempt) Deadline(durationMinutes int) time.Time {
	return a.StartedAt.Add(time.Duration(durationMinutes) * time.Minute)
}

// Result extracts the scored outcome of a completed attempt.
func (a *Attempt) Result() SubmitResult {
	r := SubmitResult{
		AttemptID:  a.ID,
		TotalScore: a.TotalScore,
		Percentage: a.Percentage,
	}
	if a.DurationTaken != nil {
		r.DurationTaken = *a.DurationTaken
	}
	if a.SubmittedAt != nil {
		r.SubmittedAt = *a.SubmittedAt
	}
	return r
}

// RemainingTime is max(0, startedAt + duration − now). It depends only on its
// arguments so it can be recomputed after a reload or a crash.
func RemainingTime(now, startedAt time.Time, durationMinutes int) time.Duration {
	remaining := startedAt.Add(time.Duration(durationMinutes) * time.Minute).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Round2 rounds v half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// StartAttemptRequest is the payload for starting an attempt.
type StartAttemptRequest struct {
	TestID   uuid.UUID `json:"test_id" binding:"required"`
	Language string    `json:"language" binding:"omitempty,oneof=ENGLISH HINDI"`
}

// StartAttemptResponse is returned when an attempt is created.
type StartAttemptResponse struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	StartedAt time.Time `json:"started_at"`
}

// SubmitResult is the scored outcome returned by every submit call.
type SubmitResult struct {
	AttemptID     uuid.UUID `json:"attempt_id"`
	TotalScore    float64   `json:"total_score"`
	Percentage    float64   `json:"percentage"`
	DurationTaken int       `json:"duration_taken"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// Completion is what the scorer hands back to the store for the single completing write.
type Completion struct {
	SubmittedAt   time.Time
	DurationTaken int
	TotalScore    float64
	Percentage    float64
	Trigger       SubmitTrigger
	Graded        []AnswerRecord
}

// AttemptDetail is an attempt joined with its test summary.
type AttemptDetail struct {
	Attempt
	State            AttemptState `json:"state"`
	RemainingSeconds int          `json:"remaining_seconds"`
	Test             TestSummary  `json:"test"`
}

// StatusCounts backs the question navigator.
type StatusCounts struct {
	Answered          int `json:"answered"`
	MarkedForReview   int `json:"marked_for_review"`
	AnsweredAndMarked int `json:"answered_and_marked"`
	NotAttempted      int `json:"not_attempted"`
}

// AttemptSnapshot is the resumable view of an open attempt.
type AttemptSnapshot struct {
	AttemptID        uuid.UUID      `json:"attempt_id"`
	State            AttemptState   `json:"state"`
	RemainingSeconds int            `json:"remaining_seconds"`
	Answers          []AnswerRecord `json:"answers"`
	Counts           StatusCounts   `json:"counts"`
}

// ReviewItem is one graded question in a completed attempt's review.
type ReviewItem struct {
	Number         int           `json:"number"`
	QuestionID     uuid.UUID     `json:"question_id"`
	SelectedOption *OptionKey    `json:"selected_option,omitempty"`
	CorrectOption  OptionKey     `json:"correct_option"`
	IsCorrect      *bool         `json:"is_correct,omitempty"`
	MarksAwarded   float64       `json:"marks_awarded"`
	Explanation    BilingualText `json:"explanation"`
}

// AttemptReview is the post-completion breakdown of an attempt.
type AttemptReview struct {
	Result SubmitResult `json:"result"`
	Items  []ReviewItem `json:"items"`
}
