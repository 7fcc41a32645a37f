package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerStatus is the navigator status of a question within an attempt.
type AnswerStatus string

const (
	StatusNotAttempted      AnswerStatus = "NOT_ATTEMPTED"
	StatusAnswered          AnswerStatus = "ANSWERED"
	StatusMarkedForReview   AnswerStatus = "MARKED_FOR_REVIEW"
	StatusAnsweredAndMarked AnswerStatus = "ANSWERED_AND_MARKED"
)

// Valid reports whether s is one of the four known statuses.
func (s AnswerStatus) Valid() bool {
	switch s {
	case StatusNotAttempted, StatusAnswered, StatusMarkedForReview, StatusAnsweredAndMarked:
		return true
	}
	return false
}

// Marked reports whether s carries the review flag.
func (s AnswerStatus) Marked() bool {
	return s == StatusMarkedForReview || s == StatusAnsweredAndMarked
}

// AnswerRecord is the per-question state of an attempt. IsCorrect and
// MarksAwarded are only written when the attempt is scored.
type AnswerRecord struct {
	AttemptID      uuid.UUID    `json:"attempt_id"`
	QuestionID     uuid.UUID    `json:"question_id"`
	SelectedOption *OptionKey   `json:"selected_option"`
	Status         AnswerStatus `json:"status"`
	IsCorrect      *bool        `json:"is_correct,omitempty"`
	MarksAwarded   float64      `json:"marks_awarded"`
	// TimeSpent is reserved; nothing populates it.
	TimeSpent int       `json:"time_spent"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasSelection reports whether an option is selected.
func (r *AnswerRecord) HasSelection() bool {
	return r.SelectedOption != nil && *r.SelectedOption != ""
}

// ToggleReview flips the review flag of cur. Turning it off falls back to
// ANSWERED or NOT_ATTEMPTED depending on whether a selection exists.
func ToggleReview(cur AnswerRecord) AnswerRecord {
	next := cur
	selected := cur.HasSelection()
	switch {
	case cur.Status.Marked() && selected:
		next.Status = StatusAnswered
	case cur.Status.Marked():
		next.Status = StatusNotAttempted
	case selected:
		next.Status = StatusAnsweredAndMarked
	default:
		next.Status = StatusMarkedForReview
	}
	return next
}

// NormalizeAnswer checks that status agrees with the selection and returns the
// status to store. MARKED_FOR_REVIEW with a selection becomes ANSWERED_AND_MARKED.
func NormalizeAnswer(selected *OptionKey, status AnswerStatus) (AnswerStatus, error) {
	if !status.Valid() {
		return "", NewValidationError("status", "must be one of NOT_ATTEMPTED, ANSWERED, MARKED_FOR_REVIEW, ANSWERED_AND_MARKED")
	}
	hasSelection := selected != nil && *selected != ""
	switch status {
	case StatusAnswered, StatusAnsweredAndMarked:
		if !hasSelection {
			return "", NewValidationError("selected_option", "required when status is "+string(status))
		}
	case StatusNotAttempted:
		if hasSelection {
			return "", NewValidationError("selected_option", "must be empty when status is NOT_ATTEMPTED")
		}
	case StatusMarkedForReview:
		if hasSelection {
			return StatusAnsweredAndMarked, nil
		}
	}
	return status, nil
}

// Count tallies records into navigator counts. totalQuestions includes untouched questions.
func Count(records []AnswerRecord, totalQuestions int) StatusCounts {
	var c StatusCounts
	for _, r := range records {
		switch r.Status {
		case StatusAnswered:
			c.Answered++
		case StatusMarkedForReview:
			c.MarkedForReview++
		case StatusAnsweredAndMarked:
			c.AnsweredAndMarked++
		}
	}
	c.NotAttempted = totalQuestions - c.Answered - c.MarkedForReview - c.AnsweredAndMarked
	if c.NotAttempted < 0 {
		c.NotAttempted = 0
	}
	return c
}

// RecordAnswerRequest is the payload for upserting an answer.
type RecordAnswerRequest struct {
	SelectedOption *OptionKey   `json:"selected_option" binding:"omitempty,option_key"`
	Status         AnswerStatus `json:"status" binding:"required,answer_status"`
}
