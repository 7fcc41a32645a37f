package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// Catalog is read-only access to tests and their ordered questions.
type Catalog interface {
	GetTest(ctx context.Context, testID uuid.UUID) (*model.Test, error)
	ListQuestions(ctx context.Context, testID uuid.UUID) ([]model.TestQuestion, error)
	ListActive(ctx context.Context) ([]model.Test, error)
}

// GradeFunc computes the completing write for an attempt from its stored answers.
// It runs while the store holds the attempt exclusively.
type GradeFunc func(a *model.Attempt, answers []model.AnswerRecord) (*model.Completion, error)

// AttemptStore persists attempts.
type AttemptStore interface {
	// Create inserts a. When exclusive is set it fails with ErrAttemptInProgress
	// if the user already holds an incomplete attempt for the same test.
	Create(ctx context.Context, a *model.Attempt, exclusive bool) error
	GetByID(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Attempt, error)
	// ListExpired returns incomplete attempts whose deadline is before cutoff.
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]model.Attempt, error)
	// Complete locks the attempt and, if still open, applies grade and marks it
	// completed. transitioned is true only for the call that performed the write.
	Complete(ctx context.Context, attemptID uuid.UUID, grade GradeFunc) (a *model.Attempt, transitioned bool, err error)
}

// MutateFunc derives the next answer record from the current one. exists is
// false when no record has been stored yet; cur then carries only the keys.
type MutateFunc func(a *model.Attempt, cur model.AnswerRecord, exists bool) (model.AnswerRecord, error)

// AnswerStore persists per-question answer records.
type AnswerStore interface {
	// Mutate applies fn under a shared lock on the attempt and an exclusive
	// lock on the record, then upserts the result.
	Mutate(ctx context.Context, attemptID, questionID uuid.UUID, fn MutateFunc) (*model.AnswerRecord, error)
	ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.AnswerRecord, error)
}

// CompletionPublisher announces completed attempts to downstream consumers.
type CompletionPublisher interface {
	PublishCompleted(ctx context.Context, a *model.Attempt) error
}
