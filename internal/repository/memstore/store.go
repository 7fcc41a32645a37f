// Package memstore is an in-process implementation of the catalog, attempt
// and answer stores. A single mutex stands in for the row locks of the
// Postgres repositories.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/service"
)

type answerKey struct {
	attemptID  uuid.UUID
	questionID uuid.UUID
}

// Store keeps everything in maps guarded by one mutex.
type Store struct {
	mu        sync.Mutex
	tests     map[uuid.UUID]model.Test
	questions map[uuid.UUID][]model.TestQuestion
	attempts  map[uuid.UUID]model.Attempt
	answers   map[answerKey]model.AnswerRecord
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		tests:     make(map[uuid.UUID]model.Test),
		questions: make(map[uuid.UUID][]model.TestQuestion),
		attempts:  make(map[uuid.UUID]model.Attempt),
		answers:   make(map[answerKey]model.AnswerRecord),
	}
}

// SaveTest registers a test with its questions, replacing any previous version.
func (s *Store) SaveTest(_ context.Context, t *model.Test, questions []model.TestQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs := make([]model.TestQuestion, len(questions))
	copy(qs, questions)
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Order < qs[j].Order })

	s.tests[t.ID] = *t
	s.questions[t.ID] = qs
	return nil
}

// GetTest implements service.Catalog.
func (s *Store) GetTest(_ context.Context, testID uuid.UUID) (*model.Test, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tests[testID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &t, nil
}

// ListQuestions implements service.Catalog.
func (s *Store) ListQuestions(_ context.Context, testID uuid.UUID) ([]model.TestQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs := s.questions[testID]
	out := make([]model.TestQuestion, len(qs))
	copy(out, qs)
	return out, nil
}

// ListActive implements service.Catalog.
func (s *Store) ListActive(_ context.Context) ([]model.Test, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tests []model.Test
	for _, t := range s.tests {
		if t.IsActive {
			tests = append(tests, t)
		}
	}
	sort.Slice(tests, func(i, j int) bool {
		if tests[i].CreatedAt.Equal(tests[j].CreatedAt) {
			return tests[i].Title < tests[j].Title
		}
		return tests[i].CreatedAt.After(tests[j].CreatedAt)
	})
	return tests, nil
}

// Create implements service.AttemptStore.
func (s *Store) Create(_ context.Context, a *model.Attempt, exclusive bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exclusive {
		for _, existing := range s.attempts {
			if existing.UserID == a.UserID && existing.TestID == a.TestID && !existing.IsCompleted {
				return model.ErrAttemptInProgress
			}
		}
	}
	if _, ok := s.tests[a.TestID]; !ok {
		return model.NewStoreError("insert attempt", errUnknownTest)
	}
	s.attempts[a.ID] = *a
	return nil
}

// GetByID implements service.AttemptStore.
func (s *Store) GetByID(_ context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[attemptID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &a, nil
}

// ListByUser implements service.AttemptStore.
func (s *Store) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Attempt
	for _, a := range s.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// ListExpired implements service.AttemptStore.
func (s *Store) ListExpired(_ context.Context, cutoff time.Time, limit int) ([]model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Attempt
	for _, a := range s.attempts {
		if a.IsCompleted {
			continue
		}
		t := s.tests[a.TestID]
		if a.Deadline(t.DurationMinutes).Before(cutoff) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Complete implements service.AttemptStore.
func (s *Store) Complete(_ context.Context, attemptID uuid.UUID, grade service.GradeFunc) (*model.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[attemptID]
	if !ok {
		return nil, false, model.ErrNotFound
	}
	if a.IsCompleted {
		return &a, false, nil
	}

	c, err := grade(&a, s.answersOf(attemptID))
	if err != nil {
		return nil, false, err
	}

	trigger := c.Trigger
	submittedAt := c.SubmittedAt
	durationTaken := c.DurationTaken
	a.IsCompleted = true
	a.SubmittedAt = &submittedAt
	a.DurationTaken = &durationTaken
	a.TotalScore = c.TotalScore
	a.Percentage = c.Percentage
	a.SubmittedBy = &trigger
	s.attempts[attemptID] = a

	for _, g := range c.Graded {
		k := answerKey{attemptID, g.QuestionID}
		rec, ok := s.answers[k]
		if !ok {
			continue
		}
		rec.IsCorrect = g.IsCorrect
		rec.MarksAwarded = g.MarksAwarded
		s.answers[k] = rec
	}
	return &a, true, nil
}

// Mutate implements service.AnswerStore.
func (s *Store) Mutate(_ context.Context, attemptID, questionID uuid.UUID, fn service.MutateFunc) (*model.AnswerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[attemptID]
	if !ok {
		return nil, model.ErrNotFound
	}
	k := answerKey{attemptID, questionID}
	cur, exists := s.answers[k]
	if !exists {
		cur = model.AnswerRecord{AttemptID: attemptID, QuestionID: questionID}
	}

	next, err := fn(&a, cur, exists)
	if err != nil {
		return nil, err
	}
	next.AttemptID = attemptID
	next.QuestionID = questionID
	s.answers[k] = next
	return &next, nil
}

// ListByAttempt implements service.AnswerStore.
func (s *Store) ListByAttempt(_ context.Context, attemptID uuid.UUID) ([]model.AnswerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answersOf(attemptID), nil
}

func (s *Store) answersOf(attemptID uuid.UUID) []model.AnswerRecord {
	var out []model.AnswerRecord
	for k, rec := range s.answers {
		if k.attemptID == attemptID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID.String() < out[j].QuestionID.String() })
	return out
}
