package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/model"
	"golang.org/x/sync/errgroup"
)

// errDeadlinePassed aborts an answer mutation so the caller can submit instead.
var errDeadlinePassed = errors.New("attempt deadline passed")

// AttemptPolicy tunes the lifecycle controller.
type AttemptPolicy struct {
	AllowConcurrentAttempts bool
	ExpiryGrace             time.Duration
}

// AttemptService drives an attempt from creation through answer capture to
// the scored submission.
type AttemptService struct {
	catalog   Catalog
	attempts  AttemptStore
	answers   AnswerStore
	publisher CompletionPublisher
	policy    AttemptPolicy
	now       func() time.Time
	log       zerolog.Logger
}

// NewAttemptService creates a new AttemptService. publisher may be nil.
func NewAttemptService(
	catalog Catalog,
	attempts AttemptStore,
	answers AnswerStore,
	publisher CompletionPublisher,
	policy AttemptPolicy,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		catalog:   catalog,
		attempts:  attempts,
		answers:   answers,
		publisher: publisher,
		policy:    policy,
		now:       time.Now,
		log:       log.With().Str("component", "attempt_service").Logger(),
	}
}

// WithClock replaces the service clock.
func (s *AttemptService) WithClock(now func() time.Time) *AttemptService {
	s.now = now
	return s
}

// Now returns the current time of the service clock.
func (s *AttemptService) Now() time.Time {
	return s.now()
}

// StartAttempt creates a new attempt for an active test.
func (s *AttemptService) StartAttempt(ctx context.Context, userID, testID uuid.UUID, lang model.Language) (*model.Attempt, error) {
	test, err := s.catalog.GetTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	if !test.IsActive {
		return nil, fmt.Errorf("test %s is inactive: %w", testID, model.ErrNotFound)
	}
	if lang == "" {
		lang = model.LanguageEnglish
	}

	attempt := &model.Attempt{
		ID:           uuid.New(),
		UserID:       userID,
		TestID:       testID,
		StartedAt:    s.now().UTC(),
		LanguageUsed: lang,
	}
	if err := s.attempts.Create(ctx, attempt, !s.policy.AllowConcurrentAttempts); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("test_id", testID.String()).
		Str("user_id", userID.String()).
		Msg("Attempt started")
	return attempt, nil
}

// owned loads an attempt and hides attempts that belong to someone else.
func (s *AttemptService) owned(ctx context.Context, userID, attemptID uuid.UUID) (*model.Attempt, error) {
	a, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, model.ErrNotFound
	}
	return a, nil
}

// EnsureOpen reports ErrAttemptClosed for a completed attempt owned by userID.
// Callers use it to rank a closed attempt above malformed input.
func (s *AttemptService) EnsureOpen(ctx context.Context, userID, attemptID uuid.UUID) error {
	_, err := s.openAttempt(ctx, userID, attemptID)
	return err
}

// openAttempt loads an owned attempt and rejects it once completed, before any
// payload is validated. Mutate re-checks under the row lock.
func (s *AttemptService) openAttempt(ctx context.Context, userID, attemptID uuid.UUID) (*model.Attempt, error) {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if a.IsCompleted {
		return nil, model.ErrAttemptClosed
	}
	return a, nil
}

// findQuestion returns the question with id from the test's ordered list.
func findQuestion(questions []model.TestQuestion, id uuid.UUID) (*model.TestQuestion, error) {
	for i := range questions {
		if questions[i].ID == id {
			return &questions[i], nil
		}
	}
	return nil, fmt.Errorf("question %s is not part of this test: %w", id, model.ErrNotFound)
}

// RecordAnswer upserts the answer for one question. Last write wins.
func (s *AttemptService) RecordAnswer(ctx context.Context, userID, attemptID, questionID uuid.UUID, selected *model.OptionKey, status model.AnswerStatus) (*model.AnswerRecord, error) {
	a, err := s.openAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	test, questions, err := s.loadTest(ctx, a.TestID)
	if err != nil {
		return nil, err
	}
	q, err := findQuestion(questions, questionID)
	if err != nil {
		return nil, err
	}

	if selected != nil && *selected == "" {
		selected = nil
	}
	if selected != nil && (!selected.Valid() || !q.HasOption(*selected)) {
		return nil, model.NewValidationError("selected_option", fmt.Sprintf("option %q is not offered by this question", *selected))
	}
	normalized, err := model.NormalizeAnswer(selected, status)
	if err != nil {
		return nil, err
	}

	rec, err := s.answers.Mutate(ctx, attemptID, questionID, func(locked *model.Attempt, cur model.AnswerRecord, _ bool) (model.AnswerRecord, error) {
		if err := s.checkOpen(locked, test); err != nil {
			return cur, err
		}
		cur.SelectedOption = selected
		cur.Status = normalized
		cur.UpdatedAt = s.now().UTC()
		return cur, nil
	})
	return rec, s.afterMutate(ctx, userID, attemptID, err)
}

// ToggleReview flips the review flag of one question.
func (s *AttemptService) ToggleReview(ctx context.Context, userID, attemptID, questionID uuid.UUID) (*model.AnswerRecord, error) {
	a, err := s.openAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	test, questions, err := s.loadTest(ctx, a.TestID)
	if err != nil {
		return nil, err
	}
	if _, err := findQuestion(questions, questionID); err != nil {
		return nil, err
	}

	rec, err := s.answers.Mutate(ctx, attemptID, questionID, func(locked *model.Attempt, cur model.AnswerRecord, exists bool) (model.AnswerRecord, error) {
		if err := s.checkOpen(locked, test); err != nil {
			return cur, err
		}
		if !exists {
			cur.Status = model.StatusNotAttempted
		}
		next := model.ToggleReview(cur)
		next.UpdatedAt = s.now().UTC()
		return next, nil
	})
	return rec, s.afterMutate(ctx, userID, attemptID, err)
}

// checkOpen rejects mutations on completed or timed-out attempts.
func (s *AttemptService) checkOpen(a *model.Attempt, test *model.Test) error {
	if a.IsCompleted {
		return model.ErrAttemptClosed
	}
	if !s.now().Before(a.Deadline(test.DurationMinutes).Add(s.policy.ExpiryGrace)) {
		return errDeadlinePassed
	}
	return nil
}

// afterMutate submits attempts whose deadline passed during an answer call.
func (s *AttemptService) afterMutate(ctx context.Context, userID, attemptID uuid.UUID, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errDeadlinePassed) {
		if _, subErr := s.SubmitAttempt(ctx, userID, attemptID, model.TriggerTimer); subErr != nil {
			return fmt.Errorf("submit expired attempt: %w", subErr)
		}
		return model.ErrAttemptClosed
	}
	return fmt.Errorf("record answer: %w", err)
}

// SubmitAttempt scores and completes an attempt. Repeated calls return the
// stored result without recomputing it.
func (s *AttemptService) SubmitAttempt(ctx context.Context, userID, attemptID uuid.UUID, trigger model.SubmitTrigger) (*model.SubmitResult, error) {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return s.complete(ctx, a, trigger)
}

func (s *AttemptService) complete(ctx context.Context, a *model.Attempt, trigger model.SubmitTrigger) (*model.SubmitResult, error) {
	if a.IsCompleted {
		r := a.Result()
		return &r, nil
	}
	test, questions, err := s.loadTest(ctx, a.TestID)
	if err != nil {
		return nil, err
	}

	done, transitioned, err := s.attempts.Complete(ctx, a.ID, func(locked *model.Attempt, answers []model.AnswerRecord) (*model.Completion, error) {
		now := s.now().UTC()
		score := ScoreAnswers(questions, answers, test.TotalMarks)
		remaining := model.RemainingTime(now, locked.StartedAt, test.DurationMinutes)
		return &model.Completion{
			SubmittedAt:   now,
			DurationTaken: DurationTaken(test.DurationMinutes, remaining),
			TotalScore:    score.Total,
			Percentage:    score.Percentage,
			Trigger:       trigger,
			Graded:        score.Graded,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete attempt: %w", err)
	}

	if transitioned {
		s.log.Info().
			Str("attempt_id", done.ID.String()).
			Str("trigger", string(trigger)).
			Float64("score", done.TotalScore).
			Float64("percentage", done.Percentage).
			Msg("Attempt submitted")
		s.publish(ctx, done)
	}

	r := done.Result()
	return &r, nil
}

// publish queues the completion event. Failures are logged, never returned.
func (s *AttemptService) publish(ctx context.Context, a *model.Attempt) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCompleted(ctx, a); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to queue completion event")
	}
}

// GetAttempt returns an attempt joined with its test summary.
func (s *AttemptService) GetAttempt(ctx context.Context, userID, attemptID uuid.UUID) (*model.AttemptDetail, error) {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	test, err := s.catalog.GetTest(ctx, a.TestID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	return s.detail(a, test), nil
}

func (s *AttemptService) detail(a *model.Attempt, test *model.Test) *model.AttemptDetail {
	d := &model.AttemptDetail{
		Attempt: *a,
		State:   a.State(),
		Test:    test.Summary(),
	}
	if !a.IsCompleted {
		d.RemainingSeconds = int(model.RemainingTime(s.now(), a.StartedAt, test.DurationMinutes) / time.Second)
	}
	return d
}

// ListAttempts returns the user's attempts, newest first.
func (s *AttemptService) ListAttempts(ctx context.Context, userID uuid.UUID) ([]model.AttemptDetail, error) {
	attempts, err := s.attempts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	tests := make(map[uuid.UUID]*model.Test)
	details := make([]model.AttemptDetail, 0, len(attempts))
	for i := range attempts {
		test, ok := tests[attempts[i].TestID]
		if !ok {
			test, err = s.catalog.GetTest(ctx, attempts[i].TestID)
			if err != nil {
				return nil, fmt.Errorf("get test: %w", err)
			}
			tests[test.ID] = test
		}
		details = append(details, *s.detail(&attempts[i], test))
	}
	return details, nil
}

// GetAttemptState returns what a client needs to resume an attempt.
func (s *AttemptService) GetAttemptState(ctx context.Context, userID, attemptID uuid.UUID) (*model.AttemptSnapshot, error) {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	var (
		test    *model.Test
		answers []model.AnswerRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		test, err = s.catalog.GetTest(gctx, a.TestID)
		return err
	})
	g.Go(func() error {
		var err error
		answers, err = s.answers.ListByAttempt(gctx, a.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load attempt state: %w", err)
	}
	if answers == nil {
		answers = []model.AnswerRecord{}
	}

	snap := &model.AttemptSnapshot{
		AttemptID: a.ID,
		State:     a.State(),
		Answers:   answers,
		Counts:    model.Count(answers, test.TotalQuestions),
	}
	if !a.IsCompleted {
		snap.RemainingSeconds = int(model.RemainingTime(s.now(), a.StartedAt, test.DurationMinutes) / time.Second)
	}
	return snap, nil
}

// GetPaper returns the attempt's questions in test order without answer keys.
func (s *AttemptService) GetPaper(ctx context.Context, userID, attemptID uuid.UUID, lang model.Language) (*model.Paper, error) {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if lang == "" {
		lang = a.LanguageUsed
	}
	test, questions, err := s.loadTest(ctx, a.TestID)
	if err != nil {
		return nil, err
	}

	paper := &model.Paper{
		AttemptID: a.ID,
		Test:      test.Summary(),
		Language:  lang,
		Questions: make([]model.PaperQuestion, len(questions)),
	}
	for i := range questions {
		paper.Questions[i] = questions[i].ForPaper(i+1, lang)
	}
	return paper, nil
}

// ReviewAttempt returns the graded breakdown of a completed attempt.
func (s *AttemptService) ReviewAttempt(ctx context.Context, userID, attemptID uuid.UUID) (*model.AttemptReview, error) {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if !a.IsCompleted {
		return nil, model.ErrAttemptOpen
	}

	_, questions, err := s.loadTest(ctx, a.TestID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answers.ListByAttempt(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	byQuestion := make(map[uuid.UUID]model.AnswerRecord, len(answers))
	for _, rec := range answers {
		byQuestion[rec.QuestionID] = rec
	}

	review := &model.AttemptReview{
		Result: a.Result(),
		Items:  make([]model.ReviewItem, len(questions)),
	}
	for i, q := range questions {
		item := model.ReviewItem{
			Number:        i + 1,
			QuestionID:    q.ID,
			CorrectOption: q.CorrectOption,
			Explanation:   q.Explanation,
		}
		if rec, ok := byQuestion[q.ID]; ok {
			item.SelectedOption = rec.SelectedOption
			item.IsCorrect = rec.IsCorrect
			item.MarksAwarded = rec.MarksAwarded
		}
		review.Items[i] = item
	}
	return review, nil
}

// SweepExpired submits every open attempt whose deadline plus grace has passed.
// It returns how many attempts it completed.
func (s *AttemptService) SweepExpired(ctx context.Context, limit int) (int, error) {
	cutoff := s.now().Add(-s.policy.ExpiryGrace)
	expired, err := s.attempts.ListExpired(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("list expired attempts: %w", err)
	}

	swept := 0
	for i := range expired {
		if _, err := s.complete(ctx, &expired[i], model.TriggerSweeper); err != nil {
			s.log.Error().Err(err).Str("attempt_id", expired[i].ID.String()).Msg("Failed to submit expired attempt")
			continue
		}
		swept++
	}
	return swept, nil
}

// RemainingTime reports the time left on an attempt.
func (s *AttemptService) RemainingTime(ctx context.Context, userID, attemptID uuid.UUID) (time.Duration, *model.Attempt, *model.Test, error) {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("get attempt: %w", err)
	}
	test, err := s.catalog.GetTest(ctx, a.TestID)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("get test: %w", err)
	}
	return model.RemainingTime(s.now(), a.StartedAt, test.DurationMinutes), a, test, nil
}

func (s *AttemptService) loadTest(ctx context.Context, testID uuid.UUID) (*model.Test, []model.TestQuestion, error) {
	var (
		test      *model.Test
		questions []model.TestQuestion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		test, err = s.catalog.GetTest(gctx, testID)
		if err != nil {
			return fmt.Errorf("get test: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		questions, err = s.catalog.ListQuestions(gctx, testID)
		if err != nil {
			return fmt.Errorf("list questions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return test, questions, nil
}
