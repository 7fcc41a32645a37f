package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/repository/memstore"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Attempt
	err    error
}

func (p *recordingPublisher) PublishCompleted(_ context.Context, a *model.Attempt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *a)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func bilingual(en, hi string) model.BilingualText {
	return model.BilingualText{English: en, Hindi: hi}
}

func fourOptions() map[model.OptionKey]model.BilingualText {
	return map[model.OptionKey]model.BilingualText{
		model.OptionA: bilingual("alpha", "अल्फा"),
		model.OptionB: bilingual("beta", ""),
		model.OptionC: bilingual("gamma", ""),
		model.OptionD: bilingual("delta", ""),
	}
}

// paper is a ten-minute test with marks [2, 2, 1] and negative marks
// [0.5, 0.5, 0.25]. The third question offers no option D.
type paper struct {
	test      model.Test
	questions []model.TestQuestion
}

func newPaper() paper {
	q3Options := fourOptions()
	delete(q3Options, model.OptionD)

	p := paper{
		test: model.Test{
			ID:              uuid.New(),
			Title:           "Reasoning Mock",
			DurationMinutes: 10,
			TotalMarks:      5,
			TotalQuestions:  3,
			IsActive:        true,
			CreatedAt:       t0.Add(-time.Hour),
		},
		questions: []model.TestQuestion{
			{Order: 1, Question: model.Question{
				ID: uuid.New(), Text: bilingual("first", "पहला"), Options: fourOptions(),
				CorrectOption: model.OptionA, Marks: 2, NegativeMarks: 0.5,
				Explanation: bilingual("because alpha", ""),
			}},
			{Order: 2, Question: model.Question{
				ID: uuid.New(), Text: bilingual("second", ""), Options: fourOptions(),
				CorrectOption: model.OptionB, Marks: 2, NegativeMarks: 0.5,
			}},
			{Order: 3, Question: model.Question{
				ID: uuid.New(), Text: bilingual("third", ""), Options: q3Options,
				CorrectOption: model.OptionC, Marks: 1, NegativeMarks: 0.25,
			}},
		},
	}
	return p
}

func (p paper) q(i int) uuid.UUID { return p.questions[i].ID }

type harness struct {
	svc       *service.AttemptService
	store     *memstore.Store
	clock     *fakeClock
	publisher *recordingPublisher
	paper     paper
	user      uuid.UUID
}

func newHarness(t *testing.T, policy service.AttemptPolicy) *harness {
	t.Helper()

	h := &harness{
		store:     memstore.New(),
		clock:     newFakeClock(t0),
		publisher: &recordingPublisher{},
		paper:     newPaper(),
		user:      uuid.New(),
	}
	require.NoError(t, h.store.SaveTest(context.Background(), &h.paper.test, h.paper.questions))

	h.svc = service.NewAttemptService(h.store, h.store, h.store, h.publisher, policy, zerolog.Nop()).
		WithClock(h.clock.Now)
	return h
}

func defaultPolicy() service.AttemptPolicy {
	return service.AttemptPolicy{AllowConcurrentAttempts: true, ExpiryGrace: 2 * time.Second}
}

func (h *harness) start(t *testing.T) *model.Attempt {
	t.Helper()
	a, err := h.svc.StartAttempt(context.Background(), h.user, h.paper.test.ID, model.LanguageEnglish)
	require.NoError(t, err)
	return a
}

func opt(k model.OptionKey) *model.OptionKey { return &k }
