//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/database"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/repository"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "mocktest", "POSTGRES_PASSWORD": "mocktest", "POSTGRES_DB": "mocktest"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://mocktest:mocktest@%s:%s/mocktest?sslmode=disable", host, port.Port())
}

type pgFixture struct {
	pool      *pgxpool.Pool
	tests     *repository.TestRepository
	attempts  *repository.AttemptRepository
	answers   *repository.AnswerRepository
	test      model.Test
	questions []model.TestQuestion
}

func newPGFixture(t *testing.T) *pgFixture {
	t.Helper()
	ctx := context.Background()
	requireDocker(t)
	dsn := startPostgres(t, ctx)

	// The port can accept connections before the server finishes its init restart.
	require.Eventually(t, func() bool {
		return database.MigrateUp("../../migrations", dsn) == nil
	}, 30*time.Second, 500*time.Millisecond)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	f := &pgFixture{
		pool:     pool,
		tests:    repository.NewTestRepository(pool),
		attempts: repository.NewAttemptRepository(pool),
		answers:  repository.NewAnswerRepository(pool),
	}

	options := func(keys ...model.OptionKey) map[model.OptionKey]model.BilingualText {
		m := make(map[model.OptionKey]model.BilingualText)
		for _, k := range keys {
			m[k] = model.BilingualText{English: "option " + string(k), Hindi: "विकल्प " + string(k)}
		}
		return m
	}
	f.test = model.Test{
		ID: uuid.New(), Title: "PG Mock", TestType: "MOCK", DurationMinutes: 10,
		TotalMarks: 5, TotalQuestions: 3, IsActive: true, CreatedAt: time.Now().UTC(),
	}
	f.questions = []model.TestQuestion{
		{Order: 1, Question: model.Question{ID: uuid.New(), Text: model.BilingualText{English: "q1"},
			Options: options("A", "B", "C", "D"), CorrectOption: "A", Marks: 2, NegativeMarks: 0.5}},
		{Order: 2, Question: model.Question{ID: uuid.New(), Text: model.BilingualText{English: "q2"},
			Options: options("A", "B", "C", "D"), CorrectOption: "B", Marks: 2, NegativeMarks: 0.5}},
		{Order: 3, Question: model.Question{ID: uuid.New(), Text: model.BilingualText{English: "q3"},
			Options: options("A", "B", "C"), CorrectOption: "C", Marks: 1, NegativeMarks: 0.25}},
	}
	require.NoError(t, f.tests.SaveTest(ctx, &f.test, f.questions))
	return f
}

func (f *pgFixture) service(policy service.AttemptPolicy, now func() time.Time) *service.AttemptService {
	return service.NewAttemptService(f.tests, f.attempts, f.answers, nil, policy, zerolog.Nop()).WithClock(now)
}

func TestPostgresStores(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()

	t.Run("catalog round trip", func(t *testing.T) {
		got, err := f.tests.GetTest(ctx, f.test.ID)
		require.NoError(t, err)
		assert.Equal(t, f.test.Title, got.Title)
		assert.Equal(t, 5, got.TotalMarks)

		qs, err := f.tests.ListQuestions(ctx, f.test.ID)
		require.NoError(t, err)
		require.Len(t, qs, 3)
		for i := range qs {
			assert.Equal(t, f.questions[i].ID, qs[i].ID)
			assert.Equal(t, i+1, qs[i].Order)
		}
		assert.Equal(t, 0.25, qs[2].NegativeMarks)
		assert.Equal(t, "विकल्प B", qs[0].Options[model.OptionB].Hindi)
		assert.False(t, qs[2].HasOption(model.OptionD))

		active, err := f.tests.ListActive(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 1)

		_, err = f.tests.GetTest(ctx, uuid.New())
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("resave replaces the question list", func(t *testing.T) {
		require.NoError(t, f.tests.SaveTest(ctx, &f.test, f.questions))
		qs, err := f.tests.ListQuestions(ctx, f.test.ID)
		require.NoError(t, err)
		assert.Len(t, qs, 3)
	})

	t.Run("scored lifecycle", func(t *testing.T) {
		start := time.Now().UTC().Truncate(time.Microsecond)
		now := start
		svc := f.service(service.AttemptPolicy{AllowConcurrentAttempts: true, ExpiryGrace: 2 * time.Second},
			func() time.Time { return now })
		user := uuid.New()

		a, err := svc.StartAttempt(ctx, user, f.test.ID, model.LanguageEnglish)
		require.NoError(t, err)

		a1, a2 := model.OptionA, model.OptionC
		_, err = svc.RecordAnswer(ctx, user, a.ID, f.questions[0].ID, &a1, model.StatusAnswered)
		require.NoError(t, err)
		_, err = svc.RecordAnswer(ctx, user, a.ID, f.questions[1].ID, &a2, model.StatusAnswered)
		require.NoError(t, err)
		_, err = svc.RecordAnswer(ctx, user, a.ID, f.questions[1].ID, &a2, model.StatusAnswered)
		require.NoError(t, err)
		_, err = svc.ToggleReview(ctx, user, a.ID, f.questions[2].ID)
		require.NoError(t, err)

		snap, err := svc.GetAttemptState(ctx, user, a.ID)
		require.NoError(t, err)
		assert.Len(t, snap.Answers, 3)

		now = start.Add(4*time.Minute + 30*time.Second)
		res, err := svc.SubmitAttempt(ctx, user, a.ID, model.TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, 1.5, res.TotalScore)
		assert.Equal(t, 30.0, res.Percentage)
		assert.Equal(t, 5, res.DurationTaken)

		_, err = svc.RecordAnswer(ctx, user, a.ID, f.questions[1].ID, &a1, model.StatusAnswered)
		assert.ErrorIs(t, err, model.ErrAttemptClosed)

		review, err := svc.ReviewAttempt(ctx, user, a.ID)
		require.NoError(t, err)
		require.Len(t, review.Items, 3)
		require.NotNil(t, review.Items[0].IsCorrect)
		assert.True(t, *review.Items[0].IsCorrect)
		assert.Equal(t, -0.5, review.Items[1].MarksAwarded)
		assert.Nil(t, review.Items[2].IsCorrect)

		stored, err := f.attempts.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TriggerManual, *stored.SubmittedBy)
	})

	t.Run("concurrent submits transition once", func(t *testing.T) {
		svc := f.service(service.AttemptPolicy{AllowConcurrentAttempts: true}, time.Now)
		user := uuid.New()
		a, err := svc.StartAttempt(ctx, user, f.test.ID, model.LanguageHindi)
		require.NoError(t, err)

		var (
			wg          sync.WaitGroup
			mu          sync.Mutex
			transitions int
		)
		grade := func(locked *model.Attempt, _ []model.AnswerRecord) (*model.Completion, error) {
			return &model.Completion{SubmittedAt: time.Now().UTC(), Trigger: model.TriggerTimer}, nil
		}
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, transitioned, err := f.attempts.Complete(ctx, a.ID, grade)
				assert.NoError(t, err)
				if transitioned {
					mu.Lock()
					transitions++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, transitions)
	})

	t.Run("exclusive attempts", func(t *testing.T) {
		svc := f.service(service.AttemptPolicy{}, time.Now)
		user := uuid.New()

		_, err := svc.StartAttempt(ctx, user, f.test.ID, model.LanguageEnglish)
		require.NoError(t, err)
		_, err = svc.StartAttempt(ctx, user, f.test.ID, model.LanguageEnglish)
		assert.ErrorIs(t, err, model.ErrAttemptInProgress)
	})

	t.Run("expired attempts are swept", func(t *testing.T) {
		user := uuid.New()
		started := time.Now().UTC().Add(-time.Hour)
		svc := f.service(service.AttemptPolicy{AllowConcurrentAttempts: true}, func() time.Time { return started })
		a, err := svc.StartAttempt(ctx, user, f.test.ID, model.LanguageEnglish)
		require.NoError(t, err)

		expired, err := f.attempts.ListExpired(ctx, time.Now().UTC(), 100)
		require.NoError(t, err)
		var ids []uuid.UUID
		for _, e := range expired {
			ids = append(ids, e.ID)
		}
		assert.Contains(t, ids, a.ID)

		sweeper := f.service(service.AttemptPolicy{AllowConcurrentAttempts: true}, time.Now)
		n, err := sweeper.SweepExpired(ctx, 100)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)

		stored, err := f.attempts.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsCompleted)
		assert.Equal(t, model.TriggerSweeper, *stored.SubmittedBy)
		assert.Equal(t, 10, *stored.DurationTaken)
	})
}
