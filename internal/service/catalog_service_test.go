package service_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/catalog"
	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/repository/memstore"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCatalog struct {
	service.Catalog
	getTest       atomic.Int32
	listQuestions atomic.Int32
	listActive    atomic.Int32
}

func (c *countingCatalog) GetTest(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	c.getTest.Add(1)
	return c.Catalog.GetTest(ctx, id)
}

func (c *countingCatalog) ListQuestions(ctx context.Context, id uuid.UUID) ([]model.TestQuestion, error) {
	c.listQuestions.Add(1)
	return c.Catalog.ListQuestions(ctx, id)
}

func (c *countingCatalog) ListActive(ctx context.Context) ([]model.Test, error) {
	c.listActive.Add(1)
	return c.Catalog.ListActive(ctx)
}

func newCatalogFixture(t *testing.T) (*miniredis.Miniredis, *countingCatalog, paper) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store := memstore.New()
	p := newPaper()
	require.NoError(t, store.SaveTest(context.Background(), &p.test, p.questions))
	return mr, &countingCatalog{Catalog: store}, p
}

func newRedisClient(t *testing.T, mr *miniredis.Miniredis) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestCatalogServiceReadThrough(t *testing.T) {
	ctx := context.Background()
	mr, source, p := newCatalogFixture(t)
	svc := service.NewCatalogService(source, newRedisClient(t, mr), time.Minute, zerolog.Nop())

	for i := 0; i < 3; i++ {
		test, err := svc.GetTest(ctx, p.test.ID)
		require.NoError(t, err)
		assert.Equal(t, p.test.Title, test.Title)

		questions, err := svc.ListQuestions(ctx, p.test.ID)
		require.NoError(t, err)
		require.Len(t, questions, 3)
		assert.Equal(t, model.OptionB, questions[1].CorrectOption)
		assert.Equal(t, 0.25, questions[2].NegativeMarks)

		active, err := svc.ListActive(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 1)
	}

	assert.Equal(t, int32(1), source.getTest.Load())
	assert.Equal(t, int32(1), source.listQuestions.Load())
	assert.Equal(t, int32(1), source.listActive.Load())
	assert.True(t, mr.Exists(config.CacheKey.TestMetaKey(p.test.ID.String())))
	assert.Equal(t, time.Minute, mr.TTL(config.CacheKey.TestQuestionsKey(p.test.ID.String())))
}

func TestCatalogServiceMissIsNotCached(t *testing.T) {
	ctx := context.Background()
	mr, source, _ := newCatalogFixture(t)
	svc := service.NewCatalogService(source, newRedisClient(t, mr), time.Minute, zerolog.Nop())

	missing := uuid.New()
	for i := 0; i < 2; i++ {
		_, err := svc.GetTest(ctx, missing)
		assert.ErrorIs(t, err, model.ErrNotFound)
	}
	assert.Equal(t, int32(2), source.getTest.Load())
	assert.False(t, mr.Exists(config.CacheKey.TestMetaKey(missing.String())))
}

func TestCatalogServiceDiscardsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	mr, source, p := newCatalogFixture(t)
	svc := service.NewCatalogService(source, newRedisClient(t, mr), time.Minute, zerolog.Nop())

	require.NoError(t, mr.Set(config.CacheKey.TestMetaKey(p.test.ID.String()), "{not json"))

	test, err := svc.GetTest(ctx, p.test.ID)
	require.NoError(t, err)
	assert.Equal(t, p.test.ID, test.ID)
	assert.Equal(t, int32(1), source.getTest.Load())
}

func TestCatalogServiceFallsThroughWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	mr, source, p := newCatalogFixture(t)
	svc := service.NewCatalogService(source, newRedisClient(t, mr), time.Minute, zerolog.Nop())
	mr.Close()

	test, err := svc.GetTest(ctx, p.test.ID)
	require.NoError(t, err)
	assert.Equal(t, p.test.ID, test.ID)
}

func TestCatalogServiceWithoutRedis(t *testing.T) {
	ctx := context.Background()
	_, source, p := newCatalogFixture(t)
	svc := service.NewCatalogService(source, nil, time.Minute, zerolog.Nop())

	for i := 0; i < 2; i++ {
		_, err := svc.GetTest(ctx, p.test.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), source.getTest.Load())
	assert.NoError(t, svc.PrewarmAllCaches(ctx))
	assert.NoError(t, svc.Invalidate(ctx, p.test.ID))
}

func TestCatalogServicePrewarmAndInvalidate(t *testing.T) {
	ctx := context.Background()
	mr, source, p := newCatalogFixture(t)
	svc := service.NewCatalogService(source, newRedisClient(t, mr), time.Minute, zerolog.Nop())

	require.NoError(t, svc.PrewarmAllCaches(ctx))
	metaKey := config.CacheKey.TestMetaKey(p.test.ID.String())
	questionsKey := config.CacheKey.TestQuestionsKey(p.test.ID.String())
	assert.True(t, mr.Exists(metaKey))
	assert.True(t, mr.Exists(questionsKey))

	_, err := svc.GetTest(ctx, p.test.ID)
	require.NoError(t, err)
	assert.Zero(t, source.getTest.Load())

	require.NoError(t, svc.Invalidate(ctx, p.test.ID))
	assert.False(t, mr.Exists(metaKey))
	assert.False(t, mr.Exists(questionsKey))
}

func TestReseedDeactivationReachesStartAttempt(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store := memstore.New()
	p := newPaper()
	require.NoError(t, store.SaveTest(ctx, &p.test, p.questions))

	cache := service.NewCatalogService(store, newRedisClient(t, mr), time.Hour, zerolog.Nop())
	svc := service.NewAttemptService(cache, store, store, &recordingPublisher{}, defaultPolicy(), zerolog.Nop())

	require.NoError(t, cache.PrewarmAllCaches(ctx))
	_, err = svc.StartAttempt(ctx, uuid.New(), p.test.ID, model.LanguageEnglish)
	require.NoError(t, err)

	retired := p.test
	retired.IsActive = false
	entries := []catalog.Entry{{Test: retired, Questions: p.questions}}
	require.NoError(t, catalog.Apply(ctx, store, cache, entries))

	_, err = svc.StartAttempt(ctx, uuid.New(), p.test.ID, model.LanguageEnglish)
	assert.ErrorIs(t, err, model.ErrNotFound)

	active, err := cache.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}
