package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// CatalogService serves tests and questions through a Redis read-through cache.
// Catalog entries are immutable once published, so entries only expire by TTL.
type CatalogService struct {
	source Catalog
	rdb    *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCatalogService creates a new CatalogService. A nil rdb disables caching.
func NewCatalogService(source Catalog, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		source: source,
		rdb:    rdb,
		ttl:    ttl,
		log:    log.With().Str("component", "catalog_service").Logger(),
	}
}

// GetTest returns a test by id.
func (s *CatalogService) GetTest(ctx context.Context, testID uuid.UUID) (*model.Test, error) {
	var test model.Test
	key := config.CacheKey.TestMetaKey(testID.String())
	if s.readCache(ctx, key, &test) {
		return &test, nil
	}

	t, err := s.source.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, key, t)
	return t, nil
}

// ListQuestions returns a test's questions in presentation order.
func (s *CatalogService) ListQuestions(ctx context.Context, testID uuid.UUID) ([]model.TestQuestion, error) {
	var questions []model.TestQuestion
	key := config.CacheKey.TestQuestionsKey(testID.String())
	if s.readCache(ctx, key, &questions) {
		return questions, nil
	}

	questions, err := s.source.ListQuestions(ctx, testID)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, key, questions)
	return questions, nil
}

// ListActive returns the tests users may start.
func (s *CatalogService) ListActive(ctx context.Context) ([]model.Test, error) {
	var tests []model.Test
	key := config.CacheKey.ActiveTestsKey()
	if s.readCache(ctx, key, &tests) {
		return tests, nil
	}

	tests, err := s.source.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if tests == nil {
		tests = []model.Test{}
	}
	s.writeCache(ctx, key, tests)
	return tests, nil
}

// WarmTestCache loads one test and its questions into Redis in a single pipeline.
func (s *CatalogService) WarmTestCache(ctx context.Context, test *model.Test) error {
	if s.rdb == nil {
		return nil
	}
	questions, err := s.source.ListQuestions(ctx, test.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}

	testJSON, err := json.Marshal(test)
	if err != nil {
		return fmt.Errorf("marshal test: %w", err)
	}
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.TestMetaKey(test.ID.String()), testJSON, s.ttl)
	pipe.Set(ctx, config.CacheKey.TestQuestionsKey(test.ID.String()), questionsJSON, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("test_id", test.ID.String()).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads every active test into Redis on startup.
func (s *CatalogService) PrewarmAllCaches(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	tests, err := s.source.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active tests: %w", err)
	}
	if len(tests) == 0 {
		s.log.Info().Msg("No active tests to prewarm")
		return nil
	}

	warmed := 0
	for i := range tests {
		if err := s.WarmTestCache(ctx, &tests[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("test_id", tests[i].ID.String()).
				Msg("Failed to warm test, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(tests)).
		Msg("Prewarming complete")
	return nil
}

// Invalidate drops every cached entry for a test and the active listing.
func (s *CatalogService) Invalidate(ctx context.Context, testID uuid.UUID) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx,
		config.CacheKey.TestMetaKey(testID.String()),
		config.CacheKey.TestQuestionsKey(testID.String()),
		config.CacheKey.ActiveTestsKey(),
	).Err()
}

// readCache decodes key into dst. Redis failures fall through to the source.
func (s *CatalogService) readCache(ctx context.Context, key string, dst any) bool {
	if s.rdb == nil {
		return false
	}
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return false
	}
	return true
}

func (s *CatalogService) writeCache(ctx context.Context, key string, v any) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}
