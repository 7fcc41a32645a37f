// Package events queues attempt-completion events in Redis for the analytics
// pipeline, which consumes them outside this service.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// AttemptCompleted is the queued payload.
type AttemptCompleted struct {
	AttemptID     uuid.UUID           `json:"attempt_id"`
	UserID        uuid.UUID           `json:"user_id"`
	TestID        uuid.UUID           `json:"test_id"`
	TotalScore    float64             `json:"total_score"`
	Percentage    float64             `json:"percentage"`
	DurationTaken int                 `json:"duration_taken"`
	Language      model.Language      `json:"language"`
	Trigger       model.SubmitTrigger `json:"trigger"`
	SubmittedAt   time.Time           `json:"submitted_at"`
}

// FromAttempt builds the event for a completed attempt.
func FromAttempt(a *model.Attempt) AttemptCompleted {
	r := a.Result()
	e := AttemptCompleted{
		AttemptID:     a.ID,
		UserID:        a.UserID,
		TestID:        a.TestID,
		TotalScore:    r.TotalScore,
		Percentage:    r.Percentage,
		DurationTaken: r.DurationTaken,
		Language:      a.LanguageUsed,
		SubmittedAt:   r.SubmittedAt,
	}
	if a.SubmittedBy != nil {
		e.Trigger = *a.SubmittedBy
	}
	return e
}

// RedisPublisher pushes completion events onto a Redis list.
type RedisPublisher struct {
	rdb   *redis.Client
	queue string
}

// NewRedisPublisher creates a publisher on the attempt-completed queue.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, queue: config.QueueKey.AttemptCompletedQueue}
}

// PublishCompleted implements service.CompletionPublisher.
func (p *RedisPublisher) PublishCompleted(ctx context.Context, a *model.Attempt) error {
	raw, err := json.Marshal(FromAttempt(a))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, raw).Err(); err != nil {
		return fmt.Errorf("push event: %w", err)
	}
	return nil
}

// Next blocks up to timeout for the oldest queued event. It returns
// (nil, nil) when the queue stayed empty.
func (p *RedisPublisher) Next(ctx context.Context, timeout time.Duration) (*AttemptCompleted, error) {
	item, err := p.rdb.BLPop(ctx, timeout, p.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(item) < 2 {
		return nil, nil
	}

	var e AttemptCompleted
	if err := json.Unmarshal([]byte(item[1]), &e); err != nil {
		return nil, fmt.Errorf("invalid event payload: %w", err)
	}
	return &e, nil
}

// Pending reports how many events are waiting in the queue.
func (p *RedisPublisher) Pending(ctx context.Context) (int64, error) {
	return p.rdb.LLen(ctx, p.queue).Result()
}
