package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// ActivityQueue accepts activity entries for asynchronous persistence.
type ActivityQueue interface {
	Push(ctx context.Context, e model.ActivityLogEntry) error
}

// RedisActivityQueue pushes entries onto the list drained by worker.ActivityWorker.
type RedisActivityQueue struct {
	rdb *redis.Client
}

// NewRedisActivityQueue creates a new RedisActivityQueue.
func NewRedisActivityQueue(rdb *redis.Client) *RedisActivityQueue {
	return &RedisActivityQueue{rdb: rdb}
}

// Push appends the entry as JSON to the persist queue.
func (q *RedisActivityQueue) Push(ctx context.Context, e model.ActivityLogEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}
	return q.rdb.RPush(ctx, config.WorkerKey.PersistActivityQueue, b).Err()
}

// ActivityRecorder appends entries to the proctoring log. Entries go through
// the queue when one is configured; if the push fails they are inserted
// directly so nothing is dropped.
type ActivityRecorder struct {
	queue ActivityQueue
	store ActivityStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewActivityRecorder creates a new ActivityRecorder. queue may be nil.
func NewActivityRecorder(queue ActivityQueue, store ActivityStore, log zerolog.Logger) *ActivityRecorder {
	return &ActivityRecorder{
		queue: queue,
		store: store,
		log:   log.With().Str("component", "activity_recorder").Logger(),
		now:   time.Now,
	}
}

// Record appends e. CreatedAt defaults to the current time.
func (r *ActivityRecorder) Record(ctx context.Context, e model.ActivityLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC().Truncate(time.Microsecond)
	}
	if e.Count <= 0 {
		e.Count = 1
	}

	if r.queue != nil {
		err := r.queue.Push(ctx, e)
		if err == nil {
			return nil
		}
		r.log.Warn().Err(err).Int64("attempt_id", e.AttemptID).Msg("Activity queue push failed, inserting directly")
	}

	if err := r.store.Insert(ctx, &e); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}
