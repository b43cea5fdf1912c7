package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/repository"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ActivitySink persists proctoring entries popped off the queue.
type ActivitySink interface {
	BulkInsert(ctx context.Context, entries []model.ActivityLogEntry) (int64, error)
	Insert(ctx context.Context, e *model.ActivityLogEntry) error
}

var _ ActivitySink = (*repository.ActivityRepository)(nil)

// ActivityWorker drains the activity queue into postgres in batches.
type ActivityWorker struct {
	sink ActivitySink
	rdb  *redis.Client
	log  zerolog.Logger

	// requeue pushes entries that could not be stored back onto the queue.
	requeue      func(ctx context.Context, items []model.ActivityLogEntry) error
	requeuePause time.Duration
}

func NewActivityWorker(sink ActivitySink, rdb *redis.Client, log zerolog.Logger) *ActivityWorker {
	w := &ActivityWorker{
		sink:         sink,
		rdb:          rdb,
		log:          log.With().Str("component", "activity_worker").Logger(),
		requeuePause: 2 * time.Second,
	}
	w.requeue = w.requeueRedis
	return w
}

func (w *ActivityWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ActivityWorker started")

	buffer := make([]model.ActivityLogEntry, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Flush on size or age
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		// 2. Graceful shutdown
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. BLPop blocks for PollTimeout and returns immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistActivityQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		entry, ok := w.decode(result[1])
		if !ok {
			continue
		}
		buffer = append(buffer, entry)
	}
}

// decode parses one queued entry. Malformed payloads cannot be retried and are dropped.
func (w *ActivityWorker) decode(raw string) (model.ActivityLogEntry, bool) {
	var e model.ActivityLogEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		w.log.Error().Err(err).Str("data", raw).Msg("Discarding malformed activity JSON")
		return e, false
	}
	if e.AttemptID <= 0 || e.Type == "" {
		w.log.Error().Str("data", raw).Msg("Discarding activity without attempt or type")
		return e, false
	}
	if e.Count <= 0 {
		e.Count = 1
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e, true
}

// flushSafe attempts a bulk copy, then row-by-row inserts, then requeue.
func (w *ActivityWorker) flushSafe(ctx context.Context, batch []model.ActivityLogEntry) {
	if _, err := w.sink.BulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *ActivityWorker) fallbackInsert(ctx context.Context, batch []model.ActivityLogEntry) {
	var failed []model.ActivityLogEntry

	for i := range batch {
		if err := w.sink.Insert(ctx, &batch[i]); err != nil {
			w.log.Error().Err(err).
				Int64("attempt_id", batch[i].AttemptID).
				Str("activity_type", string(batch[i].Type)).
				Msg("Insert failed, requeueing")
			failed = append(failed, batch[i])
		}
	}

	if len(failed) == 0 {
		return
	}
	if err := w.requeue(ctx, failed); err != nil {
		w.log.Error().Err(err).Int("count", len(failed)).Msg("CRITICAL: Failed to requeue activity entries. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(failed)).Msg("Requeued failed activity entries")
	// Back off so a hard database outage does not spin the loop.
	time.Sleep(w.requeuePause)
}

func (w *ActivityWorker) requeueRedis(ctx context.Context, items []model.ActivityLogEntry) error {
	pipe := w.rdb.Pipeline()
	for _, e := range items {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, config.WorkerKey.PersistActivityQueue, data)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (w *ActivityWorker) shutdown(buffer []model.ActivityLogEntry) {
	w.log.Info().Int("buffered", len(buffer)).Msg("Worker stopping, flushing remaining buffer")

	// The parent context is gone; give the final flush its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
