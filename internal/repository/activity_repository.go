package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// ActivityRepository handles the append-only proctoring log.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

var activityCopyColumns = []string{"attempt_id", "participant_id", "activity_type", "count", "metadata", "created_at"}

// Insert appends a single entry.
func (r *ActivityRepository) Insert(ctx context.Context, e *model.ActivityLogEntry) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO activity_logs (attempt_id, participant_id, activity_type, count, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		 RETURNING id`,
		e.AttemptID, e.ParticipantID, e.Type, e.Count, metadataArg(e.Metadata), e.CreatedAt,
	).Scan(&e.ID)
}

// BulkInsert appends many entries with COPY.
func (r *ActivityRepository) BulkInsert(ctx context.Context, entries []model.ActivityLogEntry) (int64, error) {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.AttemptID, e.ParticipantID, string(e.Type), e.Count, metadataArg(e.Metadata), e.CreatedAt})
	}
	return r.pool.CopyFrom(ctx, pgx.Identifier{"activity_logs"}, activityCopyColumns, pgx.CopyFromRows(rows))
}

// CountsForActiveAttempts sums counts for every in-progress attempt, optionally
// narrowed to one schedule (scheduleID <= 0 means all).
func (r *ActivityRepository) CountsForActiveAttempts(ctx context.Context, scheduleID int64) (map[int64]model.ActivityCounts, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT l.attempt_id, l.activity_type, SUM(l.count)
		 FROM activity_logs l
		 JOIN exam_attempts a ON a.id = l.attempt_id
		 WHERE a.status IN ('in_progress', 'mulai')
		   AND ($1::bigint <= 0 OR a.schedule_id = $1::bigint)
		 GROUP BY l.attempt_id, l.activity_type`,
		scheduleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCounts(rows)
}

func collectCounts(rows pgx.Rows) (map[int64]model.ActivityCounts, error) {
	result := make(map[int64]model.ActivityCounts)
	for rows.Next() {
		var (
			attemptID int64
			typ       string
			total     int64
		)
		if err := rows.Scan(&attemptID, &typ, &total); err != nil {
			return nil, err
		}
		counts, ok := result[attemptID]
		if !ok {
			counts = make(model.ActivityCounts)
			result[attemptID] = counts
		}
		counts[model.ActivityType(typ)] = int(total)
	}
	return result, rows.Err()
}

// ListByAttempt returns the log of one attempt, oldest first.
func (r *ActivityRepository) ListByAttempt(ctx context.Context, attemptID int64) ([]model.ActivityLogEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, participant_id, activity_type, count, metadata, created_at
		 FROM activity_logs WHERE attempt_id = $1
		 ORDER BY created_at, id`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.ActivityLogEntry
	for rows.Next() {
		var (
			e    model.ActivityLogEntry
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.AttemptID, &e.ParticipantID, &e.Type, &e.Count, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			e.Metadata = meta
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func metadataArg(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
