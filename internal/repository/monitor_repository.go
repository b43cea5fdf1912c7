package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// MonitorRepository provides the read side of the live monitoring view.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// ListActiveAttempts returns every in-progress attempt, optionally for one schedule only.
// scheduleID <= 0 means all schedules.
func (r *MonitorRepository) ListActiveAttempts(ctx context.Context, scheduleID int64) ([]model.ActiveAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.schedule_id, s.name, p.id, p.name, p.is_active, p.updated_at,
		        a.started_at, a.answers, a.question_order, a.violation_count, a.session_id, a.client_ip
		 FROM exam_attempts a
		 JOIN participants p ON p.id = a.participant_id
		 JOIN exam_schedules s ON s.id = a.schedule_id
		 WHERE a.status IN ('in_progress', 'mulai')
		   AND ($1::bigint <= 0 OR a.schedule_id = $1::bigint)
		 ORDER BY a.schedule_id, p.name`,
		scheduleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.ActiveAttempt
	for rows.Next() {
		var a model.ActiveAttempt
		if err := rows.Scan(&a.AttemptID, &a.ScheduleID, &a.ScheduleName,
			&a.Participant.ID, &a.Participant.Name, &a.Participant.IsActive, &a.Participant.UpdatedAt,
			&a.StartedAt, &a.Answers, &a.QuestionOrder, &a.ViolationCount, &a.SessionID, &a.ClientIP); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
