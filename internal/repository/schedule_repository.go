package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// ScheduleRepository handles exam schedule data access.
type ScheduleRepository struct {
	pool *pgxpool.Pool
}

// NewScheduleRepository creates a new ScheduleRepository.
func NewScheduleRepository(pool *pgxpool.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// GetByID retrieves a schedule by id.
func (r *ScheduleRepository) GetByID(ctx context.Context, id int64) (*model.ExamSchedule, error) {
	s := &model.ExamSchedule{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, question_bank_id, exam_date, start_time, duration_minutes, min_work_minutes,
		        shuffle_questions, shuffle_options, show_score, reset_violations_on_enable,
		        auto_submit_on_violation, require_proctor_browser, max_violations, is_active,
		        created_at, updated_at
		 FROM exam_schedules WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.QuestionBankID, &s.ExamDate, &s.StartTime, &s.DurationMinutes, &s.MinWorkMinutes,
		&s.ShuffleQuestions, &s.ShuffleOptions, &s.ShowScore, &s.ResetViolationsOnEnable,
		&s.AutoSubmitOnViolation, &s.RequireProctorBrowser, &s.MaxViolations, &s.IsActive,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// IsParticipantRegistered checks the roster join table for the pair.
func (r *ScheduleRepository) IsParticipantRegistered(ctx context.Context, scheduleID, participantID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM schedule_participants
		     WHERE schedule_id = $1 AND participant_id = $2
		 )`, scheduleID, participantID,
	).Scan(&exists)
	return exists, err
}
