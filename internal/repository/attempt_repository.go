package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// AttemptRepository handles exam attempt data access.
// Every state transition is a conditional UPDATE; zero affected rows is
// reported as pgx.ErrNoRows so callers can tell "lost the race" apart
// from a connection failure.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, schedule_id, participant_id, started_at, finished_at, answers,
	question_order, option_mapping, answer_key, score, max_score, status,
	violation_count, session_id, client_ip, updated_at`

func scanAttempt(row pgx.Row) (*model.ExamAttempt, error) {
	a := &model.ExamAttempt{}
	err := row.Scan(&a.ID, &a.ScheduleID, &a.ParticipantID, &a.StartedAt, &a.FinishedAt, &a.Answers,
		&a.QuestionOrder, &a.OptionMapping, &a.AnswerKey, &a.Score, &a.MaxScore, &a.Status,
		&a.ViolationCount, &a.SessionID, &a.ClientIP, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an attempt by id.
func (r *AttemptRepository) GetByID(ctx context.Context, id int64) (*model.ExamAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE id = $1`, id))
}

// GetByScheduleAndParticipant retrieves the attempt for a specific schedule-participant pair.
func (r *AttemptRepository) GetByScheduleAndParticipant(ctx context.Context, scheduleID, participantID int64) (*model.ExamAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts
		 WHERE schedule_id = $1 AND participant_id = $2`, scheduleID, participantID))
}

// Create inserts a new in-progress attempt. If another request created the
// pair first, nothing is inserted and pgx.ErrNoRows is returned.
func (r *AttemptRepository) Create(ctx context.Context, a *model.ExamAttempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_attempts
		     (schedule_id, participant_id, started_at, answers, question_order, option_mapping,
		      answer_key, status, violation_count, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $3)
		 ON CONFLICT (schedule_id, participant_id) DO NOTHING
		 RETURNING id, updated_at`,
		a.ScheduleID, a.ParticipantID, a.StartedAt, a.Answers, a.QuestionOrder, a.OptionMapping,
		a.AnswerKey, model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.UpdatedAt)
}

// SaveAnswers replaces the answer map of an active attempt.
func (r *AttemptRepository) SaveAnswers(ctx context.Context, id, scheduleID, participantID int64, answers model.AnswerMap, at time.Time) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts
		 SET answers = $1, updated_at = $2
		 WHERE id = $3 AND schedule_id = $4 AND participant_id = $5
		   AND status IN ('in_progress', 'mulai')`,
		answers, at, id, scheduleID, participantID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Submit moves an active attempt to submitted with its final answers and score.
// Only one concurrent caller can win; the rest get pgx.ErrNoRows.
func (r *AttemptRepository) Submit(ctx context.Context, id int64, answers model.AnswerMap, score, maxScore int, at time.Time) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts
		 SET answers = $1, score = $2, max_score = $3, status = 'submitted',
		     finished_at = $4, updated_at = $4
		 WHERE id = $5 AND status IN ('in_progress', 'mulai')`,
		answers, score, maxScore, at, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateScore overwrites the score of a submitted attempt. A nil key keeps
// the stored snapshot. Status, answers and timestamps other than updated_at
// are left alone.
func (r *AttemptRepository) UpdateScore(ctx context.Context, id int64, score, maxScore int, key model.AnswerKey, at time.Time) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts
		 SET score = $1, max_score = $2,
		     answer_key = COALESCE($3, answer_key),
		     updated_at = $4
		 WHERE id = $5 AND status = 'submitted'`,
		score, maxScore, key, at, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetViolationCount stores the client's running tab-blur tally.
func (r *AttemptRepository) SetViolationCount(ctx context.Context, id int64, count int) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts SET violation_count = $1, updated_at = NOW() WHERE id = $2`,
		count, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateSession overwrites the bound browser session and IP.
func (r *AttemptRepository) UpdateSession(ctx context.Context, id int64, sessionID, ip string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts SET session_id = $1, client_ip = NULLIF($2, ''), updated_at = NOW()
		 WHERE id = $3`,
		sessionID, ip, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ResetViolations zeroes the violation counter and records an audit entry
// in the same transaction.
func (r *AttemptRepository) ResetViolations(ctx context.Context, id, participantID int64, metadata string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmdTag, err := tx.Exec(ctx,
			`UPDATE exam_attempts SET violation_count = 0, updated_at = NOW() WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if cmdTag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO activity_logs (attempt_id, participant_id, activity_type, count, metadata)
			 VALUES ($1, $2, $3, 1, $4::jsonb)`,
			id, participantID, model.ActivityViolationsReset, metadata,
		)
		return err
	})
}

// ListByParticipant retrieves all attempts of a participant, newest first.
func (r *AttemptRepository) ListByParticipant(ctx context.Context, participantID int64) ([]model.ExamAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts
		 WHERE participant_id = $1
		 ORDER BY started_at DESC`, participantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAttempts(rows)
}

// ListInProgress retrieves every attempt that has not been submitted yet.
func (r *AttemptRepository) ListInProgress(ctx context.Context) ([]model.ExamAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts
		 WHERE status IN ('in_progress', 'mulai')
		 ORDER BY schedule_id, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAttempts(rows)
}

func collectAttempts(rows pgx.Rows) ([]model.ExamAttempt, error) {
	var attempts []model.ExamAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}
