package service

import (
	"context"
	"time"

	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/repository"
)

// ScheduleStore reads exam schedules and their rosters.
type ScheduleStore interface {
	GetByID(ctx context.Context, id int64) (*model.ExamSchedule, error)
	IsParticipantRegistered(ctx context.Context, scheduleID, participantID int64) (bool, error)
}

// QuestionStore reads question banks.
type QuestionStore interface {
	ListByBank(ctx context.Context, bankID int64) ([]model.Question, error)
	AnswerKeyForBank(ctx context.Context, bankID int64) (model.AnswerKey, error)
}

// AttemptStore persists attempts. Conditional writes return pgx.ErrNoRows
// when their status guard did not match.
type AttemptStore interface {
	GetByID(ctx context.Context, id int64) (*model.ExamAttempt, error)
	GetByScheduleAndParticipant(ctx context.Context, scheduleID, participantID int64) (*model.ExamAttempt, error)
	Create(ctx context.Context, a *model.ExamAttempt) error
	SaveAnswers(ctx context.Context, id, scheduleID, participantID int64, answers model.AnswerMap, at time.Time) error
	Submit(ctx context.Context, id int64, answers model.AnswerMap, score, maxScore int, at time.Time) error
	UpdateScore(ctx context.Context, id int64, score, maxScore int, key model.AnswerKey, at time.Time) error
	SetViolationCount(ctx context.Context, id int64, count int) error
	UpdateSession(ctx context.Context, id int64, sessionID, ip string) error
	ResetViolations(ctx context.Context, id, participantID int64, metadata string) error
	ListByParticipant(ctx context.Context, participantID int64) ([]model.ExamAttempt, error)
	ListInProgress(ctx context.Context) ([]model.ExamAttempt, error)
}

// ActivityStore appends to and aggregates the proctoring log.
type ActivityStore interface {
	Insert(ctx context.Context, e *model.ActivityLogEntry) error
	CountsForActiveAttempts(ctx context.Context, scheduleID int64) (map[int64]model.ActivityCounts, error)
	ListByAttempt(ctx context.Context, attemptID int64) ([]model.ActivityLogEntry, error)
}

// ParticipantStore changes participant account state.
type ParticipantStore interface {
	SetActive(ctx context.Context, id int64, active bool) (wasActive bool, err error)
}

// MonitorStore lists the attempts shown on the monitoring view.
type MonitorStore interface {
	ListActiveAttempts(ctx context.Context, scheduleID int64) ([]model.ActiveAttempt, error)
}

var (
	_ ScheduleStore    = (*repository.ScheduleRepository)(nil)
	_ QuestionStore    = (*repository.QuestionRepository)(nil)
	_ AttemptStore     = (*repository.AttemptRepository)(nil)
	_ ActivityStore    = (*repository.ActivityRepository)(nil)
	_ ParticipantStore = (*repository.ParticipantRepository)(nil)
	_ MonitorStore     = (*repository.MonitorRepository)(nil)
)
