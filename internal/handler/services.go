package handler

import (
	"context"
	"time"

	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/service"
)

// ExamSessions is the participant-facing exam lifecycle.
type ExamSessions interface {
	Start(ctx context.Context, scheduleID, participantID int64) (*model.ExamPaper, error)
	State(ctx context.Context, scheduleID, participantID int64) (*model.ExamPaper, error)
	SaveProgress(ctx context.Context, scheduleID int64, req model.SaveProgressRequest) (time.Time, error)
	Submit(ctx context.Context, scheduleID int64, req model.SubmitExamRequest) (model.ScoreResult, error)
	InvalidatePayload(ctx context.Context, scheduleID int64) error
}

// Proctoring records client activity and manages session binding.
type Proctoring interface {
	LogActivity(ctx context.Context, req model.LogActivityRequest) (*service.ActivityOutcome, error)
	UpdateSession(ctx context.Context, participantID int64, req model.UpdateSessionRequest, clientIP string) error
	CheckSession(ctx context.Context, participantID int64, req model.CheckSessionRequest) (model.SessionCheck, error)
}

// Grading covers the admin scoring operations.
type Grading interface {
	ForceSubmit(ctx context.Context, attemptID, scheduleID int64) (model.ScoreResult, error)
	Recalculate(ctx context.Context, attemptIDs []int64, updateSnapshot bool) []model.RecalculateResult
}

// Monitoring lists in-progress attempts and attempt timelines with their risk level.
type Monitoring interface {
	ActiveExams(ctx context.Context, scheduleID int64) ([]model.MonitorEntry, error)
	AttemptActivity(ctx context.Context, attemptID int64) (*model.AttemptActivity, error)
}

// Participants toggles participant accounts in bulk.
type Participants interface {
	SetStatus(ctx context.Context, participantIDs []int64, active bool) []model.ParticipantStatusResult
}

var (
	_ ExamSessions = (*service.ExamSessionService)(nil)
	_ Proctoring   = (*service.ProctoringService)(nil)
	_ Grading      = (*service.GradingService)(nil)
	_ Monitoring   = (*service.MonitorService)(nil)
	_ Participants = (*service.ParticipantService)(nil)
)
