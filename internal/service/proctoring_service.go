package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// ProctoringService records client-side proctoring events and manages the
// browser session bound to an attempt.
type ProctoringService struct {
	schedules ScheduleStore
	attempts  AttemptStore
	recorder  *ActivityRecorder
	grading   *GradingService
	events    EventPublisher
	policy    config.ExamPolicy
	log       zerolog.Logger
	now       func() time.Time
}

// NewProctoringService creates a new ProctoringService.
func NewProctoringService(
	schedules ScheduleStore,
	attempts AttemptStore,
	recorder *ActivityRecorder,
	grading *GradingService,
	events EventPublisher,
	policy config.ExamPolicy,
	log zerolog.Logger,
) *ProctoringService {
	if events == nil {
		events = NopPublisher{}
	}
	return &ProctoringService{
		schedules: schedules,
		attempts:  attempts,
		recorder:  recorder,
		grading:   grading,
		events:    events,
		policy:    policy,
		log:       log.With().Str("component", "proctoring").Logger(),
		now:       time.Now,
	}
}

// ActivityOutcome reports what logging an activity did to the attempt.
type ActivityOutcome struct {
	ViolationCount int  `json:"violation_count"`
	AutoSubmitted  bool `json:"auto_submitted"`
}

// LogActivity appends an activity entry. TAB_BLUR carries the client's
// cumulative count, which becomes the attempt's violation counter; reaching
// the schedule's maximum closes the attempt when auto-submit is on.
func (p *ProctoringService) LogActivity(ctx context.Context, req model.LogActivityRequest) (*ActivityOutcome, error) {
	// Missing or non-positive counts are recorded as 1 in both the log and the counter.
	count := 1
	if req.Count != nil && *req.Count > 0 {
		count = *req.Count
	}

	attempt, err := p.attempts.GetByID(ctx, req.AttemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.ParticipantID != req.ParticipantID {
		return nil, ErrAttemptNotFound
	}

	now := p.now().UTC().Truncate(time.Microsecond)
	err = p.recorder.Record(ctx, model.ActivityLogEntry{
		AttemptID:     attempt.ID,
		ParticipantID: attempt.ParticipantID,
		Type:          req.ActivityType,
		Count:         count,
		Metadata:      req.Metadata,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	p.events.Publish(ctx, model.MonitorEvent{
		Type:          model.EventActivityLogged,
		ScheduleID:    attempt.ScheduleID,
		AttemptID:     attempt.ID,
		ParticipantID: attempt.ParticipantID,
		ActivityType:  req.ActivityType,
		Count:         count,
		At:            now,
	})

	outcome := &ActivityOutcome{ViolationCount: attempt.ViolationCount}
	if req.ActivityType != model.ActivityTabBlur || !attempt.Status.IsActive() {
		return outcome, nil
	}

	if err := p.attempts.SetViolationCount(ctx, attempt.ID, count); err != nil {
		return nil, fmt.Errorf("set violation count: %w", err)
	}
	outcome.ViolationCount = count
	attempt.ViolationCount = count

	schedule, err := p.schedules.GetByID(ctx, attempt.ScheduleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return outcome, nil
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if !schedule.AutoSubmitOnViolation {
		return outcome, nil
	}

	limit := schedule.MaxViolations
	if limit <= 0 {
		limit = p.policy.DefaultMaxViolations
	}
	if limit <= 0 || count < limit {
		return outcome, nil
	}

	if _, err := p.grading.close(ctx, attempt, model.ActivityAutoSubmitted); err != nil {
		if errors.Is(err, ErrAlreadySubmitted) {
			return outcome, nil
		}
		return nil, fmt.Errorf("auto-submit: %w", err)
	}

	p.log.Warn().
		Int64("attempt_id", attempt.ID).
		Int64("participant_id", attempt.ParticipantID).
		Int("violations", count).
		Int("limit", limit).
		Msg("Attempt auto-submitted on violations")

	outcome.AutoSubmitted = true
	return outcome, nil
}

// UpdateSession binds the attempt to sessionID. The latest caller wins.
// ip falls back to clientIP when empty.
func (p *ProctoringService) UpdateSession(ctx context.Context, participantID int64, req model.UpdateSessionRequest, clientIP string) error {
	attempt, err := p.ownAttempt(ctx, req.AttemptID, participantID)
	if err != nil {
		return err
	}

	ip := req.IP
	if ip == "" {
		ip = clientIP
	}
	if err := p.attempts.UpdateSession(ctx, attempt.ID, req.SessionID, ip); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// CheckSession reports whether sessionID owns the attempt. An attempt with no
// bound session accepts anyone.
func (p *ProctoringService) CheckSession(ctx context.Context, participantID int64, req model.CheckSessionRequest) (model.SessionCheck, error) {
	attempt, err := p.ownAttempt(ctx, req.AttemptID, participantID)
	if err != nil {
		return model.SessionCheck{}, err
	}

	return model.SessionCheck{
		IsValid:          attempt.SessionID == nil || *attempt.SessionID == req.SessionID,
		CurrentSessionID: attempt.SessionID,
	}, nil
}

func (p *ProctoringService) ownAttempt(ctx context.Context, attemptID, participantID int64) (*model.ExamAttempt, error) {
	attempt, err := p.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.ParticipantID != participantID {
		return nil, ErrAttemptNotFound
	}
	return attempt, nil
}
