package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/cache"
	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// ExamSessionService runs the participant side of an attempt: start or
// resume, autosave and submit.
type ExamSessionService struct {
	schedules ScheduleStore
	questions QuestionStore
	attempts  AttemptStore
	recorder  *ActivityRecorder
	payloads  cache.Store
	events    EventPublisher
	policy    config.ExamPolicy
	log       zerolog.Logger
	now       func() time.Time
}

// NewExamSessionService creates a new ExamSessionService. payloads may be nil
// to disable the question payload cache.
func NewExamSessionService(
	schedules ScheduleStore,
	questions QuestionStore,
	attempts AttemptStore,
	recorder *ActivityRecorder,
	payloads cache.Store,
	events EventPublisher,
	policy config.ExamPolicy,
	log zerolog.Logger,
) *ExamSessionService {
	if events == nil {
		events = NopPublisher{}
	}
	return &ExamSessionService{
		schedules: schedules,
		questions: questions,
		attempts:  attempts,
		recorder:  recorder,
		payloads:  payloads,
		events:    events,
		policy:    policy,
		log:       log.With().Str("component", "exam_session").Logger(),
		now:       time.Now,
	}
}

func (s *ExamSessionService) clock() time.Time {
	return s.now().Truncate(time.Microsecond)
}

// Start creates the participant's attempt, or resumes the existing one.
// Calling it again while in progress returns the same paper.
func (s *ExamSessionService) Start(ctx context.Context, scheduleID, participantID int64) (*model.ExamPaper, error) {
	schedule, window, err := s.openSchedule(ctx, scheduleID, participantID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if err := window.Check(now); err != nil {
		return nil, err
	}

	existing, err := s.attempts.GetByScheduleAndParticipant(ctx, scheduleID, participantID)
	if err == nil {
		if !existing.Status.IsActive() {
			return nil, ErrAlreadyCompleted
		}
		return s.resume(ctx, schedule, window, existing, now)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	questions, err := s.questions.ListByBank(ctx, schedule.QuestionBankID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	rng := AttemptRand(scheduleID, participantID, now)
	prepared, mapping := PrepareQuestions(questions, schedule.ShuffleQuestions, schedule.ShuffleOptions, rng)

	attempt := &model.ExamAttempt{
		ScheduleID:    scheduleID,
		ParticipantID: participantID,
		StartedAt:     now,
		Answers:       model.AnswerMap{},
		QuestionOrder: OrderOf(prepared),
		OptionMapping: mapping,
		AnswerKey:     SnapshotKey(prepared),
		Status:        model.AttemptStatusInProgress,
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("create attempt: %w", err)
		}

		// Concurrent start; the other request's attempt is the one to use.
		winner, fetchErr := s.attempts.GetByScheduleAndParticipant(ctx, scheduleID, participantID)
		if fetchErr != nil {
			return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
		}
		if !winner.Status.IsActive() {
			return nil, ErrAlreadyCompleted
		}
		return s.resume(ctx, schedule, window, winner, now)
	}

	s.storePayload(ctx, schedule.QuestionBankID, CanonicalView(questions))

	s.events.Publish(ctx, model.MonitorEvent{
		Type:          model.EventAttemptStarted,
		ScheduleID:    scheduleID,
		AttemptID:     attempt.ID,
		ParticipantID: participantID,
		At:            now,
	})

	s.log.Info().
		Int64("attempt_id", attempt.ID).
		Int64("schedule_id", scheduleID).
		Int64("participant_id", participantID).
		Int("questions", len(prepared)).
		Msg("Attempt started")

	return s.paper(schedule, window, attempt, StudentView(prepared), now, false), nil
}

// State returns the paper of an in-progress attempt without creating one.
func (s *ExamSessionService) State(ctx context.Context, scheduleID, participantID int64) (*model.ExamPaper, error) {
	schedule, window, err := s.openSchedule(ctx, scheduleID, participantID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if err := window.Check(now); err != nil {
		return nil, err
	}

	attempt, err := s.attempts.GetByScheduleAndParticipant(ctx, scheduleID, participantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if !attempt.Status.IsActive() {
		return nil, ErrAlreadyCompleted
	}

	return s.resume(ctx, schedule, window, attempt, now)
}

// SaveProgress replaces the stored answer map. Last write wins.
func (s *ExamSessionService) SaveProgress(ctx context.Context, scheduleID int64, req model.SaveProgressRequest) (time.Time, error) {
	if s.policy.EnforceSessionBinding {
		attempt, err := s.ownedAttempt(ctx, req.AttemptID, scheduleID, req.ParticipantID)
		if err != nil {
			return time.Time{}, err
		}
		if err := s.guardSession(ctx, attempt, req.SessionID); err != nil {
			return time.Time{}, err
		}
	}

	answers := req.Answers
	if answers == nil {
		answers = model.AnswerMap{}
	}

	at := s.clock()
	if err := s.attempts.SaveAnswers(ctx, req.AttemptID, scheduleID, req.ParticipantID, answers, at); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrAttemptNotFound
		}
		return time.Time{}, fmt.Errorf("save answers: %w", err)
	}
	return at, nil
}

// Submit grades and closes the attempt. Only one of several concurrent
// submits succeeds; the others get ErrAlreadySubmitted.
func (s *ExamSessionService) Submit(ctx context.Context, scheduleID int64, req model.SubmitExamRequest) (model.ScoreResult, error) {
	attempt, err := s.attempts.GetByID(ctx, req.AttemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ScoreResult{}, ErrAttemptNotFound
		}
		return model.ScoreResult{}, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.ScheduleID != scheduleID || attempt.ParticipantID != req.ParticipantID {
		return model.ScoreResult{}, ErrAttemptNotFound
	}
	if !attempt.Status.IsActive() {
		return model.ScoreResult{}, ErrAlreadySubmitted
	}

	schedule, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ScoreResult{}, ErrScheduleNotFound
		}
		return model.ScoreResult{}, fmt.Errorf("get schedule: %w", err)
	}

	if s.policy.EnforceSessionBinding {
		if err := s.guardSession(ctx, attempt, req.SessionID); err != nil {
			return model.ScoreResult{}, err
		}
	}

	now := s.clock()
	if schedule.MinWorkMinutes != nil && *schedule.MinWorkMinutes > 0 {
		earliest := attempt.StartedAt.Add(time.Duration(*schedule.MinWorkMinutes) * time.Minute)
		if now.Before(earliest) {
			return model.ScoreResult{}, &TooSoonError{RemainingMinutes: ceilMinutes(earliest.Sub(now))}
		}
	}

	key, err := resolveKey(ctx, s.questions, attempt, schedule.QuestionBankID, s.policy.SubmitKeySource == config.KeySourceLive)
	if err != nil {
		return model.ScoreResult{}, err
	}

	answers := req.Answers
	if answers == nil {
		answers = attempt.Answers
	}

	correct, total := Score(key, answers, attempt.OptionMapping, len(attempt.OptionMapping) > 0)

	if err := s.attempts.Submit(ctx, attempt.ID, answers, correct, total, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ScoreResult{}, ErrAlreadySubmitted
		}
		return model.ScoreResult{}, fmt.Errorf("submit attempt: %w", err)
	}

	s.events.Publish(ctx, model.MonitorEvent{
		Type:          model.EventAttemptSubmitted,
		ScheduleID:    scheduleID,
		AttemptID:     attempt.ID,
		ParticipantID: attempt.ParticipantID,
		Score:         &correct,
		MaxScore:      &total,
		At:            now,
	})

	s.log.Info().
		Int64("attempt_id", attempt.ID).
		Int64("schedule_id", scheduleID).
		Int("score", correct).
		Int("max_score", total).
		Msg("Attempt submitted")

	return model.NewScoreResult(correct, total, schedule.ShowScore).Redacted(), nil
}

// InvalidatePayload drops the cached question payload of a schedule's bank.
func (s *ExamSessionService) InvalidatePayload(ctx context.Context, scheduleID int64) error {
	schedule, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrScheduleNotFound
		}
		return fmt.Errorf("get schedule: %w", err)
	}
	if s.payloads == nil {
		return nil
	}
	return s.payloads.Delete(ctx, config.CacheKey.BankPayloadKey(schedule.QuestionBankID))
}

func (s *ExamSessionService) openSchedule(ctx context.Context, scheduleID, participantID int64) (*model.ExamSchedule, ExamWindow, error) {
	schedule, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ExamWindow{}, ErrScheduleNotFound
		}
		return nil, ExamWindow{}, fmt.Errorf("get schedule: %w", err)
	}
	if !schedule.IsActive {
		return nil, ExamWindow{}, ErrScheduleInactive
	}

	registered, err := s.schedules.IsParticipantRegistered(ctx, scheduleID, participantID)
	if err != nil {
		return nil, ExamWindow{}, fmt.Errorf("check roster: %w", err)
	}
	if !registered {
		return nil, ExamWindow{}, ErrNotRegistered
	}

	window, err := ComputeWindow(schedule, s.policy.Location(), s.policy.PreStartGrace)
	if err != nil {
		return nil, ExamWindow{}, err
	}
	return schedule, window, nil
}

func (s *ExamSessionService) ownedAttempt(ctx context.Context, attemptID, scheduleID, participantID int64) (*model.ExamAttempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.ScheduleID != scheduleID || attempt.ParticipantID != participantID || !attempt.Status.IsActive() {
		return nil, ErrAttemptNotFound
	}
	return attempt, nil
}

// guardSession rejects a caller whose session no longer owns the attempt and
// records the attempt as a SESSION_VIOLATION.
func (s *ExamSessionService) guardSession(ctx context.Context, attempt *model.ExamAttempt, sessionID string) error {
	if attempt.SessionID == nil || *attempt.SessionID == sessionID {
		return nil
	}

	if s.recorder != nil {
		err := s.recorder.Record(ctx, model.ActivityLogEntry{
			AttemptID:     attempt.ID,
			ParticipantID: attempt.ParticipantID,
			Type:          model.ActivitySessionViolation,
			Count:         1,
		})
		if err != nil {
			s.log.Error().Err(err).Int64("attempt_id", attempt.ID).Msg("Failed to record session violation")
		}
	}
	return ErrSessionMismatch
}

func (s *ExamSessionService) resume(ctx context.Context, schedule *model.ExamSchedule, window ExamWindow, attempt *model.ExamAttempt, now time.Time) (*model.ExamPaper, error) {
	canonical, err := s.canonicalPaper(ctx, schedule.QuestionBankID)
	if err != nil {
		return nil, err
	}
	questions := Replay(canonical, attempt.QuestionOrder, attempt.OptionMapping)
	return s.paper(schedule, window, attempt, questions, now, true), nil
}

func (s *ExamSessionService) paper(schedule *model.ExamSchedule, window ExamWindow, attempt *model.ExamAttempt, questions []model.QuestionForStudent, now time.Time, resumed bool) *model.ExamPaper {
	answers := attempt.Answers
	if answers == nil {
		answers = model.AnswerMap{}
	}
	return &model.ExamPaper{
		AttemptID:       attempt.ID,
		Schedule:        schedule.Summary(),
		Questions:       questions,
		ExistingAnswers: answers,
		StartedAt:       attempt.StartedAt,
		EndsAt:          window.End,
		RemainingSecs:   int64(window.Remaining(now).Seconds()),
		Resumed:         resumed,
	}
}

// canonicalPaper returns the key-free bank payload, from cache when possible.
func (s *ExamSessionService) canonicalPaper(ctx context.Context, bankID int64) ([]model.QuestionForStudent, error) {
	key := config.CacheKey.BankPayloadKey(bankID)

	if s.payloads != nil {
		var view []model.QuestionForStudent
		ok, err := cache.GetJSON(ctx, s.payloads, key, &view)
		if err != nil {
			s.log.Warn().Err(err).Int64("bank_id", bankID).Msg("Payload cache read failed")
		} else if ok {
			return view, nil
		}
	}

	questions, err := s.questions.ListByBank(ctx, bankID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	view := CanonicalView(questions)
	s.storePayload(ctx, bankID, view)
	return view, nil
}

func (s *ExamSessionService) storePayload(ctx context.Context, bankID int64, view []model.QuestionForStudent) {
	if s.payloads == nil {
		return
	}
	if err := cache.SetJSON(ctx, s.payloads, config.CacheKey.BankPayloadKey(bankID), view); err != nil {
		s.log.Warn().Err(err).Int64("bank_id", bankID).Msg("Payload cache write failed")
	}
}
