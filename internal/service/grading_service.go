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

// GradingService owns the administrative transitions of an attempt:
// force-submit, rescoring and the expiry sweep.
type GradingService struct {
	schedules ScheduleStore
	questions QuestionStore
	attempts  AttemptStore
	recorder  *ActivityRecorder
	events    EventPublisher
	policy    config.ExamPolicy
	log       zerolog.Logger
	now       func() time.Time
}

// NewGradingService creates a new GradingService.
func NewGradingService(
	schedules ScheduleStore,
	questions QuestionStore,
	attempts AttemptStore,
	recorder *ActivityRecorder,
	events EventPublisher,
	policy config.ExamPolicy,
	log zerolog.Logger,
) *GradingService {
	if events == nil {
		events = NopPublisher{}
	}
	return &GradingService{
		schedules: schedules,
		questions: questions,
		attempts:  attempts,
		recorder:  recorder,
		events:    events,
		policy:    policy,
		log:       log.With().Str("component", "grading").Logger(),
		now:       time.Now,
	}
}

// SweepResult summarizes one expiry sweep.
type SweepResult struct {
	Checked   int
	Expired   int
	Submitted int
	Failed    int
}

// ForceSubmit closes an in-progress attempt on behalf of an admin, grading
// the stored answers. The result always carries the numbers.
func (g *GradingService) ForceSubmit(ctx context.Context, attemptID, scheduleID int64) (model.ScoreResult, error) {
	attempt, err := g.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ScoreResult{}, ErrAttemptNotFound
		}
		return model.ScoreResult{}, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.ScheduleID != scheduleID {
		return model.ScoreResult{}, ErrAttemptNotFound
	}
	return g.close(ctx, attempt, "")
}

// close is the shared force-submit path. A non-empty reason is written to
// the activity log once the attempt is closed.
func (g *GradingService) close(ctx context.Context, attempt *model.ExamAttempt, reason model.ActivityType) (model.ScoreResult, error) {
	if !attempt.Status.IsActive() {
		return model.ScoreResult{}, ErrAlreadySubmitted
	}

	schedule, err := g.schedules.GetByID(ctx, attempt.ScheduleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ScoreResult{}, ErrScheduleNotFound
		}
		return model.ScoreResult{}, fmt.Errorf("get schedule: %w", err)
	}

	key, err := resolveKey(ctx, g.questions, attempt, schedule.QuestionBankID, false)
	if err != nil {
		return model.ScoreResult{}, err
	}

	correct, total := Score(key, attempt.Answers, attempt.OptionMapping, len(attempt.OptionMapping) > 0)

	now := g.now().Truncate(time.Microsecond)
	if err := g.attempts.Submit(ctx, attempt.ID, attempt.Answers, correct, total, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ScoreResult{}, ErrAlreadySubmitted
		}
		return model.ScoreResult{}, fmt.Errorf("submit attempt: %w", err)
	}

	if reason != "" && g.recorder != nil {
		err := g.recorder.Record(ctx, model.ActivityLogEntry{
			AttemptID:     attempt.ID,
			ParticipantID: attempt.ParticipantID,
			Type:          reason,
			Count:         1,
			CreatedAt:     now,
		})
		if err != nil {
			g.log.Error().Err(err).Int64("attempt_id", attempt.ID).Str("reason", string(reason)).Msg("Failed to record submit reason")
		}
	}

	g.events.Publish(ctx, model.MonitorEvent{
		Type:          model.EventAttemptForced,
		ScheduleID:    attempt.ScheduleID,
		AttemptID:     attempt.ID,
		ParticipantID: attempt.ParticipantID,
		ActivityType:  reason,
		Score:         &correct,
		MaxScore:      &total,
		At:            now,
	})

	g.log.Info().
		Int64("attempt_id", attempt.ID).
		Int64("schedule_id", attempt.ScheduleID).
		Str("reason", string(reason)).
		Int("score", correct).
		Int("max_score", total).
		Msg("Attempt force-submitted")

	return model.NewScoreResult(correct, total, schedule.ShowScore), nil
}

// Recalculate rescores submitted attempts against the live bank key. Each id
// is processed on its own; a failure is reported in its row and the batch
// continues. Running it twice yields the same scores.
func (g *GradingService) Recalculate(ctx context.Context, attemptIDs []int64, updateSnapshot bool) []model.RecalculateResult {
	results := make([]model.RecalculateResult, 0, len(attemptIDs))
	schedules := make(map[int64]*model.ExamSchedule)
	keys := make(map[int64]model.AnswerKey)

	for _, id := range attemptIDs {
		res := model.RecalculateResult{AttemptID: id}

		score, maxScore, err := g.recalculateOne(ctx, id, updateSnapshot, schedules, keys)
		if err != nil {
			res.Error = err.Error()
			if !isClientError(err) {
				g.log.Error().Err(err).Int64("attempt_id", id).Msg("Recalculate failed")
			}
		} else {
			res.Success = true
			res.Score = &score
			res.MaxScore = &maxScore
		}
		results = append(results, res)
	}
	return results
}

func (g *GradingService) recalculateOne(
	ctx context.Context,
	attemptID int64,
	updateSnapshot bool,
	schedules map[int64]*model.ExamSchedule,
	keys map[int64]model.AnswerKey,
) (int, int, error) {
	attempt, err := g.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrAttemptNotFound
		}
		return 0, 0, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.Status != model.AttemptStatusSubmitted {
		return 0, 0, ErrAttemptNotSubmitted
	}

	schedule, ok := schedules[attempt.ScheduleID]
	if !ok {
		schedule, err = g.schedules.GetByID(ctx, attempt.ScheduleID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, 0, ErrScheduleNotFound
			}
			return 0, 0, fmt.Errorf("get schedule: %w", err)
		}
		schedules[attempt.ScheduleID] = schedule
	}

	live, ok := keys[schedule.QuestionBankID]
	if !ok {
		live, err = g.questions.AnswerKeyForBank(ctx, schedule.QuestionBankID)
		if err != nil {
			return 0, 0, fmt.Errorf("load answer key: %w", err)
		}
		keys[schedule.QuestionBankID] = live
	}
	// The whole current bank counts, including questions added after start.
	key := live

	correct, total := Score(key, attempt.Answers, attempt.OptionMapping, len(attempt.OptionMapping) > 0)

	var snapshot model.AnswerKey
	if updateSnapshot {
		snapshot = key
	}
	if err := g.attempts.UpdateScore(ctx, attempt.ID, correct, total, snapshot, g.now().Truncate(time.Microsecond)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrAttemptNotSubmitted
		}
		return 0, 0, fmt.Errorf("update score: %w", err)
	}
	return correct, total, nil
}

// SweepExpired force-submits in-progress attempts whose schedule ended more
// than grace ago. Attempts are handled one at a time; failures are counted
// and logged.
func (g *GradingService) SweepExpired(ctx context.Context, grace time.Duration) (SweepResult, error) {
	var result SweepResult

	attempts, err := g.attempts.ListInProgress(ctx)
	if err != nil {
		return result, fmt.Errorf("list in-progress attempts: %w", err)
	}

	now := g.now()
	windows := make(map[int64]*ExamWindow)

	for i := range attempts {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		a := &attempts[i]
		result.Checked++

		window, ok := windows[a.ScheduleID]
		if !ok {
			window = g.windowFor(ctx, a.ScheduleID)
			windows[a.ScheduleID] = window
		}
		if window == nil || !now.After(window.End.Add(grace)) {
			continue
		}

		result.Expired++
		if _, err := g.close(ctx, a, model.ActivityExpirySubmitted); err != nil {
			if errors.Is(err, ErrAlreadySubmitted) {
				continue
			}
			result.Failed++
			g.log.Error().Err(err).Int64("attempt_id", a.ID).Msg("Expiry submit failed")
			continue
		}
		result.Submitted++
	}
	return result, nil
}

// windowFor returns nil when the schedule cannot be read; such attempts are
// left for the next sweep.
func (g *GradingService) windowFor(ctx context.Context, scheduleID int64) *ExamWindow {
	schedule, err := g.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		g.log.Warn().Err(err).Int64("schedule_id", scheduleID).Msg("Sweep skipped schedule")
		return nil
	}
	window, err := ComputeWindow(schedule, g.policy.Location(), g.policy.PreStartGrace)
	if err != nil {
		g.log.Warn().Err(err).Int64("schedule_id", scheduleID).Msg("Sweep skipped schedule")
		return nil
	}
	return &window
}

// resolveKey picks the key an attempt is graded against: the snapshot taken
// at start, or the full live bank key when preferLive is set or no snapshot
// exists.
func resolveKey(ctx context.Context, questions QuestionStore, attempt *model.ExamAttempt, bankID int64, preferLive bool) (model.AnswerKey, error) {
	if !preferLive && len(attempt.AnswerKey) > 0 {
		return attempt.AnswerKey, nil
	}
	live, err := questions.AnswerKeyForBank(ctx, bankID)
	if err != nil {
		return nil, fmt.Errorf("load answer key: %w", err)
	}
	return live, nil
}

func isClientError(err error) bool {
	return errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrAttemptNotSubmitted) ||
		errors.Is(err, ErrScheduleNotFound)
}
