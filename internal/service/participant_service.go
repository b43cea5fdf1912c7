package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// ParticipantService changes participant account state.
type ParticipantService struct {
	participants ParticipantStore
	attempts     AttemptStore
	schedules    ScheduleStore
	events       EventPublisher
	log          zerolog.Logger
	now          func() time.Time
}

// NewParticipantService creates a new ParticipantService.
func NewParticipantService(
	participants ParticipantStore,
	attempts AttemptStore,
	schedules ScheduleStore,
	events EventPublisher,
	log zerolog.Logger,
) *ParticipantService {
	if events == nil {
		events = NopPublisher{}
	}
	return &ParticipantService{
		participants: participants,
		attempts:     attempts,
		schedules:    schedules,
		events:       events,
		log:          log.With().Str("component", "participants").Logger(),
		now:          time.Now,
	}
}

// SetStatus enables or disables each participant. A participant going from
// disabled to enabled has the violation counters of its attempts reset on
// every schedule that asks for it.
func (s *ParticipantService) SetStatus(ctx context.Context, participantIDs []int64, active bool) []model.ParticipantStatusResult {
	results := make([]model.ParticipantStatusResult, 0, len(participantIDs))
	schedules := make(map[int64]*model.ExamSchedule)

	for _, id := range participantIDs {
		res := model.ParticipantStatusResult{ParticipantID: id}

		wasActive, err := s.participants.SetActive(ctx, id, active)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				res.Error = ErrParticipantNotFound.Error()
			} else {
				s.log.Error().Err(err).Int64("participant_id", id).Msg("Failed to set participant status")
				res.Error = "failed to update participant"
			}
			results = append(results, res)
			continue
		}

		res.Success = true
		res.Changed = wasActive != active
		if active && !wasActive {
			res.ViolationsReset, res.ResetFailures = s.resetViolations(ctx, id, schedules)
		}
		results = append(results, res)
	}
	return results
}

// resetViolations zeroes the counter on each eligible attempt, one
// transaction per attempt. A failing attempt does not stop the others.
func (s *ParticipantService) resetViolations(ctx context.Context, participantID int64, schedules map[int64]*model.ExamSchedule) (reset, failed int) {
	attempts, err := s.attempts.ListByParticipant(ctx, participantID)
	if err != nil {
		s.log.Error().Err(err).Int64("participant_id", participantID).Msg("Failed to list attempts for violation reset")
		return 0, 1
	}

	metadata, err := json.Marshal(map[string]any{
		"reason":   "participant_reenabled",
		"reset_at": s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return 0, len(attempts)
	}

	for _, a := range attempts {
		schedule, err := s.scheduleFor(ctx, a.ScheduleID, schedules)
		if err != nil {
			s.log.Warn().Err(err).Int64("attempt_id", a.ID).Msg("Skipping violation reset")
			failed++
			continue
		}
		if schedule == nil || !schedule.ResetViolationsOnEnable {
			continue
		}

		if err := s.attempts.ResetViolations(ctx, a.ID, participantID, string(metadata)); err != nil {
			s.log.Error().Err(err).Int64("attempt_id", a.ID).Msg("Violation reset failed")
			failed++
			continue
		}
		reset++

		s.events.Publish(ctx, model.MonitorEvent{
			Type:          model.EventViolationsReset,
			ScheduleID:    a.ScheduleID,
			AttemptID:     a.ID,
			ParticipantID: participantID,
			At:            s.now(),
		})
	}
	return reset, failed
}

// scheduleFor returns nil without error when the schedule no longer exists.
func (s *ParticipantService) scheduleFor(ctx context.Context, id int64, cached map[int64]*model.ExamSchedule) (*model.ExamSchedule, error) {
	if schedule, ok := cached[id]; ok {
		return schedule, nil
	}
	schedule, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			cached[id] = nil
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	cached[id] = schedule
	return schedule, nil
}
