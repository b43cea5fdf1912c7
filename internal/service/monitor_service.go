package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// MonitorService orchestrates live exam monitoring business logic.
type MonitorService struct {
	monitor  MonitorStore
	activity ActivityStore
	log      zerolog.Logger
	now      func() time.Time
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(monitor MonitorStore, activity ActivityStore, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		monitor:  monitor,
		activity: activity,
		log:      log.With().Str("component", "monitor").Logger(),
		now:      time.Now,
	}
}

// ActiveExams returns every in-progress attempt with its progress and risk.
// scheduleID <= 0 covers all schedules. The attempt list and the activity
// counts are fetched in parallel.
func (s *MonitorService) ActiveExams(ctx context.Context, scheduleID int64) ([]model.MonitorEntry, error) {
	var (
		attempts    []model.ActiveAttempt
		counts      map[int64]model.ActivityCounts
		attemptsErr error
		countsErr   error
		wg          sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		attempts, attemptsErr = s.monitor.ListActiveAttempts(ctx, scheduleID)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		counts, countsErr = s.activity.CountsForActiveAttempts(ctx, scheduleID)
	}()

	wg.Wait()

	// Attempts are critical; counts are best-effort
	if attemptsErr != nil {
		return nil, attemptsErr
	}
	if countsErr != nil {
		s.log.Warn().Err(countsErr).Int64("schedule_id", scheduleID).Msg("Activity counts unavailable")
		counts = nil
	}

	now := s.now()
	entries := make([]model.MonitorEntry, 0, len(attempts))
	for _, a := range attempts {
		c := counts[a.AttemptID]
		if c == nil {
			c = model.ActivityCounts{}
		}
		risk := RiskScore(c)

		total := len(a.QuestionOrder)
		answered := a.Answers.Answered()

		entries = append(entries, model.MonitorEntry{
			AttemptID:      a.AttemptID,
			ScheduleID:     a.ScheduleID,
			ScheduleName:   a.ScheduleName,
			Participant:    a.Participant,
			Answered:       answered,
			TotalQuestions: total,
			Progress:       progress(answered, total),
			ElapsedMinutes: elapsedMinutes(a.StartedAt, now),
			ViolationCount: a.ViolationCount,
			ActivityCounts: c,
			RiskScore:      math.Round(risk*10) / 10,
			RiskLevel:      ClassifyRisk(risk),
			ClientIP:       a.ClientIP,
		})
	}
	return entries, nil
}

// AttemptActivity returns the full log of one attempt. An attempt without
// entries yields an empty timeline with low risk.
func (s *MonitorService) AttemptActivity(ctx context.Context, attemptID int64) (*model.AttemptActivity, error) {
	entries, err := s.activity.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.ActivityLogEntry{}
	}

	counts := make(model.ActivityCounts)
	for _, e := range entries {
		counts[e.Type] += e.Count
	}
	risk := RiskScore(counts)

	return &model.AttemptActivity{
		AttemptID: attemptID,
		Entries:   entries,
		Counts:    counts,
		RiskScore: math.Round(risk*10) / 10,
		RiskLevel: ClassifyRisk(risk),
	}, nil
}

// progress is the answered share in percent with one decimal, capped at 100.
func progress(answered, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(answered) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return math.Round(pct*10) / 10
}

func elapsedMinutes(startedAt, now time.Time) int {
	d := now.Sub(startedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}
