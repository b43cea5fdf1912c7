package service

import (
	"fmt"
	"math"
	"time"

	"github.com/stemsi/exstem-cbt/internal/model"
)

// ExamWindow is the absolute time range a schedule is open in.
type ExamWindow struct {
	Start        time.Time
	AllowedStart time.Time
	End          time.Time
}

// ComputeWindow derives the window from the schedule's civil date and start
// time in loc. It is recomputed on every call since schedules can be edited.
func ComputeWindow(s *model.ExamSchedule, loc *time.Location, grace time.Duration) (ExamWindow, error) {
	clock, err := time.Parse("15:04", s.StartTime)
	if err != nil {
		return ExamWindow{}, fmt.Errorf("schedule %d has invalid start time %q: %w", s.ID, s.StartTime, err)
	}

	y, m, d := s.ExamDate.Date()
	start := time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, loc)

	return ExamWindow{
		Start:        start,
		AllowedStart: start.Add(-grace),
		End:          start.Add(time.Duration(s.DurationMinutes) * time.Minute),
	}, nil
}

// Check fails with *TooEarlyError before the allowed start and *TooLateError after the end.
func (w ExamWindow) Check(now time.Time) error {
	if now.Before(w.AllowedStart) {
		return &TooEarlyError{
			MinutesUntilStart: ceilMinutes(w.AllowedStart.Sub(now)),
			AllowedAt:         w.AllowedStart,
		}
	}
	if now.After(w.End) {
		return &TooLateError{EndedAt: w.End}
	}
	return nil
}

// Remaining returns the time left until the end, never negative.
func (w ExamWindow) Remaining(now time.Time) time.Duration {
	if d := w.End.Sub(now); d > 0 {
		return d
	}
	return 0
}

func ceilMinutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}
