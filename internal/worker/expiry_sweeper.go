package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/service"
)

const sweepTimeout = 50 * time.Second

// ExpiredAttemptCloser force-submits attempts whose exam has ended.
type ExpiredAttemptCloser interface {
	SweepExpired(ctx context.Context, grace time.Duration) (service.SweepResult, error)
}

var _ ExpiredAttemptCloser = (*service.GradingService)(nil)

// ExpirySweeper runs the expired-attempt sweep on a cron schedule.
type ExpirySweeper struct {
	closer   ExpiredAttemptCloser
	schedule string
	grace    time.Duration
	cron     *cron.Cron
	log      zerolog.Logger
}

// NewExpirySweeper builds a sweeper. An empty schedule yields a sweeper whose
// Start is a no-op.
func NewExpirySweeper(closer ExpiredAttemptCloser, schedule string, grace time.Duration, log zerolog.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		closer:   closer,
		schedule: schedule,
		grace:    grace,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:      log.With().Str("component", "expiry_sweeper").Logger(),
	}
}

// Start registers the job and starts the scheduler. It stops when ctx is cancelled.
func (s *ExpirySweeper) Start(ctx context.Context) error {
	if s.schedule == "" {
		s.log.Info().Msg("Expiry sweep disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule expiry sweep %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Dur("grace", s.grace).Msg("Expiry sweep scheduled")

	go func() {
		<-ctx.Done()
		// Wait for a running sweep to finish before returning control.
		<-s.cron.Stop().Done()
		s.log.Info().Msg("Expiry sweep stopped")
	}()
	return nil
}

// RunOnce performs one sweep and logs its outcome.
func (s *ExpirySweeper) RunOnce(parent context.Context) service.SweepResult {
	if parent.Err() != nil {
		return service.SweepResult{}
	}
	ctx, cancel := context.WithTimeout(parent, sweepTimeout)
	defer cancel()

	res, err := s.closer.SweepExpired(ctx, s.grace)
	if err != nil {
		s.log.Error().Err(err).Msg("Expiry sweep failed")
		return res
	}

	if res.Expired > 0 || res.Failed > 0 {
		s.log.Info().
			Int("checked", res.Checked).
			Int("expired", res.Expired).
			Int("submitted", res.Submitted).
			Int("failed", res.Failed).
			Msg("Closed expired attempts")
	}
	return res
}
