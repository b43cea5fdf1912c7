package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const maxRetryDelay = 8 * time.Second

// retryDelay is overridden in tests.
var retryDelay = time.Second

// connectWithRetry calls connect up to attempts times, doubling the delay
// between tries. The last error is returned when every attempt fails.
func connectWithRetry(ctx context.Context, log zerolog.Logger, target string, attempts int, connect func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	delay := retryDelay
	var err error
	for i := 1; i <= attempts; i++ {
		if err = connect(ctx); err == nil {
			return nil
		}
		if i == attempts {
			break
		}

		log.Warn().Err(err).
			Str("target", target).
			Int("attempt", i).
			Dur("retry_in", delay).
			Msg("Connection failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", target, ctx.Err())
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
	return fmt.Errorf("%s after %d attempts: %w", target, attempts, err)
}
