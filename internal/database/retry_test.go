package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectWithRetry(t *testing.T) {
	retryDelay = time.Millisecond
	t.Cleanup(func() { retryDelay = time.Second })

	errRefused := errors.New("connection refused")

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := connectWithRetry(context.Background(), zerolog.Nop(), "postgres", 5, func(context.Context) error {
			calls++
			if calls < 3 {
				return errRefused
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up with the last error", func(t *testing.T) {
		calls := 0
		err := connectWithRetry(context.Background(), zerolog.Nop(), "redis", 2, func(context.Context) error {
			calls++
			return errRefused
		})
		assert.ErrorIs(t, err, errRefused)
		assert.Equal(t, 2, calls)
	})

	t.Run("zero attempts still tries once", func(t *testing.T) {
		calls := 0
		_ = connectWithRetry(context.Background(), zerolog.Nop(), "redis", 0, func(context.Context) error {
			calls++
			return nil
		})
		assert.Equal(t, 1, calls)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		retryDelay = time.Hour
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := connectWithRetry(ctx, zerolog.Nop(), "postgres", 3, func(context.Context) error { return errRefused })
		assert.ErrorIs(t, err, context.Canceled)
	})
}
