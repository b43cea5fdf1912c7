package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/service"
)

var errDown = errors.New("database unavailable")

type fakeSink struct {
	bulkErr  error
	failFor  map[int64]bool
	bulk     [][]model.ActivityLogEntry
	inserted []model.ActivityLogEntry
}

func (s *fakeSink) BulkInsert(_ context.Context, entries []model.ActivityLogEntry) (int64, error) {
	if s.bulkErr != nil {
		return 0, s.bulkErr
	}
	s.bulk = append(s.bulk, append([]model.ActivityLogEntry(nil), entries...))
	return int64(len(entries)), nil
}

func (s *fakeSink) Insert(_ context.Context, e *model.ActivityLogEntry) error {
	if s.failFor[e.AttemptID] {
		return errDown
	}
	s.inserted = append(s.inserted, *e)
	return nil
}

func newTestWorker(sink *fakeSink) (*ActivityWorker, *[]model.ActivityLogEntry) {
	var requeued []model.ActivityLogEntry
	w := NewActivityWorker(sink, nil, zerolog.Nop())
	w.requeuePause = 0
	w.requeue = func(_ context.Context, items []model.ActivityLogEntry) error {
		requeued = append(requeued, items...)
		return nil
	}
	return w, &requeued
}

func batchOf(ids ...int64) []model.ActivityLogEntry {
	out := make([]model.ActivityLogEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.ActivityLogEntry{AttemptID: id, ParticipantID: 1, Type: model.ActivityTabBlur, Count: 1})
	}
	return out
}

func TestFlushUsesBulkPath(t *testing.T) {
	sink := &fakeSink{}
	w, requeued := newTestWorker(sink)

	w.flushSafe(context.Background(), batchOf(1, 2, 3))

	require.Len(t, sink.bulk, 1)
	assert.Len(t, sink.bulk[0], 3)
	assert.Empty(t, sink.inserted)
	assert.Empty(t, *requeued)
}

func TestFlushFallsBackAndRequeues(t *testing.T) {
	sink := &fakeSink{bulkErr: errDown, failFor: map[int64]bool{2: true}}
	w, requeued := newTestWorker(sink)

	w.flushSafe(context.Background(), batchOf(1, 2, 3))

	assert.Len(t, sink.inserted, 2)
	require.Len(t, *requeued, 1)
	assert.Equal(t, int64(2), (*requeued)[0].AttemptID)
}

func TestDecode(t *testing.T) {
	w, _ := newTestWorker(&fakeSink{})

	tests := []struct {
		name   string
		raw    string
		wantOK bool
		count  int
	}{
		{"complete", `{"attempt_id":5,"participant_id":1,"activity_type":"COPY_ATTEMPT","count":2,"created_at":"2025-04-21T03:00:00Z"}`, true, 2},
		{"count defaults", `{"attempt_id":5,"participant_id":1,"activity_type":"TAB_BLUR"}`, true, 1},
		{"no attempt", `{"participant_id":1,"activity_type":"TAB_BLUR"}`, false, 0},
		{"malformed", `{"attempt_id":`, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := w.decode(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.count, e.Count)
				assert.False(t, e.CreatedAt.IsZero())
			}
		})
	}
}

type fakeCloser struct {
	grace time.Duration
	calls int
	res   service.SweepResult
	err   error
}

func (f *fakeCloser) SweepExpired(_ context.Context, grace time.Duration) (service.SweepResult, error) {
	f.calls++
	f.grace = grace
	return f.res, f.err
}

func TestExpirySweeper(t *testing.T) {
	closer := &fakeCloser{res: service.SweepResult{Checked: 4, Expired: 2, Submitted: 1, Failed: 1}}
	s := NewExpirySweeper(closer, "@every 1m", 2*time.Minute, zerolog.Nop())

	res := s.RunOnce(context.Background())
	assert.Equal(t, closer.res, res)
	assert.Equal(t, 2*time.Minute, closer.grace)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, service.SweepResult{}, s.RunOnce(cancelled))
	assert.Equal(t, 1, closer.calls)
}

func TestExpirySweeperSchedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disabled := NewExpirySweeper(&fakeCloser{}, "", time.Minute, zerolog.Nop())
	assert.NoError(t, disabled.Start(ctx))

	broken := NewExpirySweeper(&fakeCloser{}, "not a schedule", time.Minute, zerolog.Nop())
	assert.Error(t, broken.Start(ctx))
}
