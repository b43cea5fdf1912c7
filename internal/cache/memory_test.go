package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(time.Minute, clock.Now)

	require.NoError(t, s.Set(ctx, "bank:1:payload", []byte("x")))

	b, ok, err := s.Get(ctx, "bank:1:payload")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("x"), b)

	clock.t = clock.t.Add(time.Minute)
	_, ok, err = s.Get(ctx, "bank:1:payload")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryStore(time.Hour, nil)
	b := NewMemoryStore(time.Hour, nil)

	require.NoError(t, a.Set(ctx, "k", []byte("1")))
	_, ok, _ := b.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, a.Delete(ctx, "k", "missing"))
	_, ok, _ = a.Get(ctx, "k")
	assert.False(t, ok)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour, nil)

	type payload struct {
		IDs []int64 `json:"ids"`
	}

	var got payload
	ok, err := GetJSON(ctx, s, "p", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetJSON(ctx, s, "p", payload{IDs: []int64{3, 1}}))
	ok, err = GetJSON(ctx, s, "p", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int64{3, 1}, got.IDs)

	require.NoError(t, s.Set(ctx, "broken", []byte("{")))
	ok, err = GetJSON(ctx, s, "broken", &got)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}
