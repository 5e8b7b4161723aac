package window

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySlidingWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m := NewMemory(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := range 3 {
		res, err := m.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
		now = now.Add(10 * time.Second)
	}

	res, err := m.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 1, 0, 0, time.UTC), res.ResetAt)
	assert.Equal(t, 30, res.RetryAfter(now))

	res, err = m.Allow(ctx, "other", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "keys are independent")

	now = time.Date(2025, 3, 10, 9, 1, 0, 0, time.UTC)
	res, err = m.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "the first hit left the window")
	assert.Equal(t, 0, res.Remaining)
}

func TestMemoryZeroLimit(t *testing.T) {
	m := NewMemory()
	res, err := m.Allow(context.Background(), "k", 0, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestMemorySweep(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m := NewMemory(WithClock(func() time.Time { return now }))
	_, err := m.Allow(context.Background(), "old", 5, time.Minute)
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	_, err = m.Allow(context.Background(), "fresh", 5, time.Minute)
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	m.Sweep(time.Minute)
	assert.NotContains(t, m.windows, "old")
	assert.Contains(t, m.windows, "fresh")
}
