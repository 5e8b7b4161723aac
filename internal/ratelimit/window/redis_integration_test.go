//go:build integration

package window

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "rcaflow/internal/platform/redis"
	"rcaflow/pkg/testutil/containers"
)

func TestRedisSlidingWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	now := time.Now()
	s := NewRedis(redisclient.Wrap(rc.Client, "rcaflow-test:"))
	s.clock = func() time.Time { return now }
	ctx := context.Background()
	key := "login:ip:" + t.Name()

	for range 2 {
		res, err := s.Allow(ctx, key, 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		now = now.Add(time.Second)
	}
	res, err := s.Allow(ctx, key, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	n, err := rc.Client.ZCard(ctx, "rcaflow-test:rl:"+key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "rejected hits are not recorded")

	now = now.Add(time.Minute)
	res, err = s.Allow(ctx, key, 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
