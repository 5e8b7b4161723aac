package window

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	redisclient "rcaflow/internal/platform/redis"
	"rcaflow/internal/ratelimit"
)

// Redis keeps one sorted set of hit timestamps per key so every API
// instance shares the same counters.
type Redis struct {
	client *redisclient.Client
	clock  func() time.Time
}

func NewRedis(client *redisclient.Client) *Redis {
	return &Redis{client: client, clock: time.Now}
}

// Allow records the hit optimistically and takes it back when the window
// was already full.
func (s *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (*ratelimit.Result, error) {
	now := s.clock()
	k := s.client.Key("rl", key)
	member := uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-window).UnixMicro(), 10)

	var card *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, k, "-inf", cutoff)
		pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMicro()), Member: member})
		card = pipe.ZCard(ctx, k)
		oldest = pipe.ZRangeWithScores(ctx, k, 0, 0)
		pipe.PExpire(ctx, k, window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}

	count := int(card.Val())
	res := &ratelimit.Result{Limit: limit, Allowed: count <= limit, ResetAt: now.Add(window)}
	if z := oldest.Val(); len(z) > 0 {
		res.ResetAt = time.UnixMicro(int64(z[0].Score)).Add(window)
	}
	if !res.Allowed {
		if err := s.client.ZRem(ctx, k, member).Err(); err != nil {
			return nil, fmt.Errorf("rate limit %s: %w", key, err)
		}
		count--
	}
	res.Remaining = max(limit-count, 0)
	return res, nil
}
