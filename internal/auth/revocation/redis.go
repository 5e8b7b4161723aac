package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	redisclient "rcaflow/internal/platform/redis"
)

// RedisList shares revocations across API instances. The key's TTL is the
// remaining token lifetime, so Redis does the cleanup.
type RedisList struct {
	client *redisclient.Client
}

func NewRedisList(client *redisclient.Client) *RedisList {
	return &RedisList{client: client}
}

func (l *RedisList) key(jti string) string {
	return l.client.Key("trl", "jti", jti)
}

func (l *RedisList) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	if err := l.client.Set(ctx, l.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (l *RedisList) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	err := l.client.Get(ctx, l.key(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return true, nil
}
