//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer backs the revocation list and rate limit tests.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	abort := func(step string, err error) {
		_ = container.Terminate(ctx)
		t.Fatalf("redis %s: %v", step, err)
	}

	url, err := container.ConnectionString(ctx)
	if err != nil {
		abort("connection string", err)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		abort("parse url", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		abort("ping", err)
	}
	return &RedisContainer{Container: container, URL: url, Client: client}
}
