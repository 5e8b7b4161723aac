package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"rcaflow/internal/platform/config"
)

// Client is the shared go-redis client plus the configured key prefix.
type Client struct {
	*redis.Client
	prefix string
}

// New connects and pings. It returns nil, nil when no URL is configured so
// callers can fall back to in-memory implementations.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client, prefix: cfg.KeyPrefix}, nil
}

// Wrap adopts an existing client, used by integration tests.
func Wrap(client *redis.Client, prefix string) *Client {
	return &Client{Client: client, prefix: prefix}
}

// Key namespaces a key with the configured prefix.
func (c *Client) Key(parts ...string) string {
	key := c.prefix
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
