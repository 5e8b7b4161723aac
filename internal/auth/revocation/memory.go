package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryList keeps revocations in process, for tests and single instance
// development setups. Expired entries are pruned on write.
type MemoryList struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	clock   func() time.Time
}

type MemoryOption func(*MemoryList)

func WithClock(clock func() time.Time) MemoryOption {
	return func(l *MemoryList) {
		if clock != nil {
			l.clock = clock
		}
	}
}

func NewMemoryList(opts ...MemoryOption) *MemoryList {
	l := &MemoryList{revoked: make(map[string]time.Time), clock: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryList) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	for k, exp := range l.revoked {
		if !now.Before(exp) {
			delete(l.revoked, k)
		}
	}
	l.revoked[jti] = now.Add(ttl)
	return nil
}

func (l *MemoryList) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.revoked[jti]
	return ok && l.clock().Before(exp), nil
}
