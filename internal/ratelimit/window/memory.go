// Package window implements sliding-window hit counters for the rate limiter.
package window

import (
	"context"
	"sync"
	"time"

	"rcaflow/internal/ratelimit"
)

// Memory keeps hit timestamps per key in process memory. Counters are not
// shared between instances.
type Memory struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	clock   func() time.Time
}

type MemoryOption func(*Memory)

func WithClock(clock func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.clock = clock
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{windows: make(map[string][]time.Time), clock: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Allow(_ context.Context, key string, limit int, window time.Duration) (*ratelimit.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	hits := prune(m.windows[key], now.Add(-window))
	res := &ratelimit.Result{Limit: limit}
	if len(hits) < limit {
		hits = append(hits, now)
		res.Allowed = true
	}
	res.Remaining = max(limit-len(hits), 0)
	res.ResetAt = now.Add(window)
	if len(hits) > 0 {
		res.ResetAt = hits[0].Add(window)
	}
	if len(hits) == 0 {
		delete(m.windows, key)
	} else {
		m.windows[key] = hits
	}
	return res, nil
}

// Sweep drops keys whose hits have all expired.
func (m *Memory) Sweep(window time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.clock().Add(-window)
	for key, hits := range m.windows {
		if hits = prune(hits, cutoff); len(hits) == 0 {
			delete(m.windows, key)
		} else {
			m.windows[key] = hits
		}
	}
}

// prune drops timestamps at or before cutoff. hits is sorted.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
