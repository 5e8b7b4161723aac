// Package ratelimit throttles clients with sliding-window counters kept in
// process memory or in Redis.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"rcaflow/internal/ratelimit/metrics"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/httputil"
	"rcaflow/pkg/requestcontext"
)

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the window frees a slot.
func (r *Result) RetryAfter(now time.Time) int {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return 1
	}
	return int((d + time.Second - 1) / time.Second)
}

// Store records one hit for key and reports whether it fits within limit
// hits per window. Rejected hits are not recorded.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Policy names a limit and how requests are grouped under it.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
	Key    func(r *http.Request) string
}

// ByClientIP groups requests by the address recorded by the metadata
// middleware.
func ByClientIP(r *http.Request) string {
	return "ip:" + requestcontext.ClientIP(r.Context())
}

// ByUser groups authenticated requests by user and falls back to the client
// IP.
func ByUser(r *http.Request) string {
	if userID := requestcontext.UserID(r.Context()); !userID.IsNil() {
		return "user:" + userID.String()
	}
	return ByClientIP(r)
}

type Limiter struct {
	store    Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// WithDisabled turns every policy into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(l *Limiter) {
		l.disabled = disabled
	}
}

func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var errLimited = dErrors.New(dErrors.CodeRateLimited, "too many requests, try again later")

// Middleware enforces p. Store failures let the request through.
func (l *Limiter) Middleware(p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l.disabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := p.Name + ":" + p.Key(r)
			res, err := l.store.Allow(ctx, key, p.Limit, p.Window)
			if err != nil {
				l.logger.ErrorContext(ctx, "rate limit check failed",
					"policy", p.Name,
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			if !res.Allowed {
				l.logger.WarnContext(ctx, "rate limit exceeded",
					"policy", p.Name,
					"client_ip", requestcontext.ClientIP(ctx),
					"request_id", requestcontext.RequestID(ctx),
				)
				if l.metrics != nil {
					l.metrics.IncrementRejected(p.Name)
				}
				h.Set("Retry-After", strconv.Itoa(res.RetryAfter(time.Now())))
				httputil.WriteError(w, errLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
