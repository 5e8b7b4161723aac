// Package publisher enriches audit events with request metadata and fans them
// out to the store and any configured sinks, synchronously or through a
// bounded buffer.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	id "rcaflow/pkg/domain"
	audit "rcaflow/pkg/platform/audit"
	"rcaflow/pkg/requestcontext"
)

// ErrBufferFull is returned in async mode when the buffer has no room.
var ErrBufferFull = errors.New("audit buffer full")

// Sink receives every event after it is stored. Sink failures are logged only.
type Sink interface {
	Publish(ctx context.Context, event audit.Event) error
}

type Publisher struct {
	store  audit.Store
	sinks  []Sink
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	buffer chan audit.Event
	wg     sync.WaitGroup
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan audit.Event, n)
		}
	}
}

func WithSink(s Sink) Option {
	return func(p *Publisher) {
		if s != nil {
			p.sinks = append(p.sinks, s)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit fills in id, timestamp, category and request metadata, then records
// the event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = enrich(ctx, event)

	if p.buffer == nil {
		return p.write(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return p.write(ctx, event)
	}
	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"request_id", event.RequestID,
		)
		return ErrBufferFull
	}
}

// List returns the newest events of a company.
func (p *Publisher) List(ctx context.Context, companyID id.CompanyID, limit int) ([]audit.Event, error) {
	return p.store.ListByCompany(ctx, companyID, limit)
}

// History returns the events of one document in order.
func (p *Publisher) History(ctx context.Context, companyID id.CompanyID, subject string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, companyID, subject)
}

// Close stops accepting buffered events and waits for the buffer to drain.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed || p.buffer == nil {
		p.closed = true
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.buffer)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.write(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"request_id", event.RequestID,
				"error", err,
			)
		}
	}
}

func (p *Publisher) write(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	for _, s := range p.sinks {
		if err := s.Publish(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "audit sink publish failed",
				"action", event.Action,
				"request_id", event.RequestID,
				"error", err,
			)
		}
	}
	return nil
}

func enrich(ctx context.Context, event audit.Event) audit.Event {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.IP == "" {
		event.IP = requestcontext.ClientIP(ctx)
	}
	if p, ok := requestcontext.PrincipalFrom(ctx); ok {
		if event.ActorID.IsNil() {
			event.ActorID = p.UserID
		}
		if event.CompanyID.IsNil() {
			event.CompanyID = p.CompanyID
		}
	}
	return event
}
