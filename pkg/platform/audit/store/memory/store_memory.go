package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	id "rcaflow/pkg/domain"
	audit "rcaflow/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	seen   map[uuid.UUID]struct{}
	events map[id.CompanyID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		seen:   make(map[uuid.UUID]struct{}),
		events: make(map[id.CompanyID][]audit.Event),
	}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID != uuid.Nil {
		if _, dup := s.seen[event.ID]; dup {
			return nil
		}
		s.seen[event.ID] = struct{}{}
	}
	s.events[event.CompanyID] = append(s.events[event.CompanyID], event)
	return nil
}

// ListByCompany returns the newest events first.
func (s *InMemoryStore) ListByCompany(_ context.Context, companyID id.CompanyID, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.events[companyID])
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListBySubject returns events for one document in emission order.
func (s *InMemoryStore) ListBySubject(_ context.Context, companyID id.CompanyID, subject string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events[companyID] {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[uuid.UUID]struct{})
	s.events = make(map[id.CompanyID][]audit.Event)
}
