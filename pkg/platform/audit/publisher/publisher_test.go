package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "rcaflow/pkg/domain"
	audit "rcaflow/pkg/platform/audit"
	"rcaflow/pkg/platform/audit/store/memory"
	"rcaflow/pkg/requestcontext"
)

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	companyID := id.NewCompanyID()
	err := pub.Emit(context.Background(), audit.Event{
		CompanyID: companyID,
		Action:    string(audit.EventEventReported),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), companyID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventEventReported), events[0].Action)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	companyID := id.NewCompanyID()
	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			CompanyID: companyID,
			Action:    string(audit.EventAnalysisStepSaved),
		}))
	}

	pub.Close()

	events, err := store.ListByCompany(context.Background(), companyID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_EmitAfterCloseWritesThrough(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	pub.Close()

	companyID := id.NewCompanyID()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{CompanyID: companyID, Action: "logout"}))

	events, err := store.ListByCompany(context.Background(), companyID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPublisher_BufferFullDoesNotPanic(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventLoginSucceeded)})
			if err != nil {
				assert.ErrorIs(t, err, ErrBufferFull)
			}
		}()
	}
	wg.Wait()
}

func TestPublisher_EnrichesFromContext(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	principal := requestcontext.Principal{UserID: id.NewUserID(), CompanyID: id.NewCompanyID()}
	fixed := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithPrincipal(context.Background(), principal)
	ctx = requestcontext.WithRequestID(ctx, "req-42")
	ctx = requestcontext.WithTime(ctx, fixed)
	ctx = requestcontext.WithClientMetadata(ctx, "10.1.2.3", "curl/8", "curl on Linux")

	require.NoError(t, pub.Emit(ctx, audit.Event{Action: string(audit.EventAnalysisFinalized)}))

	events, err := pub.List(context.Background(), principal.CompanyID, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, principal.UserID, e.ActorID)
	assert.Equal(t, "req-42", e.RequestID)
	assert.Equal(t, "10.1.2.3", e.IP)
	assert.Equal(t, fixed, e.Timestamp)
	assert.Equal(t, audit.CategoryCompliance, e.Category)
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	companyID := id.NewCompanyID()
	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		CompanyID: companyID,
		Action:    string(audit.EventUserCreated),
		Timestamp: custom,
	}))

	events, err := pub.List(context.Background(), companyID, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, custom, events[0].Timestamp)
}

func TestPublisher_SinkFailureDoesNotFailEmit(t *testing.T) {
	store := memory.NewInMemoryStore()
	sink := &recordingSink{err: errors.New("broker unavailable")}
	pub := NewPublisher(store, WithSink(sink))
	defer pub.Close()

	companyID := id.NewCompanyID()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{CompanyID: companyID, Action: "site_created"}))
	assert.Equal(t, 1, sink.count())

	events, err := pub.List(context.Background(), companyID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPublisher_HistoryBySubject(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	companyID := id.NewCompanyID()
	analysis := audit.Subject("analysis", id.NewAnalysisID())
	other := audit.Subject("analysis", id.NewAnalysisID())

	for _, e := range []audit.Event{
		{CompanyID: companyID, Subject: analysis, Action: string(audit.EventAnalysisCreated)},
		{CompanyID: companyID, Subject: other, Action: string(audit.EventAnalysisCreated)},
		{CompanyID: companyID, Subject: analysis, Action: string(audit.EventAnalysisAdvanced)},
	} {
		require.NoError(t, pub.Emit(context.Background(), e))
	}

	history, err := pub.History(context.Background(), companyID, analysis)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, string(audit.EventAnalysisCreated), history[0].Action)
	assert.Equal(t, string(audit.EventAnalysisAdvanced), history[1].Action)
}
