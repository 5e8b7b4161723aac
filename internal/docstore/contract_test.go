package docstore_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"rcaflow/internal/docstore"
	"rcaflow/pkg/platform/sentinel"
)

type widget struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"companyId"`
	Status    string    `json:"status"`
	Count     int       `json:"count"`
	Tags      []string  `json:"tags,omitempty"`
	Nested    *nested   `json:"nested,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type nested struct {
	Label string  `json:"label"`
	Ratio float64 `json:"ratio"`
}

// BackendSuite runs the same behavioural checks against every backend.
type BackendSuite struct {
	suite.Suite
	newBackend func() docstore.Backend
	widgets    *docstore.Collection[widget]
	collection string
}

func (s *BackendSuite) SetupTest() {
	s.collection = "widgets_" + uuid.NewString()[:8]
	s.widgets = docstore.NewCollection[widget](s.newBackend(), s.collection)
}

func (s *BackendSuite) put(w widget) {
	s.Require().NoError(s.widgets.Put(context.Background(), w.ID, &w))
}

func (s *BackendSuite) TestCreateGetRoundTrip() {
	ctx := context.Background()
	created := time.Date(2025, 5, 1, 8, 30, 0, 0, time.UTC)
	w := widget{ID: "w1", CompanyID: "c1", Status: "open", Count: 3, Tags: []string{"a"},
		Nested: &nested{Label: "x", Ratio: 0.25}, CreatedAt: created}

	s.Require().NoError(s.widgets.Create(ctx, w.ID, &w))
	got, err := s.widgets.Get(ctx, "w1")
	s.Require().NoError(err)
	s.Equal(w.Count, got.Count)
	s.Equal(w.Tags, got.Tags)
	s.Equal(0.25, got.Nested.Ratio)
	s.True(created.Equal(got.CreatedAt))
}

func (s *BackendSuite) TestCreateConflictsOnExistingID() {
	ctx := context.Background()
	w := widget{ID: "dup"}
	s.Require().NoError(s.widgets.Create(ctx, w.ID, &w))
	err := s.widgets.Create(ctx, w.ID, &w)
	s.True(errors.Is(err, sentinel.ErrConflict), "got %v", err)
}

func (s *BackendSuite) TestGetMissing() {
	_, err := s.widgets.Get(context.Background(), "missing")
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *BackendSuite) TestPutOverwrites() {
	s.put(widget{ID: "w", Status: "open", Tags: []string{"a", "b"}})
	s.put(widget{ID: "w", Status: "closed"})

	got, err := s.widgets.Get(context.Background(), "w")
	s.Require().NoError(err)
	s.Equal("closed", got.Status)
	s.Empty(got.Tags, "put replaces the whole document")
}

func (s *BackendSuite) TestUpdateAppliesMutation() {
	s.put(widget{ID: "w", Count: 1})

	got, err := s.widgets.Update(context.Background(), "w", func(w *widget) error {
		w.Count++
		return nil
	})
	s.Require().NoError(err)
	s.Equal(2, got.Count)

	stored, err := s.widgets.Get(context.Background(), "w")
	s.Require().NoError(err)
	s.Equal(2, stored.Count)
}

func (s *BackendSuite) TestUpdateAbortsOnCallbackError() {
	s.put(widget{ID: "w", Count: 1})
	boom := errors.New("rejected")

	_, err := s.widgets.Update(context.Background(), "w", func(w *widget) error {
		w.Count = 99
		return boom
	})
	s.ErrorIs(err, boom)

	stored, err := s.widgets.Get(context.Background(), "w")
	s.Require().NoError(err)
	s.Equal(1, stored.Count)
}

func (s *BackendSuite) TestUpdateMissing() {
	_, err := s.widgets.Update(context.Background(), "nope", func(*widget) error { return nil })
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *BackendSuite) TestConcurrentUpdatesDoNotLoseIncrements() {
	s.put(widget{ID: "counter"})
	const writers = 10

	var wg sync.WaitGroup
	var failures sync.Map
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.widgets.Update(context.Background(), "counter", func(w *widget) error {
				w.Count++
				return nil
			})
			if err != nil {
				failures.Store(i, err)
			}
		}()
	}
	wg.Wait()

	failed := 0
	failures.Range(func(_, v any) bool {
		s.True(errors.Is(v.(error), sentinel.ErrRevisionMismatch), "unexpected error %v", v)
		failed++
		return true
	})
	got, err := s.widgets.Get(context.Background(), "counter")
	s.Require().NoError(err)
	s.Equal(writers-failed, got.Count)
}

func (s *BackendSuite) TestDelete() {
	ctx := context.Background()
	s.put(widget{ID: "w"})
	s.Require().NoError(s.widgets.Delete(ctx, "w"))
	s.True(errors.Is(s.widgets.Delete(ctx, "w"), sentinel.ErrNotFound))
}

func (s *BackendSuite) TestFindFiltersOrdersAndLimits() {
	ctx := context.Background()
	s.put(widget{ID: "a", CompanyID: "c1", Status: "open", Count: 3})
	s.put(widget{ID: "b", CompanyID: "c1", Status: "closed", Count: 1})
	s.put(widget{ID: "c", CompanyID: "c1", Status: "open", Count: 10})
	s.put(widget{ID: "d", CompanyID: "c2", Status: "open", Count: 5})

	s.Run("equality on several fields", func() {
		got, err := s.widgets.Find(ctx, docstore.Where("companyId", "c1").And("status", "open"))
		s.Require().NoError(err)
		s.ElementsMatch([]string{"a", "c"}, ids(got))
	})

	s.Run("numeric order descending", func() {
		got, err := s.widgets.Find(ctx, docstore.Where("companyId", "c1").Order("count", true))
		s.Require().NoError(err)
		s.Equal([]string{"c", "a", "b"}, ids(got))
	})

	s.Run("limit", func() {
		got, err := s.widgets.Find(ctx, docstore.Query{}.Order("count", false).Take(2))
		s.Require().NoError(err)
		s.Equal([]string{"b", "a"}, ids(got))
	})

	s.Run("numeric filter", func() {
		got, err := s.widgets.Find(ctx, docstore.Where("count", 5))
		s.Require().NoError(err)
		s.Equal([]string{"d"}, ids(got))
	})

	s.Run("first", func() {
		got, err := s.widgets.First(ctx, docstore.Where("companyId", "c2"))
		s.Require().NoError(err)
		s.Equal("d", got.ID)

		_, err = s.widgets.First(ctx, docstore.Where("companyId", "c9"))
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})
}

func ids(ws []*widget) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.ID
	}
	return out
}
