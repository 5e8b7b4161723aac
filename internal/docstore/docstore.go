// Package docstore persists JSON documents grouped in named collections.
//
// A Collection[T] is a typed view over a Backend. Writes are whole-document:
// Put overwrites (last write wins) and Update runs a read-modify-write that
// the backend makes atomic for a single document. There are no cross-document
// transactions.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Collection names.
const (
	Analyses  = "rcaAnalyses"
	Events    = "reportedEvents"
	Companies = "companies"
	Sites     = "sites"
	Users     = "users"
)

// Backend stores raw JSON bodies. Implementations return sentinel.ErrNotFound
// for missing ids and sentinel.ErrConflict when Create hits an existing id.
type Backend interface {
	Get(ctx context.Context, collection, id string) ([]byte, error)
	Create(ctx context.Context, collection, id string, body []byte) error
	Put(ctx context.Context, collection, id string, body []byte) error
	// Update passes the current body to fn and stores what it returns. An
	// error from fn aborts without writing and is returned unchanged.
	Update(ctx context.Context, collection, id string, fn func(current []byte) ([]byte, error)) ([]byte, error)
	Delete(ctx context.Context, collection, id string) error
	Find(ctx context.Context, collection string, q Query) ([][]byte, error)
}

// Filter is an equality match on a top-level JSON field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents matching every filter.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	// Limit of zero means no limit.
	Limit int
}

// Where starts a query with a single filter.
func Where(field string, value any) Query {
	return Query{Filters: []Filter{{Field: field, Value: value}}}
}

// And adds a filter.
func (q Query) And(field string, value any) Query {
	q.Filters = append(q.Filters[:len(q.Filters):len(q.Filters)], Filter{Field: field, Value: value})
	return q
}

func (q Query) Order(field string, descending bool) Query {
	q.OrderBy = field
	q.Descending = descending
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// Collection is a typed view of one collection.
type Collection[T any] struct {
	backend Backend
	name    string
}

func NewCollection[T any](backend Backend, name string) *Collection[T] {
	return &Collection[T]{backend: backend, name: name}
}

func (c *Collection[T]) Name() string { return c.name }

func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	body, err := c.backend.Get(ctx, c.name, id)
	if err != nil {
		return nil, err
	}
	return c.decode(body)
}

func (c *Collection[T]) Create(ctx context.Context, id string, doc *T) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}
	return c.backend.Create(ctx, c.name, id, body)
}

func (c *Collection[T]) Put(ctx context.Context, id string, doc *T) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}
	return c.backend.Put(ctx, c.name, id, body)
}

// Update loads the document, lets fn mutate it and stores the result
// atomically. fn may be called more than once by backends that retry on
// write races, so it must not have side effects outside the document.
func (c *Collection[T]) Update(ctx context.Context, id string, fn func(doc *T) error) (*T, error) {
	var out *T
	_, err := c.backend.Update(ctx, c.name, id, func(current []byte) ([]byte, error) {
		doc, err := c.decode(current)
		if err != nil {
			return nil, err
		}
		if err := fn(doc); err != nil {
			return nil, err
		}
		body, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode %s/%s: %w", c.name, id, err)
		}
		out = doc
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.backend.Delete(ctx, c.name, id)
}

func (c *Collection[T]) Find(ctx context.Context, q Query) ([]*T, error) {
	bodies, err := c.backend.Find(ctx, c.name, q)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(bodies))
	for _, b := range bodies {
		doc, err := c.decode(b)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// First returns the first match or sentinel.ErrNotFound.
func (c *Collection[T]) First(ctx context.Context, q Query) (*T, error) {
	docs, err := c.Find(ctx, q.Take(1))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, notFound(c.name, "query")
	}
	return docs[0], nil
}

func (c *Collection[T]) decode(body []byte) (*T, error) {
	var doc T
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode %s document: %w", c.name, err)
	}
	return &doc, nil
}
