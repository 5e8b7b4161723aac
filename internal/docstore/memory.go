package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory keeps JSON bodies in maps guarded by one mutex. Bodies are copied on
// the way in and out so callers never share buffers with the store.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, collection, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.collections[collection][id]
	if !ok {
		return nil, notFound(collection, id)
	}
	return clone(body), nil
}

func (m *Memory) Create(_ context.Context, collection, id string, body []byte) error {
	if err := validJSON(body); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collection(collection)
	if _, exists := c[id]; exists {
		return conflict(collection, id)
	}
	c[id] = clone(body)
	return nil
}

func (m *Memory) Put(_ context.Context, collection, id string, body []byte) error {
	if err := validJSON(body); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collection(collection)[id] = clone(body)
	return nil
}

func (m *Memory) Update(_ context.Context, collection, id string, fn func([]byte) ([]byte, error)) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collection(collection)
	current, ok := c[id]
	if !ok {
		return nil, notFound(collection, id)
	}
	next, err := fn(clone(current))
	if err != nil {
		return nil, err
	}
	if err := validJSON(next); err != nil {
		return nil, err
	}
	c[id] = clone(next)
	return clone(next), nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collections[collection]
	if _, ok := c[id]; !ok {
		return notFound(collection, id)
	}
	delete(c, id)
	return nil
}

func (m *Memory) Find(_ context.Context, collection string, q Query) ([][]byte, error) {
	m.mu.RLock()
	docs := make([]decodedDoc, 0, len(m.collections[collection]))
	for id, body := range m.collections[collection] {
		docs = append(docs, decodedDoc{id: id, body: clone(body)})
	}
	m.mu.RUnlock()

	for i := range docs {
		if err := json.Unmarshal(docs[i].body, &docs[i].fields); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, docs[i].id, err)
		}
	}
	return applyQuery(docs, q)
}

func (m *Memory) collection(name string) map[string][]byte {
	c, ok := m.collections[name]
	if !ok {
		c = make(map[string][]byte)
		m.collections[name] = c
	}
	return c
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

func validJSON(body []byte) error {
	if !json.Valid(body) {
		return fmt.Errorf("document body is not valid JSON")
	}
	return nil
}
