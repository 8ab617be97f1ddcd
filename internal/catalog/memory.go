package catalog

import (
	"context"
	"sync"
)

// Memory is an in-process catalog backend. Delivery order is insertion
// order, like a document store listing a collection by creation.
type Memory struct {
	mu    sync.Mutex
	ids   IDGenerator
	order []string
	items map[string]Product
	feed  *Feed
}

// NewMemory creates an empty in-memory catalog.
func NewMemory(ids IDGenerator) *Memory {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	m := &Memory{
		ids:   ids,
		items: make(map[string]Product),
	}
	m.feed = NewFeed(m.List)
	return m
}

// List returns the collection in insertion order.
func (m *Memory) List(ctx context.Context) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Product, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id])
	}
	return out, nil
}

func (m *Memory) Subscribe(ctx context.Context, onSnapshot SnapshotFunc, onError ErrorFunc) (Subscription, error) {
	return m.feed.Subscribe(ctx, onSnapshot, onError)
}

func (m *Memory) Create(ctx context.Context, f Fields) (string, error) {
	id := m.ids.Generate()

	m.mu.Lock()
	m.items[id] = f.WithID(id)
	m.order = append(m.order, id)
	m.mu.Unlock()

	m.feed.Notify(ctx)
	return id, nil
}

func (m *Memory) Update(ctx context.Context, id string, patch Patch) error {
	m.mu.Lock()
	p, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	m.items[id] = patch.Apply(p)
	m.mu.Unlock()

	m.feed.Notify(ctx)
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.items[id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.items, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.feed.Notify(ctx)
	return nil
}

// Upsert stores p under its own id, appending it if new.
func (m *Memory) Upsert(ctx context.Context, p Product) error {
	m.mu.Lock()
	if _, ok := m.items[p.ID]; !ok {
		m.order = append(m.order, p.ID)
	}
	m.items[p.ID] = p
	m.mu.Unlock()

	m.feed.Notify(ctx)
	return nil
}

// Subscribers returns the number of open subscriptions.
func (m *Memory) Subscribers() int {
	return m.feed.Len()
}
