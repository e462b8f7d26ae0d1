package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/astromechza/record-editor/pkg/records"
)

// MemoryStore keeps deep copies of every saved collection. It is used by tests and by the server's -db=:memory:
// mode.
type MemoryStore struct {
	mu      sync.Mutex
	data    map[string]records.Collection
	history map[string][]Revision

	// FailSave, when set, is returned (wrapped in an IOError) by the next saves instead of storing anything.
	FailSave error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]records.Collection), history: make(map[string][]Revision)}
}

// Seed stores a collection without recording a revision.
func (m *MemoryStore) Seed(selector string, c records.Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[selector] = c.Clone()
}

func (m *MemoryStore) Load(_ context.Context, selector string) (records.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data[selector]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, selector string, c records.Collection) (records.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, &IOError{Op: "save", Selector: selector, Err: err}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to save: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return nil, &IOError{Op: "save", Selector: selector, Err: m.FailSave}
	}
	m.data[selector] = c.Clone()
	m.history[selector] = append(m.history[selector], Revision{
		Seq:       uint64(len(m.history[selector]) + 1),
		Message:   fmt.Sprintf("save %d records", len(c)),
		Timestamp: time.Now().UTC(),
		Records:   len(c),
	})
	return c.Clone(), nil
}

func (m *MemoryStore) History(_ context.Context, selector string) ([]Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[selector]; !ok {
		return nil, ErrNotFound
	}
	out := make([]Revision, len(m.history[selector]))
	copy(out, m.history[selector])
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
