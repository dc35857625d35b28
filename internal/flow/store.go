package flow

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when a flow id is unknown to the store.
var ErrNotFound = errors.New("flow not found")

// Store persists flows. Implementations must be safe for concurrent use.
type Store interface {
	Save(ctx context.Context, f *Flow) error
	Get(ctx context.Context, id string) (*Flow, error)
	List(ctx context.Context) ([]*Flow, error)
}

// MemoryStore keeps flows in process memory. The default for tests and
// single-node deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	flows map[string]*Flow
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flows: make(map[string]*Flow)}
}

// Save stores a deep copy so later mutation of the argument cannot leak in.
func (s *MemoryStore) Save(_ context.Context, f *Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[f.ID] = f.Clone()
	return nil
}

// Get returns a deep copy of the stored flow.
func (s *MemoryStore) Get(_ context.Context, id string) (*Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return f.Clone(), nil
}

// List returns copies of every stored flow, in no particular order.
func (s *MemoryStore) List(_ context.Context) ([]*Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Flow, 0, len(s.flows))
	for _, f := range s.flows {
		out = append(out, f.Clone())
	}
	return out, nil
}
