package signal

import (
	"context"
	"fmt"
	"sync"

	"github.com/newthinker/perftrack/internal/core"
)

// MemoryStore is an in-memory signal store.
type MemoryStore struct {
	mu      sync.RWMutex
	signals map[string]core.Signal
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{signals: make(map[string]core.Signal)}
}

var _ Store = (*MemoryStore)(nil)

// List returns signals matching the filter.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]core.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]core.Signal, 0, len(m.signals))
	for _, sig := range m.signals {
		if filter.Matches(sig) {
			result = append(result, sig)
		}
	}
	sortSignals(result)
	return paginate(result, filter.Offset, filter.Limit), nil
}

// Count returns the count of matching signals.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, sig := range m.signals {
		if filter.Matches(sig) {
			count++
		}
	}
	return count, nil
}

// GetByID retrieves a signal by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*core.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sig, ok := m.signals[id]
	if !ok {
		return nil, core.WrapError(core.ErrSignalNotFound, fmt.Errorf("id %s", id))
	}
	return &sig, nil
}

// Insert adds a signal to the store.
func (m *MemoryStore) Insert(ctx context.Context, sig core.Signal) error {
	if sig.ID == "" {
		return core.WrapError(core.ErrMalformedSignal, fmt.Errorf("missing id"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.signals[sig.ID]; ok {
		return core.WrapError(core.ErrDuplicateSignal, fmt.Errorf("id %s", sig.ID))
	}
	m.signals[sig.ID] = sig
	return nil
}

// Update replaces a stored signal.
func (m *MemoryStore) Update(ctx context.Context, sig core.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.signals[sig.ID]; !ok {
		return core.WrapError(core.ErrSignalNotFound, fmt.Errorf("id %s", sig.ID))
	}
	m.signals[sig.ID] = sig
	return nil
}

// all returns every stored signal in store order.
func (m *MemoryStore) all() []core.Signal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]core.Signal, 0, len(m.signals))
	for _, sig := range m.signals {
		result = append(result, sig)
	}
	sortSignals(result)
	return result
}
