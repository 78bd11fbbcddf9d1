package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/quangtdn/storeledger/internal/core/domain"
	"github.com/quangtdn/storeledger/internal/port"
)

// MemoryRegistry backs both the product and store registries with static
// maps. The core treats registries as external read-only lookups; this
// implementation covers wiring, tests and dev mode.
type MemoryRegistry struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	stores   map[string]domain.Store
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		products: make(map[string]domain.Product),
		stores:   make(map[string]domain.Store),
	}
}

func (r *MemoryRegistry) AddProduct(p domain.Product) {
	r.mu.Lock()
	r.products[p.ID] = p
	r.mu.Unlock()
}

func (r *MemoryRegistry) AddStore(s domain.Store) {
	r.mu.Lock()
	r.stores[s.ID] = s
	r.mu.Unlock()
}

// SetStoreStatus flips a store's lifecycle state, e.g. to decommission a
// transfer destination.
func (r *MemoryRegistry) SetStoreStatus(id string, status domain.StoreStatus) {
	r.mu.Lock()
	if s, ok := r.stores[id]; ok {
		s.Status = status
		r.stores[id] = s
	}
	r.mu.Unlock()
}

func (r *MemoryRegistry) Product(ctx context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, port.ErrNotFound)
	}
	return &p, nil
}

func (r *MemoryRegistry) Store(ctx context.Context, id string) (*domain.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[id]
	if !ok {
		return nil, fmt.Errorf("store %s: %w", id, port.ErrNotFound)
	}
	return &s, nil
}
