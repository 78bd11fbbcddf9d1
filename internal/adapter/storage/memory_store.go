package storage

import (
	"context"
	"sync"
	"time"

	"github.com/quangtdn/storeledger/internal/core/domain"
	"github.com/quangtdn/storeledger/internal/port"
)

// MemoryStore is a process-local RecordStore for development, tests and
// the stress tool. It enforces the same compare-quantity-then-set contract
// as the durable adapters.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[domain.Key]domain.InventoryRecord
	movements []domain.MovementEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[domain.Key]domain.InventoryRecord)}
}

func (m *MemoryStore) ReadRecord(ctx context.Context, storeID, productID string) (*domain.InventoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[domain.Key{StoreID: storeID, ProductID: productID}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) WriteRecord(ctx context.Context, storeID, productID string, expectedQuantity, newQuantity int, entry domain.MovementEntry) (*domain.InventoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := domain.Key{StoreID: storeID, ProductID: productID}
	current, ok := m.records[key]
	if ok && current.Quantity != expectedQuantity {
		return nil, port.ErrConcurrentModification
	}
	if !ok && expectedQuantity != 0 {
		return nil, port.ErrConcurrentModification
	}

	updated := domain.InventoryRecord{
		StoreID:      storeID,
		ProductID:    productID,
		Quantity:     newQuantity,
		Version:      current.Version + 1,
		LastModified: time.Now().UTC(),
	}
	m.records[key] = updated
	m.movements = append(m.movements, entry)
	return &updated, nil
}

func (m *MemoryStore) ListRecords(ctx context.Context) ([]domain.InventoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.InventoryRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out, nil
}

func (m *MemoryStore) ListRecordsByStore(ctx context.Context, storeID string) ([]domain.InventoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.InventoryRecord
	for key, rec := range m.records {
		if key.StoreID == storeID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListMovements(ctx context.Context, storeID, productID string, limit int) ([]domain.MovementEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.MovementEntry
	for i := len(m.movements) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.movements[i]
		if e.StoreID == storeID && e.ProductID == productID {
			out = append(out, e)
		}
	}
	return out, nil
}

// MovementCount reports the total size of the log, across all keys.
func (m *MemoryStore) MovementCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.movements)
}
