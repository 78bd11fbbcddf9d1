package domain

import "time"

// InventoryRecord is the materialized quantity for one (store, product)
// pair. The movement log is the source of truth; the record caches the sum
// of its deltas. Absence of a record means quantity zero.
type InventoryRecord struct {
	StoreID      string
	ProductID    string
	Quantity     int
	Version      int64 // optimistic locking
	LastModified time.Time
}

// Key returns the composite (store, product) identity of the record.
func (r InventoryRecord) Key() Key {
	return Key{StoreID: r.StoreID, ProductID: r.ProductID}
}

// Key identifies one inventory slot. All ledger mutations on the same key
// are serialized; distinct keys proceed independently.
type Key struct {
	StoreID   string
	ProductID string
}
