package port

import "context"

// QuantityCache is a hot read path for current quantities. It is strictly
// an optimization: the ledger works with a nil cache, and a cache miss or
// error falls back to the record store.
type QuantityCache interface {
	// GetQuantity returns the cached quantity and whether the key was
	// present.
	GetQuantity(ctx context.Context, storeID, productID string) (int, bool, error)

	// SetQuantityIfNewer stores the quantity unless the cache already holds
	// a value written for an equal or later record version.
	SetQuantityIfNewer(ctx context.Context, storeID, productID string, quantity int, version int64) error

	// Invalidate drops the cached value for the key.
	Invalidate(ctx context.Context, storeID, productID string) error
}
