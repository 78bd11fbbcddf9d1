package port

import (
	"context"
	"errors"

	"github.com/quangtdn/storeledger/internal/core/domain"
)

// ErrConcurrentModification is returned by WriteRecord when the expected
// quantity is stale, i.e. another writer committed first.
var ErrConcurrentModification = errors.New("concurrent modification")

// RecordStore is the durable home of inventory records and the append-only
// movement log. Implementations must make WriteRecord atomic: the
// compare-quantity-then-set and the movement append either both happen or
// neither does.
type RecordStore interface {
	// ReadRecord returns the record for the key, or nil when the pair has
	// never been touched.
	ReadRecord(ctx context.Context, storeID, productID string) (*domain.InventoryRecord, error)

	// WriteRecord conditionally sets the quantity for the key and appends
	// the movement entry in the same atomic step. It fails with
	// ErrConcurrentModification when the stored quantity no longer equals
	// expectedQuantity. An expectedQuantity of zero matches both an absent
	// record and a record holding zero.
	WriteRecord(ctx context.Context, storeID, productID string, expectedQuantity, newQuantity int, entry domain.MovementEntry) (*domain.InventoryRecord, error)

	// ListRecords returns every record ever touched.
	ListRecords(ctx context.Context) ([]domain.InventoryRecord, error)

	// ListRecordsByStore returns the records belonging to one store.
	ListRecordsByStore(ctx context.Context, storeID string) ([]domain.InventoryRecord, error)

	// ListMovements returns the newest movement entries for a key, capped
	// at limit.
	ListMovements(ctx context.Context, storeID, productID string, limit int) ([]domain.MovementEntry, error)
}
