package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/quangtdn/storeledger/internal/core/domain"
	"github.com/quangtdn/storeledger/internal/event"
	"github.com/quangtdn/storeledger/internal/logging"
	"github.com/quangtdn/storeledger/internal/metrics"
	"github.com/quangtdn/storeledger/internal/port"
)

// DefaultLowStockThreshold applies when the ledger is built with a
// non-positive threshold.
const DefaultLowStockThreshold = 10

// defaultWriteRetries bounds internal retries on ConcurrentModification.
const defaultWriteRetries = 3

// Ledger owns all mutations of inventory records and the movement log.
// Mutations for the same (store, product) key are serialized by a per-key
// lock; the conditional write underneath catches writers from other
// processes. Every committed mutation publishes exactly one classified
// event to the bus before returning.
type Ledger struct {
	store     port.RecordStore
	cache     port.QuantityCache  // optional
	audit     port.AuditPublisher // optional
	bus       *event.Bus
	breaker   *gobreaker.CircuitBreaker[*domain.InventoryRecord]
	locks     *keyLocks
	threshold int
	retries   int
}

// LedgerOption configures optional ledger collaborators.
type LedgerOption func(*Ledger)

// WithQuantityCache attaches a hot read cache, refreshed after each commit.
func WithQuantityCache(cache port.QuantityCache) LedgerOption {
	return func(l *Ledger) { l.cache = cache }
}

// WithAuditPublisher forwards committed movements to an audit trail.
func WithAuditPublisher(audit port.AuditPublisher) LedgerOption {
	return func(l *Ledger) { l.audit = audit }
}

// WithWriteRetries overrides the retry budget for storage conflicts.
func WithWriteRetries(n int) LedgerOption {
	return func(l *Ledger) {
		if n >= 0 {
			l.retries = n
		}
	}
}

func NewLedger(store port.RecordStore, bus *event.Bus, lowStockThreshold int, opts ...LedgerOption) *Ledger {
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	l := &Ledger{
		store:     store,
		bus:       bus,
		locks:     newKeyLocks(),
		threshold: lowStockThreshold,
		retries:   defaultWriteRetries,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.breaker = gobreaker.NewCircuitBreaker[*domain.InventoryRecord](gobreaker.Settings{
		Name:        "record-store",
		MaxRequests: 3,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Conflicts are contention, not storage health.
			return err == nil || errors.Is(err, port.ErrConcurrentModification)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return l
}

// StockIn credits the key with quantity units. Never fails on valid
// positive input.
func (l *Ledger) StockIn(ctx context.Context, storeID, productID string, quantity int, referenceID, notes string) (*domain.InventoryRecord, error) {
	if err := validateKey(storeID, productID); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	}
	return l.mutate(ctx, storeID, productID, domain.MovementIn, referenceID, notes, "", func(current int) (int, error) {
		return current + quantity, nil
	})
}

// StockOut debits the key by quantity units. The availability check and
// the decrement are indivisible with respect to concurrent mutators on the
// same key.
func (l *Ledger) StockOut(ctx context.Context, storeID, productID string, quantity int, referenceID, notes string) (*domain.InventoryRecord, error) {
	if err := validateKey(storeID, productID); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	}
	return l.mutate(ctx, storeID, productID, domain.MovementOut, referenceID, notes, "", func(current int) (int, error) {
		if current < quantity {
			return 0, fmt.Errorf("%w: available %d, requested %d", ErrInsufficientStock, current, quantity)
		}
		return current - quantity, nil
	})
}

// Adjust sets the key to an absolute quantity, recording the difference as
// an ADJUSTMENT movement.
func (l *Ledger) Adjust(ctx context.Context, storeID, productID string, newQuantity int, notes string) (*domain.InventoryRecord, error) {
	if err := validateKey(storeID, productID); err != nil {
		return nil, err
	}
	if newQuantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidArgument)
	}
	return l.mutate(ctx, storeID, productID, domain.MovementAdjustment, "", notes, "", func(current int) (int, error) {
		return newQuantity, nil
	})
}

// Read returns the current quantity for the key, zero when the pair has
// never been touched.
func (l *Ledger) Read(ctx context.Context, storeID, productID string) (int, error) {
	if err := validateKey(storeID, productID); err != nil {
		return 0, err
	}
	if l.cache != nil {
		if qty, ok, err := l.cache.GetQuantity(ctx, storeID, productID); err == nil && ok {
			return qty, nil
		}
	}
	rec, err := l.store.ReadRecord(ctx, storeID, productID)
	if err != nil {
		return 0, fmt.Errorf("read record: %w", err)
	}
	if rec == nil {
		return 0, nil
	}
	return rec.Quantity, nil
}

// LowStockThreshold reports the configured threshold for STOCK_LOW events.
func (l *Ledger) LowStockThreshold() int {
	return l.threshold
}

// transferOut and transferIn are the coordinator's tagged legs. They share
// the mutation machinery so transfer movements obey the same invariants
// and event rules as direct stock operations.
func (l *Ledger) transferOut(ctx context.Context, storeID, productID string, quantity int, notes, correlationID string) (*domain.InventoryRecord, error) {
	return l.mutate(ctx, storeID, productID, domain.MovementTransferOut, correlationID, notes, correlationID, func(current int) (int, error) {
		if current < quantity {
			return 0, fmt.Errorf("%w: available %d, requested %d", ErrInsufficientStock, current, quantity)
		}
		return current - quantity, nil
	})
}

func (l *Ledger) transferIn(ctx context.Context, storeID, productID string, quantity int, notes, correlationID string) (*domain.InventoryRecord, error) {
	return l.mutate(ctx, storeID, productID, domain.MovementTransferIn, correlationID, notes, correlationID, func(current int) (int, error) {
		return current + quantity, nil
	})
}

// mutate runs the serialized read-decide-write loop for one key. next maps
// the current quantity to the new one, or rejects the mutation. Conflicts
// from the conditional write are retried up to the budget; the breaker
// turns persistent storage trouble into ErrTransientFailure without
// touching state.
func (l *Ledger) mutate(ctx context.Context, storeID, productID string, kind domain.MovementKind, referenceID, notes, correlationID string, next func(current int) (int, error)) (*domain.InventoryRecord, error) {
	unlock := l.locks.lock(domain.Key{StoreID: storeID, ProductID: productID})
	defer unlock()

	for attempt := 0; attempt <= l.retries; attempt++ {
		rec, err := l.store.ReadRecord(ctx, storeID, productID)
		if err != nil {
			metrics.MutationsTotal.WithLabelValues(string(kind), "failed").Inc()
			return nil, fmt.Errorf("read record: %w", err)
		}
		current := 0
		if rec != nil {
			current = rec.Quantity
		}

		newQuantity, err := next(current)
		if err != nil {
			metrics.MutationsTotal.WithLabelValues(string(kind), "rejected").Inc()
			return nil, err
		}

		entry := domain.NewMovement(kind, storeID, productID, newQuantity-current, referenceID, notes, correlationID)
		updated, err := l.breaker.Execute(func() (*domain.InventoryRecord, error) {
			return l.store.WriteRecord(ctx, storeID, productID, current, newQuantity, entry)
		})
		switch {
		case err == nil:
			metrics.MutationsTotal.WithLabelValues(string(kind), "committed").Inc()
			l.afterCommit(ctx, updated, entry, current)
			return updated, nil
		case errors.Is(err, port.ErrConcurrentModification):
			logging.Debug().Str("store_id", storeID).Str("product_id", productID).Int("attempt", attempt+1).Msg("write conflict, retrying")
			continue
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.MutationsTotal.WithLabelValues(string(kind), "failed").Inc()
			return nil, fmt.Errorf("%w: record store unavailable", ErrTransientFailure)
		default:
			metrics.MutationsTotal.WithLabelValues(string(kind), "failed").Inc()
			return nil, fmt.Errorf("write record: %w", err)
		}
	}

	metrics.MutationsTotal.WithLabelValues(string(kind), "failed").Inc()
	return nil, fmt.Errorf("%w: retries exhausted on concurrent modification", ErrTransientFailure)
}

// afterCommit refreshes the cache, forwards the movement to the audit
// trail, and publishes the classified event, in commit order. The caller
// still holds the key lock, so events for one key cannot reorder.
func (l *Ledger) afterCommit(ctx context.Context, rec *domain.InventoryRecord, entry domain.MovementEntry, previous int) {
	if l.cache != nil {
		if err := l.cache.SetQuantityIfNewer(ctx, rec.StoreID, rec.ProductID, rec.Quantity, rec.Version); err != nil {
			logging.Warn().Err(err).Str("store_id", rec.StoreID).Str("product_id", rec.ProductID).Msg("quantity cache refresh failed")
		}
	}
	if l.audit != nil {
		if err := l.audit.PublishMovement(ctx, entry); err != nil {
			logging.Warn().Err(err).Str("movement_id", entry.ID).Msg("audit publish failed")
		}
	}
	l.bus.Publish(l.classify(rec, previous))
}

// classify maps a committed mutation to its notification. STOCK_OUT wins
// when the key hits zero; STOCK_LOW fires only on a downward crossing of
// the threshold, never while rising or while already below it.
func (l *Ledger) classify(rec *domain.InventoryRecord, previous int) domain.NotificationEvent {
	payload := domain.EventPayload{
		StoreID:   rec.StoreID,
		ProductID: rec.ProductID,
		Quantity:  rec.Quantity,
	}
	switch {
	case rec.Quantity == 0 && previous != 0:
		return domain.NewNotification(
			domain.EventStockOut,
			"Out of stock",
			fmt.Sprintf("Product %s at store %s is out of stock", rec.ProductID, rec.StoreID),
			payload,
		)
	case rec.Quantity < l.threshold && previous >= l.threshold:
		return domain.NewNotification(
			domain.EventStockLow,
			"Low stock",
			fmt.Sprintf("Product %s at store %s is low on stock: %d (threshold %d)", rec.ProductID, rec.StoreID, rec.Quantity, l.threshold),
			payload,
		)
	default:
		return domain.NewNotification(
			domain.EventOperationSuccess,
			"Stock updated",
			fmt.Sprintf("Product %s at store %s now holds %d units", rec.ProductID, rec.StoreID, rec.Quantity),
			payload,
		)
	}
}

func validateKey(storeID, productID string) error {
	if storeID == "" {
		return fmt.Errorf("%w: store id is required", ErrInvalidArgument)
	}
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidArgument)
	}
	return nil
}
