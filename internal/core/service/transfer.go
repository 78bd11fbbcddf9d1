package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/quangtdn/storeledger/internal/core/domain"
	"github.com/quangtdn/storeledger/internal/event"
	"github.com/quangtdn/storeledger/internal/logging"
	"github.com/quangtdn/storeledger/internal/metrics"
	"github.com/quangtdn/storeledger/internal/port"
)

// TransferResult reports both sides of a completed transfer.
type TransferResult struct {
	CorrelationID string
	From          *domain.InventoryRecord
	To            *domain.InventoryRecord
}

// TransferCoordinator moves stock between stores as a two-step saga on top
// of the ledger: debit the source, credit the destination, and compensate
// the debit when the credit cannot happen. The ledger has no multi-key
// transaction, so the window between the two steps is the only point where
// the debit is externally visible without the matching credit.
type TransferCoordinator struct {
	ledger *Ledger
	stores port.StoreRegistry
	bus    *event.Bus
}

func NewTransferCoordinator(ledger *Ledger, stores port.StoreRegistry, bus *event.Bus) *TransferCoordinator {
	return &TransferCoordinator{ledger: ledger, stores: stores, bus: bus}
}

// Transfer moves quantity units of a product from one store to another.
// On success exactly one TRANSFER_COMPLETE event references both keys; on
// a destination failure the source is credited back and TRANSFER_FAILED is
// emitted.
func (t *TransferCoordinator) Transfer(ctx context.Context, fromStoreID, toStoreID, productID string, quantity int, notes string) (*TransferResult, error) {
	if err := validateKey(fromStoreID, productID); err != nil {
		return nil, err
	}
	if toStoreID == "" {
		return nil, fmt.Errorf("%w: destination store id is required", ErrInvalidArgument)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	}
	if fromStoreID == toStoreID {
		return nil, fmt.Errorf("%w: source and destination store are the same", ErrInvalidTransfer)
	}

	correlationID := uuid.New().String()

	// Step 1: debit the source. Insufficient stock aborts with no state
	// change at all.
	from, err := t.ledger.transferOut(ctx, fromStoreID, productID, quantity,
		transferNotes("Transfer to store "+toStoreID, notes), correlationID)
	if err != nil {
		metrics.TransfersTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	// Step 2: confirm the destination still accepts stock, then credit it.
	// The store registry is external; a decommissioned destination is the
	// canonical mid-transfer failure.
	if err := t.destinationReady(ctx, toStoreID); err == nil {
		to, creditErr := t.ledger.transferIn(ctx, toStoreID, productID, quantity,
			transferNotes("Received from store "+fromStoreID, notes), correlationID)
		if creditErr == nil {
			metrics.TransfersTotal.WithLabelValues("completed").Inc()
			t.bus.Publish(domain.NewNotification(
				domain.EventTransferComplete,
				"Transfer complete",
				fmt.Sprintf("Transferred %d units of product %s from store %s to store %s", quantity, productID, fromStoreID, toStoreID),
				domain.EventPayload{
					ProductID:     productID,
					Quantity:      quantity,
					FromStoreID:   fromStoreID,
					ToStoreID:     toStoreID,
					CorrelationID: correlationID,
				},
			))
			return &TransferResult{CorrelationID: correlationID, From: from, To: to}, nil
		}
		err = creditErr
	} else {
		logging.Warn().Err(err).Str("to_store", toStoreID).Str("correlation_id", correlationID).Msg("transfer destination rejected")
	}

	return nil, t.compensate(ctx, fromStoreID, toStoreID, productID, quantity, correlationID)
}

// destinationReady asks the store registry whether the destination exists
// and still accepts stock.
func (t *TransferCoordinator) destinationReady(ctx context.Context, storeID string) error {
	if t.stores == nil {
		return nil
	}
	store, err := t.stores.Store(ctx, storeID)
	if err != nil {
		return fmt.Errorf("resolve destination store: %w", err)
	}
	if !store.Accepting() {
		return fmt.Errorf("destination store %s is decommissioned", storeID)
	}
	return nil
}

// compensate credits the debit back to the source and emits
// TRANSFER_FAILED. When the compensation itself fails the ledger is left
// inconsistent; that is surfaced as SYSTEM_ERROR and logged for manual
// reconciliation, since an automatic retry risks double-compensation.
func (t *TransferCoordinator) compensate(ctx context.Context, fromStoreID, toStoreID, productID string, quantity int, correlationID string) error {
	payload := domain.EventPayload{
		ProductID:     productID,
		Quantity:      quantity,
		FromStoreID:   fromStoreID,
		ToStoreID:     toStoreID,
		CorrelationID: correlationID,
	}

	_, err := t.ledger.transferIn(ctx, fromStoreID, productID, quantity,
		"Transfer reversal: destination unavailable", correlationID)
	if err != nil {
		metrics.TransfersTotal.WithLabelValues("compensation_failed").Inc()
		logging.Error().Err(err).
			Str("correlation_id", correlationID).
			Str("from_store", fromStoreID).
			Str("product_id", productID).
			Int("quantity", quantity).
			Msg("transfer compensation failed, manual reconciliation required")
		t.bus.Publish(domain.NewNotification(
			domain.EventSystemError,
			"Transfer compensation failed",
			fmt.Sprintf("Could not restore %d units of product %s to store %s (correlation %s); manual reconciliation required", quantity, productID, fromStoreID, correlationID),
			payload,
		))
		return fmt.Errorf("%w: %s", ErrCompensationFailed, correlationID)
	}

	metrics.TransfersTotal.WithLabelValues("compensated").Inc()
	t.bus.Publish(domain.NewNotification(
		domain.EventTransferFailed,
		"Transfer failed",
		fmt.Sprintf("Transfer of product %s from store %s to store %s failed; source stock restored", productID, fromStoreID, toStoreID),
		payload,
	))
	return fmt.Errorf("%w: destination store %s unavailable", ErrTransferFailed, toStoreID)
}

func transferNotes(prefix, notes string) string {
	if notes == "" {
		return prefix
	}
	return prefix + ": " + notes
}

// IsStockError reports whether err belongs to the caller-recoverable
// taxonomy rather than an internal fault.
func IsStockError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidTransfer) ||
		errors.Is(err, ErrTransferFailed)
}
