package domain

import (
	"time"

	"github.com/google/uuid"
)

type MovementKind string

const (
	MovementIn          MovementKind = "IN"
	MovementOut         MovementKind = "OUT"
	MovementTransferOut MovementKind = "TRANSFER_OUT"
	MovementTransferIn  MovementKind = "TRANSFER_IN"
	MovementAdjustment  MovementKind = "ADJUSTMENT"
)

// MovementEntry is one immutable, append-only line of the stock ledger.
// Summing the deltas for a key in timestamp order yields the current
// InventoryRecord quantity.
type MovementEntry struct {
	ID            string
	StoreID       string
	ProductID     string
	Delta         int
	Kind          MovementKind
	ReferenceID   string
	Notes         string
	CorrelationID string // links paired TRANSFER_OUT/TRANSFER_IN entries
	Timestamp     time.Time
}

// NewMovement builds a log entry for a single committed mutation.
func NewMovement(kind MovementKind, storeID, productID string, delta int, referenceID, notes, correlationID string) MovementEntry {
	return MovementEntry{
		ID:            uuid.New().String(),
		StoreID:       storeID,
		ProductID:     productID,
		Delta:         delta,
		Kind:          kind,
		ReferenceID:   referenceID,
		Notes:         notes,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
	}
}
