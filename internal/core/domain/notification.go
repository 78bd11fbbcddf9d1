package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventStockLow         EventKind = "STOCK_LOW"
	EventStockOut         EventKind = "STOCK_OUT"
	EventTransferComplete EventKind = "TRANSFER_COMPLETE"
	EventTransferFailed   EventKind = "TRANSFER_FAILED"
	EventOperationSuccess EventKind = "OPERATION_SUCCESS"
	EventSystemError      EventKind = "SYSTEM_ERROR"
)

// EventPayload carries the (store, product) keys a notification refers to.
// Transfer events populate both sides; single-key mutations leave the
// From/To fields empty.
type EventPayload struct {
	StoreID       string `json:"storeId,omitempty"`
	ProductID     string `json:"productId,omitempty"`
	Quantity      int    `json:"quantity"`
	FromStoreID   string `json:"fromStoreId,omitempty"`
	ToStoreID     string `json:"toStoreId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// NotificationEvent is a transient fan-out message describing one committed
// state change. Events are not persisted: an observer that is disconnected
// at emission time never sees the event and reconciles via a fresh query.
type NotificationEvent struct {
	ID        string
	Kind      EventKind
	Title     string
	Message   string
	Timestamp time.Time
	Payload   EventPayload
}

// NewNotification stamps a fresh event with id and timestamp.
func NewNotification(kind EventKind, title, message string, payload EventPayload) NotificationEvent {
	return NotificationEvent{
		ID:        uuid.New().String(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
