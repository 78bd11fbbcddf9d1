// Package gateway connects observers to the event bus over WebSocket.
//
// The server side (Hub) registers each connection with the bus and pushes
// one JSON object per notification. The client side (Observer) maintains
// the CONNECTING -> OPEN -> CLOSED -> retry lifecycle with a fixed
// reconnect delay and keeps a bounded ring of received notifications.
package gateway

import (
	"time"

	"github.com/quangtdn/storeledger/internal/core/domain"
)

// WireMessage is the single-object-per-message frame pushed to observers.
type WireMessage struct {
	ID        string              `json:"id"`
	Type      domain.EventKind    `json:"type"`
	Title     string              `json:"title"`
	Message   string              `json:"message"`
	Timestamp time.Time           `json:"timestamp"`
	Read      bool                `json:"read"`
	Data      domain.EventPayload `json:"data"`
}

func wireFrom(evt domain.NotificationEvent) WireMessage {
	return WireMessage{
		ID:        evt.ID,
		Type:      evt.Kind,
		Title:     evt.Title,
		Message:   evt.Message,
		Timestamp: evt.Timestamp,
		Read:      false,
		Data:      evt.Payload,
	}
}

// Severity buckets event kinds for presentation.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Classify maps an event kind to its presentation severity and display
// duration. Urgent kinds (STOCK_OUT, SYSTEM_ERROR) stay visible longest.
func Classify(kind domain.EventKind) (Severity, time.Duration) {
	switch kind {
	case domain.EventStockLow:
		return SeverityWarning, 5 * time.Second
	case domain.EventStockOut:
		return SeverityError, 8 * time.Second
	case domain.EventTransferComplete:
		return SeveritySuccess, 4 * time.Second
	case domain.EventTransferFailed:
		return SeverityError, 6 * time.Second
	case domain.EventOperationSuccess:
		return SeveritySuccess, 3 * time.Second
	case domain.EventSystemError:
		return SeverityError, 10 * time.Second
	default:
		return SeverityInfo, 4 * time.Second
	}
}
