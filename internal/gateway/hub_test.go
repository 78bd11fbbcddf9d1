package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangtdn/storeledger/internal/core/domain"
	"github.com/quangtdn/storeledger/internal/event"
)

func startHub(t *testing.T) (*event.Bus, *Hub, string) {
	t.Helper()
	bus := event.NewBus(128)
	hub := NewHub(bus)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return bus, hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServeWS_DeliversNotifications(t *testing.T) {
	bus, hub, url := startHub(t)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	evt := domain.NewNotification(
		domain.EventStockLow,
		"Low stock",
		"Product prod-1 at store store-1 is low on stock: 4 (threshold 10)",
		domain.EventPayload{StoreID: "store-1", ProductID: "prod-1", Quantity: 4},
	)
	bus.Publish(evt)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg WireMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, evt.ID, msg.ID)
	assert.Equal(t, domain.EventStockLow, msg.Type)
	assert.Equal(t, "Low stock", msg.Title)
	assert.False(t, msg.Read)
	assert.Equal(t, "store-1", msg.Data.StoreID)
	assert.Equal(t, 4, msg.Data.Quantity)
}

func TestServeWS_MultipleObservers(t *testing.T) {
	bus, hub, url := startHub(t)
	a := dial(t, url)
	b := dial(t, url)

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 },
		2*time.Second, 10*time.Millisecond)
	require.Equal(t, 2, bus.SubscriberCount())

	evt := domain.NewNotification(domain.EventOperationSuccess, "Stock updated", "", domain.EventPayload{Quantity: 1})
	bus.Publish(evt)

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg WireMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, evt.ID, msg.ID)
	}
}

func TestServeWS_DisconnectDeregisters(t *testing.T) {
	bus, hub, url := startHub(t)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0 && bus.SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)

	// A mutation with no observers still publishes without issue.
	bus.Publish(domain.NewNotification(domain.EventOperationSuccess, "Stock updated", "", domain.EventPayload{}))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		kind     domain.EventKind
		severity Severity
		duration time.Duration
	}{
		{domain.EventStockLow, SeverityWarning, 5 * time.Second},
		{domain.EventStockOut, SeverityError, 8 * time.Second},
		{domain.EventTransferComplete, SeveritySuccess, 4 * time.Second},
		{domain.EventTransferFailed, SeverityError, 6 * time.Second},
		{domain.EventOperationSuccess, SeveritySuccess, 3 * time.Second},
		{domain.EventSystemError, SeverityError, 10 * time.Second},
		{domain.EventKind("UNKNOWN"), SeverityInfo, 4 * time.Second},
	}
	for _, tc := range cases {
		sev, dur := Classify(tc.kind)
		assert.Equal(t, tc.severity, sev, "kind %s", tc.kind)
		assert.Equal(t, tc.duration, dur, "kind %s", tc.kind)
	}
}
