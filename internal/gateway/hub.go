package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/quangtdn/storeledger/internal/event"
	"github.com/quangtdn/storeledger/internal/logging"
	"github.com/quangtdn/storeledger/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Hub upgrades observer connections and ties each one to its own bus
// subscription. The per-observer buffer lives in the bus, so one stalled
// socket never slows another observer or the mutation path.
type Hub struct {
	bus      *event.Bus
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*serverConn]struct{}
}

func NewHub(bus *event.Bus) *Hub {
	return &Hub{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policy belongs to the outer HTTP layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*serverConn]struct{}),
	}
}

// ServeWS handles an observer's upgrade request. The observer is
// registered with the bus once the connection is OPEN and deregistered the
// moment it closes for any reason.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &serverConn{
		conn: conn,
		sub:  h.bus.Subscribe(),
	}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	total := len(h.conns)
	h.mu.Unlock()
	metrics.ObserversConnected.Inc()
	logging.Info().Int("total_observers", total).Msg("observer connected")

	go c.writePump()
	go c.readPump(h)
}

// ClientCount returns the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close terminates every observer connection.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*serverConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.drop(c)
	}
}

func (h *Hub) drop(c *serverConn) {
	h.mu.Lock()
	_, ok := h.conns[c]
	if ok {
		delete(h.conns, c)
	}
	total := len(h.conns)
	h.mu.Unlock()
	if !ok {
		return
	}

	c.sub.Close()
	_ = c.conn.Close()
	metrics.ObserversConnected.Dec()
	logging.Info().Int("total_observers", total).Msg("observer disconnected")
}

type serverConn struct {
	conn *websocket.Conn
	sub  *event.Subscription
}

// writePump drains the observer's bus subscription onto the socket. A
// write failure just ends the pump; readPump notices the dead socket and
// deregisters the observer.
func (c *serverConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.sub.Events():
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
				return
			}
			payload, err := json.Marshal(wireFrom(evt))
			if err != nil {
				logging.Error().Err(err).Str("event_id", evt.ID).Msg("failed to marshal notification")
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes until the connection dies, keeping the pong deadline
// fresh. Observers do not send application messages.
func (c *serverConn) readPump(h *Hub) {
	defer h.drop(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Msg("unexpected websocket close")
			}
			return
		}
	}
}
