package notify

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/miradorstack/mirador-remediate/internal/models"
)

const wsWriteTimeout = 2 * time.Second

// Hub broadcasts lifecycle events to connected websocket clients.
type Hub struct {
	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub constructs an empty websocket hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Name identifies the sink in broker diagnostics.
func (h *Hub) Name() string { return "websocket" }

// Upgrade promotes an HTTP request to a websocket subscription. The
// connection stays registered until the peer closes it.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	clients := len(h.conns)
	h.mu.Unlock()
	h.logger.Info("websocket client connected", slog.Int("clients", clients))

	// Reader loop: we never expect inbound payloads, but reading is what
	// detects the peer going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
	return nil
}

// Publish broadcasts the event as JSON; unwritable clients are dropped.
func (h *Hub) Publish(evt models.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Warn("event marshal failed", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.drop(conn)
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
	}
	h.mu.Unlock()
	conn.Close()
}
