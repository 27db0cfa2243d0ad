package fabric

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/azraeltruthsay/gaia/internal/gaialog"
)

// Notification is one broadcast message. Category is one of
// oracle_fallback, gpu_released, gpu_acquired, handoff_started,
// handoff_completed, handoff_failed, service_error (spec.md §4.10).
type Notification struct {
	Category  string                 `json:"category"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Broadcaster fans Notification messages out to every connected
// WebSocket client, keeping a bounded history so a client that
// reconnects can catch up. Grounded on
// original_source/.../notification_manager.py's connection-set +
// history-buffer shape, using gorilla/websocket the way
// ui/transports/websocket/websocket.go does for the upgrade/send path.
type Broadcaster struct {
	HistoryLimit int
	Upgrader     websocket.Upgrader
	Log          gaialog.Logger

	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	history []Notification
}

// NewBroadcaster builds a Broadcaster with the given bounded history
// size (spec.md §4.10 default 100).
func NewBroadcaster(historyLimit int, log gaialog.Logger) *Broadcaster {
	if historyLimit <= 0 {
		historyLimit = 100
	}
	if log == nil {
		log = gaialog.NoOp()
	}
	return &Broadcaster{
		HistoryLimit: historyLimit,
		Upgrader:     websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024, CheckOrigin: func(*http.Request) bool { return true }},
		Log:          log,
		conns:        make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request to a WebSocket connection and
// registers it as a broadcast recipient until the connection closes.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.Log.Warn("fabric: websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	b.register(conn)
	defer b.remove(conn)

	for _, n := range b.snapshotHistory() {
		if err := conn.WriteJSON(n); err != nil {
			return
		}
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) register(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[conn] = struct{}{}
}

func (b *Broadcaster) remove(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, conn)
	_ = conn.Close()
}

func (b *Broadcaster) snapshotHistory() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notification, len(b.history))
	copy(out, b.history)
	return out
}

// Broadcast appends n to the history and writes it to every connected
// client, pruning any connection whose send fails (dead connections
// are only detected lazily, on send failure, per spec.md §4.10).
func (b *Broadcaster) Broadcast(category string, data map[string]interface{}) {
	n := Notification{Category: category, Data: data, Timestamp: time.Now()}

	b.mu.Lock()
	b.history = append(b.history, n)
	if len(b.history) > b.HistoryLimit {
		b.history = b.history[len(b.history)-b.HistoryLimit:]
	}
	targets := make([]*websocket.Conn, 0, len(b.conns))
	for c := range b.conns {
		targets = append(targets, c)
	}
	b.mu.Unlock()

	var dead []*websocket.Conn
	for _, c := range targets {
		if err := c.WriteJSON(n); err != nil {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		b.remove(c)
	}
}

// History returns a snapshot of the bounded notification history,
// most recent last.
func (b *Broadcaster) History() []Notification {
	return b.snapshotHistory()
}

// MarshalHistory is a convenience for the (non-websocket) status
// endpoints that want the history as a JSON payload.
func (b *Broadcaster) MarshalHistory() ([]byte, error) {
	return json.Marshal(b.snapshotHistory())
}
