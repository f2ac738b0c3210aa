package journal

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// monitorEvent is one JSON object, sent as one websocket text message to
// every connected client.
type monitorEvent struct {
	Type     string `json:"type"` // "dirty" or "progress"
	Dirty    bool   `json:"dirty,omitempty"`
	Progress int    `json:"progress,omitempty"`
}

// Monitor is a read-only observability surface: it fans a Context's
// dirty/progress events out to any connected websocket clients, for a
// host's "modified" indicator or a web-based project inspector. Starting
// one is additive — a Context that never starts a Monitor behaves exactly
// as if this file didn't exist.
type Monitor struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewMonitor wraps ctx's progress/dirty callbacks, preserving any that were
// already installed, and fanning every event out to connected clients.
func NewMonitor(ctx *Context) *Monitor {
	m := &Monitor{clients: make(map[*websocket.Conn]struct{})}

	prevDirty := ctx.dirtyCallback
	ctx.OnDirty(func(dirty bool) {
		if prevDirty != nil {
			prevDirty(dirty)
		}
		m.broadcast(monitorEvent{Type: "dirty", Dirty: dirty})
	})

	prevProgress := ctx.progressCallback
	ctx.OnProgress(func(percent int) {
		if prevProgress != nil {
			prevProgress(percent)
		}
		m.broadcast(monitorEvent{Type: "progress", Progress: percent})
	})

	ctx.Monitor = m
	return m
}

// ServeHTTP upgrades the connection and registers it to receive events,
// mirroring the bare-bones "one handler, broadcast to all conns" shape
// gorilla/websocket examples use.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m.mu.Lock()
	m.clients[conn] = struct{}{}
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.clients, conn)
			m.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (m *Monitor) broadcast(ev monitorEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range m.clients {
		_ = c.WriteMessage(websocket.TextMessage, data)
	}
}
