// Package stream fans engine updates out to connected WebSocket clients.
// Every client sees the same authoritative state sequence; there is one
// topic, the map.
package stream

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Bubblbu/sica-mapping/internal/engine"
)

// subscriber pairs a connection with a write mutex; gorilla connections do
// not support concurrent writers.
type subscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Broadcaster manages WebSocket connections and broadcasts engine updates.
type Broadcaster struct {
	mu      sync.RWMutex
	conns   map[*websocket.Conn]*subscriber
	log     *slog.Logger
	metrics *Metrics
}

// NewBroadcaster creates a broadcaster. The metrics collector may be nil.
func NewBroadcaster(log *slog.Logger, metrics *Metrics) *Broadcaster {
	return &Broadcaster{
		conns:   make(map[*websocket.Conn]*subscriber),
		log:     log,
		metrics: metrics,
	}
}

// Subscribe registers a WebSocket connection.
func (b *Broadcaster) Subscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(conn)
}

// SubscribeSeeded registers a connection and writes the seed update to it
// before any broadcast can reach it, so the client always sees the full
// snapshot as its first frame.
func (b *Broadcaster) SubscribeSeeded(conn *websocket.Conn, seed engine.Update) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := b.add(conn)
	data, err := json.Marshal(seed)
	if err != nil {
		return err
	}
	return sub.write(data)
}

// add registers the connection. Callers hold b.mu.
func (b *Broadcaster) add(conn *websocket.Conn) *subscriber {
	sub := b.conns[conn]
	if sub == nil {
		sub = &subscriber{conn: conn}
		b.conns[conn] = sub
		b.metrics.incSubscribes()
	}
	return sub
}

// Unsubscribe removes a WebSocket connection.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conns[conn] != nil {
		delete(b.conns, conn)
		b.metrics.incUnsubscribes()
	}
}

// Broadcast sends an update to every subscriber. Concurrent broadcasts are
// safe: each connection's writes go through its own mutex.
func (b *Broadcaster) Broadcast(u engine.Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.conns) == 0 {
		return
	}

	// Serialize once
	data, err := json.Marshal(u)
	if err != nil {
		b.log.Error("failed to marshal update", "error", err)
		return
	}

	for _, sub := range b.conns {
		if err := sub.write(data); err != nil {
			b.log.Warn("failed to send update to websocket client",
				"error", err,
				"seq", u.Seq,
			)
			// Connection will be cleaned up when client disconnects
		}
	}
	b.metrics.observeBroadcast(len(b.conns))
}

// ConnectionCount returns the number of active WebSocket connections.
func (b *Broadcaster) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}
