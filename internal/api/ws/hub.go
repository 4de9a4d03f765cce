// Package ws streams device updates and alarm transitions to dashboards over WebSocket.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/oshokin/smokewatch/internal/api/view"
	"github.com/oshokin/smokewatch/internal/domain/telemetry"
	"github.com/oshokin/smokewatch/internal/logger"
)

const (
	// sendBufferSize is the number of messages queued per client before dropping.
	sendBufferSize = 64
	// writeTimeout bounds a single message write.
	writeTimeout = 5 * time.Second
)

// Client is one connected WebSocket subscriber.
type Client struct {
	conn   *websocket.Conn
	remote string
	send   chan Message
}

// Hub fans messages out to every registered client.
type Hub struct {
	// ctx carries the hub logger.
	ctx context.Context //nolint:containedctx // Used only for logging.

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates an empty hub that logs through the logger in ctx.
func NewHub(ctx context.Context) *Hub {
	return &Hub{
		ctx:     logger.WithName(ctx, "ws"),
		clients: make(map[*Client]struct{}),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	logger.DebugKV(h.ctx, "WebSocket client connected", "remote", c.remote)
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	logger.DebugKV(h.ctx, "WebSocket client disconnected", "remote", c.remote)
}

// Broadcast queues msg for every client without blocking; slow clients miss it.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			logger.WarnKV(h.ctx, "Client send buffer full, dropping message",
				"remote", c.remote, "type", msg.Type)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// NotifyDevice broadcasts a stored device record.
func (h *Hub) NotifyDevice(record telemetry.DeviceRecord) {
	h.Broadcast(Message{
		Type:      MessageDeviceUpdated,
		Timestamp: record.Timestamp,
		Data:      view.FromRecord(&record),
	})
}

// NotifyAlarm broadcasts an alarm transition.
func (h *Hub) NotifyAlarm(event telemetry.AlarmEvent) {
	h.Broadcast(Message{
		Type:      MessageAlarmTransition,
		Timestamp: event.Timestamp,
		Data:      view.FromEvent(&event),
	})
}

// writePump sends queued messages to the connection until ctx ends or the hub
// closes the send channel.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, msg)

			cancel()

			if err != nil {
				logger.DebugKV(ctx, "WebSocket write failed", "remote", c.remote, "error", err)
				return
			}
		}
	}
}

// readPump drains inbound frames; clients are not expected to send anything.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}
