package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/smokewatch/internal/domain/telemetry"
)

// newTestClient creates a client without a connection for hub bookkeeping tests.
func newTestClient(remote string, buffer int) *Client {
	return &Client{
		remote: remote,
		send:   make(chan Message, buffer),
	}
}

// TestHub_RegisterUnregister tracks clients and closes their channel once.
func TestHub_RegisterUnregister(t *testing.T) {
	t.Parallel()

	hub := NewHub(context.Background())
	c := newTestClient("1.1.1.1:1", 1)

	hub.Register(c)
	require.Equal(t, 1, hub.ClientCount())

	hub.Unregister(c)
	require.Equal(t, 0, hub.ClientCount())

	_, ok := <-c.send
	require.False(t, ok)

	// A second unregister is a no-op and must not panic on a closed channel.
	hub.Unregister(c)
}

// TestHub_BroadcastDropsForSlowClients never blocks on a full buffer.
func TestHub_BroadcastDropsForSlowClients(t *testing.T) {
	t.Parallel()

	hub := NewHub(context.Background())
	slow := newTestClient("slow", 1)
	fast := newTestClient("fast", 4)

	hub.Register(slow)
	hub.Register(fast)

	hub.NotifyDevice(telemetry.DeviceRecord{DeviceID: "A", Timestamp: time.Unix(1, 0)})
	hub.NotifyAlarm(telemetry.AlarmEvent{DeviceID: "A", Type: telemetry.AlarmOn, Timestamp: time.Unix(1, 0)})

	require.Len(t, slow.send, 1)
	require.Len(t, fast.send, 2)

	first := <-fast.send
	second := <-fast.send

	require.Equal(t, MessageDeviceUpdated, first.Type)
	require.Equal(t, MessageAlarmTransition, second.Type)
}

// TestHub_ServeHTTP streams a broadcast to a real WebSocket client.
func TestHub_ServeHTTP(t *testing.T) {
	t.Parallel()

	hub := NewHub(context.Background())
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.NotifyAlarm(telemetry.AlarmEvent{
		ID:        "evt",
		DeviceID:  "A",
		Type:      telemetry.AlarmOn,
		Smoke:     2000,
		Timestamp: time.UnixMilli(42),
		Source:    telemetry.SourceMQTT,
	})

	var got struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}

	require.NoError(t, wsjson.Read(ctx, conn, &got))
	require.Equal(t, string(MessageAlarmTransition), got.Type)
	require.Equal(t, "A", got.Data["device_id"])
	require.Equal(t, "ALARM_ON", got.Data["type"])
	require.InDelta(t, 42, got.Data["timestamp"], 0)
}
