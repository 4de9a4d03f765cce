package mqtt

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/smokewatch/internal/domain/telemetry"
	"github.com/oshokin/smokewatch/internal/logger"
)

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	// topic is the publish topic.
	topic string
	// payload is the raw message body.
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// fakeService records ingested and rejected payloads.
type fakeService struct {
	// mu guards the slices.
	mu sync.Mutex
	// ingested holds accepted payloads.
	ingested []map[string]any
	// sources holds the source of each accepted payload.
	sources []telemetry.Source
	// rejected counts rejections.
	rejected int
}

// Ingest records the payload.
func (f *fakeService) Ingest(_ context.Context, payload map[string]any, source telemetry.Source) telemetry.DeviceRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ingested = append(f.ingested, payload)
	f.sources = append(f.sources, source)

	return telemetry.DeviceRecord{}
}

// RejectPayload counts the rejection.
func (f *fakeService) RejectPayload(context.Context, telemetry.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rejected++
}

func testConfig() Config {
	return Config{
		ClientID:        "smokewatch-test",
		Topic:           "smoke/+/telemetry",
		QoS:             1,
		DeviceIDSegment: 1,
		ConnectTimeout:  time.Second,
	}
}

// TestHandleMessage_IngestsAndRejects feeds JSON, CBOR and garbage.
func TestHandleMessage_IngestsAndRejects(t *testing.T) {
	t.Parallel()

	svc := new(fakeService)
	s := NewSubscriber(context.Background(), testConfig(), svc)

	s.handleMessage(nil, &fakeMessage{topic: "smoke/A/telemetry", payload: []byte(`{"device_id":"A","smoke":2000}`)})

	raw, err := cbor.Marshal(map[string]any{"deviceId": "B", "smoke": 5})
	require.NoError(t, err)

	s.handleMessage(nil, &fakeMessage{topic: "smoke/B/telemetry", payload: raw})
	s.handleMessage(nil, &fakeMessage{topic: "smoke/C/telemetry", payload: []byte("not a payload")})

	require.Len(t, svc.ingested, 2)
	require.Equal(t, "A", svc.ingested[0]["device_id"])
	require.Equal(t, "B", svc.ingested[1]["deviceId"])
	require.Equal(t, []telemetry.Source{telemetry.SourceMQTT, telemetry.SourceMQTT}, svc.sources)
	require.Equal(t, 1, svc.rejected)
}

// TestHandleMessage_TopicFallback uses the topic id only when enabled and the payload has none.
func TestHandleMessage_TopicFallback(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	svc := new(fakeService)
	s := NewSubscriber(context.Background(), cfg, svc)
	s.handleMessage(nil, &fakeMessage{topic: "smoke/dev-7/telemetry", payload: []byte(`{"smoke":1}`)})
	require.NotContains(t, svc.ingested[0], "device_id")

	cfg.DeviceIDFromTopic = true

	svc = new(fakeService)
	s = NewSubscriber(context.Background(), cfg, svc)
	s.handleMessage(nil, &fakeMessage{topic: "smoke/dev-7/telemetry", payload: []byte(`{"smoke":1}`)})
	s.handleMessage(nil, &fakeMessage{topic: "smoke/dev-7/telemetry", payload: []byte(`{"device_id":"dev-9"}`)})
	s.handleMessage(nil, &fakeMessage{topic: "smoke", payload: []byte(`{"smoke":1}`)})

	require.Equal(t, "dev-7", svc.ingested[0]["device_id"])
	require.Equal(t, "dev-9", svc.ingested[1]["device_id"])
	require.NotContains(t, svc.ingested[2], "device_id")
}

// TestTopicSegment covers index bounds and empty levels.
func TestTopicSegment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		topic string
		index int
		want  string
		ok    bool
	}{
		{name: "middle", topic: "smoke/A/telemetry", index: 1, want: "A", ok: true},
		{name: "first", topic: "A/telemetry", index: 0, want: "A", ok: true},
		{name: "out of range", topic: "smoke", index: 1},
		{name: "negative", topic: "smoke/A", index: -1},
		{name: "empty level", topic: "smoke//telemetry", index: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := topicSegment(tt.topic, tt.index)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

// TestHealth_NotStarted reports a missing connection.
func TestHealth_NotStarted(t *testing.T) {
	t.Parallel()

	s := NewSubscriber(context.Background(), testConfig(), new(fakeService))
	require.ErrorIs(t, s.Health(), errNotConnected)

	s.Stop()
}

// TestPahoLogger forwards formatted output and drops levels below warning.
func TestPahoLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	base := logger.NewWithWriter(&buf, logger.FormatJSON, zapcore.DebugLevel)
	l := newLibraryLogger(logger.ToContext(context.Background(), base))

	pahoLogger{logf: l.Warnf}.Printf("[client]   %s", "lost connection")
	pahoLogger{logf: l.Errorf}.Println("[net]", "read error")
	pahoLogger{logf: l.Infof}.Println("ignored")

	out := buf.String()
	require.Contains(t, out, "lost connection")
	require.Contains(t, out, "[net] read error")
	require.Contains(t, out, `"logger":"paho"`)
	require.NotContains(t, out, "ignored")
}
