package view

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/smokewatch/internal/domain/telemetry"
)

// TestFromRecord_DefaultRecordJSON matches the body of the original latest endpoint.
func TestFromRecord_DefaultRecordJSON(t *testing.T) {
	t.Parallel()

	record := telemetry.DefaultRecord()

	body, err := json.Marshal(FromRecord(&record))
	require.NoError(t, err)
	require.JSONEq(t,
		`{"device_id":"unknown","smoke":0,"alarm":false,"lat":null,"lon":null,"timestamp":null,"source":"none"}`,
		string(body))
}

// TestFromRecord_Populated renders milliseconds and coordinates.
func TestFromRecord_Populated(t *testing.T) {
	t.Parallel()

	record := telemetry.DeviceRecord{
		DeviceID:  "A",
		Smoke:     2000,
		Alarm:     true,
		Lat:       telemetry.Float(45.1),
		Lon:       telemetry.Float(0),
		Timestamp: time.UnixMilli(1_700_000_000_123),
		Source:    telemetry.SourceMQTT,
	}

	d := FromRecord(&record)
	require.Equal(t, int64(1_700_000_000_123), *d.Timestamp)
	require.InDelta(t, 0, *d.Lon, 0)

	m := d.Map()
	require.Equal(t, int64(1_700_000_000_123), m["timestamp"])
	require.InDelta(t, 45.1, m["lat"], 0)
	require.Equal(t, "mqtt", m["source"])
}

// TestFromEvents keeps order and renders nil coordinates as null in maps.
func TestFromEvents(t *testing.T) {
	t.Parallel()

	events := []telemetry.AlarmEvent{
		{ID: "2", DeviceID: "A", Type: telemetry.AlarmOff, Timestamp: time.UnixMilli(2)},
		{ID: "1", DeviceID: "A", Type: telemetry.AlarmOn, Timestamp: time.UnixMilli(1)},
	}

	views := FromEvents(events)
	require.Len(t, views, 2)
	require.Equal(t, "ALARM_OFF", views[0].Type)
	require.Equal(t, "ALARM_ON", views[1].Type)

	m := views[0].Map()
	require.Nil(t, m["lat"])
	require.Equal(t, int64(2), m["timestamp"])
}
