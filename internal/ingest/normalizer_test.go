package ingest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/smokewatch/internal/domain/telemetry"
)

// fixedClock returns a clock that always reports the same instant.
func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

// TestNormalize_FullPayload checks a well-formed payload maps field by field.
func TestNormalize_FullPayload(t *testing.T) {
	t.Parallel()

	ts := time.Unix(1_700_000_000, 0)
	n := NewNormalizer(WithClock(fixedClock(ts)))

	r := n.Normalize(map[string]any{
		"device_id": "esp32-01",
		"smoke":     float64(2100),
		"lat":       45.8,
		"lon":       15.9,
	}, telemetry.SourceHTTP)

	require.Equal(t, "esp32-01", r.DeviceID)
	require.NotNil(t, r.Smoke)
	require.InDelta(t, 2100, *r.Smoke, 0)
	require.InDelta(t, 45.8, *r.Lat, 0)
	require.InDelta(t, 15.9, *r.Lon, 0)
	require.Equal(t, telemetry.SourceHTTP, r.Source)
	require.Equal(t, ts, r.ArrivedAt)
}

// TestNormalize_MissingFields verifies the defaults for absent fields.
func TestNormalize_MissingFields(t *testing.T) {
	t.Parallel()

	r := NewNormalizer().Normalize(map[string]any{}, telemetry.SourceMQTT)

	require.Equal(t, telemetry.UnknownDeviceID, r.DeviceID)
	require.Nil(t, r.Smoke)
	require.Nil(t, r.Lat)
	require.Nil(t, r.Lon)
	require.Equal(t, telemetry.SourceMQTT, r.Source)
	require.False(t, r.ArrivedAt.IsZero())
}

// TestNormalize_DeviceID covers the accepted identifier shapes.
func TestNormalize_DeviceID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "kitchen", "kitchen"},
		{"padded string", "  hall  ", "hall"},
		{"empty string", "", telemetry.UnknownDeviceID},
		{"blank string", "   ", telemetry.UnknownDeviceID},
		{"json number", float64(42), "42"},
		{"fractional number", 4.5, "4.5"},
		{"cbor unsigned", uint64(7), "7"},
		{"cbor negative", int64(-3), "-3"},
		{"null", nil, telemetry.UnknownDeviceID},
		{"bool", true, telemetry.UnknownDeviceID},
		{"object", map[string]any{"id": "x"}, telemetry.UnknownDeviceID},
		{"invalid utf8", string([]byte{'a', 0xff}), "a�"},
	}

	n := NewNormalizer()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := n.Normalize(map[string]any{"device_id": tt.value}, telemetry.SourceHTTP)
			require.Equal(t, tt.want, r.DeviceID)
		})
	}
}

// TestNormalize_DeviceIDAlias accepts the camel-case key when the canonical one is absent.
func TestNormalize_DeviceIDAlias(t *testing.T) {
	t.Parallel()

	r := NewNormalizer().Normalize(map[string]any{"deviceId": "alias"}, telemetry.SourceHTTP)
	require.Equal(t, "alias", r.DeviceID)

	r = NewNormalizer().Normalize(map[string]any{"device_id": "canonical", "deviceId": "alias"}, telemetry.SourceHTTP)
	require.Equal(t, "canonical", r.DeviceID)
}

// TestNormalize_Smoke covers numeric coercion and the unusable cases.
func TestNormalize_Smoke(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		want  *float64
	}{
		{"float", 1234.5, telemetry.Float(1234.5)},
		{"zero", float64(0), telemetry.Float(0)},
		{"numeric string", " 1900 ", telemetry.Float(1900)},
		{"cbor unsigned", uint64(2000), telemetry.Float(2000)},
		{"cbor negative", int64(-5), telemetry.Float(-5)},
		{"true", true, telemetry.Float(1)},
		{"false", false, telemetry.Float(0)},
		{"garbage string", "smoky", nil},
		{"empty string", "", nil},
		{"null", nil, nil},
		{"nan string", "NaN", nil},
		{"infinity", math.Inf(1), nil},
		{"array", []any{float64(1)}, nil},
	}

	n := NewNormalizer()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := n.Normalize(map[string]any{"smoke": tt.value}, telemetry.SourceHTTP)
			if tt.want == nil {
				require.Nil(t, r.Smoke)
				return
			}

			require.NotNil(t, r.Smoke)
			require.InDelta(t, *tt.want, *r.Smoke, 0)
		})
	}
}

// TestNormalize_Position distinguishes unknown coordinates from zero.
func TestNormalize_Position(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()

	r := n.Normalize(map[string]any{"lat": float64(0), "lon": float64(0)}, telemetry.SourceHTTP)
	require.NotNil(t, r.Lat)
	require.NotNil(t, r.Lon)
	require.Zero(t, *r.Lat)
	require.Zero(t, *r.Lon)

	r = n.Normalize(map[string]any{"lat": nil, "lon": "east"}, telemetry.SourceHTTP)
	require.Nil(t, r.Lat)
	require.Nil(t, r.Lon)

	r = n.Normalize(map[string]any{"latitude": "45.5", "lng": -73.6}, telemetry.SourceHTTP)
	require.InDelta(t, 45.5, *r.Lat, 0)
	require.InDelta(t, -73.6, *r.Lon, 0)
}

// TestNormalize_ArrivalIsStrictlyIncreasing ensures a stalled clock still orders readings.
func TestNormalize_ArrivalIsStrictlyIncreasing(t *testing.T) {
	t.Parallel()

	ts := time.Unix(500, 0)
	n := NewNormalizer(WithClock(fixedClock(ts)))

	first := n.Normalize(nil, telemetry.SourceHTTP).ArrivedAt
	second := n.Normalize(nil, telemetry.SourceHTTP).ArrivedAt
	third := n.Normalize(nil, telemetry.SourceMQTT).ArrivedAt

	require.Equal(t, ts, first)
	require.True(t, second.After(first))
	require.True(t, third.After(second))
}

// TestNormalize_ClockGoingBackwards keeps ordering when wall time jumps back.
func TestNormalize_ClockGoingBackwards(t *testing.T) {
	t.Parallel()

	times := []time.Time{time.Unix(100, 0), time.Unix(50, 0)}
	i := 0
	n := NewNormalizer(WithClock(func() time.Time {
		ts := times[i]
		i++

		return ts
	}))

	first := n.Normalize(nil, telemetry.SourceHTTP).ArrivedAt
	second := n.Normalize(nil, telemetry.SourceHTTP).ArrivedAt

	require.Equal(t, first.Add(time.Nanosecond), second)
}
