package ingest

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oshokin/smokewatch/internal/domain/telemetry"
)

// Payload keys recognised by the normalizer, in order of preference.
//
//nolint:gochecknoglobals // Read-only lookup tables.
var (
	deviceIDKeys = []string{"device_id", "deviceId"}
	smokeKeys    = []string{"smoke"}
	latKeys      = []string{"lat", "latitude"}
	lonKeys      = []string{"lon", "lng", "longitude"}
)

// Normalizer converts decoded payloads into readings and stamps them with a
// strictly increasing arrival time.
type Normalizer struct {
	// now returns the wall clock; replaced in tests.
	now func() time.Time

	// mu guards last.
	mu sync.Mutex
	// last is the most recently issued arrival time.
	last time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the wall clock used for arrival times.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// NewNormalizer creates a normalizer backed by the system clock.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		now: time.Now,
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Normalize coerces an arbitrary payload into a Reading. It never fails.
func (n *Normalizer) Normalize(payload map[string]any, source telemetry.Source) telemetry.Reading {
	return telemetry.Reading{
		DeviceID:  deviceID(payload),
		Smoke:     number(payload, smokeKeys),
		Lat:       number(payload, latKeys),
		Lon:       number(payload, lonKeys),
		Source:    source,
		ArrivedAt: n.arrival(),
	}
}

// arrival returns the current time, nudged forward when the clock did not advance
// or went backwards since the previous reading.
func (n *Normalizer) arrival() time.Time {
	now := n.now()

	n.mu.Lock()
	defer n.mu.Unlock()

	if !now.After(n.last) {
		now = n.last.Add(time.Nanosecond)
	}

	n.last = now

	return now
}

// deviceID extracts the device identifier or returns telemetry.UnknownDeviceID.
func deviceID(payload map[string]any) string {
	value, ok := lookup(payload, deviceIDKeys)
	if !ok {
		return telemetry.UnknownDeviceID
	}

	var id string

	switch v := value.(type) {
	case string:
		id = v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return telemetry.UnknownDeviceID
		}

		id = strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		id = strconv.FormatInt(v, 10)
	case uint64:
		id = strconv.FormatUint(v, 10)
	case []byte:
		id = string(v)
	default:
		return telemetry.UnknownDeviceID
	}

	id = strings.TrimSpace(strings.ToValidUTF8(id, "�"))
	if id == "" {
		return telemetry.UnknownDeviceID
	}

	return id
}

// number coerces the first present key to a finite float64; nil means absent or unusable.
func number(payload map[string]any, keys []string) *float64 {
	value, ok := lookup(payload, keys)
	if !ok {
		return nil
	}

	var f float64

	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint64:
		f = float64(v)
	case int:
		f = float64(v)
	case bool:
		if v {
			f = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}

		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}

	return &f
}

// lookup returns the first key present with a non-null value.
func lookup(payload map[string]any, keys []string) (any, bool) {
	for _, key := range keys {
		value, ok := payload[key]
		if ok && value != nil {
			return value, true
		}
	}

	return nil, false
}

// HasDeviceID reports whether payload carries a usable device identifier.
func HasDeviceID(payload map[string]any) bool {
	return deviceID(payload) != telemetry.UnknownDeviceID
}
