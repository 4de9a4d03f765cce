package telemetry

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Source identifies the transport a reading arrived on.
type Source string

const (
	// SourceHTTP marks readings pushed over the HTTP ingest endpoint.
	SourceHTTP Source = "http"
	// SourceMQTT marks readings delivered by the MQTT subscription.
	SourceMQTT Source = "mqtt"
	// SourceNone is only used by the default record of an empty store.
	SourceNone Source = "none"
)

// EventType is the direction of an alarm transition.
type EventType string

const (
	// AlarmOn is logged when a device's smoke level rises above the threshold.
	AlarmOn EventType = "ALARM_ON"
	// AlarmOff is logged when a device's smoke level drops back to or below the threshold.
	AlarmOff EventType = "ALARM_OFF"
)

const (
	// UnknownDeviceID substitutes a missing or empty device identifier.
	UnknownDeviceID = "unknown"
	// DefaultThreshold is the smoke level above which a device is in alarm.
	DefaultThreshold = 1800.0
)

// eventNamespace scopes the name-based UUIDs given to alarm events.
//
//nolint:gochecknoglobals // Constant namespace, uuid.UUID cannot be a const.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:smokewatch:alarm-event"))

// Reading is one normalized telemetry sample. It is never stored as is.
type Reading struct {
	// DeviceID is the reporting device, UnknownDeviceID when not supplied.
	DeviceID string
	// Smoke is nil when the payload had no usable value; the store then keeps
	// the previous level of the device, or 0 for a new device.
	Smoke *float64
	// Lat is the reported latitude, nil when unknown.
	Lat *float64
	// Lon is the reported longitude, nil when unknown.
	Lon *float64
	// Source is the ingress transport.
	Source Source
	// ArrivedAt is assigned at normalization time and orders all readings.
	ArrivedAt time.Time
}

// DeviceRecord is the current authoritative state of a single device.
type DeviceRecord struct {
	// DeviceID identifies the device.
	DeviceID string
	// Smoke is the last smoke level.
	Smoke float64
	// Alarm is true when Smoke is above the configured threshold.
	Alarm bool
	// Lat is the last reported latitude, nil when unknown.
	Lat *float64
	// Lon is the last reported longitude, nil when unknown.
	Lon *float64
	// Timestamp is the arrival time of the reading that produced the record.
	// It is zero only for the default record.
	Timestamp time.Time
	// Source is the transport of the last reading.
	Source Source
}

// DefaultRecord is returned when the most recent device of an empty store is requested.
func DefaultRecord() DeviceRecord {
	return DeviceRecord{
		DeviceID: UnknownDeviceID,
		Source:   SourceNone,
	}
}

// Clone returns a copy of the record that shares no pointers with the original.
func (r *DeviceRecord) Clone() *DeviceRecord {
	if r == nil {
		return nil
	}

	cloned := *r
	cloned.Lat = CloneFloat(r.Lat)
	cloned.Lon = CloneFloat(r.Lon)

	return &cloned
}

// AlarmEvent is an immutable record of a device entering or leaving alarm.
type AlarmEvent struct {
	// ID is derived from Timestamp and DeviceID.
	ID string
	// DeviceID identifies the device that changed state.
	DeviceID string
	// Type is the direction of the change.
	Type EventType
	// Smoke is the level that caused the change.
	Smoke float64
	// Lat is the position at the time of the change, nil when unknown.
	Lat *float64
	// Lon is the position at the time of the change, nil when unknown.
	Lon *float64
	// Timestamp is the arrival time of the triggering reading.
	Timestamp time.Time
	// Source is the transport of the triggering reading.
	Source Source
}

// NewAlarmEvent builds the transition event for a freshly stored record.
func NewAlarmEvent(record *DeviceRecord) AlarmEvent {
	eventType := AlarmOff
	if record.Alarm {
		eventType = AlarmOn
	}

	return AlarmEvent{
		ID:        EventID(record.Timestamp, record.DeviceID),
		DeviceID:  record.DeviceID,
		Type:      eventType,
		Smoke:     record.Smoke,
		Lat:       CloneFloat(record.Lat),
		Lon:       CloneFloat(record.Lon),
		Timestamp: record.Timestamp,
		Source:    record.Source,
	}
}

// EventID derives a stable identifier from an arrival time and a device id.
func EventID(ts time.Time, deviceID string) string {
	name := fmt.Sprintf("%d/%s", ts.UnixNano(), deviceID)

	return uuid.NewSHA1(eventNamespace, []byte(name)).String()
}

// Clone returns a copy of the event that shares no pointers with the original.
func (e *AlarmEvent) Clone() *AlarmEvent {
	if e == nil {
		return nil
	}

	cloned := *e
	cloned.Lat = CloneFloat(e.Lat)
	cloned.Lon = CloneFloat(e.Lon)

	return &cloned
}

// IsAlarm reports whether level is above threshold.
func IsAlarm(level, threshold float64) bool {
	return level > threshold
}

// Float returns a pointer to v, handy for optional coordinates.
func Float(v float64) *float64 {
	return &v
}

// CloneFloat copies an optional value.
func CloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}

	cloned := *v

	return &cloned
}
