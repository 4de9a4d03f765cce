// Package view renders domain records into the wire shapes shared by the
// HTTP, WebSocket and gRPC adapters.
package view

import (
	"time"

	"github.com/oshokin/smokewatch/internal/domain/telemetry"
)

// Device is the wire form of a telemetry.DeviceRecord.
type Device struct {
	DeviceID  string   `json:"device_id"`
	Smoke     float64  `json:"smoke"`
	Alarm     bool     `json:"alarm"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Timestamp *int64   `json:"timestamp"`
	Source    string   `json:"source"`
}

// Alarm is the wire form of a telemetry.AlarmEvent.
type Alarm struct {
	ID        string   `json:"id"`
	DeviceID  string   `json:"device_id"`
	Type      string   `json:"type"`
	Smoke     float64  `json:"smoke"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Timestamp int64    `json:"timestamp"`
	Source    string   `json:"source"`
}

// FromRecord converts a device record. A zero timestamp renders as null.
func FromRecord(r *telemetry.DeviceRecord) Device {
	return Device{
		DeviceID:  r.DeviceID,
		Smoke:     r.Smoke,
		Alarm:     r.Alarm,
		Lat:       telemetry.CloneFloat(r.Lat),
		Lon:       telemetry.CloneFloat(r.Lon),
		Timestamp: millis(r.Timestamp),
		Source:    string(r.Source),
	}
}

// FromRecords converts a slice of device records.
func FromRecords(records []telemetry.DeviceRecord) []Device {
	result := make([]Device, 0, len(records))
	for i := range records {
		result = append(result, FromRecord(&records[i]))
	}

	return result
}

// FromEvent converts an alarm event.
func FromEvent(e *telemetry.AlarmEvent) Alarm {
	return Alarm{
		ID:        e.ID,
		DeviceID:  e.DeviceID,
		Type:      string(e.Type),
		Smoke:     e.Smoke,
		Lat:       telemetry.CloneFloat(e.Lat),
		Lon:       telemetry.CloneFloat(e.Lon),
		Timestamp: e.Timestamp.UnixMilli(),
		Source:    string(e.Source),
	}
}

// FromEvents converts a slice of alarm events, keeping their order.
func FromEvents(events []telemetry.AlarmEvent) []Alarm {
	result := make([]Alarm, 0, len(events))
	for i := range events {
		result = append(result, FromEvent(&events[i]))
	}

	return result
}

// Map returns the device as a generic map suitable for structpb.
func (d Device) Map() map[string]any {
	return map[string]any{
		"device_id": d.DeviceID,
		"smoke":     d.Smoke,
		"alarm":     d.Alarm,
		"lat":       optional(d.Lat),
		"lon":       optional(d.Lon),
		"timestamp": optionalInt(d.Timestamp),
		"source":    d.Source,
	}
}

// Map returns the alarm as a generic map suitable for structpb.
func (a Alarm) Map() map[string]any {
	return map[string]any{
		"id":        a.ID,
		"device_id": a.DeviceID,
		"type":      a.Type,
		"smoke":     a.Smoke,
		"lat":       optional(a.Lat),
		"lon":       optional(a.Lon),
		"timestamp": a.Timestamp,
		"source":    a.Source,
	}
}

func millis(ts time.Time) *int64 {
	if ts.IsZero() {
		return nil
	}

	ms := ts.UnixMilli()

	return &ms
}

// optional unwraps a pointer so structpb renders nil as a null value.
func optional(v *float64) any {
	if v == nil {
		return nil
	}

	return *v
}

func optionalInt(v *int64) any {
	if v == nil {
		return nil
	}

	return *v
}
