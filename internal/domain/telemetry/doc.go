// Package telemetry contains the core domain types for smoke telemetry.
//
// A Reading is one normalized sample, a DeviceRecord is the current state of a
// device and an AlarmEvent is a logged change of a device's alarm condition.
// Clone helpers copy the optional coordinates so stored records are never
// shared with callers.
package telemetry
