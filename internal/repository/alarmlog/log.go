package alarmlog

import (
	"sync"

	"github.com/oshokin/smokewatch/internal/domain/telemetry"
)

// DefaultCapacity is the history size used when none is configured.
const DefaultCapacity = 100

// Repository defines the alarm history operations the service depends on.
type Repository interface {
	Append(event telemetry.AlarmEvent)
	List() []telemetry.AlarmEvent
	ListFor(deviceID string) []telemetry.AlarmEvent
	Len() int
}

// Log is a fixed-size ring of alarm events. Appending to a full log
// overwrites the oldest event.
type Log struct {
	// mu protects every field below.
	mu sync.RWMutex
	// events is the ring storage; its length is the capacity.
	events []telemetry.AlarmEvent
	// head is the index the next event is written to.
	head int
	// size is the number of stored events.
	size int
}

// New creates a log holding at most capacity events.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Log{
		events: make([]telemetry.AlarmEvent, capacity),
	}
}

// Append records event as the newest entry, evicting the oldest one when full.
func (l *Log) Append(event telemetry.AlarmEvent) {
	stored := event.Clone()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.events[l.head] = *stored
	l.head = (l.head + 1) % len(l.events)

	if l.size < len(l.events) {
		l.size++
	}
}

// List returns all events, newest first.
func (l *Log) List() []telemetry.AlarmEvent {
	return l.collect(func(*telemetry.AlarmEvent) bool { return true })
}

// ListFor returns the events of one device, newest first.
func (l *Log) ListFor(deviceID string) []telemetry.AlarmEvent {
	return l.collect(func(e *telemetry.AlarmEvent) bool { return e.DeviceID == deviceID })
}

// Len returns the number of stored events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.size
}

// Capacity returns the maximum number of stored events.
func (l *Log) Capacity() int {
	return len(l.events)
}

// collect walks the ring from newest to oldest and copies matching events.
func (l *Log) collect(match func(*telemetry.AlarmEvent) bool) []telemetry.AlarmEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]telemetry.AlarmEvent, 0, l.size)

	for i := 1; i <= l.size; i++ {
		idx := (l.head - i + len(l.events)) % len(l.events)

		event := &l.events[idx]
		if match(event) {
			result = append(result, *event.Clone())
		}
	}

	return result
}
