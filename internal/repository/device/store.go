package device

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/oshokin/smokewatch/internal/domain/telemetry"
)

// Repository defines the device state operations the service depends on.
type Repository interface {
	Upsert(reading telemetry.Reading, onCommit CommitFunc) UpsertResult
	Get(deviceID string) (telemetry.DeviceRecord, bool)
	List() []telemetry.DeviceRecord
	MostRecent() telemetry.DeviceRecord
	Count() int
}

// CommitFunc is called for every stored reading while the device is still locked.
type CommitFunc func(result UpsertResult)

// UpsertResult describes the effect of one upsert.
type UpsertResult struct {
	// Record is the newly stored record.
	Record telemetry.DeviceRecord
	// Previous is the record that was replaced, nil for a new device.
	Previous *telemetry.DeviceRecord
	// Stale is set when the reading arrived before the stored record and was ignored.
	// Record then holds the unchanged current record.
	Stale bool
}

// PreviousAlarm returns the alarm flag before the upsert; false for a new device.
func (r UpsertResult) PreviousAlarm() bool {
	return r.Previous != nil && r.Previous.Alarm
}

// AlarmChanged reports whether the upsert flipped the alarm flag.
func (r UpsertResult) AlarmChanged() bool {
	return r.PreviousAlarm() != r.Record.Alarm
}

// entry holds the state of a single device.
type entry struct {
	// mu serialises writers of this device.
	mu sync.Mutex
	// record is the current record, nil until the first upsert completes.
	record atomic.Pointer[telemetry.DeviceRecord]
}

// Store is the in-memory Repository implementation.
type Store struct {
	// threshold is the smoke level above which a device is in alarm.
	threshold float64
	// entries maps device id to *entry.
	entries sync.Map
	// count is the number of devices with a stored record.
	count atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithThreshold sets the alarm threshold.
func WithThreshold(threshold float64) Option {
	return func(s *Store) {
		s.threshold = threshold
	}
}

// NewStore creates an empty store using telemetry.DefaultThreshold unless overridden.
func NewStore(opts ...Option) *Store {
	s := &Store{
		threshold: telemetry.DefaultThreshold,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Threshold returns the configured alarm threshold.
func (s *Store) Threshold() float64 {
	return s.threshold
}

// Upsert replaces the record of reading.DeviceID with one built from reading.
// A reading without smoke keeps the previous level of the device, or 0.
// A reading that arrived no later than the stored record is ignored, so the
// latest arrival always wins regardless of lock order. onCommit may be nil.
func (s *Store) Upsert(reading telemetry.Reading, onCommit CommitFunc) UpsertResult {
	e := s.entry(reading.DeviceID)

	e.mu.Lock()
	defer e.mu.Unlock()

	previous := e.record.Load()

	if previous != nil && !reading.ArrivedAt.After(previous.Timestamp) {
		return UpsertResult{
			Record:   *previous.Clone(),
			Previous: previous.Clone(),
			Stale:    true,
		}
	}

	smoke := 0.0

	switch {
	case reading.Smoke != nil:
		smoke = *reading.Smoke
	case previous != nil:
		smoke = previous.Smoke
	}

	record := &telemetry.DeviceRecord{
		DeviceID:  reading.DeviceID,
		Smoke:     smoke,
		Alarm:     telemetry.IsAlarm(smoke, s.threshold),
		Lat:       telemetry.CloneFloat(reading.Lat),
		Lon:       telemetry.CloneFloat(reading.Lon),
		Timestamp: reading.ArrivedAt,
		Source:    reading.Source,
	}

	e.record.Store(record)

	if previous == nil {
		s.count.Add(1)
	}

	result := UpsertResult{
		Record:   *record.Clone(),
		Previous: previous.Clone(),
	}

	if onCommit != nil {
		onCommit(result)
	}

	return result
}

// Get returns a copy of the device record and whether it exists.
func (s *Store) Get(deviceID string) (telemetry.DeviceRecord, bool) {
	value, ok := s.entries.Load(deviceID)
	if !ok {
		return telemetry.DeviceRecord{}, false
	}

	record := value.(*entry).record.Load() //nolint:forcetypeassert // Only *entry values are stored.
	if record == nil {
		return telemetry.DeviceRecord{}, false
	}

	return *record.Clone(), true
}

// List returns copies of all records ordered by device id.
func (s *Store) List() []telemetry.DeviceRecord {
	records := make([]telemetry.DeviceRecord, 0, s.count.Load())

	s.entries.Range(func(_, value any) bool {
		record := value.(*entry).record.Load() //nolint:forcetypeassert // Only *entry values are stored.
		if record != nil {
			records = append(records, *record.Clone())
		}

		return true
	})

	slices.SortFunc(records, func(a, b telemetry.DeviceRecord) int {
		return cmp.Compare(a.DeviceID, b.DeviceID)
	})

	return records
}

// MostRecent returns the record with the latest timestamp, ties going to the
// smaller device id. An empty store yields telemetry.DefaultRecord.
func (s *Store) MostRecent() telemetry.DeviceRecord {
	var latest *telemetry.DeviceRecord

	s.entries.Range(func(_, value any) bool {
		record := value.(*entry).record.Load() //nolint:forcetypeassert // Only *entry values are stored.
		if record == nil {
			return true
		}

		if latest == nil || newer(record, latest) {
			latest = record
		}

		return true
	})

	if latest == nil {
		return telemetry.DefaultRecord()
	}

	return *latest.Clone()
}

// Count returns the number of known devices.
func (s *Store) Count() int {
	return int(s.count.Load())
}

// entry returns the entry for deviceID, creating it on first use.
func (s *Store) entry(deviceID string) *entry {
	if value, ok := s.entries.Load(deviceID); ok {
		return value.(*entry) //nolint:forcetypeassert // Only *entry values are stored.
	}

	value, _ := s.entries.LoadOrStore(deviceID, new(entry))

	return value.(*entry) //nolint:forcetypeassert // Only *entry values are stored.
}

// newer reports whether a should be preferred over b as the most recent record.
func newer(a, b *telemetry.DeviceRecord) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}

	return a.DeviceID < b.DeviceID
}
