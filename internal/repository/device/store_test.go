package device

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/smokewatch/internal/domain/telemetry"
)

// reading builds a test reading arriving at the given second.
func reading(deviceID string, smoke *float64, sec int64) telemetry.Reading {
	return telemetry.Reading{
		DeviceID:  deviceID,
		Smoke:     smoke,
		Source:    telemetry.SourceHTTP,
		ArrivedAt: time.Unix(sec, 0),
	}
}

// TestStore_UpsertCreatesAndReplaces verifies last-write-wins for every mutable field.
func TestStore_UpsertCreatesAndReplaces(t *testing.T) {
	t.Parallel()

	s := NewStore()

	first := reading("A", telemetry.Float(500), 1)
	first.Lat = telemetry.Float(45)
	first.Lon = telemetry.Float(15)
	first.Source = telemetry.SourceMQTT

	res := s.Upsert(first, nil)
	require.Nil(t, res.Previous)
	require.False(t, res.Record.Alarm)
	require.Equal(t, 1, s.Count())

	second := reading("A", telemetry.Float(2000), 2)

	res = s.Upsert(second, nil)
	require.NotNil(t, res.Previous)
	require.InDelta(t, 500, res.Previous.Smoke, 0)

	got, ok := s.Get("A")
	require.True(t, ok)
	require.InDelta(t, 2000, got.Smoke, 0)
	require.True(t, got.Alarm)
	require.Nil(t, got.Lat, "position from an earlier reading must not survive")
	require.Nil(t, got.Lon)
	require.Equal(t, telemetry.SourceHTTP, got.Source)
	require.Equal(t, time.Unix(2, 0), got.Timestamp)
	require.Equal(t, 1, s.Count())
}

// TestStore_SmokeFallback keeps the previous level when a reading carries none.
func TestStore_SmokeFallback(t *testing.T) {
	t.Parallel()

	s := NewStore()

	res := s.Upsert(reading("new", nil, 1), nil)
	require.Zero(t, res.Record.Smoke)

	s.Upsert(reading("A", telemetry.Float(1900), 1), nil)

	res = s.Upsert(reading("A", nil, 2), nil)
	require.InDelta(t, 1900, res.Record.Smoke, 0)
	require.True(t, res.Record.Alarm)
	require.False(t, res.AlarmChanged())
}

// TestStore_CommitCallback fires for every stored reading and flags alarm edges.
func TestStore_CommitCallback(t *testing.T) {
	t.Parallel()

	s := NewStore(WithThreshold(1800))

	var (
		commits     int
		transitions []bool
	)

	record := func(result UpsertResult) {
		commits++

		if result.AlarmChanged() {
			transitions = append(transitions, result.Record.Alarm)
		}
	}

	levels := []float64{500, 2000, 2100, 100, 50, 1801}
	for i, level := range levels {
		s.Upsert(reading("A", telemetry.Float(level), int64(i+1)), record)
	}

	require.Equal(t, len(levels), commits)
	require.Equal(t, []bool{true, false, true}, transitions)
}

// TestStore_OutOfOrderReadings keeps the later arrival when readings are applied in reverse order.
func TestStore_OutOfOrderReadings(t *testing.T) {
	t.Parallel()

	s := NewStore(WithThreshold(1800))

	earlier := reading("A", telemetry.Float(2000), 1)
	later := reading("A", telemetry.Float(100), 2)

	s.Upsert(later, nil)

	called := false

	res := s.Upsert(earlier, func(UpsertResult) { called = true })
	require.True(t, res.Stale)
	require.False(t, res.AlarmChanged())
	require.False(t, called)
	require.InDelta(t, 100, res.Record.Smoke, 0)

	got, ok := s.Get("A")
	require.True(t, ok)
	require.InDelta(t, 100, got.Smoke, 0)
	require.False(t, got.Alarm)
	require.Equal(t, time.Unix(2, 0), got.Timestamp)

	// Same arrival time as the stored record is not newer either.
	res = s.Upsert(reading("A", telemetry.Float(5), 2), nil)
	require.True(t, res.Stale)
}

// TestStore_NewDeviceInAlarm treats an unseen device as previously not in alarm.
func TestStore_NewDeviceInAlarm(t *testing.T) {
	t.Parallel()

	s := NewStore()
	called := false

	res := s.Upsert(reading("hot", telemetry.Float(5000), 1), func(r UpsertResult) { called = r.AlarmChanged() })
	require.True(t, called)
	require.False(t, res.PreviousAlarm())
	require.True(t, res.AlarmChanged())
}

// TestStore_GetAbsent ensures unknown ids report absence rather than a zero record.
func TestStore_GetAbsent(t *testing.T) {
	t.Parallel()

	got, ok := NewStore().Get("ghost")
	require.False(t, ok)
	require.Empty(t, got.DeviceID)
}

// TestStore_ResultsAreCopies ensures callers cannot mutate stored records.
func TestStore_ResultsAreCopies(t *testing.T) {
	t.Parallel()

	s := NewStore()
	r := reading("A", telemetry.Float(1), 1)
	r.Lat = telemetry.Float(10)

	res := s.Upsert(r, nil)
	*res.Record.Lat = 99
	*r.Lat = 77

	got, _ := s.Get("A")
	*got.Lat = 55

	again, _ := s.Get("A")
	require.InDelta(t, 10, *again.Lat, 0)
}

// TestStore_List returns every device ordered by id.
func TestStore_List(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.Empty(t, s.List())

	for i, id := range []string{"c", "a", "b"} {
		s.Upsert(reading(id, telemetry.Float(1), int64(i)), nil)
	}

	ids := make([]string, 0, 3)
	for _, r := range s.List() {
		ids = append(ids, r.DeviceID)
	}

	require.Equal(t, []string{"a", "b", "c"}, ids)
}

// TestStore_MostRecent covers the empty default, ordering and ties.
func TestStore_MostRecent(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.Equal(t, telemetry.DefaultRecord(), s.MostRecent())

	s.Upsert(reading("X", telemetry.Float(10), 5), nil)
	require.Equal(t, "X", s.MostRecent().DeviceID)

	s.Upsert(reading("Y", telemetry.Float(10), 3), nil)
	require.Equal(t, "X", s.MostRecent().DeviceID)

	s.Upsert(reading("W", telemetry.Float(10), 5), nil)
	require.Equal(t, "W", s.MostRecent().DeviceID, "ties go to the smaller device id")

	s.Upsert(reading("Y", telemetry.Float(10), 9), nil)
	require.Equal(t, "Y", s.MostRecent().DeviceID)
}

// TestStore_ConcurrentUpserts hammers one device and many devices concurrently.
func TestStore_ConcurrentUpserts(t *testing.T) {
	t.Parallel()

	const (
		workers = 16
		rounds  = 200
	)

	s := NewStore(WithThreshold(0.5))

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		transitions int
	)

	for w := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range rounds {
				level := float64(i % 2)
				s.Upsert(reading("shared", &level, int64(w*rounds+i)), func(r UpsertResult) {
					if !r.AlarmChanged() {
						return
					}

					mu.Lock()
					transitions++
					mu.Unlock()
				})
				s.Upsert(reading(fmt.Sprintf("dev-%d", w), &level, int64(i)), nil)
			}
		}()
	}

	wg.Wait()

	require.Equal(t, workers+1, s.Count())
	require.Len(t, s.List(), workers+1)

	got, ok := s.Get("shared")
	require.True(t, ok)

	// Every transition flips the flag, so the parity of the count must match the final state.
	require.Equal(t, got.Alarm, transitions%2 == 1)
}
