package server

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/oshokin/smokewatch/internal/domain/telemetry"
	"github.com/oshokin/smokewatch/internal/ingest"
	"github.com/oshokin/smokewatch/internal/logger"
	"github.com/oshokin/smokewatch/internal/metrics"
	"github.com/oshokin/smokewatch/internal/repository/alarmlog"
	"github.com/oshokin/smokewatch/internal/repository/device"
)

// rejectLogInterval caps how often discarded payloads are logged.
const rejectLogInterval = 5 * time.Second

// notifier receives the effects of stored readings, e.g. the live stream hub.
type notifier interface {
	NotifyDevice(record telemetry.DeviceRecord)
	NotifyAlarm(event telemetry.AlarmEvent)
}

// service runs the ingestion pipeline and answers queries.
// It is unexported to keep the transports decoupled from the implementation.
type service struct {
	// normalizer turns decoded payloads into readings.
	normalizer *ingest.Normalizer
	// devices holds the current record of every device.
	devices device.Repository
	// alarms holds the bounded transition history.
	alarms alarmlog.Repository
	// metrics is optional.
	metrics *metrics.Metrics
	// notifiers are told about every stored record and transition.
	notifiers []notifier
	// rejectLog throttles warnings about discarded payloads.
	rejectLog rate.Sometimes
}

// serviceOption configures the service.
type serviceOption func(*service)

// withMetrics records ingestion counters into m.
func withMetrics(m *metrics.Metrics) serviceOption {
	return func(s *service) {
		s.metrics = m
	}
}

// withNotifier adds a receiver for stored records and transitions.
func withNotifier(n notifier) serviceOption {
	return func(s *service) {
		if n != nil {
			s.notifiers = append(s.notifiers, n)
		}
	}
}

// withNormalizer replaces the default normalizer.
func withNormalizer(n *ingest.Normalizer) serviceOption {
	return func(s *service) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// newService creates a service over the provided repositories.
func newService(devices device.Repository, alarms alarmlog.Repository, opts ...serviceOption) *service {
	s := &service{
		normalizer: ingest.NewNormalizer(),
		devices:    devices,
		alarms:     alarms,
		rejectLog:  rate.Sometimes{First: 1, Interval: rejectLogInterval},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Ingest normalizes and stores one payload, logging an alarm event when the
// device's alarm flag flips. It never fails.
func (s *service) Ingest(ctx context.Context, payload map[string]any, source telemetry.Source) telemetry.DeviceRecord {
	reading := s.normalizer.Normalize(payload, source)

	var (
		event   telemetry.AlarmEvent
		flipped bool
	)

	// The append and the notifications run under the device lock, so the
	// log and the live stream see one device's updates in store order.
	result := s.devices.Upsert(reading, func(r device.UpsertResult) {
		if r.AlarmChanged() {
			event = telemetry.NewAlarmEvent(&r.Record)
			flipped = true

			s.alarms.Append(event)
		}

		for _, n := range s.notifiers {
			n.NotifyDevice(r.Record)

			if flipped {
				n.NotifyAlarm(event)
			}
		}
	})

	record := result.Record

	if s.metrics != nil {
		s.metrics.ReadingsTotal.WithLabelValues(string(source)).Inc()
	}

	if result.Stale {
		logger.DebugKV(ctx, "Stale reading ignored",
			"device_id", reading.DeviceID,
			"arrived_at", reading.ArrivedAt,
			"stored_at", record.Timestamp,
		)

		return record
	}

	logger.DebugKV(ctx, "Reading stored",
		"device_id", record.DeviceID,
		"smoke", record.Smoke,
		"alarm", record.Alarm,
		"source", record.Source,
	)

	if flipped {
		logger.InfoKV(ctx, "Alarm state changed",
			"device_id", event.DeviceID,
			"type", event.Type,
			"smoke", event.Smoke,
			"source", event.Source,
		)

		if s.metrics != nil {
			s.metrics.AlarmTransitionsTotal.WithLabelValues(string(event.Type)).Inc()
		}
	}

	return record
}

// RejectPayload accounts for a payload an adapter could not decode.
// Warnings are throttled so a misbehaving device cannot flood the log.
func (s *service) RejectPayload(ctx context.Context, source telemetry.Source, err error) {
	if s.metrics != nil {
		s.metrics.PayloadRejectedTotal.WithLabelValues(string(source)).Inc()
	}

	s.rejectLog.Do(func() {
		logger.WarnKV(ctx, "Discarding undecodable payload", "source", source, "error", err)
	})
}

// ListDevices returns every current device record ordered by id.
func (s *service) ListDevices(_ context.Context) []telemetry.DeviceRecord {
	return s.devices.List()
}

// GetDevice returns one device record and whether it exists.
func (s *service) GetDevice(_ context.Context, deviceID string) (telemetry.DeviceRecord, bool) {
	return s.devices.Get(deviceID)
}

// LatestDevice returns the most recently updated record, or the default record.
func (s *service) LatestDevice(_ context.Context) telemetry.DeviceRecord {
	return s.devices.MostRecent()
}

// ListAlarms returns the whole alarm history, newest first.
func (s *service) ListAlarms(_ context.Context) []telemetry.AlarmEvent {
	return s.alarms.List()
}

// ListAlarmsFor returns the alarm history of one device, newest first.
func (s *service) ListAlarmsFor(_ context.Context, deviceID string) []telemetry.AlarmEvent {
	return s.alarms.ListFor(deviceID)
}
