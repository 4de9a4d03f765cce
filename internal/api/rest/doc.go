// Package rest implements the HTTP transport: telemetry ingestion, the read
// API consumed by dashboards and maps, the live stream, health and metrics.
//
// Ingestion is fire-and-forget. Devices always receive {"ok":true}, even when
// their payload could not be decoded and was discarded.
package rest
