// Package ingest turns raw device payloads into canonical readings.
//
// Decode accepts JSON objects and CBOR maps. Normalize coerces the loosely
// typed result into a telemetry.Reading and never fails: missing or malformed
// fields degrade to documented defaults.
package ingest
