// Package mqtt subscribes to device telemetry on an MQTT broker and feeds
// every decodable message into the ingestion pipeline.
package mqtt
