package ws

import "time"

// MessageType identifies the kind of a streamed message.
type MessageType string

const (
	// MessageDeviceUpdated carries a view.Device after every stored reading.
	MessageDeviceUpdated MessageType = "device.updated"
	// MessageAlarmTransition carries a view.Alarm after every alarm edge.
	MessageAlarmTransition MessageType = "alarm.transition"
)

// Message is the envelope written to WebSocket clients.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}
