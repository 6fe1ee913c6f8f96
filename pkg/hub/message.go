// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import "encoding/json"

// Event types pushed to dashboard clients.
const (
	EventState          = "state"
	EventActuationError = "actuation_error"
	EventStatus         = "status"
)

// Message is one encoded event queued for clients.
type Message struct {
	Data []byte
}

// Event is the envelope every broadcast is wrapped in.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// NewEventMessage encodes an event envelope.
func NewEventMessage(eventType string, data any) (Message, error) {
	b, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return Message{}, err
	}
	return Message{Data: b}, nil
}
