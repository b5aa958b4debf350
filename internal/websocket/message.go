package websocket

import (
	"encoding/json"
	"strings"
	"time"
)

// Message types for WebSocket communication
const (
	MessageTypeConnection = "connection"
	MessageTypeHeartbeat  = "heartbeat"
	MessageTypePong       = "pong"

	// Client requests
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
)

// Message represents a WebSocket message sent to clients
type Message struct {
	Type      string      `json:"type"`
	Topic     string      `json:"topic,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m Message) ToJSON() []byte {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(m)
	if err != nil {
		fallback, _ := json.Marshal(Message{Type: m.Type, Topic: m.Topic, Timestamp: m.Timestamp})
		return fallback
	}
	return data
}

// clientRequest is a message received from a client
type clientRequest struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

// TopicOf returns the topic of an event type: the part before the first dot,
// e.g. "automation" for "automation.action_executed"
func TopicOf(eventType string) string {
	if i := strings.IndexByte(eventType, '.'); i > 0 {
		return eventType[:i]
	}
	return eventType
}

// EventMessage wraps a published event
func EventMessage(eventType string, data interface{}) Message {
	return Message{
		Type:      eventType,
		Topic:     TopicOf(eventType),
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
