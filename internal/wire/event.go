// Package wire defines the JSON frames exchanged over the push channel.
// Both the client transport and the server websocket endpoint speak this
// protocol, so the payload shapes live in one place.
package wire

import (
	"encoding/json"
	"time"
)

// Event names carried in the envelope. The lifecycle events (connect,
// disconnect, connect_error) are synthesized by the transport and never
// appear on the wire.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"

	EventJoinChat        = "joinChat"
	EventSendMessage     = "sendMessage"
	EventMessageReceived = "messageReceived"
)

// Event is the envelope for every frame on the push channel.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals payload into an envelope.
func NewEvent(name string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Event: name, Data: data}, nil
}

// JoinPayload is the per-connection handshake that tells the server which
// pair of identities this connection represents.
type JoinPayload struct {
	DisplayName  string `json:"display_name"`
	UserID       string `json:"user_id"`
	TargetUserID string `json:"target_user_id"`
}

// SendPayload is an outbound message emission.
type SendPayload struct {
	UserID       string    `json:"user_id"`
	TargetUserID string    `json:"target_user_id"`
	Text         string    `json:"text"`
	Timestamp    time.Time `json:"timestamp"`
	DisplayName  string    `json:"display_name,omitempty"`
}

// MessagePayload is a server-pushed message, including the broadcast echo of
// a message this client just sent.
type MessagePayload struct {
	ID        string    `json:"id,omitempty"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// DisconnectPayload carries the reason a connection closed.
type DisconnectPayload struct {
	Reason string `json:"reason"`
}

// ErrorPayload describes a transport-level failure.
type ErrorPayload struct {
	Error string `json:"error"`
}
