// Package transport owns the bidirectional push connection to the chat
// server. The session engine consumes only the Gateway contract; the
// websocket implementation lives alongside it.
package transport

import (
	"context"
	"encoding/json"
)

// Handler receives the raw payload of a named inbound event.
type Handler func(data json.RawMessage)

// Gateway is the push-channel contract the session engine depends on.
// Lifecycle notifications are delivered through the same subscription
// mechanism as data events, under the names in the wire package.
type Gateway interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Emit(event string, payload any) error
	On(event string, handler Handler)
	Off(event string)
}
