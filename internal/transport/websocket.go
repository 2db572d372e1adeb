package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"pairchat/internal/wire"
)

// ErrNotConnected is returned by Emit when no connection is open.
var ErrNotConnected = errors.New("transport: not connected")

// WebSocketGateway implements Gateway over a gorilla websocket connection.
// Frames are wire.Event envelopes in both directions. Connect may be called
// again after Disconnect; handlers survive reconnects.
type WebSocketGateway struct {
	url   string
	token string

	mu      sync.Mutex // guards conn, closing
	conn    *websocket.Conn
	closing bool

	writeMu sync.Mutex

	handlerMu sync.RWMutex
	handlers  map[string]Handler
}

// NewWebSocketGateway builds a gateway for the given ws:// or wss:// URL.
// The token is sent as a bearer Authorization header on the handshake.
func NewWebSocketGateway(url, token string) *WebSocketGateway {
	return &WebSocketGateway{
		url:      url,
		token:    token,
		handlers: make(map[string]Handler),
	}
}

// Connect dials the server and starts the read loop. On success the connect
// lifecycle event is dispatched before Connect returns, so a handler
// registered beforehand observes it.
func (g *WebSocketGateway) Connect(ctx context.Context) error {
	header := http.Header{}
	if g.token != "" {
		header.Set("Authorization", "Bearer "+g.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, g.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		g.dispatchError(err)
		return err
	}

	g.mu.Lock()
	if g.conn != nil {
		g.mu.Unlock()
		conn.Close()
		return errors.New("transport: already connected")
	}
	g.conn = conn
	g.closing = false
	g.mu.Unlock()

	go g.readLoop(conn)

	g.dispatch(wire.EventConnect, nil)
	return nil
}

// Disconnect closes the connection. Safe to call repeatedly.
func (g *WebSocketGateway) Disconnect() error {
	g.mu.Lock()
	conn := g.conn
	g.conn = nil
	g.closing = true
	g.mu.Unlock()

	if conn == nil {
		return nil
	}

	g.writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	g.writeMu.Unlock()
	return conn.Close()
}

// Emit sends a named event with a JSON payload.
func (g *WebSocketGateway) Emit(event string, payload any) error {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	evt, err := wire.NewEvent(event, payload)
	if err != nil {
		return err
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	return conn.WriteJSON(evt)
}

// On registers the handler for a named event, replacing any previous one.
func (g *WebSocketGateway) On(event string, handler Handler) {
	g.handlerMu.Lock()
	defer g.handlerMu.Unlock()
	g.handlers[event] = handler
}

// Off removes the handler for a named event.
func (g *WebSocketGateway) Off(event string) {
	g.handlerMu.Lock()
	defer g.handlerMu.Unlock()
	delete(g.handlers, event)
}

func (g *WebSocketGateway) readLoop(conn *websocket.Conn) {
	for {
		var evt wire.Event
		if err := conn.ReadJSON(&evt); err != nil {
			g.mu.Lock()
			closing := g.closing
			if g.conn == conn {
				g.conn = nil
			}
			g.mu.Unlock()

			if closing || websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.dispatchDisconnect(err)
			} else {
				g.dispatchError(err)
			}
			return
		}
		g.dispatch(evt.Event, evt.Data)
	}
}

func (g *WebSocketGateway) dispatch(event string, data json.RawMessage) {
	g.handlerMu.RLock()
	handler := g.handlers[event]
	g.handlerMu.RUnlock()
	if handler != nil {
		handler(data)
	}
}

func (g *WebSocketGateway) dispatchDisconnect(err error) {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	data, _ := json.Marshal(wire.DisconnectPayload{Reason: reason})
	g.dispatch(wire.EventDisconnect, data)
}

func (g *WebSocketGateway) dispatchError(err error) {
	data, _ := json.Marshal(wire.ErrorPayload{Error: err.Error()})
	g.dispatch(wire.EventConnectError, data)
}
