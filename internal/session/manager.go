package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"pairchat/internal/transport"
	"pairchat/internal/wire"
)

// State is the connection lifecycle of a session.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateError        State = "error"
)

// ConnectionManager drives the gateway's lifecycle for one session and keeps
// the connection state truthful. The join handshake is re-sent on every
// connect event, not once per session: the server's routing state is
// connection-scoped, and skipping the handshake after a silent reconnect is
// the classic cause of "messages stop arriving".
type ConnectionManager struct {
	gw      transport.Gateway
	onState func(State)

	mu      sync.Mutex
	state   State
	lastErr error
}

// NewConnectionManager builds a manager over the gateway. onState may be nil;
// when set it is invoked outside the manager lock after every transition.
func NewConnectionManager(gw transport.Gateway, onState func(State)) *ConnectionManager {
	return &ConnectionManager{gw: gw, onState: onState, state: StateIdle}
}

// Start registers lifecycle handlers and opens the connection. It fails with
// ErrInvalidSession when either identity is missing. A manager in the error
// or disconnected state may be started again to retry.
func (m *ConnectionManager) Start(ctx context.Context, selfID, peerID, displayName string) error {
	if selfID == "" || peerID == "" {
		return ErrInvalidSession
	}

	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	m.setState(StateConnecting)

	m.gw.On(wire.EventConnect, func(json.RawMessage) {
		m.setState(StateConnected)
		join := wire.JoinPayload{
			DisplayName:  displayName,
			UserID:       selfID,
			TargetUserID: peerID,
		}
		if err := m.gw.Emit(wire.EventJoinChat, join); err != nil {
			log.Printf("join handshake failed: %v", err)
			m.recordErr(err)
		}
	})
	m.gw.On(wire.EventDisconnect, func(data json.RawMessage) {
		var p wire.DisconnectPayload
		_ = json.Unmarshal(data, &p)
		if p.Reason != "" {
			log.Printf("connection closed: %s", p.Reason)
		}
		m.setState(StateDisconnected)
	})
	m.gw.On(wire.EventConnectError, func(data json.RawMessage) {
		var p wire.ErrorPayload
		_ = json.Unmarshal(data, &p)
		log.Printf("connection error: %s", p.Error)
		m.recordErr(&connectionError{reason: p.Error})
		m.setState(StateError)
	})

	if err := m.gw.Connect(ctx); err != nil {
		m.recordErr(err)
		m.setState(StateError)
		return err
	}
	return nil
}

// Stop unregisters handlers, closes the connection and returns to idle.
// Idempotent: safe when already stopped.
func (m *ConnectionManager) Stop() error {
	m.gw.Off(wire.EventConnect)
	m.gw.Off(wire.EventDisconnect)
	m.gw.Off(wire.EventConnectError)
	err := m.gw.Disconnect()
	m.setState(StateIdle)
	return err
}

// State reports the current connection state.
func (m *ConnectionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the last recorded transport error, if any.
func (m *ConnectionManager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *ConnectionManager) setState(s State) {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	m.mu.Unlock()
	if changed && m.onState != nil {
		m.onState(s)
	}
}

func (m *ConnectionManager) recordErr(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

type connectionError struct {
	reason string
}

func (e *connectionError) Error() string {
	if e.reason == "" {
		return "connection error"
	}
	return "connection error: " + e.reason
}
