package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairchat/internal/wire"
)

func TestStartRequiresBothIdentities(t *testing.T) {
	gw := newFakeGateway()
	m := NewConnectionManager(gw, nil)

	require.ErrorIs(t, m.Start(context.Background(), "", "peer", "Alice"), ErrInvalidSession)
	require.ErrorIs(t, m.Start(context.Background(), "self", "", "Alice"), ErrInvalidSession)
	assert.Equal(t, StateIdle, m.State())
}

func TestConnectEmitsJoinHandshake(t *testing.T) {
	gw := newFakeGateway()
	m := NewConnectionManager(gw, nil)

	require.NoError(t, m.Start(context.Background(), "self", "peer", "Alice"))
	assert.Equal(t, StateConnected, m.State())

	joins := gw.emissions(wire.EventJoinChat)
	require.Len(t, joins, 1)
	payload := joins[0].payload.(wire.JoinPayload)
	assert.Equal(t, "self", payload.UserID)
	assert.Equal(t, "peer", payload.TargetUserID)
	assert.Equal(t, "Alice", payload.DisplayName)
}

func TestJoinHandshakeRepeatsOnEveryConnect(t *testing.T) {
	gw := newFakeGateway()
	m := NewConnectionManager(gw, nil)
	require.NoError(t, m.Start(context.Background(), "self", "peer", "Alice"))

	gw.fire(wire.EventDisconnect, wire.DisconnectPayload{Reason: "network drop"})
	assert.Equal(t, StateDisconnected, m.State())

	// The server forgot the room on disconnect; the handshake must repeat.
	gw.fire(wire.EventConnect, nil)
	assert.Equal(t, StateConnected, m.State())
	assert.Len(t, gw.emissions(wire.EventJoinChat), 2)
}

func TestTransportErrorIsNonTerminal(t *testing.T) {
	gw := newFakeGateway()
	m := NewConnectionManager(gw, nil)
	require.NoError(t, m.Start(context.Background(), "self", "peer", "Alice"))

	gw.fire(wire.EventConnectError, wire.ErrorPayload{Error: "broken pipe"})
	assert.Equal(t, StateError, m.State())
	require.Error(t, m.Err())

	// Retry by starting again.
	require.NoError(t, m.Start(context.Background(), "self", "peer", "Alice"))
	assert.Equal(t, StateConnected, m.State())
}

func TestStopIsIdempotent(t *testing.T) {
	gw := newFakeGateway()
	m := NewConnectionManager(gw, nil)
	require.NoError(t, m.Start(context.Background(), "self", "peer", "Alice"))

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())
	assert.Equal(t, StateIdle, m.State())

	// Handlers were unregistered: late events no longer move the state.
	gw.fire(wire.EventConnect, nil)
	assert.Equal(t, StateIdle, m.State())
}

func TestStateCallbackObservesTransitions(t *testing.T) {
	gw := newFakeGateway()
	var states []State
	m := NewConnectionManager(gw, func(s State) { states = append(states, s) })

	require.NoError(t, m.Start(context.Background(), "self", "peer", "Alice"))
	gw.fire(wire.EventDisconnect, nil)

	assert.Equal(t, []State{StateConnecting, StateConnected, StateDisconnected}, states)
}
