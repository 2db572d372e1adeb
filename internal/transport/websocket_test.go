package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairchat/internal/wire"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newWSServer upgrades each request and hands the connection to serve.
func newWSServer(t *testing.T, serve func(*websocket.Conn, *http.Request)) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectDispatchesConnectEvent(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	gw := NewWebSocketGateway(url, "tok")
	connected := false
	gw.On(wire.EventConnect, func(json.RawMessage) { connected = true })

	require.NoError(t, gw.Connect(context.Background()))
	defer gw.Disconnect()

	assert.True(t, connected, "connect event must fire before Connect returns")
}

func TestHandshakeCarriesBearerToken(t *testing.T) {
	authHeader := make(chan string, 1)
	_, url := newWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		authHeader <- r.Header.Get("Authorization")
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	gw := NewWebSocketGateway(url, "secret-token")
	require.NoError(t, gw.Connect(context.Background()))
	defer gw.Disconnect()

	assert.Equal(t, "Bearer secret-token", <-authHeader)
}

func TestEmitAndReceiveRoundTrip(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		// Echo every sendMessage back as a messageReceived broadcast.
		for {
			var evt wire.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			if evt.Event != wire.EventSendMessage {
				continue
			}
			var p wire.SendPayload
			if err := json.Unmarshal(evt.Data, &p); err != nil {
				return
			}
			reply, _ := wire.NewEvent(wire.EventMessageReceived, wire.MessagePayload{
				ID: "srv-1", SenderID: p.UserID, Text: p.Text, Timestamp: p.Timestamp,
			})
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}
	})

	gw := NewWebSocketGateway(url, "")
	received := make(chan wire.MessagePayload, 1)
	gw.On(wire.EventMessageReceived, func(data json.RawMessage) {
		var p wire.MessagePayload
		require.NoError(t, json.Unmarshal(data, &p))
		received <- p
	})

	require.NoError(t, gw.Connect(context.Background()))
	defer gw.Disconnect()

	require.NoError(t, gw.Emit(wire.EventSendMessage, wire.SendPayload{
		UserID: "alice", TargetUserID: "bob", Text: "yo", Timestamp: time.Now(),
	}))

	select {
	case p := <-received:
		assert.Equal(t, "srv-1", p.ID)
		assert.Equal(t, "yo", p.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no messageReceived event")
	}
}

func TestEmitWithoutConnection(t *testing.T) {
	gw := NewWebSocketGateway("ws://localhost:0", "")
	err := gw.Emit(wire.EventSendMessage, wire.SendPayload{Text: "hi"})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	gw := NewWebSocketGateway(url, "")
	require.NoError(t, gw.Connect(context.Background()))
	require.NoError(t, gw.Disconnect())
	require.NoError(t, gw.Disconnect())

	require.ErrorIs(t, gw.Emit(wire.EventSendMessage, nil), ErrNotConnected)
}

func TestServerCloseDispatchesDisconnect(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
	})

	gw := NewWebSocketGateway(url, "")
	disconnected := make(chan wire.DisconnectPayload, 1)
	gw.On(wire.EventDisconnect, func(data json.RawMessage) {
		var p wire.DisconnectPayload
		_ = json.Unmarshal(data, &p)
		disconnected <- p
	})

	require.NoError(t, gw.Connect(context.Background()))

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnect event")
	}
}

func TestDialFailureDispatchesConnectError(t *testing.T) {
	gw := NewWebSocketGateway("ws://127.0.0.1:1", "")
	errored := false
	gw.On(wire.EventConnectError, func(json.RawMessage) { errored = true })

	require.Error(t, gw.Connect(context.Background()))
	assert.True(t, errored)
}

func TestReconnectAfterDisconnect(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	gw := NewWebSocketGateway(url, "")
	connects := 0
	gw.On(wire.EventConnect, func(json.RawMessage) { connects++ })

	require.NoError(t, gw.Connect(context.Background()))
	require.NoError(t, gw.Disconnect())
	require.NoError(t, gw.Connect(context.Background()))
	defer gw.Disconnect()

	assert.Equal(t, 2, connects)
}
