package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pairchat/internal/observability"
	"pairchat/internal/wire"
)

// Hub maintains the active websocket rooms. A room holds the connections of
// the two participants of one conversation; broadcasts reach every member,
// including the sender, whose copy is the delivery echo the client engine
// reconciles against its optimistic entry.
type Hub struct {
	rooms    map[string]map[*websocket.Conn]bool
	connInfo map[string]map[*websocket.Conn]ConnInfo
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[*websocket.Conn]bool),
		connInfo: make(map[string]map[*websocket.Conn]ConnInfo),
	}
}

// Join registers a websocket connection to a room.
func (h *Hub) Join(room string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*websocket.Conn]bool)
	}
	h.rooms[room][conn] = true
	if _, ok := h.connInfo[room]; !ok {
		h.connInfo[room] = make(map[*websocket.Conn]ConnInfo)
	}
	h.connInfo[room][conn] = info
}

// Leave removes a websocket connection from a room.
func (h *Hub) Leave(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[room]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
	if infos, ok := h.connInfo[room]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.connInfo, room)
		}
	}
}

// Broadcast sends an event to every connection in a room. Connections whose
// write fails are closed and removed.
func (h *Hub) Broadcast(room string, evt wire.Event) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[room]))
	for conn := range h.rooms[room] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(evt)
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.Leave(room, conn)
			h.publishWSError(room, conn, err)
		}
	}
}

func (h *Hub) publishWSError(room string, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(room, conn)
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"room":        room,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("ws_error")
}

func (h *Hub) getConnInfo(room string, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if infos, ok := h.connInfo[room]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}
