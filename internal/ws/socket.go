package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"pairchat/internal/middleware"
	"pairchat/internal/models"
	"pairchat/internal/observability"
	"pairchat/internal/repositories"
	"pairchat/internal/wire"
)

// SocketHandler owns the push channel endpoint. One connection serves one
// chat screen: the client joins its room with a joinChat frame after every
// connect, then exchanges sendMessage/messageReceived frames.
type SocketHandler struct {
	hub       *Hub
	validator middleware.TokenValidator
	messages  repositories.MessageRepository
}

// NewSocketHandler constructs a SocketHandler.
func NewSocketHandler(hub *Hub, validator middleware.TokenValidator, messages repositories.MessageRepository) *SocketHandler {
	return &SocketHandler{hub: hub, validator: validator, messages: messages}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and serves its event loop.
func (h *SocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("pairchat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	userID, err := h.validator.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	publishLifecycle(ctx, info, "", "ws_connect", "")

	go h.serve(conn, info)
}

func (h *SocketHandler) serve(conn *websocket.Conn, info ConnInfo) {
	ctx := context.Background()
	room := ""
	closeReason := ""
	defer func() {
		if room != "" {
			h.hub.Leave(room, conn)
		}
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		publishLifecycle(ctx, info, room, "ws_disconnect", closeReason)
		conn.Close()
	}()

	for {
		var evt wire.Event
		if err := conn.ReadJSON(&evt); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				publishLifecycle(ctx, info, room, "ws_error", closeReason)
			}
			return
		}

		switch evt.Event {
		case wire.EventJoinChat:
			var p wire.JoinPayload
			if err := json.Unmarshal(evt.Data, &p); err != nil || p.TargetUserID == "" {
				log.Printf("bad join payload from %s", info.UserID)
				continue
			}
			if p.UserID != info.UserID {
				log.Printf("join identity mismatch: conn=%s claimed=%s", info.UserID, p.UserID)
				continue
			}
			if room != "" {
				h.hub.Leave(room, conn)
			}
			room = RoomKey(info.UserID, p.TargetUserID)
			h.hub.Join(room, conn, info)
			observability.IncWSEvent("join")

		case wire.EventSendMessage:
			var p wire.SendPayload
			if err := json.Unmarshal(evt.Data, &p); err != nil {
				log.Printf("bad send payload from %s", info.UserID)
				continue
			}
			h.handleSend(ctx, conn, info, room, p)

		default:
			log.Printf("unknown event %q from %s", evt.Event, info.UserID)
		}
	}
}

func (h *SocketHandler) handleSend(ctx context.Context, conn *websocket.Conn, info ConnInfo, room string, p wire.SendPayload) {
	text := strings.TrimSpace(p.Text)
	if room == "" || p.UserID != info.UserID || text == "" ||
		utf8.RuneCountInString(text) > models.MaxMessageLength {
		log.Printf("rejecting send from %s", info.UserID)
		return
	}
	if RoomKey(info.UserID, p.TargetUserID) != room {
		log.Printf("send target outside joined room from %s", info.UserID)
		return
	}

	msg, err := h.messages.CreateMessage(ctx, info.UserID, p.TargetUserID, text)
	if err != nil {
		log.Printf("store message failed: %v", err)
		return
	}

	evt, err := wire.NewEvent(wire.EventMessageReceived, wire.MessagePayload{
		ID:        msg.ID,
		SenderID:  msg.SenderID,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	})
	if err != nil {
		return
	}
	// The sender's connection is part of the room, so the broadcast doubles
	// as the delivery echo.
	h.hub.Broadcast(room, evt)
	observability.IncWSEvent("message")
}

func publishLifecycle(ctx context.Context, info ConnInfo, room, event, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"room":        room,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
