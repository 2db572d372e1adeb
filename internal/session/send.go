package session

import (
	"strings"
	"time"
	"unicode/utf8"

	"pairchat/internal/models"
	"pairchat/internal/transport"
	"pairchat/internal/wire"
)

// sendPipeline turns outgoing text into a timeline entry and a network
// emission. The timeline append always happens before the emit, so the UI
// reflects the user's action immediately regardless of network latency.
type sendPipeline struct {
	gw          transport.Gateway
	timeline    *Timeline
	manager     *ConnectionManager
	selfID      string
	peerID      string
	displayName string

	now   func() time.Time
	newID func() string
}

func (p *sendPipeline) Send(text string) (models.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return models.Message{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(trimmed) > models.MaxMessageLength {
		return models.Message{}, ErrMessageTooLong
	}
	if p.manager.State() != StateConnected {
		return models.Message{}, ErrNotConnected
	}
	if p.selfID == "" || p.peerID == "" {
		return models.Message{}, ErrMissingIdentity
	}

	msg := models.Message{
		ID:          p.newID(),
		SenderID:    p.selfID,
		RecipientID: p.peerID,
		Text:        trimmed,
		Timestamp:   p.now(),
		Origin:      models.OriginLocal,
		Status:      models.StatusPending,
	}
	p.timeline.AppendLocal(msg)

	payload := wire.SendPayload{
		UserID:       p.selfID,
		TargetUserID: p.peerID,
		Text:         trimmed,
		Timestamp:    msg.Timestamp,
		DisplayName:  p.displayName,
	}
	if err := p.gw.Emit(wire.EventSendMessage, payload); err != nil {
		// The optimistic entry stays visible; the synchronous failure is
		// authoritative, so it is not left pending.
		p.timeline.MarkStatus(msg.ID, models.StatusFailed)
		return msg, err
	}
	return msg, nil
}
