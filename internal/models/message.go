package models

import "time"

// Origin records which source of truth produced a timeline entry.
type Origin string

const (
	OriginHistory Origin = "history"
	OriginLocal   Origin = "local"
	OriginRemote  Origin = "remote"
)

// Status is the delivery lifecycle of a locally authored message.
// History and remote messages are always delivered.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// MaxMessageLength caps outgoing message text.
const MaxMessageLength = 1000

// Message is the atomic unit of a session timeline.
type Message struct {
	ID          string    `db:"id" json:"id"`
	SenderID    string    `db:"sender_id" json:"sender_id"`
	RecipientID string    `db:"recipient_id" json:"recipient_id"`
	Text        string    `db:"text" json:"text"`
	Timestamp   time.Time `db:"created_at" json:"timestamp"`
	Origin      Origin    `db:"-" json:"origin,omitempty"`
	Status      Status    `db:"-" json:"status,omitempty"`
}
