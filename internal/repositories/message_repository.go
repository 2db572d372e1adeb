package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"pairchat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for 1:1 chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, senderID, recipientID, text string) (models.Message, error)
	GetConversation(ctx context.Context, userID, peerID string) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message with a server-assigned id and timestamp.
func (r *MessageRepo) CreateMessage(ctx context.Context, senderID, recipientID, text string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (id, sender_id, recipient_id, text) VALUES ($1, $2, $3, $4)
         RETURNING id, sender_id, recipient_id, text, created_at`,
		uuid.NewString(), senderID, recipientID, text).
		Scan(&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Text, &msg.Timestamp)
	return msg, err
}

// GetConversation returns both directions of a 1:1 conversation ascending by
// creation time.
func (r *MessageRepo) GetConversation(ctx context.Context, userID, peerID string) ([]models.Message, error) {
	query := `SELECT id, sender_id, recipient_id, text, created_at
        FROM messages
        WHERE (sender_id=$1 AND recipient_id=$2) OR (sender_id=$2 AND recipient_id=$1)
        ORDER BY created_at ASC`
	rows, err := r.db.QueryxContext(ctx, query, userID, peerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Text, &msg.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
