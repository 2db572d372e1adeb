package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pairchat/internal/repositories"
)

// ChatHandler serves the one-time history fetch the chat screen performs.
type ChatHandler struct {
	messages repositories.MessageRepository
	users    repositories.UserRepository
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(messages repositories.MessageRepository, users repositories.UserRepository) *ChatHandler {
	return &ChatHandler{messages: messages, users: users}
}

// GetConversation returns the 1:1 conversation between the authenticated
// user and the peer, ascending by creation time.
func (h *ChatHandler) GetConversation(c *gin.Context) {
	peerID := c.Param("peer_id")
	if peerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid peer id"})
		return
	}

	userID := c.GetString("userID")
	if peerID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
		return
	}

	if _, err := h.users.GetByID(c.Request.Context(), peerID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "peer not found"})
		return
	}

	msgs, err := h.messages.GetConversation(c.Request.Context(), userID, peerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
