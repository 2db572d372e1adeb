package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pairchat/internal/mocks"
	"pairchat/internal/models"
	"pairchat/internal/repositories"
)

func setupChatRouter(messages repositories.MessageRepository, users repositories.UserRepository, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewChatHandler(messages, users)

	r := gin.New()
	r.GET("/chat/:peer_id", func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	}, h.GetConversation)
	return r
}

func getConversation(r *gin.Engine, peerID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/chat/"+peerID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetConversationReturnsMessages(t *testing.T) {
	ts := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	users := new(mocks.UserRepositoryMock)
	users.On("GetByID", mock.Anything, "bob").Return(models.User{ID: "bob"}, nil)

	messages := new(mocks.MessageRepositoryMock)
	messages.On("GetConversation", mock.Anything, "alice", "bob").Return([]models.Message{
		{ID: "m1", SenderID: "bob", RecipientID: "alice", Text: "hi", Timestamp: ts},
		{ID: "m2", SenderID: "alice", RecipientID: "bob", Text: "hey", Timestamp: ts.Add(5 * time.Second)},
	}, nil)

	w := getConversation(setupChatRouter(messages, users, "alice"), "bob")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "m1", body.Messages[0].ID)
	assert.Equal(t, "hey", body.Messages[1].Text)
}

func TestGetConversationRejectsSelfChat(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	users := new(mocks.UserRepositoryMock)

	w := getConversation(setupChatRouter(messages, users, "alice"), "alice")
	require.Equal(t, http.StatusBadRequest, w.Code)
	messages.AssertNotCalled(t, "GetConversation")
}

func TestGetConversationUnknownPeer(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("GetByID", mock.Anything, "ghost").Return(models.User{}, repositories.ErrUserNotFound)

	messages := new(mocks.MessageRepositoryMock)

	w := getConversation(setupChatRouter(messages, users, "alice"), "ghost")
	require.Equal(t, http.StatusNotFound, w.Code)
	messages.AssertNotCalled(t, "GetConversation")
}

func TestGetConversationEmptyHistory(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("GetByID", mock.Anything, "bob").Return(models.User{ID: "bob"}, nil)

	messages := new(mocks.MessageRepositoryMock)
	messages.On("GetConversation", mock.Anything, "alice", "bob").Return([]models.Message{}, nil)

	w := getConversation(setupChatRouter(messages, users, "alice"), "bob")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages":[]}`, w.Body.String())
}
