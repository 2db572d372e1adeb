package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pairchat/internal/auth"
	"pairchat/internal/mocks"
	"pairchat/internal/models"
	"pairchat/internal/repositories"
)

func setupAuthRouter(users repositories.UserRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewService("test-secret", time.Hour)
	h := NewAuthHandler(users, tokens, nil)

	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	return r
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterCreatesUser(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("CreateUser", mock.Anything, "alice", "Alice", mock.AnythingOfType("string")).
		Return(models.User{ID: "u1", Username: "alice", DisplayName: "Alice"}, nil)

	w := postJSON(setupAuthRouter(users), "/auth/register", gin.H{
		"username": "alice", "display_name": "Alice", "password": "hunter22",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	users.AssertExpectations(t)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	w := postJSON(setupAuthRouter(users), "/auth/register", gin.H{
		"username": "alice", "display_name": "Alice", "password": "abc",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	users.AssertNotCalled(t, "CreateUser")
}

func TestRegisterDuplicateUsername(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("CreateUser", mock.Anything, "alice", "Alice", mock.AnythingOfType("string")).
		Return(models.User{}, repositories.ErrUsernameTaken)

	w := postJSON(setupAuthRouter(users), "/auth/register", gin.H{
		"username": "alice", "display_name": "Alice", "password": "hunter22",
	})

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginIssuesToken(t *testing.T) {
	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)

	users := new(mocks.UserRepositoryMock)
	users.On("GetByUsername", mock.Anything, "alice").
		Return(models.User{ID: "u1", Username: "alice", PasswordHash: hash}, nil)

	w := postJSON(setupAuthRouter(users), "/auth/login", gin.H{
		"username": "alice", "password": "hunter22",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, "u1", body.User.ID)

	// Issued tokens must validate against the same service config.
	userID, err := auth.NewService("test-secret", time.Hour).ValidateToken(body.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)

	users := new(mocks.UserRepositoryMock)
	users.On("GetByUsername", mock.Anything, "alice").
		Return(models.User{ID: "u1", Username: "alice", PasswordHash: hash}, nil)

	w := postJSON(setupAuthRouter(users), "/auth/login", gin.H{
		"username": "alice", "password": "wrong",
	})

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginUnknownUser(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("GetByUsername", mock.Anything, "ghost").
		Return(models.User{}, repositories.ErrUserNotFound)

	w := postJSON(setupAuthRouter(users), "/auth/login", gin.H{
		"username": "ghost", "password": "whatever",
	})

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
