package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pairchat/internal/repositories"
)

// UsersHandler serves the user directory for the home screen.
type UsersHandler struct {
	users repositories.UserRepository
}

// NewUsersHandler builds a UsersHandler.
func NewUsersHandler(users repositories.UserRepository) *UsersHandler {
	return &UsersHandler{users: users}
}

// List returns every user except the caller.
func (h *UsersHandler) List(c *gin.Context) {
	userID := c.GetString("userID")

	users, err := h.users.ListUsers(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}

	type userResponse struct {
		ID          string `json:"id"`
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
	}
	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, userResponse{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName})
	}

	c.JSON(http.StatusOK, gin.H{"users": resp})
}
