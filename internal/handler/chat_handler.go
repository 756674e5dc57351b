package handler

import (
	"net/http"

	"github.com/Tisha7353/Resono/internal/service"

	"github.com/gin-gonic/gin"
)

type ChatHandler interface {
	GetUsers(c *gin.Context)
	GetMessages(c *gin.Context)
}

type chatHandler struct {
	service service.ChatService
}

func NewChatHandler(service service.ChatService) ChatHandler {
	return &chatHandler{
		service: service,
	}
}

// GetUsers returns every user except the caller, for the chat partner list.
func (h *chatHandler) GetUsers(c *gin.Context) {
	selfID := c.GetString(ContextUserID)

	users, err := h.service.ListPartners(c.Request.Context(), selfID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get users",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
	})
}

// GetMessages returns the full conversation between the caller and the
// user in the path, oldest first. Works regardless of whether either party
// currently has a realtime connection open.
func (h *chatHandler) GetMessages(c *gin.Context) {
	selfID := c.GetString(ContextUserID)
	partnerID := c.Param("userId")

	messages, err := h.service.Conversation(c.Request.Context(), selfID, partnerID)
	if err != nil {
		if service.IsInvalidArgument(err) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get messages",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
	})
}
