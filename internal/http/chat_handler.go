package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shapeshift/internal/service"
)

// ChatHandler expone los chats guardados.
type ChatHandler struct {
	logger        *zap.Logger
	conversations *service.ConversationService
	convH         *ConversationHandler
}

func NewChatHandler(logger *zap.Logger, conversations *service.ConversationService, convH *ConversationHandler) *ChatHandler {
	return &ChatHandler{
		logger:        logger,
		conversations: conversations,
		convH:         convH,
	}
}

// ListChats maneja GET /chats, más recientes primero.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	chats, err := h.conversations.ListSavedChats(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, h.logger, err, "could not list chats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// OpenChat maneja POST /chats/:id/open: carga el chat en una conversación nueva.
func (h *ChatHandler) OpenChat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	conv, err := h.conversations.OpenSavedChat(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeServiceError(c, h.logger, err, "could not open chat")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": h.convH.view(conv)})
}

// DeleteChat maneja DELETE /chats/:id.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.conversations.DeleteSavedChat(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeServiceError(c, h.logger, err, "could not delete chat")
		return
	}
	c.Status(http.StatusNoContent)
}
