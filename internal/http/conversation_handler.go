package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shapeshift/internal/domain"
	"shapeshift/internal/service"
)

// ConversationHandler expone las conversaciones en memoria y sus mensajes.
type ConversationHandler struct {
	logger        *zap.Logger
	conversations *service.ConversationService
	personas      *service.PersonaService
	renderer      *service.Renderer
}

func NewConversationHandler(
	logger *zap.Logger,
	conversations *service.ConversationService,
	personas *service.PersonaService,
	renderer *service.Renderer,
) *ConversationHandler {
	return &ConversationHandler{
		logger:        logger,
		conversations: conversations,
		personas:      personas,
		renderer:      renderer,
	}
}

type conversationView struct {
	ID          string                `json:"id"`
	Personas    []domain.Persona      `json:"personas"`
	Group       bool                  `json:"group"`
	SavedChatID string                `json:"saved_chat_id,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	Messages    []service.MessageView `json:"messages"`
}

func (h *ConversationHandler) view(conv *service.Conversation) conversationView {
	return conversationView{
		ID:          conv.ID,
		Personas:    conv.Personas,
		Group:       conv.IsGroup(),
		SavedChatID: conv.SavedChatID(),
		CreatedAt:   conv.CreatedAt,
		Messages:    h.renderer.Render(conv.Store.Messages(), conv.Personas),
	}
}

// StartConversation maneja POST /conversations.
func (h *ConversationHandler) StartConversation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		PersonaIDs []string `json:"persona_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid start conversation request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	personas, err := h.personas.Resolve(c.Request.Context(), userID, req.PersonaIDs)
	if err != nil {
		writeServiceError(c, h.logger, err, "could not resolve personas")
		return
	}
	conv, err := h.conversations.Start(userID, personas)
	if err != nil {
		writeServiceError(c, h.logger, err, "could not start conversation")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": h.view(conv)})
}

// GetConversation maneja GET /conversations/:id.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	conv, err := h.conversations.Get(userID, c.Param("id"))
	if err != nil {
		writeServiceError(c, h.logger, err, "could not load conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": h.view(conv)})
}

// CloseConversation maneja DELETE /conversations/:id.
func (h *ConversationHandler) CloseConversation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.conversations.Close(userID, c.Param("id")); err != nil {
		writeServiceError(c, h.logger, err, "could not close conversation")
		return
	}
	c.Status(http.StatusNoContent)
}

// PostMessage maneja POST /conversations/:id/messages. Los fallos del proveedor llegan como
// mensajes del bot con prefijo "Error:", así que la respuesta es 201 igual.
func (h *ConversationHandler) PostMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		Text         string `json:"text"`
		ImageDataURL string `json:"image_data_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid post message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	conv, err := h.conversations.Get(userID, c.Param("id"))
	if err != nil {
		writeServiceError(c, h.logger, err, "could not load conversation")
		return
	}
	res, err := h.conversations.Send(c.Request.Context(), userID, conv.ID, service.Input{
		Text:         req.Text,
		ImageDataURL: req.ImageDataURL,
	})
	if err != nil {
		writeServiceError(c, h.logger, err, "could not send message")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_message": h.renderer.View(res.UserMessage, conv.Personas),
		"replies":      h.renderer.Render(res.Replies, conv.Personas),
	})
}

// EditMessage maneja PATCH /conversations/:id/messages/:messageID.
func (h *ConversationHandler) EditMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid edit message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	msg, err := h.conversations.Edit(userID, c.Param("id"), c.Param("messageID"), req.Content)
	if err != nil {
		writeServiceError(c, h.logger, err, "could not edit message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// DeleteMessage maneja DELETE /conversations/:id/messages/:messageID.
func (h *ConversationHandler) DeleteMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.conversations.DeleteMessage(userID, c.Param("id"), c.Param("messageID")); err != nil {
		writeServiceError(c, h.logger, err, "could not delete message")
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearMessages maneja DELETE /conversations/:id/messages.
func (h *ConversationHandler) ClearMessages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.conversations.Clear(userID, c.Param("id")); err != nil {
		writeServiceError(c, h.logger, err, "could not clear conversation")
		return
	}
	c.Status(http.StatusNoContent)
}

// RegenerateMessage maneja POST /conversations/:id/messages/:messageID/regenerate.
func (h *ConversationHandler) RegenerateMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	conv, err := h.conversations.Get(userID, c.Param("id"))
	if err != nil {
		writeServiceError(c, h.logger, err, "could not load conversation")
		return
	}
	msg, err := h.conversations.Regenerate(c.Request.Context(), userID, conv.ID, c.Param("messageID"))
	if err != nil {
		writeServiceError(c, h.logger, err, "could not regenerate message")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": h.renderer.View(msg, conv.Personas)})
}

// SaveConversation maneja POST /conversations/:id/save.
func (h *ConversationHandler) SaveConversation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("invalid save request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	chat, err := h.conversations.Save(c.Request.Context(), userID, c.Param("id"), req.Title, true)
	if err != nil {
		writeServiceError(c, h.logger, err, "could not save chat")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat})
}
