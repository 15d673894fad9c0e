package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shapeshift/internal/service"
)

// writeServiceError traduce los errores de servicio a status HTTP.
// Lo que no se reconoce se loguea y sale como 500 con fallback.
func writeServiceError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	var mentionErr *service.MentionRequiredError
	switch {
	case errors.As(err, &mentionErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    mentionErr.Guidance(),
			"mentions": mentionErr.Handles,
		})
	case errors.Is(err, service.ErrMessageInvalidInput),
		errors.Is(err, service.ErrPersonaRequired),
		errors.Is(err, service.ErrPersonaInvalidURL),
		errors.Is(err, service.ErrPersonaInvalidName),
		errors.Is(err, service.ErrInvalidAPIKey),
		errors.Is(err, service.ErrChatInvalidInput),
		errors.Is(err, service.ErrAuthCodeInvalid),
		errors.Is(err, service.ErrInvalidUserID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, service.ErrPersonaNotFound),
		errors.Is(err, service.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPersonaExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNothingToRegenerate):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAuthExchangeFailed):
		logger.Warn("upstream failure", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream request failed"})
	case errors.Is(err, service.ErrChatPersistenceNotConfigured),
		errors.Is(err, service.ErrSettingsNotConfigured),
		errors.Is(err, service.ErrAuthExchangeNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
