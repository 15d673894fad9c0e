package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shapeshift/internal/service"
)

// AuthHandler emite sesiones de la API y canjea el código de login del proveedor.
type AuthHandler struct {
	logger    *zap.Logger
	jwtServ   *service.JWTService
	exchanger *service.AuthExchanger
	settings  *service.SettingsService
}

func NewAuthHandler(
	logger *zap.Logger,
	jwtServ *service.JWTService,
	exchanger *service.AuthExchanger,
	settings *service.SettingsService,
) *AuthHandler {
	return &AuthHandler{
		logger:    logger,
		jwtServ:   jwtServ,
		exchanger: exchanger,
		settings:  settings,
	}
}

// StartSession maneja POST /auth/session. user_id es opcional: sin él se genera uno nuevo.
func (h *AuthHandler) StartSession(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("invalid session request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	tokens, err := h.jwtServ.StartSession(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidUserID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Refresh maneja POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refresh request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	tokens, err := h.jwtServ.RefreshPair(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Exchange maneja POST /auth/exchange: canjea el código y guarda el token en los settings.
func (h *AuthHandler) Exchange(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid auth exchange request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	token, err := h.exchanger.Exchange(c.Request.Context(), req.Code)
	if err != nil {
		writeServiceError(c, h.logger, err, "could not exchange auth code")
		return
	}
	if _, err := h.settings.SetAppAuthToken(c.Request.Context(), userID, token); err != nil {
		writeServiceError(c, h.logger, err, "could not store auth token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "authenticated"})
}

// Logout maneja DELETE /auth/exchange: olvida el token de la app.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if _, err := h.settings.SetAppAuthToken(c.Request.Context(), userID, ""); err != nil {
		writeServiceError(c, h.logger, err, "could not clear auth token")
		return
	}
	c.Status(http.StatusNoContent)
}
