package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shapeshift/internal/domain"
	"shapeshift/internal/service"
)

type SettingsHandler struct {
	logger   *zap.Logger
	settings *service.SettingsService
}

func NewSettingsHandler(logger *zap.Logger, settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{logger: logger, settings: settings}
}

// settingsView nunca expone la API key ni el token de la app.
type settingsView struct {
	HasAPIKey        bool             `json:"has_api_key"`
	AppAuthenticated bool             `json:"app_authenticated"`
	Onboarded        bool             `json:"onboarded"`
	Chatbots         []domain.Persona `json:"chatbots"`
}

func newSettingsView(s domain.Settings) settingsView {
	chatbots := s.Chatbots
	if chatbots == nil {
		chatbots = []domain.Persona{}
	}
	return settingsView{
		HasAPIKey:        s.APIKey != "",
		AppAuthenticated: s.AppAuthToken != "",
		Onboarded:        s.Onboarded,
		Chatbots:         chatbots,
	}
}

// GetSettings maneja GET /settings.
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	settings, err := h.settings.Get(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, h.logger, err, "could not load settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": newSettingsView(settings)})
}

// UpdateSettings maneja PUT /settings; los campos ausentes no se tocan.
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		APIKey    *string `json:"api_key"`
		Onboarded *bool   `json:"onboarded"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid settings request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.APIKey != nil {
		if err := service.ValidateAPIKey(*req.APIKey); err != nil {
			writeServiceError(c, h.logger, err, "could not update settings")
			return
		}
	}

	settings, err := h.settings.Update(c.Request.Context(), userID, func(s *domain.Settings) error {
		if req.APIKey != nil {
			s.APIKey = strings.TrimSpace(*req.APIKey)
		}
		if req.Onboarded != nil {
			s.Onboarded = *req.Onboarded
		}
		return nil
	})
	if err != nil {
		writeServiceError(c, h.logger, err, "could not update settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": newSettingsView(settings)})
}
