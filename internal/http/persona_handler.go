package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shapeshift/internal/domain"
	"shapeshift/internal/service"
)

// PersonaHandler administra el roster de personas del usuario.
type PersonaHandler struct {
	logger   *zap.Logger
	personas *service.PersonaService
	icons    *service.IconAssigner
}

func NewPersonaHandler(logger *zap.Logger, personas *service.PersonaService, icons *service.IconAssigner) *PersonaHandler {
	if icons == nil {
		icons = service.NewIconAssigner()
	}
	return &PersonaHandler{logger: logger, personas: personas, icons: icons}
}

type personaView struct {
	domain.Persona
	Handle string             `json:"handle"`
	Icon   domain.PersonaIcon `json:"icon"`
}

func (h *PersonaHandler) view(p domain.Persona) personaView {
	return personaView{Persona: p, Handle: service.PersonaHandle(p), Icon: h.icons.IconFor(p)}
}

// ListPersonas maneja GET /personas.
func (h *PersonaHandler) ListPersonas(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	personas, err := h.personas.List(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, h.logger, err, "could not list personas")
		return
	}
	views := make([]personaView, 0, len(personas))
	for _, p := range personas {
		views = append(views, h.view(p))
	}
	c.JSON(http.StatusOK, gin.H{"personas": views})
}

// AddPersona maneja POST /personas.
func (h *PersonaHandler) AddPersona(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
		URL  string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid add persona request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	persona, err := h.personas.Add(c.Request.Context(), userID, req.Name, req.URL)
	if err != nil {
		writeServiceError(c, h.logger, err, "could not add persona")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"persona": h.view(persona)})
}

// DeletePersona maneja DELETE /personas/:id.
func (h *PersonaHandler) DeletePersona(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.personas.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeServiceError(c, h.logger, err, "could not delete persona")
		return
	}
	c.Status(http.StatusNoContent)
}
