package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shapeshift/internal/service"
)

// Handlers agrupa los handlers que monta el router.
type Handlers struct {
	Auth          *AuthHandler
	Settings      *SettingsHandler
	Personas      *PersonaHandler
	Conversations *ConversationHandler
	Chats         *ChatHandler

	// AuthLimiter limita la emisión de sesiones y el canje de códigos por IP;
	// SendLimiter los turnos por usuario. nil desactiva el límite.
	AuthLimiter service.RateLimiter
	SendLimiter service.RateLimiter
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(logger *zap.Logger, jwtSvc *service.JWTService, h Handlers) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authLimit := rateLimitMiddleware(h.AuthLimiter, clientIPKey)
	sendLimit := rateLimitMiddleware(h.SendLimiter, userKey)

	r.POST("/auth/session", authLimit, h.Auth.StartSession)
	r.POST("/auth/refresh", h.Auth.Refresh)

	api := r.Group("", JWTAuthMiddleware(jwtSvc))
	api.POST("/auth/exchange", authLimit, h.Auth.Exchange)
	api.DELETE("/auth/exchange", h.Auth.Logout)

	api.GET("/settings", h.Settings.GetSettings)
	api.PUT("/settings", h.Settings.UpdateSettings)

	api.GET("/personas", h.Personas.ListPersonas)
	api.POST("/personas", h.Personas.AddPersona)
	api.DELETE("/personas/:id", h.Personas.DeletePersona)

	conv := api.Group("/conversations")
	conv.POST("", h.Conversations.StartConversation)
	conv.GET("/:id", h.Conversations.GetConversation)
	conv.DELETE("/:id", h.Conversations.CloseConversation)
	conv.POST("/:id/messages", sendLimit, h.Conversations.PostMessage)
	conv.DELETE("/:id/messages", h.Conversations.ClearMessages)
	conv.PATCH("/:id/messages/:messageID", h.Conversations.EditMessage)
	conv.DELETE("/:id/messages/:messageID", h.Conversations.DeleteMessage)
	conv.POST("/:id/messages/:messageID/regenerate", sendLimit, h.Conversations.RegenerateMessage)
	conv.POST("/:id/save", h.Conversations.SaveConversation)

	chats := api.Group("/chats")
	chats.GET("", h.Chats.ListChats)
	chats.POST("/:id/open", h.Chats.OpenChat)
	chats.DELETE("/:id", h.Chats.DeleteChat)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
