package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shapeshift/internal/domain"
	"shapeshift/internal/llm"
)

const ModelPrefix = "shapesinc/"

var ErrNoCredentials = errors.New("no API key or app session configured")

// Input es lo que el usuario envía en un turno: texto y opcionalmente una imagen inline (data URL).
type Input struct {
	Text         string `json:"text"`
	ImageDataURL string `json:"image_data_url,omitempty"`
}

// Responder produce la respuesta de una persona; nunca devuelve error, los fallos vienen como mensaje.
type Responder interface {
	Respond(ctx context.Context, creds domain.Credentials, persona domain.Persona, input Input) domain.Message
}

// Orchestrator traduce un turno en una llamada al proveedor y la respuesta en un mensaje del bot.
type Orchestrator struct {
	client llm.CompletionClient
	logger *zap.Logger
	now    func() time.Time
}

func NewOrchestrator(client llm.CompletionClient, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		client: client,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ModelFor arma el slug de modelo del proveedor para la persona.
func ModelFor(p domain.Persona) string {
	return ModelPrefix + strings.ToLower(strings.TrimSpace(p.ID))
}

// ChannelID identifica el canal usuario/persona para que el proveedor mantenga contexto.
func ChannelID(userID string, p domain.Persona) string {
	if userID == "" {
		return "channel-" + p.ID
	}
	return userID + "-" + p.ID
}

func (o *Orchestrator) Respond(ctx context.Context, creds domain.Credentials, persona domain.Persona, input Input) domain.Message {
	if creds.APIKey == "" && !creds.UsesAppAuth() {
		return o.botMessage(persona, "Error: "+ErrNoCredentials.Error())
	}

	req := llm.CompletionRequest{
		Model:        ModelFor(persona),
		Text:         input.Text,
		ImageDataURL: input.ImageDataURL,
		APIKey:       creds.APIKey,
		UserID:       creds.UserID,
		ChannelID:    ChannelID(creds.UserID, persona),
	}
	if creds.UsesAppAuth() {
		req.AppID = creds.AppID
		req.UserAuthToken = creds.UserAuthToken
	}

	content, err := o.client.Complete(ctx, req)
	if err != nil {
		o.logger.Warn("completion failed",
			zap.String("persona_id", persona.ID),
			zap.String("model", req.Model),
			zap.Error(err),
		)
		var statusErr *llm.StatusError
		if errors.As(err, &statusErr) {
			return o.botMessage(persona, fmt.Sprintf("Error: API request failed with status %d", statusErr.StatusCode))
		}
		return o.botMessage(persona, "Error: "+err.Error())
	}

	return o.botMessage(persona, content)
}

func (o *Orchestrator) botMessage(persona domain.Persona, content string) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		Content:   content,
		Sender:    domain.SenderBot,
		Timestamp: o.now(),
		BotName:   persona.Name,
	}
}
