package service

import (
	"strings"

	"shapeshift/internal/domain"
)

// MessageView es un mensaje listo para mostrar: adjunto detectado, tramos de pensamiento
// e ícono de la persona que lo firmó.
type MessageView struct {
	domain.Message
	Media    *domain.Media       `json:"media,omitempty"`
	Segments []domain.Segment    `json:"segments"`
	Icon     *domain.PersonaIcon `json:"icon,omitempty"`
}

type Renderer struct {
	media MediaClassifier
	icons *IconAssigner
}

func NewRenderer(media MediaClassifier, icons *IconAssigner) *Renderer {
	if icons == nil {
		icons = NewIconAssigner()
	}
	return &Renderer{media: media, icons: icons}
}

// Render arma las vistas en el mismo orden que messages.
func (r *Renderer) Render(messages []domain.Message, personas []domain.Persona) []MessageView {
	views := make([]MessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, r.View(msg, personas))
	}
	return views
}

func (r *Renderer) View(msg domain.Message, personas []domain.Persona) MessageView {
	view := MessageView{Message: msg}
	if media, ok := r.media.Classify(msg.Content); ok {
		view.Media = &media
	}
	if msg.Sender == domain.SenderBot {
		view.Segments = ParseInnerThoughts(msg.Content)
		for _, p := range personas {
			if strings.EqualFold(p.Name, msg.BotName) {
				icon := r.icons.IconFor(p)
				view.Icon = &icon
				break
			}
		}
	} else if msg.Content != "" {
		view.Segments = []domain.Segment{{Text: msg.Content}}
	} else {
		view.Segments = []domain.Segment{}
	}
	return view
}
