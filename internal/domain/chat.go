package domain

import "time"

// SavedChat es una instantánea con nombre de una conversación con una persona.
type SavedChat struct {
	ID          string    `json:"id"`
	ChatbotID   string    `json:"chatbot_id"`
	ChatbotName string    `json:"chatbot_name"`
	Title       string    `json:"title"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Segment es un tramo de texto renderizable; IsInnerThought marca los tramos entre asteriscos.
type Segment struct {
	Text           string `json:"text"`
	IsInnerThought bool   `json:"is_inner_thought"`
}

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
)

// Media es un adjunto detectado dentro del texto de un mensaje.
type Media struct {
	Kind MediaKind `json:"kind"`
	URL  string    `json:"url"`
}

// Mention es un token @handle resuelto contra el roster.
type Mention struct {
	Persona Persona `json:"persona"`
	Text    string  `json:"text"`
}
