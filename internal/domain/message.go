package domain

import "time"

// Sender identifica quién escribió un mensaje.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Valid reporta si el remitente es uno de los dos valores permitidos.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderBot
}

type Message struct {
	ID              string    `json:"id"`
	Content         string    `json:"content"`
	Sender          Sender    `json:"sender"`
	Timestamp       time.Time `json:"timestamp"`
	ImageURL        string    `json:"image_url,omitempty"`
	BotName         string    `json:"bot_name,omitempty"`
	ParentMessageID string    `json:"parent_message_id,omitempty"`
}

// MessagePatch describe una actualización parcial; los campos nil no se tocan.
type MessagePatch struct {
	Content         *string
	ImageURL        *string
	BotName         *string
	ParentMessageID *string
}
