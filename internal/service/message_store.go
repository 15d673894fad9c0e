package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shapeshift/internal/domain"
)

var (
	ErrMessageNotFound     = errors.New("message not found")
	ErrMessageInvalidInput = errors.New("message invalid input")
)

// MessageStore mantiene la lista ordenada de turnos de una conversación.
// mu protege la lista; turn serializa los turnos que salen al proveedor.
type MessageStore struct {
	mu        sync.RWMutex
	messages  []domain.Message
	revision  uint64
	turn      sync.Mutex
	responder Responder
}

func NewMessageStore(responder Responder) *MessageStore {
	return &MessageStore{
		messages:  make([]domain.Message, 0, 16),
		responder: responder,
	}
}

// Add agrega el mensaje al final, completando id y timestamp si faltan.
func (s *MessageStore) Add(msg domain.Message) (domain.Message, error) {
	if !msg.Sender.Valid() {
		return domain.Message{}, ErrMessageInvalidInput
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.revision++
	s.mu.Unlock()
	return msg, nil
}

func (s *MessageStore) Update(id string, patch domain.MessagePatch) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return domain.Message{}, ErrMessageNotFound
	}
	msg := &s.messages[idx]
	if patch.Content != nil {
		msg.Content = *patch.Content
	}
	if patch.ImageURL != nil {
		msg.ImageURL = *patch.ImageURL
	}
	if patch.BotName != nil {
		msg.BotName = *patch.BotName
	}
	if patch.ParentMessageID != nil {
		msg.ParentMessageID = *patch.ParentMessageID
	}
	s.revision++
	return *msg, nil
}

// Edit es Update restringido al contenido.
func (s *MessageStore) Edit(id, content string) (domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, ErrMessageInvalidInput
	}
	return s.Update(id, domain.MessagePatch{Content: &content})
}

func (s *MessageStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return ErrMessageNotFound
	}
	s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	s.revision++
	return nil
}

// Regenerate reemplaza una respuesta: quita el mensaje id, vuelve a pedir respuesta con el
// último mensaje de usuario anterior y agrega el resultado al final, ligado a ese mensaje. Sin id o sin mensaje de
// usuario previo no hace nada y devuelve false.
func (s *MessageStore) Regenerate(ctx context.Context, id string, creds domain.Credentials, persona domain.Persona) (domain.Message, bool) {
	if s.responder == nil {
		return domain.Message{}, false
	}

	s.turn.Lock()
	defer s.turn.Unlock()

	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return domain.Message{}, false
	}
	var prompt domain.Message
	found := false
	for i := idx - 1; i >= 0; i-- {
		if s.messages[i].Sender == domain.SenderUser {
			prompt = s.messages[i]
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return domain.Message{}, false
	}
	s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	s.revision++
	s.mu.Unlock()

	reply := s.responder.Respond(ctx, creds, persona, Input{Text: prompt.Content, ImageDataURL: prompt.ImageURL})
	reply.ParentMessageID = prompt.ID
	reply, _ = s.Add(reply)
	return reply, true
}

// Load reemplaza el contenido completo (ej. al abrir un chat guardado).
func (s *MessageStore) Load(messages []domain.Message) {
	copied := make([]domain.Message, len(messages))
	copy(copied, messages)

	s.mu.Lock()
	s.messages = copied
	s.revision++
	s.mu.Unlock()
}

func (s *MessageStore) Clear() {
	s.mu.Lock()
	s.messages = make([]domain.Message, 0, 16)
	s.revision++
	s.mu.Unlock()
}

// Messages devuelve una copia de la lista en orden de inserción.
func (s *MessageStore) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := make([]domain.Message, len(s.messages))
	copy(copied, s.messages)
	return copied
}

func (s *MessageStore) Get(id string) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return domain.Message{}, false
	}
	return s.messages[idx], true
}

func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Revision cambia con cada mutación; sirve para saber si hay algo nuevo que guardar.
func (s *MessageStore) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Snapshot devuelve los mensajes junto con la revisión a la que corresponden.
func (s *MessageStore) Snapshot() ([]domain.Message, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := make([]domain.Message, len(s.messages))
	copy(copied, s.messages)
	return copied, s.revision
}

// WithTurn ejecuta fn con el turno de la conversación tomado.
func (s *MessageStore) WithTurn(fn func()) {
	s.turn.Lock()
	defer s.turn.Unlock()
	fn()
}

func (s *MessageStore) indexOf(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}
