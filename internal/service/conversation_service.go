package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shapeshift/internal/domain"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrPersonaRequired      = errors.New("at least one persona is required")
	ErrNothingToRegenerate  = errors.New("nothing to regenerate")
)

const defaultFanoutLimit = 4

// Conversation es una sesión de chat en memoria con una o más personas.
type Conversation struct {
	ID        string
	UserID    string
	Personas  []domain.Persona
	Store     *MessageStore
	CreatedAt time.Time

	mu            sync.Mutex
	saveMu        sync.Mutex
	savedChatID   string
	savedRevision uint64
	lastActive    time.Time
}

func (c *Conversation) touch(now time.Time) {
	c.mu.Lock()
	c.lastActive = now
	c.mu.Unlock()
}

func (c *Conversation) idleFor(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastActive)
}

func (c *Conversation) SavedChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.savedChatID
}

func (c *Conversation) markSaved(chatID string, revision uint64) {
	c.mu.Lock()
	c.savedChatID = chatID
	c.savedRevision = revision
	c.mu.Unlock()
}

func (c *Conversation) detach(chatID string) {
	c.mu.Lock()
	if c.savedChatID == chatID {
		c.savedChatID = ""
		c.savedRevision = 0
	}
	c.mu.Unlock()
}

// Dirty indica si hay mensajes que no se guardaron todavía.
func (c *Conversation) Dirty() bool {
	c.mu.Lock()
	saved, chatID := c.savedRevision, c.savedChatID
	c.mu.Unlock()
	return chatID == "" || c.Store.Revision() != saved
}

func (c *Conversation) IsGroup() bool {
	return len(c.Personas) > 1
}

// personaFor elige la persona que firmó un mensaje; si no aparece usa la primera.
func (c *Conversation) personaFor(msg domain.Message) domain.Persona {
	for _, p := range c.Personas {
		if strings.EqualFold(p.Name, msg.BotName) {
			return p
		}
	}
	return c.Personas[0]
}

// SendResult es lo que produjo un turno del usuario.
type SendResult struct {
	UserMessage domain.Message   `json:"user_message"`
	Replies     []domain.Message `json:"replies"`
}

// ConversationService coordina el ruteo por menciones, las llamadas al proveedor y el guardado.
type ConversationService struct {
	responder   Responder
	persistence *ChatPersistence
	settings    *SettingsService
	logger      *zap.Logger
	fanout      int
	now         func() time.Time

	mu            sync.RWMutex
	conversations map[string]*Conversation
}

func NewConversationService(
	responder Responder,
	persistence *ChatPersistence,
	settings *SettingsService,
	logger *zap.Logger,
	fanout int,
) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fanout <= 0 {
		fanout = defaultFanoutLimit
	}
	return &ConversationService{
		responder:     responder,
		persistence:   persistence,
		settings:      settings,
		logger:        logger,
		fanout:        fanout,
		now:           func() time.Time { return time.Now().UTC() },
		conversations: make(map[string]*Conversation),
	}
}

func (s *ConversationService) Start(userID string, personas []domain.Persona) (*Conversation, error) {
	if len(personas) == 0 {
		return nil, ErrPersonaRequired
	}
	conv := &Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Personas:  append([]domain.Persona(nil), personas...),
		Store:     NewMessageStore(s.responder),
		CreatedAt: s.now(),
	}
	conv.touch(conv.CreatedAt)
	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.mu.Unlock()
	return conv, nil
}

// Get devuelve la conversación sólo si pertenece al usuario.
func (s *ConversationService) Get(userID, id string) (*Conversation, error) {
	s.mu.RLock()
	conv, ok := s.conversations[id]
	s.mu.RUnlock()
	if !ok || conv.UserID != userID {
		return nil, ErrConversationNotFound
	}
	conv.touch(s.now())
	return conv, nil
}

func (s *ConversationService) Close(userID, id string) error {
	if _, err := s.Get(userID, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.conversations, id)
	s.mu.Unlock()
	return nil
}

// Snapshot lista las conversaciones vivas.
func (s *ConversationService) Snapshot() []*Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	return out
}

// EvictIdle saca del registro las conversaciones sin actividad por al menos maxIdle.
// Las que tienen cambios sin guardar se guardan antes; si el guardado falla quedan en memoria.
func (s *ConversationService) EvictIdle(ctx context.Context, maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	evicted := 0
	for _, conv := range s.Snapshot() {
		if conv.idleFor(s.now()) < maxIdle {
			continue
		}
		if len(conv.Personas) > 0 && conv.Store.Len() > 0 && conv.Dirty() {
			if _, err := s.save(ctx, conv, "", false); err != nil {
				s.logger.Warn("save before eviction failed",
					zap.String("conversation_id", conv.ID),
					zap.Error(err),
				)
				continue
			}
		}

		s.mu.Lock()
		// pudo haber actividad mientras se guardaba
		if conv.idleFor(s.now()) >= maxIdle && (conv.Store.Len() == 0 || !conv.Dirty()) {
			delete(s.conversations, conv.ID)
			evicted++
		}
		s.mu.Unlock()
	}
	return evicted
}

// Route decide qué personas contestan: en un chat individual siempre la única persona,
// en uno grupal las mencionadas con @handle.
func Route(text string, personas []domain.Persona) ([]domain.Persona, error) {
	if len(personas) == 0 {
		return nil, ErrPersonaRequired
	}
	if len(personas) == 1 {
		return personas, nil
	}
	targets := UniqueMentionedPersonas(ParseMentions(text, personas))
	if len(targets) == 0 {
		return nil, &MentionRequiredError{Handles: availableHandles(personas)}
	}
	return targets, nil
}

// Send agrega el mensaje del usuario y pide una respuesta por persona destino, en paralelo.
// Las respuestas se agregan en el orden en que llegan.
func (s *ConversationService) Send(ctx context.Context, userID, id string, input Input) (SendResult, error) {
	input.Text = strings.TrimSpace(input.Text)
	if input.Text == "" && input.ImageDataURL == "" {
		return SendResult{}, ErrMessageInvalidInput
	}
	conv, err := s.Get(userID, id)
	if err != nil {
		return SendResult{}, err
	}
	targets, err := Route(input.Text, conv.Personas)
	if err != nil {
		return SendResult{}, err
	}
	creds, err := s.settings.Credentials(ctx, userID)
	if err != nil {
		return SendResult{}, fmt.Errorf("load credentials: %w", err)
	}

	var result SendResult
	conv.Store.WithTurn(func() {
		userMsg, _ := conv.Store.Add(domain.Message{
			Content:  input.Text,
			Sender:   domain.SenderUser,
			ImageURL: input.ImageDataURL,
		})
		result.UserMessage = userMsg
		result.Replies = s.fanOut(ctx, conv, creds, targets, input, userMsg.ID)
	})
	return result, nil
}

func (s *ConversationService) fanOut(
	ctx context.Context,
	conv *Conversation,
	creds domain.Credentials,
	targets []domain.Persona,
	input Input,
	parentID string,
) []domain.Message {
	var (
		mu      sync.Mutex
		replies = make([]domain.Message, 0, len(targets))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)
	for _, persona := range targets {
		persona := persona
		g.Go(func() error {
			reply := s.responder.Respond(gctx, creds, persona, input)
			reply.ParentMessageID = parentID
			stored, err := conv.Store.Add(reply)
			if err != nil {
				s.logger.Warn("discarding reply", zap.String("persona_id", persona.ID), zap.Error(err))
				return nil
			}
			mu.Lock()
			replies = append(replies, stored)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return replies
}

func (s *ConversationService) Regenerate(ctx context.Context, userID, id, messageID string) (domain.Message, error) {
	conv, err := s.Get(userID, id)
	if err != nil {
		return domain.Message{}, err
	}
	target, ok := conv.Store.Get(messageID)
	if !ok {
		return domain.Message{}, ErrMessageNotFound
	}
	if target.Sender != domain.SenderBot {
		return domain.Message{}, ErrNothingToRegenerate
	}
	creds, err := s.settings.Credentials(ctx, userID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("load credentials: %w", err)
	}
	reply, ok := conv.Store.Regenerate(ctx, messageID, creds, conv.personaFor(target))
	if !ok {
		return domain.Message{}, ErrNothingToRegenerate
	}
	return reply, nil
}

func (s *ConversationService) Edit(userID, id, messageID, content string) (domain.Message, error) {
	conv, err := s.Get(userID, id)
	if err != nil {
		return domain.Message{}, err
	}
	return conv.Store.Edit(messageID, content)
}

func (s *ConversationService) DeleteMessage(userID, id, messageID string) error {
	conv, err := s.Get(userID, id)
	if err != nil {
		return err
	}
	return conv.Store.Delete(messageID)
}

func (s *ConversationService) Clear(userID, id string) error {
	conv, err := s.Get(userID, id)
	if err != nil {
		return err
	}
	conv.Store.Clear()
	return nil
}

// Save guarda la conversación; la instantánea queda ligada a la primera persona.
func (s *ConversationService) Save(ctx context.Context, userID, id, title string, notify bool) (domain.SavedChat, error) {
	conv, err := s.Get(userID, id)
	if err != nil {
		return domain.SavedChat{}, err
	}
	return s.save(ctx, conv, title, notify)
}

func (s *ConversationService) save(ctx context.Context, conv *Conversation, title string, notify bool) (domain.SavedChat, error) {
	conv.saveMu.Lock()
	defer conv.saveMu.Unlock()

	messages, revision := conv.Store.Snapshot()
	chat, err := s.persistence.SaveChat(ctx, SaveChatInput{
		ChatID:   conv.SavedChatID(),
		UserID:   conv.UserID,
		Persona:  conv.Personas[0],
		Messages: messages,
		Title:    title,
		Notify:   notify,
	})
	if err != nil {
		return domain.SavedChat{}, err
	}
	conv.markSaved(chat.ID, revision)
	return chat, nil
}

func (s *ConversationService) ListSavedChats(ctx context.Context, userID string) ([]domain.SavedChat, error) {
	return s.persistence.ListSavedChats(ctx, userID)
}

// OpenSavedChat carga un chat guardado en una conversación nueva.
func (s *ConversationService) OpenSavedChat(ctx context.Context, userID, chatID string) (*Conversation, error) {
	chat, messages, err := s.persistence.LoadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != userID {
		return nil, ErrChatNotFound
	}
	persona := domain.Persona{
		ID:   chat.ChatbotID,
		Name: chat.ChatbotName,
		URL:  "https://shapes.inc/" + chat.ChatbotID,
	}
	conv, err := s.Start(userID, []domain.Persona{persona})
	if err != nil {
		return nil, err
	}
	conv.Store.Load(messages)
	conv.markSaved(chat.ID, conv.Store.Revision())
	return conv, nil
}

func (s *ConversationService) DeleteSavedChat(ctx context.Context, userID, chatID string) error {
	chat, err := s.persistence.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.UserID != userID {
		return ErrChatNotFound
	}
	if err := s.persistence.DeleteChat(ctx, chat.ID); err != nil {
		return err
	}
	for _, conv := range s.Snapshot() {
		conv.detach(chat.ID)
	}
	return nil
}
