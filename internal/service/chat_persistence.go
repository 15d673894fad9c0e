package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"shapeshift/internal/domain"
	"shapeshift/internal/repository"
)

const (
	DefaultChatTitle = "New Chat"
	chatTitleMaxLen  = 50
)

var (
	ErrChatPersistenceNotConfigured = errors.New("chat persistence not configured")
	ErrChatNotFound                 = errors.New("chat not found")
	ErrChatInvalidInput             = errors.New("chat invalid input")
)

// ChatPersistence guarda y recupera instantáneas de conversaciones en la base.
type ChatPersistence struct {
	chats    repository.ChatRepository
	messages repository.MessageRepository
	logger   *zap.Logger
	now      func() time.Time
}

func NewChatPersistence(chats repository.ChatRepository, messages repository.MessageRepository, logger *zap.Logger) *ChatPersistence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatPersistence{
		chats:    chats,
		messages: messages,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type SaveChatInput struct {
	ChatID   string
	UserID   string
	Persona  domain.Persona
	Messages []domain.Message
	Title    string
	Notify   bool
}

// DeriveChatTitle usa los primeros 50 caracteres del primer mensaje del usuario.
func DeriveChatTitle(messages []domain.Message) string {
	for _, m := range messages {
		if m.Sender != domain.SenderUser {
			continue
		}
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		runes := []rune(text)
		if len(runes) > chatTitleMaxLen {
			runes = runes[:chatTitleMaxLen]
		}
		return string(runes)
	}
	return DefaultChatTitle
}

func (s *ChatPersistence) ListSavedChats(ctx context.Context, userID string) ([]domain.SavedChat, error) {
	if s == nil || s.chats == nil {
		return nil, ErrChatPersistenceNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return []domain.SavedChat{}, nil
	}
	return s.chats.ListByUserID(ctx, userID)
}

// SaveChat crea el registro si la conversación aún no tiene uno o lo "toca" si ya existe,
// y siempre reemplaza el set completo de mensajes.
func (s *ChatPersistence) SaveChat(ctx context.Context, in SaveChatInput) (domain.SavedChat, error) {
	if s == nil || s.chats == nil || s.messages == nil {
		return domain.SavedChat{}, ErrChatPersistenceNotConfigured
	}
	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" || in.Persona.ID == "" {
		return domain.SavedChat{}, ErrChatInvalidInput
	}

	now := s.now()
	var chat domain.SavedChat

	if in.ChatID != "" {
		existing, err := s.getChat(ctx, in.ChatID)
		switch {
		case err == nil:
			if _, err := s.chats.Touch(ctx, existing.ID, now); err != nil {
				return domain.SavedChat{}, fmt.Errorf("touch chat: %w", err)
			}
			existing.UpdatedAt = now
			chat = existing
		case errors.Is(err, ErrChatNotFound):
			// el registro desapareció; se crea uno nuevo
		default:
			return domain.SavedChat{}, err
		}
	}

	created := false
	if chat.ID == "" {
		title := strings.TrimSpace(in.Title)
		if title == "" {
			title = DeriveChatTitle(in.Messages)
		}
		chat = domain.SavedChat{
			ID:          uuid.NewString(),
			ChatbotID:   in.Persona.ID,
			ChatbotName: in.Persona.Name,
			Title:       title,
			UserID:      in.UserID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.chats.Create(ctx, chat); err != nil {
			return domain.SavedChat{}, fmt.Errorf("create chat: %w", err)
		}
		created = true
	}

	if err := s.messages.ReplaceForChat(ctx, chat.ID, in.Messages); err != nil {
		if created {
			s.discardChat(ctx, chat.ID)
		}
		return domain.SavedChat{}, fmt.Errorf("replace messages: %w", err)
	}

	fields := []zap.Field{
		zap.String("chat_id", chat.ID),
		zap.String("user_id", chat.UserID),
		zap.Int("messages", len(in.Messages)),
	}
	if in.Notify {
		s.logger.Info("chat saved", fields...)
	} else {
		s.logger.Debug("chat autosaved", fields...)
	}
	return chat, nil
}

// discardChat borra un registro recién creado cuyos mensajes no se pudieron escribir,
// así el próximo guardado no deja un chat vacío en la lista.
func (s *ChatPersistence) discardChat(ctx context.Context, chatID string) {
	if _, err := s.chats.Delete(context.WithoutCancel(ctx), chatID); err != nil {
		s.logger.Warn("discard empty chat failed", zap.String("chat_id", chatID), zap.Error(err))
	}
}

// LoadChat devuelve el registro y sus mensajes en orden.
func (s *ChatPersistence) LoadChat(ctx context.Context, chatID string) (domain.SavedChat, []domain.Message, error) {
	if s == nil || s.chats == nil || s.messages == nil {
		return domain.SavedChat{}, nil, ErrChatPersistenceNotConfigured
	}
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return domain.SavedChat{}, nil, err
	}
	messages, err := s.messages.ListByChatID(ctx, chat.ID)
	if err != nil {
		return domain.SavedChat{}, nil, fmt.Errorf("list messages: %w", err)
	}
	return chat, messages, nil
}

// GetChat devuelve sólo el registro, sin mensajes.
func (s *ChatPersistence) GetChat(ctx context.Context, chatID string) (domain.SavedChat, error) {
	if s == nil || s.chats == nil {
		return domain.SavedChat{}, ErrChatPersistenceNotConfigured
	}
	return s.getChat(ctx, chatID)
}

func (s *ChatPersistence) DeleteChat(ctx context.Context, chatID string) error {
	if s == nil || s.chats == nil {
		return ErrChatPersistenceNotConfigured
	}
	if _, err := uuid.Parse(strings.TrimSpace(chatID)); err != nil {
		return ErrChatNotFound
	}
	deleted, err := s.chats.Delete(ctx, strings.TrimSpace(chatID))
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if !deleted {
		return ErrChatNotFound
	}
	return nil
}

func (s *ChatPersistence) getChat(ctx context.Context, chatID string) (domain.SavedChat, error) {
	chatID = strings.TrimSpace(chatID)
	if _, err := uuid.Parse(chatID); err != nil {
		return domain.SavedChat{}, ErrChatNotFound
	}
	chat, err := s.chats.GetByID(ctx, chatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SavedChat{}, ErrChatNotFound
	}
	if err != nil {
		return domain.SavedChat{}, fmt.Errorf("get chat: %w", err)
	}
	return chat, nil
}
