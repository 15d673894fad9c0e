package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"shapeshift/internal/domain"
	"shapeshift/internal/repository"
)

type memChatRepo struct {
	mu        sync.Mutex
	chats     map[string]domain.SavedChat
	creates   int
	touches   int
	createErr error
}

func newMemChatRepo() *memChatRepo {
	return &memChatRepo{chats: make(map[string]domain.SavedChat)}
}

func (m *memChatRepo) Create(_ context.Context, chat domain.SavedChat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.creates++
	m.chats[chat.ID] = chat
	return nil
}

func (m *memChatRepo) Touch(_ context.Context, id string, updatedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[id]
	if !ok {
		return false, nil
	}
	m.touches++
	chat.UpdatedAt = updatedAt
	m.chats[id] = chat
	return true, nil
}

func (m *memChatRepo) GetByID(_ context.Context, id string) (domain.SavedChat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[id]
	if !ok {
		return domain.SavedChat{}, pgx.ErrNoRows
	}
	return chat, nil
}

func (m *memChatRepo) ListByUserID(_ context.Context, userID string) ([]domain.SavedChat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.SavedChat{}
	for _, c := range m.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memChatRepo) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[id]; !ok {
		return false, nil
	}
	delete(m.chats, id)
	return true, nil
}

func (m *memChatRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chats)
}

type memMessageRepo struct {
	mu         sync.Mutex
	byChat     map[string][]domain.Message
	replaceErr error
	replaces   int
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{byChat: make(map[string][]domain.Message)}
}

func (m *memMessageRepo) ReplaceForChat(_ context.Context, chatID string, messages []domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaces++
	m.byChat[chatID] = append([]domain.Message(nil), messages...)
	return nil
}

func (m *memMessageRepo) ListByChatID(_ context.Context, chatID string) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Message{}, m.byChat[chatID]...), nil
}

var errBackendDown = errors.New("backend down")

var (
	_ repository.ChatRepository    = (*memChatRepo)(nil)
	_ repository.MessageRepository = (*memMessageRepo)(nil)
)
