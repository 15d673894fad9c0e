package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"shapeshift/internal/domain"
)

// SettingsStore guarda lo que el cliente web tenía en local storage, por usuario.
type SettingsStore interface {
	Get(ctx context.Context, userID string) (domain.Settings, error)
	Put(ctx context.Context, userID string, settings domain.Settings) error
}

type memorySettingsStore struct {
	mu    sync.RWMutex
	items map[string]domain.Settings
}

func NewMemorySettingsStore() SettingsStore {
	return &memorySettingsStore{items: make(map[string]domain.Settings)}
}

func (s *memorySettingsStore) Get(_ context.Context, userID string) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.items[userID]
	if !ok {
		return domain.Settings{Chatbots: []domain.Persona{}}, nil
	}
	settings.Chatbots = append([]domain.Persona{}, settings.Chatbots...)
	return settings, nil
}

func (s *memorySettingsStore) Put(_ context.Context, userID string, settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings.Chatbots = append([]domain.Persona{}, settings.Chatbots...)
	s.items[userID] = settings
	return nil
}

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type redisSettingsStore struct {
	client  redisKV
	prefix  string
	timeout time.Duration
}

func NewRedisSettingsStore(client *redis.Client) SettingsStore {
	if client == nil {
		return nil
	}
	return &redisSettingsStore{
		client:  client,
		prefix:  "shapeshift:settings:",
		timeout: 500 * time.Millisecond,
	}
}

func (s *redisSettingsStore) Get(ctx context.Context, userID string) (domain.Settings, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	settings := domain.Settings{Chatbots: []domain.Persona{}}
	raw, err := s.client.Get(ctx, s.prefix+strings.TrimSpace(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return settings, nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("redis get settings: %w", err)
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if settings.Chatbots == nil {
		settings.Chatbots = []domain.Persona{}
	}
	return settings, nil
}

func (s *redisSettingsStore) Put(ctx context.Context, userID string, settings domain.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Set(ctx, s.prefix+strings.TrimSpace(userID), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set settings: %w", err)
	}
	return nil
}
