package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode"

	"shapeshift/internal/domain"
)

var (
	ErrSettingsNotConfigured = errors.New("settings not configured")
	ErrInvalidAPIKey         = errors.New("invalid api key")
)

// SettingsService serializa las lecturas-modificaciones por usuario sobre el SettingsStore.
type SettingsService struct {
	store    SettingsStore
	appID    string
	fallback string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSettingsService recibe el app id del proveedor y una API key de respaldo opcional.
func NewSettingsService(store SettingsStore, appID, fallbackAPIKey string) *SettingsService {
	if store == nil {
		store = NewMemorySettingsStore()
	}
	return &SettingsService{
		store:    store,
		appID:    strings.TrimSpace(appID),
		fallback: strings.TrimSpace(fallbackAPIKey),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *SettingsService) Get(ctx context.Context, userID string) (domain.Settings, error) {
	if s == nil {
		return domain.Settings{}, ErrSettingsNotConfigured
	}
	return s.store.Get(ctx, userID)
}

// Update aplica fn sobre los settings del usuario y los persiste si fn no falla.
func (s *SettingsService) Update(ctx context.Context, userID string, fn func(*domain.Settings) error) (domain.Settings, error) {
	if s == nil {
		return domain.Settings{}, ErrSettingsNotConfigured
	}
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	settings, err := s.store.Get(ctx, userID)
	if err != nil {
		return domain.Settings{}, err
	}
	if err := fn(&settings); err != nil {
		return domain.Settings{}, err
	}
	if err := s.store.Put(ctx, userID, settings); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

// ValidateAPIKey rechaza claves vacías o con espacios.
func ValidateAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" || strings.IndexFunc(key, unicode.IsSpace) >= 0 {
		return ErrInvalidAPIKey
	}
	return nil
}

func (s *SettingsService) SetAPIKey(ctx context.Context, userID, key string) (domain.Settings, error) {
	if err := ValidateAPIKey(key); err != nil {
		return domain.Settings{}, err
	}
	return s.Update(ctx, userID, func(st *domain.Settings) error {
		st.APIKey = strings.TrimSpace(key)
		return nil
	})
}

func (s *SettingsService) SetOnboarded(ctx context.Context, userID string, onboarded bool) (domain.Settings, error) {
	return s.Update(ctx, userID, func(st *domain.Settings) error {
		st.Onboarded = onboarded
		return nil
	})
}

func (s *SettingsService) SetAppAuthToken(ctx context.Context, userID, token string) (domain.Settings, error) {
	return s.Update(ctx, userID, func(st *domain.Settings) error {
		st.AppAuthToken = strings.TrimSpace(token)
		return nil
	})
}

// Credentials arma las credenciales de una llamada al proveedor para el usuario.
func (s *SettingsService) Credentials(ctx context.Context, userID string) (domain.Credentials, error) {
	settings, err := s.Get(ctx, userID)
	if err != nil {
		return domain.Credentials{}, err
	}
	key := settings.APIKey
	if key == "" {
		key = s.fallback
	}
	return domain.Credentials{
		APIKey:        key,
		AppID:         s.appID,
		UserAuthToken: settings.AppAuthToken,
		UserID:        userID,
	}, nil
}

func (s *SettingsService) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}
