package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"shapeshift/internal/domain"
	"shapeshift/internal/service"
)

type mockChatRepo struct {
	mu    sync.Mutex
	chats map[string]domain.SavedChat
}

func (m *mockChatRepo) Create(_ context.Context, chat domain.SavedChat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chat.ID] = chat
	return nil
}

func (m *mockChatRepo) Touch(_ context.Context, id string, updatedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[id]
	if !ok {
		return false, nil
	}
	chat.UpdatedAt = updatedAt
	m.chats[id] = chat
	return true, nil
}

func (m *mockChatRepo) GetByID(_ context.Context, id string) (domain.SavedChat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[id]
	if !ok {
		return domain.SavedChat{}, pgx.ErrNoRows
	}
	return chat, nil
}

func (m *mockChatRepo) ListByUserID(_ context.Context, userID string) ([]domain.SavedChat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.SavedChat{}
	for _, c := range m.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockChatRepo) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[id]; !ok {
		return false, nil
	}
	delete(m.chats, id)
	return true, nil
}

type mockMessageRepo struct {
	mu     sync.Mutex
	byChat map[string][]domain.Message
}

func (m *mockMessageRepo) ReplaceForChat(_ context.Context, chatID string, messages []domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byChat[chatID] = append([]domain.Message(nil), messages...)
	return nil
}

func (m *mockMessageRepo) ListByChatID(_ context.Context, chatID string) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Message{}, m.byChat[chatID]...), nil
}

// echoResponder contesta con el nombre de la persona y el texto recibido.
type echoResponder struct{}

func (echoResponder) Respond(_ context.Context, _ domain.Credentials, persona domain.Persona, input service.Input) domain.Message {
	return domain.Message{
		Content: "*piensa* " + input.Text,
		Sender:  domain.SenderBot,
		BotName: persona.Name,
	}
}

type testServer struct {
	router   *gin.Engine
	jwt      *service.JWTService
	settings *service.SettingsService
	chats    *mockChatRepo
}

func newTestServer(t *testing.T, exchanger *service.AuthExchanger) *testServer {
	t.Helper()
	return buildTestServer(t, exchanger, nil, nil)
}

func newTestServerWithLimits(t *testing.T, authLimiter, sendLimiter service.RateLimiter) *testServer {
	t.Helper()
	return buildTestServer(t, nil, authLimiter, sendLimiter)
}

func buildTestServer(t *testing.T, exchanger *service.AuthExchanger, authLimiter, sendLimiter service.RateLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	chats := &mockChatRepo{chats: make(map[string]domain.SavedChat)}
	messages := &mockMessageRepo{byChat: make(map[string][]domain.Message)}
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, time.Hour, service.NewMemoryRefreshTokenStore())
	settings := service.NewSettingsService(nil, "app-1", "")
	personas := service.NewPersonaService(settings)
	persistence := service.NewChatPersistence(chats, messages, logger)
	conversations := service.NewConversationService(echoResponder{}, persistence, settings, logger, 2)
	renderer := service.NewRenderer(service.NewMediaClassifier(""), service.NewIconAssigner())
	if exchanger == nil {
		exchanger = service.NewAuthExchanger("", "app-1", nil)
	}

	convH := NewConversationHandler(logger, conversations, personas, renderer)
	router := NewRouter(logger, jwtSvc, Handlers{
		Auth:          NewAuthHandler(logger, jwtSvc, exchanger, settings),
		Settings:      NewSettingsHandler(logger, settings),
		Personas:      NewPersonaHandler(logger, personas, nil),
		Conversations: convH,
		Chats:         NewChatHandler(logger, conversations, convH),
		AuthLimiter:   authLimiter,
		SendLimiter:   sendLimiter,
	})
	return &testServer{router: router, jwt: jwtSvc, settings: settings, chats: chats}
}

// token abre una sesión para un usuario nuevo y devuelve el access token y el user id.
func (s *testServer) token(t *testing.T) (string, string) {
	t.Helper()
	pair, err := s.jwt.StartSession(context.Background(), "")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return pair.AccessToken, pair.UserID
}

func performRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	return performAuthRequest(r, method, path, "", body)
}

func performAuthRequest(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode body: %v (%s)", err, rec.Body.String())
	}
}
