package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	HeaderUserID    = "X-User-Id"
	HeaderChannelID = "X-Channel-Id"
	HeaderAppID     = "X-App-ID"
	HeaderUserAuth  = "X-User-Auth"
)

var ErrEmptyResponse = errors.New("llm empty response")

// CompletionClient define la interfaz para pedir una respuesta al proveedor de shapes.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest es una llamada a /chat/completions para una persona.
type CompletionRequest struct {
	Model         string
	Text          string
	ImageDataURL  string
	APIKey        string
	AppID         string
	UserAuthToken string
	UserID        string
	ChannelID     string
}

func (r CompletionRequest) usesAppAuth() bool {
	return r.AppID != "" && r.UserAuthToken != ""
}

// StatusError se devuelve cuando el proveedor responde con un status no exitoso.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm http error: status=%d", e.StatusCode)
}

// OpenAIClient implementa CompletionClient sobre go-openai contra la API compatible de shapes.
type OpenAIClient struct {
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
	logger    *zap.Logger
}

// NewOpenAIClient construye un cliente apuntando a baseURL (ej. https://api.shapes.inc/v1).
func NewOpenAIClient(baseURL string, logger *zap.Logger) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.shapes.inc/v1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   60 * time.Second,
		transport: http.DefaultTransport,
		logger:    logger,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	token := req.APIKey
	if req.usesAppAuth() {
		token = ""
	}

	rt := &headerTransport{base: c.transport, req: req}
	cfg := openai.DefaultConfig(token)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = &http.Client{Timeout: c.timeout, Transport: rt}
	client := openai.NewClientWithConfig(cfg)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: []openai.ChatCompletionMessage{buildUserMessage(req)},
	})
	if err != nil {
		if status := rt.lastStatus(); status >= 300 {
			c.logger.Warn("llm error status", zap.Int("status", status), zap.String("model", req.Model), zap.Error(err))
			return "", &StatusError{StatusCode: status}
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 300 {
			return "", &StatusError{StatusCode: apiErr.HTTPStatusCode}
		}
		return "", fmt.Errorf("do request: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func buildUserMessage(req CompletionRequest) openai.ChatCompletionMessage {
	if req.ImageDataURL == "" {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Text}
	}
	parts := make([]openai.ChatMessagePart, 0, 2)
	if req.Text != "" {
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: req.Text})
	}
	parts = append(parts, openai.ChatMessagePart{
		Type:     openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{URL: req.ImageDataURL},
	})
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts}
}

// headerTransport agrega identidad de usuario/canal y recuerda el status recibido.
type headerTransport struct {
	base http.RoundTripper
	req  CompletionRequest

	mu     sync.Mutex
	status int
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	out := r.Clone(r.Context())
	if t.req.usesAppAuth() {
		out.Header.Del("Authorization")
		out.Header.Set(HeaderAppID, t.req.AppID)
		out.Header.Set(HeaderUserAuth, t.req.UserAuthToken)
	}
	if t.req.UserID != "" {
		out.Header.Set(HeaderUserID, t.req.UserID)
	}
	if t.req.ChannelID != "" {
		out.Header.Set(HeaderChannelID, t.req.ChannelID)
	}

	resp, err := t.base.RoundTrip(out)
	if err == nil {
		t.mu.Lock()
		t.status = resp.StatusCode
		t.mu.Unlock()
	}
	return resp, err
}

func (t *headerTransport) lastStatus() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
