package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

type capturedRequest struct {
	path    string
	headers http.Header
	body    map[string]any
}

func newCompletionServer(t *testing.T, status int, reply string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		captured.path = r.URL.Path
		captured.headers = r.Header.Clone()
		_ = json.Unmarshal(raw, &captured.body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 300 {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": reply}}},
		})
	}))
}

func TestOpenAIClientComplete_BearerAuthAndHeaders(t *testing.T) {
	var got capturedRequest
	srv := newCompletionServer(t, http.StatusOK, "hola humano", &got)
	defer srv.Close()

	client := NewOpenAIClient(srv.URL+"/v1", zap.NewNop())
	out, err := client.Complete(context.Background(), CompletionRequest{
		Model:     "shapesinc/jarvis",
		Text:      "hi",
		APIKey:    "key-1",
		UserID:    "user-1",
		ChannelID: "user-1-jarvis",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "hola humano" {
		t.Fatalf("unexpected content %q", out)
	}
	if got.path != "/v1/chat/completions" {
		t.Fatalf("unexpected path %q", got.path)
	}
	if got.headers.Get("Authorization") != "Bearer key-1" {
		t.Fatalf("expected bearer auth, got %q", got.headers.Get("Authorization"))
	}
	if got.headers.Get(HeaderUserID) != "user-1" || got.headers.Get(HeaderChannelID) != "user-1-jarvis" {
		t.Fatalf("expected identity headers, got %v", got.headers)
	}
	if got.body["model"] != "shapesinc/jarvis" {
		t.Fatalf("unexpected model %v", got.body["model"])
	}
}

func TestOpenAIClientComplete_PrefersAppAuth(t *testing.T) {
	var got capturedRequest
	srv := newCompletionServer(t, http.StatusOK, "ok", &got)
	defer srv.Close()

	client := NewOpenAIClient(srv.URL+"/v1", zap.NewNop())
	_, err := client.Complete(context.Background(), CompletionRequest{
		Model:         "shapesinc/nova",
		Text:          "hi",
		APIKey:        "key-1",
		AppID:         "app-1",
		UserAuthToken: "tok-1",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.headers.Get("Authorization") != "" {
		t.Fatalf("expected no bearer header, got %q", got.headers.Get("Authorization"))
	}
	if got.headers.Get(HeaderAppID) != "app-1" || got.headers.Get(HeaderUserAuth) != "tok-1" {
		t.Fatalf("expected app auth headers, got %v", got.headers)
	}
}

func TestOpenAIClientComplete_MultimodalPayload(t *testing.T) {
	var got capturedRequest
	srv := newCompletionServer(t, http.StatusOK, "bonita foto", &got)
	defer srv.Close()

	client := NewOpenAIClient(srv.URL+"/v1", zap.NewNop())
	_, err := client.Complete(context.Background(), CompletionRequest{
		Model:        "shapesinc/nova",
		Text:         "mira",
		ImageDataURL: "data:image/png;base64,AAAA",
		APIKey:       "key-1",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	msgs, _ := got.body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %v", got.body["messages"])
	}
	parts, _ := msgs[0].(map[string]any)["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text + image parts, got %v", msgs[0])
	}
	if parts[1].(map[string]any)["type"] != "image_url" {
		t.Fatalf("expected image_url part, got %v", parts[1])
	}
}

func TestOpenAIClientComplete_StatusError(t *testing.T) {
	var got capturedRequest
	srv := newCompletionServer(t, http.StatusInternalServerError, "", &got)
	defer srv.Close()

	client := NewOpenAIClient(srv.URL+"/v1", zap.NewNop())
	_, err := client.Complete(context.Background(), CompletionRequest{Model: "shapesinc/x", Text: "hi", APIKey: "k"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", statusErr.StatusCode)
	}
}

func TestOpenAIClientComplete_EmptyChoices(t *testing.T) {
	var got capturedRequest
	srv := newCompletionServer(t, http.StatusOK, "", &got)
	defer srv.Close()

	client := NewOpenAIClient(srv.URL+"/v1", zap.NewNop())
	_, err := client.Complete(context.Background(), CompletionRequest{Model: "shapesinc/x", Text: "hi", APIKey: "k"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}
