package http

import (
	"net/http"
	"testing"

	"shapeshift/internal/domain"
	"shapeshift/internal/service"
)

type conversationResponse struct {
	Conversation struct {
		ID          string                `json:"id"`
		Personas    []domain.Persona      `json:"personas"`
		Group       bool                  `json:"group"`
		SavedChatID string                `json:"saved_chat_id"`
		Messages    []service.MessageView `json:"messages"`
	} `json:"conversation"`
}

type sendResponse struct {
	UserMessage service.MessageView   `json:"user_message"`
	Replies     []service.MessageView `json:"replies"`
}

func addPersona(t *testing.T, srv *testServer, token, name, url string) {
	t.Helper()
	rec := performAuthRequest(srv.router, http.MethodPost, "/personas", token, map[string]string{"name": name, "url": url})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 adding persona, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func startConversation(t *testing.T, srv *testServer, token string, ids ...string) string {
	t.Helper()
	rec := performAuthRequest(srv.router, http.MethodPost, "/conversations", token, map[string]any{"persona_ids": ids})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 starting conversation, got %d (%s)", rec.Code, rec.Body.String())
	}
	var body conversationResponse
	decodeBody(t, rec, &body)
	return body.Conversation.ID
}

func TestPersonaHandler(t *testing.T) {
	srv := newTestServer(t, nil)
	token, _ := srv.token(t)

	addPersona(t, srv, token, "Jarvis", "https://shapes.inc/jarvis")

	t.Run("duplicado", func(t *testing.T) {
		rec := performAuthRequest(srv.router, http.MethodPost, "/personas", token, map[string]string{"url": "jarvis"})
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d", rec.Code)
		}
	})

	t.Run("url invalida", func(t *testing.T) {
		rec := performAuthRequest(srv.router, http.MethodPost, "/personas", token, map[string]string{"url": "https://example.com/x"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("listar con handle e icono", func(t *testing.T) {
		rec := performAuthRequest(srv.router, http.MethodGet, "/personas", token, nil)
		var body struct {
			Personas []struct {
				ID     string             `json:"id"`
				Handle string             `json:"handle"`
				Icon   domain.PersonaIcon `json:"icon"`
			} `json:"personas"`
		}
		decodeBody(t, rec, &body)
		if len(body.Personas) != 1 || body.Personas[0].Handle != "@jarvis" || body.Personas[0].Icon.Shape == "" {
			t.Fatalf("unexpected personas %+v", body.Personas)
		}
	})

	t.Run("borrar", func(t *testing.T) {
		rec := performAuthRequest(srv.router, http.MethodDelete, "/personas/jarvis", token, nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected status 204, got %d", rec.Code)
		}
		rec = performAuthRequest(srv.router, http.MethodDelete, "/personas/jarvis", token, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestSettingsHandler(t *testing.T) {
	srv := newTestServer(t, nil)
	token, _ := srv.token(t)

	rec := performAuthRequest(srv.router, http.MethodPut, "/settings", token, map[string]any{"api_key": "bad key"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	rec = performAuthRequest(srv.router, http.MethodPut, "/settings", token, map[string]any{"api_key": "sk-123", "onboarded": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec = performAuthRequest(srv.router, http.MethodGet, "/settings", token, nil)
	var body struct {
		Settings map[string]any `json:"settings"`
	}
	decodeBody(t, rec, &body)
	if body.Settings["has_api_key"] != true || body.Settings["onboarded"] != true {
		t.Fatalf("unexpected settings %+v", body.Settings)
	}
	if _, leaked := body.Settings["api_key"]; leaked {
		t.Fatalf("api key must not be returned")
	}
}

func TestConversationHandler_SingleFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	token, _ := srv.token(t)
	addPersona(t, srv, token, "Jarvis", "https://shapes.inc/jarvis")
	convID := startConversation(t, srv, token, "jarvis")

	t.Run("mensaje vacio", func(t *testing.T) {
		rec := performAuthRequest(srv.router, http.MethodPost, "/conversations/"+convID+"/messages", token, map[string]string{"text": " "})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})

	var sent sendResponse
	t.Run("enviar", func(t *testing.T) {
		rec := performAuthRequest(srv.router, http.MethodPost, "/conversations/"+convID+"/messages", token, map[string]string{"text": "hola"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d (%s)", rec.Code, rec.Body.String())
		}
		decodeBody(t, rec, &sent)
		if len(sent.Replies) != 1 {
			t.Fatalf("expected one reply, got %d", len(sent.Replies))
		}
		reply := sent.Replies[0]
		if len(reply.Segments) != 2 || !reply.Segments[0].IsInnerThought || reply.Icon == nil {
			t.Fatalf("expected rendered reply, got %+v", reply)
		}
	})

	t.Run("editar y regenerar", func(t *testing.T) {
		rec := performAuthRequest(srv.router, http.MethodPatch, "/conversations/"+convID+"/messages/"+sent.UserMessage.ID, token, map[string]string{"content": "hola de nuevo"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		rec = performAuthRequest(srv.router, http.MethodPost, "/conversations/"+convID+"/messages/"+sent.Replies[0].ID+"/regenerate", token, nil)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d (%s)", rec.Code, rec.Body.String())
		}
		rec = performAuthRequest(srv.router, http.MethodPost, "/conversations/"+convID+"/messages/"+sent.UserMessage.ID+"/regenerate", token, nil)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected status 422 regenerating user message, got %d", rec.Code)
		}
	})

	t.Run("obtener", func(t *testing.T) {
		rec := performAuthRequest(srv.router, http.MethodGet, "/conversations/"+convID, token, nil)
		var body conversationResponse
		decodeBody(t, rec, &body)
		if len(body.Conversation.Messages) != 2 || body.Conversation.Messages[0].Content != "hola de nuevo" {
			t.Fatalf("unexpected messages %+v", body.Conversation.Messages)
		}
		if body.Conversation.Messages[1].Content != "*piensa* hola de nuevo" {
			t.Fatalf("expected regenerated reply with edited prompt, got %q", body.Conversation.Messages[1].Content)
		}
	})

	t.Run("otro usuario no ve la conversacion", func(t *testing.T) {
		other, _ := srv.token(t)
		rec := performAuthRequest(srv.router, http.MethodGet, "/conversations/"+convID, other, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestConversationHandler_GroupNeedsMention(t *testing.T) {
	srv := newTestServer(t, nil)
	token, _ := srv.token(t)
	addPersona(t, srv, token, "Jarvis", "https://shapes.inc/jarvis")
	addPersona(t, srv, token, "Nova", "https://shapes.inc/nova")
	convID := startConversation(t, srv, token, "jarvis", "nova")

	rec := performAuthRequest(srv.router, http.MethodPost, "/conversations/"+convID+"/messages", token, map[string]string{"text": "hola"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}
	var errBody struct {
		Mentions []string `json:"mentions"`
	}
	decodeBody(t, rec, &errBody)
	if len(errBody.Mentions) != 2 {
		t.Fatalf("expected available handles, got %+v", errBody.Mentions)
	}

	rec = performAuthRequest(srv.router, http.MethodPost, "/conversations/"+convID+"/messages", token, map[string]string{"text": "@nova hola"})
	var sent sendResponse
	decodeBody(t, rec, &sent)
	if rec.Code != http.StatusCreated || len(sent.Replies) != 1 || sent.Replies[0].BotName != "Nova" {
		t.Fatalf("expected only Nova to answer, got %d %+v", rec.Code, sent.Replies)
	}
}

func TestChatHandler_SaveOpenDelete(t *testing.T) {
	srv := newTestServer(t, nil)
	token, _ := srv.token(t)
	addPersona(t, srv, token, "Jarvis", "https://shapes.inc/jarvis")
	convID := startConversation(t, srv, token, "jarvis")
	performAuthRequest(srv.router, http.MethodPost, "/conversations/"+convID+"/messages", token, map[string]string{"text": "hola"})

	rec := performAuthRequest(srv.router, http.MethodPost, "/conversations/"+convID+"/save", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var saved struct {
		Chat domain.SavedChat `json:"chat"`
	}
	decodeBody(t, rec, &saved)
	if saved.Chat.Title != "hola" {
		t.Fatalf("expected derived title, got %q", saved.Chat.Title)
	}

	rec = performAuthRequest(srv.router, http.MethodGet, "/chats", token, nil)
	var list struct {
		Chats []domain.SavedChat `json:"chats"`
	}
	decodeBody(t, rec, &list)
	if len(list.Chats) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(list.Chats))
	}

	rec = performAuthRequest(srv.router, http.MethodPost, "/chats/"+saved.Chat.ID+"/open", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	var opened conversationResponse
	decodeBody(t, rec, &opened)
	if len(opened.Conversation.Messages) != 2 || opened.Conversation.SavedChatID != saved.Chat.ID {
		t.Fatalf("unexpected opened conversation %+v", opened.Conversation)
	}

	other, _ := srv.token(t)
	rec = performAuthRequest(srv.router, http.MethodDelete, "/chats/"+saved.Chat.ID, other, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for other user, got %d", rec.Code)
	}
	rec = performAuthRequest(srv.router, http.MethodDelete, "/chats/"+saved.Chat.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	rec = performAuthRequest(srv.router, http.MethodPost, "/chats/"+saved.Chat.ID+"/open", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after delete, got %d", rec.Code)
	}
}
