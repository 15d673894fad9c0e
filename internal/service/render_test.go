package service

import (
	"testing"

	"shapeshift/internal/domain"
)

func TestRendererView(t *testing.T) {
	r := NewRenderer(NewMediaClassifier(""), nil)

	t.Run("bot con pensamiento e imagen", func(t *testing.T) {
		msg := domain.Message{
			ID:      "b1",
			Sender:  domain.SenderBot,
			BotName: "jarvis",
			Content: "*mira la foto* https://files.shapes.inc/a/b.PNG",
		}
		view := r.View(msg, []domain.Persona{jarvis})
		if view.Media == nil || view.Media.Kind != domain.MediaImage {
			t.Fatalf("expected image media, got %+v", view.Media)
		}
		if len(view.Segments) != 2 || !view.Segments[0].IsInnerThought || view.Segments[0].Text != "mira la foto" {
			t.Fatalf("unexpected segments %+v", view.Segments)
		}
		if view.Icon == nil {
			t.Fatalf("expected icon for known persona")
		}
		if *view.Icon != r.icons.IconFor(jarvis) {
			t.Fatalf("expected icon to be stable")
		}
	})

	t.Run("usuario sin parseo de pensamientos", func(t *testing.T) {
		view := r.View(domain.Message{Sender: domain.SenderUser, Content: "*no es pensamiento*"}, nil)
		if len(view.Segments) != 1 || view.Segments[0].IsInnerThought {
			t.Fatalf("unexpected segments %+v", view.Segments)
		}
		if view.Icon != nil || view.Media != nil {
			t.Fatalf("expected no icon nor media")
		}
	})

	t.Run("audio", func(t *testing.T) {
		view := r.View(domain.Message{Sender: domain.SenderBot, Content: "escuchá https://files.shapes.inc/v.mp3"}, nil)
		if view.Media == nil || view.Media.Kind != domain.MediaAudio {
			t.Fatalf("expected audio media, got %+v", view.Media)
		}
	})
}

func TestRendererRenderKeepsOrder(t *testing.T) {
	r := NewRenderer(NewMediaClassifier(""), NewIconAssigner())
	msgs := []domain.Message{
		{ID: "1", Sender: domain.SenderUser, Content: "a"},
		{ID: "2", Sender: domain.SenderBot, Content: "b"},
		{ID: "3", Sender: domain.SenderUser, Content: ""},
	}
	views := r.Render(msgs, nil)
	if len(views) != 3 {
		t.Fatalf("expected 3 views, got %d", len(views))
	}
	for i, v := range views {
		if v.ID != msgs[i].ID {
			t.Fatalf("expected order preserved at %d", i)
		}
	}
	if views[2].Segments == nil || len(views[2].Segments) != 0 {
		t.Fatalf("expected empty non-nil segments for empty content")
	}
}
