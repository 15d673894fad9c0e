package service

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"shapeshift/internal/domain"
)

var (
	ErrPersonaInvalidURL  = errors.New("persona url invalid")
	ErrPersonaInvalidName = errors.New("persona name invalid")
	ErrPersonaExists      = errors.New("persona already exists")
	ErrPersonaNotFound    = errors.New("persona not found")
)

var (
	vanitySlugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
	handlePattern     = regexp.MustCompile(`^[\p{L}\p{N}_-]+$`)
)

// ParseVanityURL extrae el slug de una URL tipo https://shapes.inc/<slug>.
// Acepta también el slug solo.
func ParseVanityURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrPersonaInvalidURL
	}
	if !strings.Contains(raw, "/") && !strings.Contains(raw, ".") {
		slug := strings.ToLower(raw)
		if !vanitySlugPattern.MatchString(slug) {
			return "", ErrPersonaInvalidURL
		}
		return slug, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", ErrPersonaInvalidURL
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "shapes.inc" {
		return "", ErrPersonaInvalidURL
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	slug := strings.ToLower(parts[len(parts)-1])
	if !vanitySlugPattern.MatchString(slug) {
		return "", ErrPersonaInvalidURL
	}
	return slug, nil
}

// PersonaService administra el roster de personas de cada usuario.
type PersonaService struct {
	settings *SettingsService
}

func NewPersonaService(settings *SettingsService) *PersonaService {
	return &PersonaService{settings: settings}
}

func (s *PersonaService) List(ctx context.Context, userID string) ([]domain.Persona, error) {
	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return settings.Chatbots, nil
}

func (s *PersonaService) Add(ctx context.Context, userID, name, rawURL string) (domain.Persona, error) {
	slug, err := ParseVanityURL(rawURL)
	if err != nil {
		return domain.Persona{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = slug
	}
	// el nombre tiene que poder mencionarse con @handle
	if !handlePattern.MatchString(handleKey(name)) {
		return domain.Persona{}, ErrPersonaInvalidName
	}
	persona := domain.Persona{ID: slug, Name: name, URL: "https://shapes.inc/" + slug}

	_, err = s.settings.Update(ctx, userID, func(st *domain.Settings) error {
		for _, p := range st.Chatbots {
			if p.ID == slug || handleKey(p.Name) == handleKey(name) {
				return ErrPersonaExists
			}
		}
		st.Chatbots = append(st.Chatbots, persona)
		return nil
	})
	if err != nil {
		return domain.Persona{}, err
	}
	return persona, nil
}

func (s *PersonaService) Delete(ctx context.Context, userID, id string) error {
	_, err := s.settings.Update(ctx, userID, func(st *domain.Settings) error {
		for i, p := range st.Chatbots {
			if p.ID == id {
				st.Chatbots = append(st.Chatbots[:i], st.Chatbots[i+1:]...)
				return nil
			}
		}
		return ErrPersonaNotFound
	})
	return err
}

// Resolve devuelve las personas del roster con esos ids, en el orden pedido.
func (s *PersonaService) Resolve(ctx context.Context, userID string, ids []string) ([]domain.Persona, error) {
	roster, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Persona, len(roster))
	for _, p := range roster {
		byID[p.ID] = p
	}
	out := make([]domain.Persona, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		p, ok := byID[strings.TrimSpace(id)]
		if !ok {
			return nil, ErrPersonaNotFound
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}
