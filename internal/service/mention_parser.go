package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"shapeshift/internal/domain"
)

var mentionPattern = regexp.MustCompile(`@([\p{L}\p{N}_-]+)`)

// MentionRequiredError se devuelve cuando una conversación grupal no nombra a ninguna persona.
type MentionRequiredError struct {
	Handles []string
}

func (e *MentionRequiredError) Error() string {
	return fmt.Sprintf("mention required: use one of %s", strings.Join(e.Handles, ", "))
}

// Guidance es el texto a mostrar al usuario.
func (e *MentionRequiredError) Guidance() string {
	return fmt.Sprintf("This is a group chat. Mention who should answer: %s", strings.Join(e.Handles, ", "))
}

// PersonaHandle normaliza el nombre a su @handle: sin espacios y en minúsculas.
func PersonaHandle(p domain.Persona) string {
	return "@" + handleKey(p.Name)
}

func handleKey(name string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name))
}

// ParseMentions devuelve, en orden de aparición, un par por cada persona del roster cuyo
// handle coincide con el @token.
func ParseMentions(text string, roster []domain.Persona) []domain.Mention {
	if len(roster) == 0 {
		return nil
	}
	byHandle := make(map[string][]domain.Persona, len(roster))
	for _, p := range roster {
		key := handleKey(p.Name)
		if key == "" {
			continue
		}
		byHandle[key] = append(byHandle[key], p)
	}

	var mentions []domain.Mention
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		for _, p := range byHandle[strings.ToLower(m[1])] {
			mentions = append(mentions, domain.Mention{Persona: p, Text: m[0]})
		}
	}
	return mentions
}

// UniqueMentionedPersonas reduce las menciones al conjunto de personas nombradas.
func UniqueMentionedPersonas(mentions []domain.Mention) []domain.Persona {
	seen := make(map[string]struct{}, len(mentions))
	out := make([]domain.Persona, 0, len(mentions))
	for _, m := range mentions {
		if _, ok := seen[m.Persona.ID]; ok {
			continue
		}
		seen[m.Persona.ID] = struct{}{}
		out = append(out, m.Persona)
	}
	return out
}

func availableHandles(roster []domain.Persona) []string {
	handles := make([]string, 0, len(roster))
	seen := make(map[string]struct{}, len(roster))
	for _, p := range roster {
		h := PersonaHandle(p)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		handles = append(handles, h)
	}
	return handles
}
