package service

import (
	"sync"

	"shapeshift/internal/domain"
)

var (
	iconShapes = []string{"circle", "square", "triangle", "diamond", "hexagon", "star", "pentagon", "octagon"}
	iconColors = []string{"#f87171", "#fb923c", "#facc15", "#4ade80", "#2dd4bf", "#60a5fa", "#a78bfa", "#f472b6"}
)

// hashString replica h = (h<<5) - h + c con desbordamiento de 32 bits.
func hashString(s string) int32 {
	var h int32
	for _, r := range s {
		h = (h << 5) - h + int32(r)
	}
	return h
}

func absIndex(h int32, n int) int {
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int(v % int64(n))
}

// IconAssigner asigna forma y color estables por id de persona, con cache.
type IconAssigner struct {
	mu    sync.RWMutex
	cache map[string]domain.PersonaIcon
}

func NewIconAssigner() *IconAssigner {
	return &IconAssigner{cache: make(map[string]domain.PersonaIcon)}
}

func (a *IconAssigner) IconFor(p domain.Persona) domain.PersonaIcon {
	a.mu.RLock()
	icon, ok := a.cache[p.ID]
	a.mu.RUnlock()
	if ok {
		return icon
	}

	h := hashString(p.ID)
	icon = domain.PersonaIcon{
		Shape: iconShapes[absIndex(h, len(iconShapes))],
		Color: iconColors[absIndex(h>>3, len(iconColors))],
	}

	a.mu.Lock()
	a.cache[p.ID] = icon
	a.mu.Unlock()
	return icon
}
