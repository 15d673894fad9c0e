package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const DefaultAutosaveInterval = 5 * time.Minute

// Autosaver guarda periódicamente las conversaciones con mensajes y persona activa.
// Los fallos se loguean y no cortan el loop.
type Autosaver struct {
	conversations *ConversationService
	interval      time.Duration
	idleTTL       time.Duration
	logger        *zap.Logger
	saveFn        func(ctx context.Context, conv *Conversation) error
}

func NewAutosaver(conversations *ConversationService, interval time.Duration, logger *zap.Logger) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Autosaver{
		conversations: conversations,
		interval:      interval,
		logger:        logger,
	}
	a.saveFn = func(ctx context.Context, conv *Conversation) error {
		_, err := conversations.save(ctx, conv, "", false)
		return err
	}
	return a
}

// SetIdleTTL activa el desalojo de conversaciones inactivas en cada pasada. Cero lo desactiva.
func (a *Autosaver) SetIdleTTL(ttl time.Duration) {
	a.idleTTL = ttl
}

// Run bloquea hasta que ctx se cancela.
func (a *Autosaver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Autosaver) tick(ctx context.Context) {
	a.SaveAll(ctx)
	if a.idleTTL <= 0 {
		return
	}
	if n := a.conversations.EvictIdle(ctx, a.idleTTL); n > 0 {
		a.logger.Debug("idle conversations evicted", zap.Int("conversations", n))
	}
}

// SaveAll hace una pasada y devuelve cuántas conversaciones se guardaron.
func (a *Autosaver) SaveAll(ctx context.Context) int {
	saved := 0
	for _, conv := range a.conversations.Snapshot() {
		if len(conv.Personas) == 0 || conv.Store.Len() == 0 || !conv.Dirty() {
			continue
		}
		if err := a.saveOne(ctx, conv); err != nil {
			a.logger.Warn("autosave failed",
				zap.String("conversation_id", conv.ID),
				zap.String("user_id", conv.UserID),
				zap.Error(err),
			)
			continue
		}
		saved++
	}
	return saved
}

func (a *Autosaver) saveOne(ctx context.Context, conv *Conversation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("autosave panic: %v", r)
		}
	}()
	return a.saveFn(ctx, conv)
}
