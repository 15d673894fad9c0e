package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"shapeshift/internal/domain"
)

type ChatRepository interface {
	Create(ctx context.Context, chat domain.SavedChat) error
	Touch(ctx context.Context, id string, updatedAt time.Time) (bool, error)
	GetByID(ctx context.Context, id string) (domain.SavedChat, error)
	ListByUserID(ctx context.Context, userID string) ([]domain.SavedChat, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

func (r *PgChatRepository) Create(ctx context.Context, chat domain.SavedChat) error {
	const query = `
		INSERT INTO chats (id, chatbot_id, chatbot_name, title, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		chat.ID,
		chat.ChatbotID,
		chat.ChatbotName,
		chat.Title,
		chat.UserID,
		chat.CreatedAt,
		chat.UpdatedAt,
	)
	return err
}

// Touch actualiza updated_at; devuelve false si el chat no existe.
func (r *PgChatRepository) Touch(ctx context.Context, id string, updatedAt time.Time) (bool, error) {
	const query = `UPDATE chats SET updated_at = $1 WHERE id = $2`
	tag, err := r.pool.Exec(ctx, query, updatedAt, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgChatRepository) GetByID(ctx context.Context, id string) (domain.SavedChat, error) {
	const query = `
		SELECT id, chatbot_id, chatbot_name, title, user_id, created_at, updated_at
		FROM chats
		WHERE id = $1
	`
	var chat domain.SavedChat
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&chat.ID,
		&chat.ChatbotID,
		&chat.ChatbotName,
		&chat.Title,
		&chat.UserID,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	return chat, err
}

func (r *PgChatRepository) ListByUserID(ctx context.Context, userID string) ([]domain.SavedChat, error) {
	const query = `
		SELECT id, chatbot_id, chatbot_name, title, user_id, created_at, updated_at
		FROM chats
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chats := []domain.SavedChat{}
	for rows.Next() {
		var c domain.SavedChat
		if err := rows.Scan(
			&c.ID,
			&c.ChatbotID,
			&c.ChatbotName,
			&c.Title,
			&c.UserID,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return chats, nil
}

// Delete borra el chat; los mensajes caen por ON DELETE CASCADE.
func (r *PgChatRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
