package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shapeshift/internal/domain"
)

type MessageRepository interface {
	ReplaceForChat(ctx context.Context, chatID string, messages []domain.Message) error
	ListByChatID(ctx context.Context, chatID string) ([]domain.Message, error)
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

// ReplaceForChat borra y reinserta el set completo de mensajes en una sola transacción.
func (r *PgMessageRepository) ReplaceForChat(ctx context.Context, chatID string, messages []domain.Message) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	const insert = `
		INSERT INTO messages (id, chat_id, content, sender, image_url, bot_name, parent_message_id, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	batch := &pgx.Batch{}
	for i, m := range messages {
		batch.Queue(insert,
			m.ID,
			chatID,
			m.Content,
			string(m.Sender),
			nullable(m.ImageURL),
			nullable(m.BotName),
			nullable(m.ParentMessageID),
			i,
			m.Timestamp,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert messages: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgMessageRepository) ListByChatID(ctx context.Context, chatID string) ([]domain.Message, error) {
	const query = `
		SELECT id, content, sender, image_url, bot_name, parent_message_id, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY position ASC
	`
	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var (
			msg      domain.Message
			sender   string
			imageURL *string
			botName  *string
			parentID *string
		)
		if err := rows.Scan(&msg.ID, &msg.Content, &sender, &imageURL, &botName, &parentID, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.Sender = domain.Sender(sender)
		if imageURL != nil {
			msg.ImageURL = *imageURL
		}
		if botName != nil {
			msg.BotName = *botName
		}
		if parentID != nil {
			msg.ParentMessageID = *parentID
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
