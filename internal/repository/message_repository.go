package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bybench/internal/models"
)

var ErrConversationBlocked = errors.New("conversation is blocked")

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Create appends msg and bumps the conversation's activity timestamp in one
// transaction. The conversation row is locked so a concurrent block is
// observed before the insert.
func (r *MessageRepository) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.Message{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var blocked bool
	err = tx.QueryRow(ctx, `SELECT is_blocked FROM conversations WHERE id = $1 FOR UPDATE`, msg.ConversationID).Scan(&blocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Message{}, ErrConversationNotFound
		}
		return models.Message{}, err
	}
	if blocked {
		return models.Message{}, ErrConversationBlocked
	}

	const insert = `
		INSERT INTO messages (id, conversation_id, sender_id, text, file_url, file_type, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING is_read, created_at
	`
	if err := tx.QueryRow(ctx, insert,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.Text,
		msg.FileURL,
		msg.FileType,
	).Scan(&msg.IsRead, &msg.CreatedAt); err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE conversations SET updated_at = $2 WHERE id = $1`, msg.ConversationID, msg.CreatedAt); err != nil {
		return models.Message{}, fmt.Errorf("touch conversation: %w", err)
	}

	const sender = `SELECT id, first_name, last_name, nick_name, role, profile_picture FROM users WHERE id = $1`
	var profile models.PublicProfile
	if err := tx.QueryRow(ctx, sender, msg.SenderID).Scan(
		&profile.ID, &profile.FirstName, &profile.LastName, &profile.NickName, &profile.Role, &profile.ProfilePicture,
	); err != nil {
		return models.Message{}, fmt.Errorf("load sender: %w", err)
	}
	msg.Sender = &profile

	if err := tx.Commit(ctx); err != nil {
		return models.Message{}, fmt.Errorf("commit: %w", err)
	}
	return msg, nil
}

// ListAndMarkRead marks every message not authored by readerID as read and
// returns the full history oldest first.
func (r *MessageRepository) ListAndMarkRead(ctx context.Context, conversationID, readerID string) ([]models.Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const mark = `
		UPDATE messages SET is_read = TRUE
		WHERE conversation_id = $1 AND sender_id <> $2 AND NOT is_read
	`
	if _, err := tx.Exec(ctx, mark, conversationID, readerID); err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}

	const list = `
		SELECT m.id, m.conversation_id, m.sender_id, m.text, m.file_url, m.file_type, m.is_read, m.created_at,
		       u.id, u.first_name, u.last_name, u.nick_name, u.role, u.profile_picture
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at ASC, m.id ASC
	`
	rows, err := tx.Query(ctx, list, conversationID)
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0)
	for rows.Next() {
		var (
			m      models.Message
			sender models.PublicProfile
		)
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.FileURL, &m.FileType, &m.IsRead, &m.CreatedAt,
			&sender.ID, &sender.FirstName, &sender.LastName, &sender.NickName, &sender.Role, &sender.ProfilePicture,
		); err != nil {
			rows.Close()
			return nil, err
		}
		m.Sender = &sender
		messages = append(messages, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return messages, nil
}
