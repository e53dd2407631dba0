package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bybench/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrBlockedByOther       = errors.New("conversation blocked by the other participant")
	ErrNotBlockOwner        = errors.New("conversation not blocked by this participant")
)

const conversationColumns = `id, user_low, user_high, is_blocked, blocked_by_id, created_at, updated_at`

type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// GetOrCreate returns the conversation for the unordered pair {a, b}, creating
// it with id when none exists. The unique pair constraint makes concurrent
// first contact converge on one row.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, id, a, b string) (models.Conversation, bool, error) {
	low, high := models.OrderedPair(a, b)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.Conversation{}, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO conversations (id, user_low, user_high, is_blocked, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, NOW(), NOW())
		ON CONFLICT (user_low, user_high) DO NOTHING
		RETURNING ` + conversationColumns

	created := true
	conv, err := scanConversation(tx.QueryRow(ctx, insert, id, low, high))
	if errors.Is(err, ErrConversationNotFound) {
		created = false
		existing := `SELECT ` + conversationColumns + ` FROM conversations WHERE user_low = $1 AND user_high = $2`
		conv, err = scanConversation(tx.QueryRow(ctx, existing, low, high))
	}
	if err != nil {
		return models.Conversation{}, false, err
	}

	if created {
		const participants = `
			INSERT INTO conversation_participants (conversation_id, user_id)
			VALUES ($1, $2), ($1, $3)
		`
		if _, err := tx.Exec(ctx, participants, conv.ID, low, high); err != nil {
			return models.Conversation{}, false, fmt.Errorf("insert participants: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Conversation{}, false, fmt.Errorf("commit: %w", err)
	}
	return conv, created, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(r.pool.QueryRow(ctx, query, id))
}

// Block marks the conversation blocked by actorID. A block held by the other
// participant is left untouched and reported as ErrBlockedByOther.
func (r *ConversationRepository) Block(ctx context.Context, id, actorID string) (models.Conversation, error) {
	query := `
		UPDATE conversations SET is_blocked = TRUE, blocked_by_id = $2
		WHERE id = $1 AND (NOT is_blocked OR blocked_by_id = $2)
		RETURNING ` + conversationColumns
	conv, err := scanConversation(r.pool.QueryRow(ctx, query, id, actorID))
	if errors.Is(err, ErrConversationNotFound) {
		return models.Conversation{}, r.missOr(ctx, id, ErrBlockedByOther)
	}
	return conv, err
}

// Unblock clears a block, but only the one actorID imposed.
func (r *ConversationRepository) Unblock(ctx context.Context, id, actorID string) (models.Conversation, error) {
	query := `
		UPDATE conversations SET is_blocked = FALSE, blocked_by_id = NULL
		WHERE id = $1 AND is_blocked AND blocked_by_id = $2
		RETURNING ` + conversationColumns
	conv, err := scanConversation(r.pool.QueryRow(ctx, query, id, actorID))
	if errors.Is(err, ErrConversationNotFound) {
		return models.Conversation{}, r.missOr(ctx, id, ErrNotBlockOwner)
	}
	return conv, err
}

// missOr tells a missing row apart from a guarded update that matched nothing.
func (r *ConversationRepository) missOr(ctx context.Context, id string, guarded error) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return guarded
}

// Delete removes the conversation; messages and participant rows cascade.
func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// ListForUser returns every conversation userID takes part in with the
// counterpart's profile and the latest message, most recently active first.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	const query = `
		SELECT c.id, c.user_low, c.user_high, c.is_blocked, c.blocked_by_id, c.created_at, c.updated_at,
		       u.id, u.first_name, u.last_name, u.nick_name, u.role, u.profile_picture,
		       m.id, m.sender_id, m.text, m.file_url, m.file_type, m.is_read, m.created_at
		FROM conversation_participants p
		JOIN conversations c ON c.id = p.conversation_id
		JOIN users u ON u.id = CASE WHEN c.user_low = p.user_id THEN c.user_high ELSE c.user_low END
		LEFT JOIN LATERAL (
			SELECT id, sender_id, text, file_url, file_type, is_read, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) m ON TRUE
		WHERE p.user_id = $1
		ORDER BY c.updated_at DESC, c.id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var (
			s         models.ConversationSummary
			msgID     *string
			senderID  *string
			text      *string
			fileURL   *string
			fileType  *string
			isRead    *bool
			createdAt *time.Time
		)
		if err := rows.Scan(
			&s.ID, &s.UserLow, &s.UserHigh, &s.IsBlocked, &s.BlockedByID, &s.CreatedAt, &s.UpdatedAt,
			&s.Counterpart.ID, &s.Counterpart.FirstName, &s.Counterpart.LastName, &s.Counterpart.NickName,
			&s.Counterpart.Role, &s.Counterpart.ProfilePicture,
			&msgID, &senderID, &text, &fileURL, &fileType, &isRead, &createdAt,
		); err != nil {
			return nil, err
		}
		if msgID != nil {
			s.LastMessage = &models.Message{
				ID:             *msgID,
				ConversationID: s.ID,
				SenderID:       *senderID,
				Text:           text,
				FileURL:        fileURL,
				FileType:       fileType,
				IsRead:         *isRead,
				CreatedAt:      *createdAt,
			}
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func scanConversation(row rowScanner) (models.Conversation, error) {
	var c models.Conversation
	if err := row.Scan(&c.ID, &c.UserLow, &c.UserHigh, &c.IsBlocked, &c.BlockedByID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Conversation{}, ErrConversationNotFound
		}
		return models.Conversation{}, err
	}
	return c, nil
}
