package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/glebk/stranger-bot/internal/domain"
)

// ConversationRepository implements domain.ConversationRepository using SQLite
type ConversationRepository struct {
	db *Database
}

// NewConversationRepository creates a new ConversationRepository
func NewConversationRepository(db *Database) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const conversationColumns = `id, user_id, session_id, server, topics, common_likes, started_at, ended_at, end_reason`

// Create stores a new conversation, assigning a ULID when ID is empty
func (r *ConversationRepository) Create(conversation *domain.Conversation) error {
	query := `
		INSERT INTO conversations (` + conversationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, NULL)
	`

	if conversation.ID == "" {
		conversation.ID = ulid.Make().String()
	}
	if conversation.StartedAt.IsZero() {
		conversation.StartedAt = time.Now()
	}

	topics, err := encodeList(conversation.Topics)
	if err != nil {
		return fmt.Errorf("failed to encode topics: %w", err)
	}
	likes, err := encodeList(conversation.CommonLikes)
	if err != nil {
		return fmt.Errorf("failed to encode common likes: %w", err)
	}

	_, err = r.db.GetDB().Exec(query,
		conversation.ID,
		conversation.UserID,
		conversation.SessionID,
		conversation.Server,
		topics,
		likes,
		conversation.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	return nil
}

// GetByID retrieves a conversation by ID
func (r *ConversationRepository) GetByID(id string) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`

	conversation, err := scanConversation(r.db.GetDB().QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return conversation, nil
}

// ListByUser returns the user's latest conversations, newest first
func (r *ConversationRepository) ListByUser(userID int64, limit int) ([]*domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE user_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.GetDB().Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*domain.Conversation
	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conversation)
	}

	return conversations, rows.Err()
}

// SetCommonLikes records the interests shared with the stranger
func (r *ConversationRepository) SetCommonLikes(id string, likes []string) error {
	encoded, err := encodeList(likes)
	if err != nil {
		return fmt.Errorf("failed to encode common likes: %w", err)
	}

	_, err = r.db.GetDB().Exec(`UPDATE conversations SET common_likes = ? WHERE id = ?`, encoded, id)
	if err != nil {
		return fmt.Errorf("failed to set common likes: %w", err)
	}

	return nil
}

// End closes a conversation. Ending an already closed conversation keeps
// the first reason.
func (r *ConversationRepository) End(id string, reason domain.EndReason) error {
	query := `
		UPDATE conversations
		SET ended_at = ?, end_reason = ?
		WHERE id = ? AND ended_at IS NULL
	`

	_, err := r.db.GetDB().Exec(query, time.Now(), reason, id)
	if err != nil {
		return fmt.Errorf("failed to end conversation: %w", err)
	}

	return nil
}

// EndAllOpen closes every conversation that has not ended and returns how
// many were closed
func (r *ConversationRepository) EndAllOpen(reason domain.EndReason) (int64, error) {
	query := `
		UPDATE conversations
		SET ended_at = ?, end_reason = ?
		WHERE ended_at IS NULL
	`

	result, err := r.db.GetDB().Exec(query, time.Now(), reason)
	if err != nil {
		return 0, fmt.Errorf("failed to end open conversations: %w", err)
	}

	return result.RowsAffected()
}

// AddMessage appends a message to a transcript
func (r *ConversationRepository) AddMessage(message *domain.Message) error {
	query := `
		INSERT INTO messages (conversation_id, direction, body, created_at)
		VALUES (?, ?, ?, ?)
	`

	now := time.Now()
	result, err := r.db.GetDB().Exec(query,
		message.ConversationID,
		message.Direction,
		message.Body,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get message id: %w", err)
	}

	message.ID = id
	message.CreatedAt = now

	return nil
}

// GetMessages returns a transcript in the order it was recorded
func (r *ConversationRepository) GetMessages(conversationID string) ([]*domain.Message, error) {
	query := `
		SELECT id, conversation_id, direction, body, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY id
	`

	rows, err := r.db.GetDB().Query(query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		message := &domain.Message{}
		err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.Direction,
			&message.Body,
			&message.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}

func scanConversation(row scanner) (*domain.Conversation, error) {
	conversation := &domain.Conversation{}
	var topics, likes string
	var endedAt sql.NullTime
	var endReason sql.NullString

	err := row.Scan(
		&conversation.ID,
		&conversation.UserID,
		&conversation.SessionID,
		&conversation.Server,
		&topics,
		&likes,
		&conversation.StartedAt,
		&endedAt,
		&endReason,
	)
	if err != nil {
		return nil, err
	}

	if endedAt.Valid {
		conversation.EndedAt = &endedAt.Time
	}
	if endReason.Valid {
		conversation.EndReason = domain.EndReason(endReason.String)
	}
	if conversation.Topics, err = decodeList(topics); err != nil {
		return nil, fmt.Errorf("failed to decode topics: %w", err)
	}
	if conversation.CommonLikes, err = decodeList(likes); err != nil {
		return nil, fmt.Errorf("failed to decode common likes: %w", err)
	}

	return conversation, nil
}
