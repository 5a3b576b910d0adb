package domain

import "time"

// EndReason records why a conversation ended
type EndReason string

const (
	EndReasonUser           EndReason = "user"
	EndReasonStranger       EndReason = "stranger"
	EndReasonConnectionDied EndReason = "connection_died"
	EndReasonBanned         EndReason = "banned"
	EndReasonError          EndReason = "error"
	EndReasonDetached       EndReason = "detached"
	EndReasonShutdown       EndReason = "shutdown"
)

// Direction tells who sent a message
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Conversation is one session with a stranger as seen by a user
type Conversation struct {
	ID          string
	UserID      int64
	SessionID   string
	Server      string
	Topics      []string
	CommonLikes []string
	StartedAt   time.Time
	EndedAt     *time.Time
	EndReason   EndReason
}

// Ended reports whether the conversation has been closed
func (c *Conversation) Ended() bool {
	return c.EndedAt != nil
}

// Message is a single line of a conversation transcript
type Message struct {
	ID             int64
	ConversationID string
	Direction      Direction
	Body           string
	CreatedAt      time.Time
}

// ConversationRepository defines the interface for transcript storage
type ConversationRepository interface {
	Create(conversation *Conversation) error
	GetByID(id string) (*Conversation, error)
	ListByUser(userID int64, limit int) ([]*Conversation, error)
	SetCommonLikes(id string, likes []string) error
	End(id string, reason EndReason) error
	EndAllOpen(reason EndReason) (int64, error)

	// Message methods
	AddMessage(message *Message) error
	GetMessages(conversationID string) ([]*Message, error)
}
