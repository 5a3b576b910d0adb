package domain

import "time"

// User represents a bot user
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	// Topics are the interests sent when the user looks for a stranger.
	Topics    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserRepository defines the interface for user storage
type UserRepository interface {
	Create(user *User) error
	GetByID(id int64) (*User, error)
	Update(user *User) error
	Delete(id int64) error
	SetTopics(userID int64, topics []string) error
}
