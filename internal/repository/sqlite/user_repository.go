package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/glebk/stranger-bot/internal/domain"
)

// UserRepository implements domain.UserRepository using SQLite
type UserRepository struct {
	db *Database
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *Database) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(user *domain.User) error {
	query := `
		INSERT INTO users (id, username, first_name, last_name, topics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	topics, err := encodeList(user.Topics)
	if err != nil {
		return fmt.Errorf("failed to encode topics: %w", err)
	}

	now := time.Now()
	_, err = r.db.GetDB().Exec(query,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		topics,
		now,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id int64) (*domain.User, error) {
	query := `
		SELECT id, username, first_name, last_name, topics, created_at, updated_at
		FROM users
		WHERE id = ?
	`

	user, err := scanUser(r.db.GetDB().QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Update updates a user
func (r *UserRepository) Update(user *domain.User) error {
	query := `
		UPDATE users
		SET username = ?, first_name = ?, last_name = ?, topics = ?, updated_at = ?
		WHERE id = ?
	`

	topics, err := encodeList(user.Topics)
	if err != nil {
		return fmt.Errorf("failed to encode topics: %w", err)
	}

	now := time.Now()
	_, err = r.db.GetDB().Exec(query,
		user.Username,
		user.FirstName,
		user.LastName,
		topics,
		now,
		user.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	user.UpdatedAt = now

	return nil
}

// Delete deletes a user and, through the foreign keys, their transcripts
func (r *UserRepository) Delete(id int64) error {
	query := `DELETE FROM users WHERE id = ?`

	_, err := r.db.GetDB().Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return nil
}

// SetTopics replaces the interests a user searches with
func (r *UserRepository) SetTopics(userID int64, topics []string) error {
	query := `
		UPDATE users
		SET topics = ?, updated_at = ?
		WHERE id = ?
	`

	encoded, err := encodeList(topics)
	if err != nil {
		return fmt.Errorf("failed to encode topics: %w", err)
	}

	_, err = r.db.GetDB().Exec(query, encoded, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to set topics: %w", err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*domain.User, error) {
	user := &domain.User{}
	var lastName sql.NullString
	var topics string

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&lastName,
		&topics,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastName.Valid {
		user.LastName = lastName.String
	}
	if user.Topics, err = decodeList(topics); err != nil {
		return nil, fmt.Errorf("failed to decode topics: %w", err)
	}

	return user, nil
}
