package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glebk/stranger-bot/internal/domain"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createUser(t *testing.T, db *Database, id int64) *domain.User {
	t.Helper()
	user := &domain.User{ID: id, Username: "user", FirstName: "First"}
	require.NoError(t, NewUserRepository(db).Create(user))
	return user
}

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	missing, err := repo.GetByID(1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	user := &domain.User{ID: 1, Username: "alice", FirstName: "Alice", Topics: []string{"music"}}
	require.NoError(t, repo.Create(user))
	assert.False(t, user.CreatedAt.IsZero())

	got, err := repo.GetByID(1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Username)
	assert.Empty(t, got.LastName)
	assert.Equal(t, []string{"music"}, got.Topics)

	require.NoError(t, repo.SetTopics(1, []string{"chess", "go"}))
	got, err = repo.GetByID(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"chess", "go"}, got.Topics)

	got.LastName = "Liddell"
	got.Topics = nil
	require.NoError(t, repo.Update(got))
	got, err = repo.GetByID(1)
	require.NoError(t, err)
	assert.Equal(t, "Liddell", got.LastName)
	assert.Nil(t, got.Topics)

	require.NoError(t, repo.Delete(1))
	got, err = repo.GetByID(1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestConversationRepository(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, 7)
	repo := NewConversationRepository(db)

	first := &domain.Conversation{UserID: 7, SessionID: "central1:a", Server: "front1", Topics: []string{"music"}}
	require.NoError(t, repo.Create(first))
	assert.Len(t, first.ID, 26)
	assert.False(t, first.StartedAt.IsZero())

	open, err := repo.GetByID(first.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.False(t, open.Ended())

	require.NoError(t, repo.SetCommonLikes(first.ID, []string{"music"}))
	require.NoError(t, repo.End(first.ID, domain.EndReasonStranger))
	require.NoError(t, repo.End(first.ID, domain.EndReasonUser))

	got, err := repo.GetByID(first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Ended())
	assert.Equal(t, domain.EndReasonStranger, got.EndReason)
	assert.Equal(t, []string{"music"}, got.CommonLikes)
	assert.Equal(t, "front1", got.Server)

	second := &domain.Conversation{UserID: 7, SessionID: "central1:b", Server: "front2"}
	require.NoError(t, repo.Create(second))

	list, err := repo.ListByUser(7, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	list, err = repo.ListByUser(7, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	missing, err := repo.GetByID("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestConversationRepository_EndAllOpen(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, 7)
	repo := NewConversationRepository(db)

	closed := &domain.Conversation{UserID: 7, SessionID: "a", Server: "front1"}
	require.NoError(t, repo.Create(closed))
	require.NoError(t, repo.End(closed.ID, domain.EndReasonUser))
	require.NoError(t, repo.Create(&domain.Conversation{UserID: 7, SessionID: "b", Server: "front1"}))
	require.NoError(t, repo.Create(&domain.Conversation{UserID: 7, SessionID: "c", Server: "front1"}))

	n, err := repo.EndAllOpen(domain.EndReasonShutdown)

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	got, err := repo.GetByID(closed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EndReasonUser, got.EndReason)
	list, err := repo.ListByUser(7, 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, c := range list {
		assert.True(t, c.Ended())
	}
}

func TestConversationRepository_Messages(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, 7)
	repo := NewConversationRepository(db)

	conversation := &domain.Conversation{UserID: 7, SessionID: "id", Server: "front1"}
	require.NoError(t, repo.Create(conversation))

	out := &domain.Message{ConversationID: conversation.ID, Direction: domain.DirectionOut, Body: "hi"}
	require.NoError(t, repo.AddMessage(out))
	assert.NotZero(t, out.ID)
	require.NoError(t, repo.AddMessage(&domain.Message{ConversationID: conversation.ID, Direction: domain.DirectionIn, Body: "hello"}))

	messages, err := repo.GetMessages(conversation.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.DirectionOut, messages[0].Direction)
	assert.Equal(t, "hello", messages[1].Body)

	err = repo.AddMessage(&domain.Message{ConversationID: "unknown", Direction: domain.DirectionIn, Body: "x"})
	assert.Error(t, err, "foreign keys are enforced")
}

func TestUserDelete_CascadesTranscripts(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, 7)
	repo := NewConversationRepository(db)

	conversation := &domain.Conversation{UserID: 7, SessionID: "id", Server: "front1"}
	require.NoError(t, repo.Create(conversation))
	require.NoError(t, repo.AddMessage(&domain.Message{ConversationID: conversation.ID, Direction: domain.DirectionIn, Body: "x"}))

	require.NoError(t, NewUserRepository(db).Delete(7))

	got, err := repo.GetByID(conversation.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	messages, err := repo.GetMessages(conversation.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
