package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/glebk/stranger-bot/internal/domain"
	"github.com/glebk/stranger-bot/internal/stranger"
)

var (
	// ErrNoChat is returned for users that never started a chat.
	ErrNoChat = errors.New("no chat for user")
	// ErrInvalidToken is returned by Attach for malformed handoff tokens.
	ErrInvalidToken = errors.New("invalid handoff token")
	// ErrConversationNotFound is returned by Transcript for conversations
	// that do not exist or belong to someone else.
	ErrConversationNotFound = errors.New("conversation not found")
)

const defaultHistoryLimit = 10

// ClientFactory creates a bootstrapped stranger client. The service adds
// its own observer to opts.
type ClientFactory func(ctx context.Context, opts ...stranger.Option) (*stranger.Client, error)

// Notifier delivers signals to the user that owns the conversation. It is
// called from polling goroutines.
type Notifier interface {
	Notify(userID int64, sig stranger.Signal)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(userID int64, sig stranger.Signal)

func (f NotifierFunc) Notify(userID int64, sig stranger.Signal) { f(userID, sig) }

// Status describes a user's current conversation
type Status struct {
	State          stranger.State
	SessionID      string
	Server         string
	Topics         []string
	CommonLikes    []string
	PendingCaptcha bool
	ConversationID string
}

// Option configures a ChatService
type Option func(*ChatService)

// WithNotifier sets where signals are delivered.
func WithNotifier(n Notifier) Option {
	return func(s *ChatService) { s.notifier = n }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *ChatService) { s.logger = l }
}

// WithDefaultTopics sets the interests used for users without their own.
func WithDefaultTopics(topics []string) Option {
	return func(s *ChatService) { s.defaultTopics = slices.Clone(topics) }
}

// ChatService pairs each user with one stranger client and keeps their
// transcripts
type ChatService struct {
	userRepo      domain.UserRepository
	convRepo      domain.ConversationRepository
	newClient     ClientFactory
	notifier      Notifier
	logger        *slog.Logger
	defaultTopics []string

	mu    sync.Mutex
	chats map[int64]*chat
}

type chat struct {
	userID int64

	// initMu serializes bootstrap; the observer never takes it.
	initMu sync.Mutex
	client *stranger.Client

	mu             sync.Mutex
	conversationID string
	endReason      domain.EndReason
}

// NewChatService creates a new ChatService
func NewChatService(userRepo domain.UserRepository, convRepo domain.ConversationRepository, newClient ClientFactory, opts ...Option) *ChatService {
	service := &ChatService{
		userRepo:  userRepo,
		convRepo:  convRepo,
		newClient: newClient,
		notifier:  NotifierFunc(func(int64, stranger.Signal) {}),
		logger:    slog.Default(),
		chats:     make(map[int64]*chat),
	}
	for _, opt := range opts {
		opt(service)
	}

	// Sessions do not survive a restart, so neither do their conversations
	service.CloseStaleConversations()

	return service
}

// CloseStaleConversations ends conversations left open by a previous run
func (s *ChatService) CloseStaleConversations() {
	n, err := s.convRepo.EndAllOpen(domain.EndReasonShutdown)
	if err != nil {
		s.logger.Error("Failed to close stale conversations", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("Closed stale conversations", "count", n)
	}
}

// RegisterUser registers a new user or updates existing one
func (s *ChatService) RegisterUser(id int64, username, firstName, lastName string) error {
	existingUser, err := s.userRepo.GetByID(id)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}

	if existingUser != nil {
		existingUser.Username = username
		existingUser.FirstName = firstName
		existingUser.LastName = lastName
		return s.userRepo.Update(existingUser)
	}

	user := &domain.User{
		ID:        id,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
	}

	return s.userRepo.Create(user)
}

// StartChat looks for a stranger using the user's interests
func (s *ChatService) StartChat(ctx context.Context, userID int64) error {
	topics, err := s.Topics(userID)
	if err != nil {
		return err
	}

	client, err := s.clientFor(ctx, userID)
	if err != nil {
		return err
	}

	return client.Connect(ctx, topics)
}

// EndChat disconnects the user from the stranger
func (s *ChatService) EndChat(ctx context.Context, userID int64) error {
	c, client := s.lookup(userID)
	if client == nil {
		return ErrNoChat
	}

	c.setEndReason(domain.EndReasonUser)
	client.Disconnect(ctx)
	return nil
}

// Relay sends a user's message to the stranger and records it
func (s *ChatService) Relay(ctx context.Context, userID int64, text string) error {
	c, client := s.lookup(userID)
	if client == nil {
		return ErrNoChat
	}

	if err := client.Send(ctx, text); err != nil {
		return err
	}

	s.addMessage(c, domain.DirectionOut, text)
	return nil
}

// Typing tells the stranger the user is typing
func (s *ChatService) Typing(ctx context.Context, userID int64) error {
	_, client := s.lookup(userID)
	if client == nil {
		return ErrNoChat
	}
	return client.StartTyping(ctx)
}

// StopTyping tells the stranger the user stopped typing
func (s *ChatService) StopTyping(ctx context.Context, userID int64) error {
	_, client := s.lookup(userID)
	if client == nil {
		return ErrNoChat
	}
	return client.StopTyping(ctx)
}

// SolveCaptcha submits the user's answer to the pending challenge
func (s *ChatService) SolveCaptcha(ctx context.Context, userID int64, response string) error {
	_, client := s.lookup(userID)
	if client == nil {
		return ErrNoChat
	}
	return client.SendCaptchaResponse(ctx, response)
}

// SkipCommonLikes stops waiting for a stranger with shared interests
func (s *ChatService) SkipCommonLikes(ctx context.Context, userID int64) error {
	_, client := s.lookup(userID)
	if client == nil {
		return ErrNoChat
	}
	return client.StopLookingForCommonLikes(ctx)
}

// SetTopics stores the interests used by the next StartChat
func (s *ChatService) SetTopics(userID int64, topics []string) error {
	var clean []string
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" && !slices.Contains(clean, t) {
			clean = append(clean, t)
		}
	}

	if err := s.userRepo.SetTopics(userID, clean); err != nil {
		return fmt.Errorf("failed to save topics: %w", err)
	}
	return nil
}

// Topics returns the user's interests, falling back to the defaults
func (s *ChatService) Topics(userID int64) ([]string, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user != nil && len(user.Topics) > 0 {
		return user.Topics, nil
	}
	return slices.Clone(s.defaultTopics), nil
}

// Detach releases the user's session and returns a token another client
// can Attach with. The service is not told so the stranger stays connected.
func (s *ChatService) Detach(ctx context.Context, userID int64) (string, error) {
	c, client := s.lookup(userID)
	if client == nil {
		return "", ErrNoChat
	}

	server := client.Session().Server
	id := client.PrepareTransferSession()
	if id == "" {
		return "", stranger.ErrNoSession
	}

	// Abort the in-flight fetch so no batch is lost to the old poller. The
	// closed client is dropped and the next StartChat bootstraps again.
	client.Close()
	if err := client.Wait(ctx); err != nil {
		return "", fmt.Errorf("failed to wait for poller: %w", err)
	}
	c.initMu.Lock()
	if c.client == client {
		c.client = nil
	}
	c.initMu.Unlock()

	s.closeConversation(c, domain.EndReasonDetached)
	s.logger.Info("Session detached", "user_id", userID, "id", id)
	return server + "/" + id, nil
}

// Attach adopts a session released by Detach
func (s *ChatService) Attach(ctx context.Context, userID int64, token string) error {
	server, id, err := ParseToken(token)
	if err != nil {
		return err
	}

	client, err := s.clientFor(ctx, userID)
	if err != nil {
		return err
	}
	if client.Session().Active() {
		return stranger.ErrAlreadyConnected
	}

	return client.TransferSession(id, server)
}

// ParseToken splits a handoff token into server and session id. The
// server part may be empty.
func ParseToken(token string) (server, id string, err error) {
	token = strings.TrimSpace(token)
	server, id, found := strings.Cut(token, "/")
	if !found {
		server, id = "", token
	}
	if id == "" || strings.ContainsAny(id, " /") {
		return "", "", ErrInvalidToken
	}
	return server, id, nil
}

// Status reports the user's current conversation
func (s *ChatService) Status(userID int64) (Status, error) {
	c, client := s.lookup(userID)
	if client == nil {
		return Status{State: stranger.StateIdle}, nil
	}

	session := client.Session()
	c.mu.Lock()
	conversationID := c.conversationID
	c.mu.Unlock()

	return Status{
		State:          session.State,
		SessionID:      session.ID,
		Server:         session.Server,
		Topics:         session.Topics,
		CommonLikes:    session.CommonInterests,
		PendingCaptcha: session.PendingChallenge != "",
		ConversationID: conversationID,
	}, nil
}

// History returns the user's latest conversations, newest first
func (s *ChatService) History(userID int64, limit int) ([]*domain.Conversation, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	conversations, err := s.convRepo.ListByUser(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return conversations, nil
}

// Transcript returns the messages of one of the user's conversations
func (s *ChatService) Transcript(userID int64, conversationID string) ([]*domain.Message, error) {
	conversation, err := s.convRepo.GetByID(conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if conversation == nil || conversation.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	return s.convRepo.GetMessages(conversationID)
}

// Forget ends the user's chat and deletes the user together with every
// conversation and message stored for them
func (s *ChatService) Forget(ctx context.Context, userID int64) error {
	s.mu.Lock()
	c, ok := s.chats[userID]
	delete(s.chats, userID)
	s.mu.Unlock()

	if ok {
		c.initMu.Lock()
		client := c.client
		c.client = nil
		c.initMu.Unlock()

		if client != nil {
			if client.Session().Active() {
				c.setEndReason(domain.EndReasonUser)
				client.Disconnect(ctx)
			}
			client.Close()
			if err := client.Wait(ctx); err != nil {
				return fmt.Errorf("failed to wait for poller: %w", err)
			}
		}
	}

	if err := s.userRepo.Delete(userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.logger.Info("User forgotten", "user_id", userID)
	return nil
}

// Shutdown disconnects every active conversation and stops all pollers
func (s *ChatService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	chats := make([]*chat, 0, len(s.chats))
	for _, c := range s.chats {
		chats = append(chats, c)
	}
	s.mu.Unlock()

	var errs []error
	for _, c := range chats {
		c.initMu.Lock()
		client := c.client
		c.initMu.Unlock()
		if client == nil {
			continue
		}

		if client.Session().Active() {
			c.setEndReason(domain.EndReasonShutdown)
			client.Disconnect(ctx)
		}
		client.Close()
		if err := client.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", c.userID, err))
		}
	}

	return errors.Join(errs...)
}

func (s *ChatService) chatFor(userID int64) *chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[userID]
	if !ok {
		c = &chat{userID: userID}
		s.chats[userID] = c
	}
	return c
}

func (s *ChatService) lookup(userID int64) (*chat, *stranger.Client) {
	s.mu.Lock()
	c, ok := s.chats[userID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()
	return c, c.client
}

// clientFor returns the user's client, bootstrapping one on first use or
// after a failed bootstrap.
func (s *ChatService) clientFor(ctx context.Context, userID int64) (*stranger.Client, error) {
	c := s.chatFor(userID)

	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.client != nil {
		return c.client, nil
	}

	client, err := s.newClient(ctx, stranger.WithObserver(func(sig stranger.Signal) {
		s.observe(c, sig)
	}))
	if err != nil {
		return nil, err
	}

	c.client = client
	return client, nil
}

func (s *ChatService) observe(c *chat, sig stranger.Signal) {
	switch sig.Name {
	case stranger.SignalGotID:
		s.openConversation(c, sig.Text())
	case stranger.SignalCommonLikes:
		s.recordCommonLikes(c)
	case stranger.SignalMessage:
		s.addMessage(c, domain.DirectionIn, sig.Text())
	case stranger.SignalStrangerDisconnected:
		c.setEndReason(domain.EndReasonStranger)
	case stranger.SignalConnectionDied:
		c.setEndReason(domain.EndReasonConnectionDied)
	case stranger.SignalAntinudeBanned:
		c.setEndReason(domain.EndReasonBanned)
	case stranger.SignalOmegleError:
		c.setEndReason(domain.EndReasonError)
	case stranger.SignalDisconnected:
		s.closeConversation(c, "")
	}

	s.notifier.Notify(c.userID, sig)
}

func (s *ChatService) openConversation(c *chat, id string) {
	c.initMu.Lock()
	client := c.client
	c.initMu.Unlock()

	conversation := &domain.Conversation{UserID: c.userID, SessionID: id}
	if client != nil {
		session := client.Session()
		conversation.Server = session.Server
		conversation.Topics = session.Topics
	}

	// A transfer can replace a session without a disconnect.
	s.closeConversation(c, domain.EndReasonDetached)

	if err := s.convRepo.Create(conversation); err != nil {
		s.logger.Error("Failed to record conversation", "user_id", c.userID, "error", err)
		return
	}

	c.mu.Lock()
	c.conversationID = conversation.ID
	c.endReason = ""
	c.mu.Unlock()
}

func (s *ChatService) recordCommonLikes(c *chat) {
	c.initMu.Lock()
	client := c.client
	c.initMu.Unlock()
	if client == nil {
		return
	}

	c.mu.Lock()
	conversationID := c.conversationID
	c.mu.Unlock()
	if conversationID == "" {
		return
	}

	if err := s.convRepo.SetCommonLikes(conversationID, client.Session().CommonInterests); err != nil {
		s.logger.Error("Failed to record common likes", "user_id", c.userID, "error", err)
	}
}

func (s *ChatService) addMessage(c *chat, direction domain.Direction, body string) {
	c.mu.Lock()
	conversationID := c.conversationID
	c.mu.Unlock()
	if conversationID == "" {
		return
	}

	message := &domain.Message{ConversationID: conversationID, Direction: direction, Body: body}
	if err := s.convRepo.AddMessage(message); err != nil {
		s.logger.Error("Failed to record message", "user_id", c.userID, "error", err)
	}
}

// closeConversation ends the open conversation. An empty reason uses the
// one set by the terminal signal, or EndReasonUser.
func (s *ChatService) closeConversation(c *chat, reason domain.EndReason) {
	c.mu.Lock()
	conversationID := c.conversationID
	if reason == "" {
		reason = c.endReason
	}
	c.conversationID = ""
	c.endReason = ""
	c.mu.Unlock()

	if conversationID == "" {
		return
	}
	if reason == "" {
		reason = domain.EndReasonUser
	}

	if err := s.convRepo.End(conversationID, reason); err != nil {
		s.logger.Error("Failed to end conversation", "user_id", c.userID, "error", err)
	}
}

func (c *chat) setEndReason(reason domain.EndReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.endReason == "" {
		c.endReason = reason
	}
}
