package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/glebk/stranger-bot/internal/config"
	"github.com/glebk/stranger-bot/internal/domain"
	"github.com/glebk/stranger-bot/internal/service"
	"github.com/glebk/stranger-bot/internal/stranger"
)

const historyLimit = 10

// Chats is the part of service.ChatService the bot drives
type Chats interface {
	RegisterUser(id int64, username, firstName, lastName string) error
	StartChat(ctx context.Context, userID int64) error
	EndChat(ctx context.Context, userID int64) error
	Relay(ctx context.Context, userID int64, text string) error
	Typing(ctx context.Context, userID int64) error
	StopTyping(ctx context.Context, userID int64) error
	SetTopics(userID int64, topics []string) error
	Topics(userID int64) ([]string, error)
	SolveCaptcha(ctx context.Context, userID int64, response string) error
	SkipCommonLikes(ctx context.Context, userID int64) error
	Detach(ctx context.Context, userID int64) (string, error)
	Attach(ctx context.Context, userID int64, token string) error
	Status(userID int64) (service.Status, error)
	History(userID int64, limit int) ([]*domain.Conversation, error)
	Transcript(userID int64, conversationID string) ([]*domain.Message, error)
	Forget(ctx context.Context, userID int64) error
}

var _ Chats = (*service.ChatService)(nil)

// sender is satisfied by *tgbotapi.BotAPI
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot represents the Telegram bot
type Bot struct {
	api    *tgbotapi.BotAPI
	sender sender
	chats  Chats
	logger *slog.Logger

	mu     sync.Mutex
	queues map[int64]chan func()
	wg     sync.WaitGroup
}

var _ service.Notifier = (*Bot)(nil)

// New creates a new Bot instance
func New(token string, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Authorized on account", "username", api.Self.UserName)

	b := newBot(api, logger)
	b.api = api
	return b, nil
}

func newBot(s sender, logger *slog.Logger) *Bot {
	return &Bot{
		sender: s,
		logger: logger,
		queues: make(map[int64]chan func()),
	}
}

// Run receives updates until ctx is done. Updates from one user are
// handled in order; different users are handled concurrently.
func (b *Bot) Run(ctx context.Context, chats Chats) error {
	b.chats = chats

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			switch {
			case update.Message != nil:
				msg := update.Message
				b.enqueue(ctx, msg.Chat.ID, func() { b.handleMessage(ctx, msg) })
			case update.CallbackQuery != nil:
				query := update.CallbackQuery
				b.enqueue(ctx, query.From.ID, func() { b.handleCallbackQuery(ctx, query) })
			}
		}
	}
}

func (b *Bot) enqueue(ctx context.Context, userID int64, job func()) {
	b.mu.Lock()
	queue, ok := b.queues[userID]
	if !ok {
		queue = make(chan func(), 32)
		b.queues[userID] = queue
		b.wg.Add(1)
		go b.drain(ctx, queue)
	}
	b.mu.Unlock()

	select {
	case queue <- job:
	case <-ctx.Done():
	}
}

func (b *Bot) drain(ctx context.Context, queue chan func()) {
	defer b.wg.Done()
	for {
		select {
		case job := <-queue:
			job()
		case <-ctx.Done():
			return
		}
	}
}

// Notify renders a chat signal for the user. It implements service.Notifier.
func (b *Bot) Notify(userID int64, sig stranger.Signal) {
	r, ok := render(sig)
	if !ok {
		if sig.Name == stranger.SignalUnhandledEvent {
			b.logger.Debug("Unhandled event", "user_id", userID, "event", sig.Text())
		}
		return
	}

	if r.action != "" {
		if _, err := b.sender.Request(tgbotapi.NewChatAction(userID, r.action)); err != nil {
			b.logger.Debug("Error sending chat action", "user_id", userID, "error", err)
		}
		return
	}

	msg := tgbotapi.NewMessage(userID, r.text)
	if r.markup != nil {
		msg.ReplyMarkup = r.markup
	}
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Error sending notification", "user_id", userID, "signal", sig.Name, "error", err)
	}
}

// handleMessage handles incoming messages
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	// Register or update user
	b.registerUser(message.From)

	// Check if command
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	// Handle keyboard buttons
	switch message.Text {
	case buttonNext:
		b.handleNext(ctx, message.Chat.ID)
		return
	case buttonStop:
		b.handleStop(ctx, message.Chat.ID)
		return
	}

	if message.Text == "" {
		b.sendMessage(message.Chat.ID, "Only text can be sent to strangers.")
		return
	}

	b.handleRelay(ctx, message)
}

// handleCommand handles bot commands
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	args := strings.TrimSpace(message.CommandArguments())

	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(chatID)
	case "new":
		b.handleNew(ctx, chatID)
	case "stop":
		b.handleStop(ctx, chatID)
	case "next":
		b.handleNext(ctx, chatID)
	case "topics":
		b.handleTopics(chatID, args)
	case "captcha":
		b.handleCaptcha(ctx, chatID, args)
	case "skip":
		b.handleSkip(ctx, chatID)
	case "detach":
		b.handleDetach(ctx, chatID)
	case "attach":
		b.handleAttach(ctx, chatID, args)
	case "status":
		b.handleStatus(chatID)
	case "history":
		b.handleHistory(chatID)
	case "transcript":
		b.handleTranscript(chatID, args)
	case "forget":
		b.handleForget(ctx, chatID)
	default:
		b.sendMessage(chatID, "Unknown command. Use /help to see what I can do")
	}
}

// handleStart handles the /start command
func (b *Bot) handleStart(message *tgbotapi.Message) {
	text := fmt.Sprintf(
		"👋 Welcome, %s!\n\n"+
			"I connect you with random strangers for a one-on-one chat.\n\n"+
			"Use /new or the button below to find someone\n"+
			"Use /topics to set your interests\n"+
			"Use /help for everything else",
		message.From.FirstName,
	)

	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonNext),
			tgbotapi.NewKeyboardButton(buttonStop),
		),
	)

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = keyboard

	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Error sending start message", "error", err)
	}
}

// handleHelp shows help information
func (b *Bot) handleHelp(chatID int64) {
	text := `*Stranger bot - Help*

*Commands:*
/new - Find a stranger to chat with
/next - Leave the current stranger and find another
/stop - Leave the current conversation
/topics - Show or set your interests, e.g. /topics music, films
/captcha - Answer a captcha the service asked for
/skip - Stop waiting for someone with common interests
/detach - Release the conversation and get a token to resume it
/attach - Resume a detached conversation with its token
/status - Show your current conversation
/history - Show your recent conversations
/transcript - Show the messages of a conversation, e.g. /transcript 2
/forget - Delete everything stored about you
/help - Show this help

Anything else you write is sent to the stranger.`

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"

	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Error sending help", "error", err)
	}
}

func (b *Bot) handleNew(ctx context.Context, chatID int64) {
	err := b.chats.StartChat(ctx, chatID)
	switch {
	case err == nil:
	case errors.Is(err, stranger.ErrAlreadyConnected):
		b.sendMessage(chatID, "⚠️ You're already in a conversation. Use /next or /stop first")
	default:
		// The error signal has already been rendered.
		b.logger.Warn("Error starting chat", "user_id", chatID, "error", err)
	}
}

func (b *Bot) handleStop(ctx context.Context, chatID int64) {
	if err := b.chats.EndChat(ctx, chatID); errors.Is(err, service.ErrNoChat) {
		b.sendMessage(chatID, "📭 You're not in a conversation")
	}
}

func (b *Bot) handleNext(ctx context.Context, chatID int64) {
	if err := b.chats.EndChat(ctx, chatID); err != nil && !errors.Is(err, service.ErrNoChat) {
		b.logger.Warn("Error ending chat", "user_id", chatID, "error", err)
	}
	b.handleNew(ctx, chatID)
}

// handleRelay shows the stranger a typing indicator while the message is
// sent and clears it again if sending fails.
func (b *Bot) handleRelay(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	typing := b.chats.Typing(ctx, chatID) == nil

	err := b.chats.Relay(ctx, chatID, message.Text)
	if err != nil && typing {
		if err := b.chats.StopTyping(ctx, chatID); err != nil {
			b.logger.Debug("Error clearing typing indicator", "user_id", chatID, "error", err)
		}
	}
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNoChat), errors.Is(err, stranger.ErrNoSession):
		b.sendMessage(chatID, "📭 You're not chatting with anyone. Use /new to find a stranger")
	default:
		b.logger.Warn("Error relaying message", "user_id", chatID, "error", err)
	}
}

func (b *Bot) handleTopics(chatID int64, args string) {
	if args == "" {
		topics, err := b.chats.Topics(chatID)
		if err != nil {
			b.logger.Error("Error getting topics", "user_id", chatID, "error", err)
			b.sendMessage(chatID, "❌ Couldn't load your interests")
			return
		}
		b.sendMessage(chatID, renderTopics(topics))
		return
	}

	var topics []string
	if args != "none" {
		topics = config.SplitTopics(args)
	}
	if err := b.chats.SetTopics(chatID, topics); err != nil {
		b.logger.Error("Error saving topics", "user_id", chatID, "error", err)
		b.sendMessage(chatID, "❌ Couldn't save your interests")
		return
	}

	if len(topics) == 0 {
		b.sendMessage(chatID, "✅ Interests cleared")
		return
	}
	b.sendMessage(chatID, "✅ Saved. "+renderTopics(topics))
}

func (b *Bot) handleCaptcha(ctx context.Context, chatID int64, answer string) {
	if answer == "" {
		b.sendMessage(chatID, "Usage: /captcha <answer>")
		return
	}

	err := b.chats.SolveCaptcha(ctx, chatID, answer)
	switch {
	case err == nil:
		b.sendMessage(chatID, "✅ Captcha answer sent")
	case errors.Is(err, stranger.ErrNoChallenge), errors.Is(err, service.ErrNoChat):
		b.sendMessage(chatID, "No captcha is pending")
	default:
		b.logger.Warn("Error sending captcha", "user_id", chatID, "error", err)
	}
}

func (b *Bot) handleSkip(ctx context.Context, chatID int64) {
	err := b.chats.SkipCommonLikes(ctx, chatID)
	switch {
	case err == nil:
		b.sendMessage(chatID, "⏭ Looking for anyone now")
	case errors.Is(err, stranger.ErrNotWaiting), errors.Is(err, service.ErrNoChat):
		b.sendMessage(chatID, "You're not waiting for a match")
	default:
		b.logger.Warn("Error skipping common likes", "user_id", chatID, "error", err)
	}
}

func (b *Bot) handleDetach(ctx context.Context, chatID int64) {
	token, err := b.chats.Detach(ctx, chatID)
	switch {
	case err == nil:
		b.sendMessage(chatID, "📤 Conversation released. Resume it here or from another account with:\n/attach "+token)
	case errors.Is(err, service.ErrNoChat), errors.Is(err, stranger.ErrNoSession):
		b.sendMessage(chatID, "📭 You're not in a conversation")
	default:
		b.logger.Error("Error detaching", "user_id", chatID, "error", err)
		b.sendMessage(chatID, "❌ Couldn't release the conversation")
	}
}

func (b *Bot) handleAttach(ctx context.Context, chatID int64, token string) {
	err := b.chats.Attach(ctx, chatID, token)
	switch {
	case err == nil:
		b.sendMessage(chatID, "📥 Conversation resumed")
	case errors.Is(err, service.ErrInvalidToken):
		b.sendMessage(chatID, "Usage: /attach <token from /detach>")
	case errors.Is(err, stranger.ErrAlreadyConnected):
		b.sendMessage(chatID, "⚠️ You're already in a conversation. Use /stop first")
	default:
		b.logger.Warn("Error attaching", "user_id", chatID, "error", err)
	}
}

// handleStatus shows the current conversation
func (b *Bot) handleStatus(chatID int64) {
	status, err := b.chats.Status(chatID)
	if err != nil {
		b.logger.Error("Error getting status", "user_id", chatID, "error", err)
		b.sendMessage(chatID, "❌ Couldn't check your status")
		return
	}
	b.sendMessage(chatID, renderStatus(status))
}

func (b *Bot) handleHistory(chatID int64) {
	conversations, err := b.chats.History(chatID, historyLimit)
	if err != nil {
		b.logger.Error("Error getting history", "user_id", chatID, "error", err)
		b.sendMessage(chatID, "❌ Couldn't load your history")
		return
	}
	b.sendMessage(chatID, renderHistory(conversations))
}

// handleTranscript shows a conversation from /history. The argument is its
// position in that list or its id; it defaults to the latest one.
func (b *Bot) handleTranscript(chatID int64, args string) {
	position, conversationID := 1, args
	if n, err := strconv.Atoi(args); err == nil {
		position, conversationID = n, ""
	}
	if position < 1 || position > historyLimit {
		b.sendMessage(chatID, fmt.Sprintf("Usage: /transcript <1-%d from /history>", historyLimit))
		return
	}

	var conversation *domain.Conversation
	if conversationID == "" {
		conversations, err := b.chats.History(chatID, position)
		if err != nil {
			b.logger.Error("Error getting history", "user_id", chatID, "error", err)
			b.sendMessage(chatID, "❌ Couldn't load your history")
			return
		}
		if len(conversations) < position {
			b.sendMessage(chatID, "📭 No such conversation. See /history")
			return
		}
		conversation = conversations[position-1]
		conversationID = conversation.ID
	}

	messages, err := b.chats.Transcript(chatID, conversationID)
	switch {
	case err == nil:
		b.sendMessage(chatID, renderTranscript(conversation, messages))
	case errors.Is(err, service.ErrConversationNotFound):
		b.sendMessage(chatID, "📭 No such conversation. See /history")
	default:
		b.logger.Error("Error getting transcript", "user_id", chatID, "error", err)
		b.sendMessage(chatID, "❌ Couldn't load the transcript")
	}
}

func (b *Bot) handleForget(ctx context.Context, chatID int64) {
	if err := b.chats.Forget(ctx, chatID); err != nil {
		b.logger.Error("Error forgetting user", "user_id", chatID, "error", err)
		b.sendMessage(chatID, "❌ Couldn't delete your data")
		return
	}
	b.sendMessage(chatID, "🗑 Your interests and conversations have been deleted")
}

// handleCallbackQuery handles button callbacks
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	b.registerUser(query.From)
	b.answerCallback(query.ID, "")

	switch query.Data {
	case callbackNew:
		b.handleNew(ctx, query.From.ID)
	case callbackSkip:
		b.handleSkip(ctx, query.From.ID)
	default:
		b.logger.Debug("Unknown callback", "data", query.Data)
	}
}

// registerUser registers or updates a user
func (b *Bot) registerUser(user *tgbotapi.User) {
	username := user.UserName
	if username == "" {
		username = fmt.Sprintf("user%d", user.ID)
	}

	if err := b.chats.RegisterUser(user.ID, username, user.FirstName, user.LastName); err != nil {
		b.logger.Error("Error registering user", "user_id", user.ID, "error", err)
	}
}

// sendMessage sends a simple text message
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Error sending message", "error", err)
	}
}

// answerCallback answers a callback query
func (b *Bot) answerCallback(callbackID string, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.sender.Request(callback); err != nil {
		b.logger.Error("Error answering callback", "error", err)
	}
}
