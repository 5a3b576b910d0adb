package bot

import (
	"fmt"
	"slices"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/glebk/stranger-bot/internal/domain"
	"github.com/glebk/stranger-bot/internal/service"
	"github.com/glebk/stranger-bot/internal/stranger"
)

// maxMessageLength is Telegram's limit for a single message.
const maxMessageLength = 4096

const (
	buttonNext = "🔀 Next stranger"
	buttonStop = "⏹ Stop"

	callbackNew  = "new"
	callbackSkip = "skip"
)

// reply is what a signal turns into on the Telegram side. Either text or
// action is set.
type reply struct {
	text   string
	action string
	markup any
}

// render maps a signal to a reply. Signals with nothing to show return
// false.
func render(sig stranger.Signal) (reply, bool) {
	switch sig.Name {
	case stranger.SignalError:
		return reply{text: "⚠️ " + sig.Text()}, true
	case stranger.SignalWaiting:
		return reply{
			text: "🔎 Looking for a stranger with common interests...",
			markup: tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("⏭ Anyone will do", callbackSkip),
			)),
		}, true
	case stranger.SignalConnected:
		return reply{text: "💬 You're now chatting with a random stranger. Say hi!"}, true
	case stranger.SignalCommonLikes:
		if likes := argList(sig); len(likes) > 0 {
			return reply{text: "🤝 You both like " + strings.Join(likes, ", ")}, true
		}
	case stranger.SignalPartnerCollege:
		if college := sig.Text(); college != "" {
			return reply{text: "🎓 Stranger is from " + college}, true
		}
	case stranger.SignalServerMessage:
		return reply{text: "ℹ️ " + sig.Text()}, true
	case stranger.SignalRecaptchaRequired:
		return reply{text: fmt.Sprintf("🤖 The service wants a captcha solved (challenge %s). Reply with /captcha <answer>", sig.Text())}, true
	case stranger.SignalOmegleError:
		return reply{text: "❌ Service error: " + sig.Text()}, true
	case stranger.SignalConnectionDied:
		return reply{text: "🔌 Connection to the service died."}, true
	case stranger.SignalAntinudeBanned:
		return reply{text: "⛔️ The service banned this session. Next conversations will be unmonitored."}, true
	case stranger.SignalTyping:
		return reply{action: tgbotapi.ChatTyping}, true
	case stranger.SignalMessage:
		return reply{text: "Stranger: " + sig.Text()}, true
	case stranger.SignalStrangerDisconnected:
		return reply{text: "👋 Stranger has disconnected."}, true
	case stranger.SignalDisconnected:
		return reply{
			text: "Conversation ended.",
			markup: tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔀 New stranger", callbackNew),
			)),
		}, true
	}
	return reply{}, false
}

func argList(sig stranger.Signal) []string {
	if len(sig.Args) == 0 {
		return nil
	}
	switch v := sig.Args[0].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func renderStatus(status service.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", status.State)
	if status.SessionID == "" {
		return b.String()
	}
	fmt.Fprintf(&b, "Server: %s\n", status.Server)
	if len(status.Topics) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(status.Topics, ", "))
	}
	if len(status.CommonLikes) > 0 {
		fmt.Fprintf(&b, "In common: %s\n", strings.Join(status.CommonLikes, ", "))
	}
	if status.PendingCaptcha {
		b.WriteString("Captcha pending, reply with /captcha <answer>\n")
	}
	return b.String()
}

func renderTopics(topics []string) string {
	if len(topics) == 0 {
		return "You have no interests set. Use /topics music, films to add some."
	}
	return "Your interests: " + strings.Join(topics, ", ")
}

func renderHistory(conversations []*domain.Conversation) string {
	if len(conversations) == 0 {
		return "📭 No conversations yet"
	}

	var b strings.Builder
	b.WriteString("📜 Recent conversations:\n\n")
	for i, c := range conversations {
		fmt.Fprintf(&b, "%d. %s, %s", i+1, c.StartedAt.Format("2006-01-02 15:04"), describeEnd(c))
		if len(c.CommonLikes) > 0 {
			fmt.Fprintf(&b, ", liked %s", strings.Join(c.CommonLikes, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nUse /transcript <number> to read one")
	return b.String()
}

// renderTranscript lists the messages of a conversation. When the result
// would not fit in one Telegram message the oldest lines are left out.
func renderTranscript(c *domain.Conversation, messages []*domain.Message) string {
	header := "📜 Transcript\n\n"
	if c != nil {
		header = fmt.Sprintf("📜 Transcript of %s\n\n", c.StartedAt.Format("2006-01-02 15:04"))
	}
	if len(messages) == 0 {
		return header + "No messages were exchanged"
	}

	const skipped = "…\n"
	budget := maxMessageLength - len(header) - len(skipped)
	lines := make([]string, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		line := describeMessage(messages[i]) + "\n"
		if len(line) > budget {
			break
		}
		budget -= len(line)
		lines = append(lines, line)
	}
	slices.Reverse(lines)

	var b strings.Builder
	b.WriteString(header)
	if len(lines) < len(messages) {
		b.WriteString(skipped)
	}
	for _, line := range lines {
		b.WriteString(line)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func describeMessage(m *domain.Message) string {
	if m.Direction == domain.DirectionOut {
		return "You: " + m.Body
	}
	return "Stranger: " + m.Body
}

func describeEnd(c *domain.Conversation) string {
	if !c.Ended() {
		return "ongoing"
	}
	took := c.EndedAt.Sub(c.StartedAt).Round(time.Second)
	switch c.EndReason {
	case domain.EndReasonStranger:
		return fmt.Sprintf("%s, stranger left", took)
	case domain.EndReasonUser:
		return fmt.Sprintf("%s, you left", took)
	case domain.EndReasonDetached:
		return fmt.Sprintf("%s, detached", took)
	default:
		return fmt.Sprintf("%s, %s", took, strings.ReplaceAll(string(c.EndReason), "_", " "))
	}
}
