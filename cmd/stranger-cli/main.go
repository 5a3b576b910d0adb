// Command stranger-cli chats with a random stranger from the terminal.
// Lines are sent as messages; /next, /stop, /skip, /captcha <answer>,
// /typing, /stoptyping and /quit control the conversation.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/glebk/stranger-bot/internal/captcha"
	"github.com/glebk/stranger-bot/internal/config"
	"github.com/glebk/stranger-bot/internal/stranger"
	"github.com/glebk/stranger-bot/internal/stranger/webtransport"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file (or CONFIG_FILE)")
	topics := pflag.StringSliceP("topics", "t", nil, "interests to match on, overrides DEFAULT_TOPICS")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if len(*topics) > 0 {
		cfg.Stranger.DefaultTopics = *topics
	}

	// Log lines would interleave with the conversation.
	if cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer) error {
	var mu sync.Mutex
	printf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	opts := []stranger.Option{
		stranger.WithLogger(logger),
		stranger.WithResolver(captcha.NewResolver(captcha.DefaultEndpoint, &http.Client{Timeout: 15 * time.Second})),
		stranger.WithObserver(func(sig stranger.Signal) {
			if text, ok := describe(sig); ok {
				printf("%s\n", text)
			}
		}),
	}
	if cfg.Stranger.PollRetryRate > 0 {
		opts = append(opts, stranger.WithRetryLimiter(rate.NewLimiter(rate.Limit(cfg.Stranger.PollRetryRate), 1)))
	}

	transport := webtransport.New(webtransport.Config{
		Domain:    cfg.Stranger.Domain,
		Language:  cfg.Stranger.Language,
		UserAgent: cfg.Stranger.UserAgent,
	})
	client, err := stranger.New(ctx, transport, opts...)
	if err != nil {
		return err
	}
	defer func() {
		client.Disconnect(context.WithoutCancel(ctx))
		client.Close()
	}()

	if err := client.Connect(ctx, cfg.Stranger.DefaultTopics); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleLine(ctx, client, cfg.Stranger.DefaultTopics, line)
			if err != nil {
				printf("! %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// handleLine runs one line of input. It reports whether the user asked to
// quit.
func handleLine(ctx context.Context, client *stranger.Client, topics []string, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, client.Send(ctx, line)
	}

	command, arg, _ := strings.Cut(line, " ")
	switch command {
	case "/quit":
		return true, nil
	case "/stop":
		client.Disconnect(ctx)
		return false, nil
	case "/next":
		if client.Session().Active() {
			client.Disconnect(ctx)
		}
		return false, client.Connect(ctx, topics)
	case "/skip":
		return false, client.StopLookingForCommonLikes(ctx)
	case "/typing":
		return false, client.StartTyping(ctx)
	case "/stoptyping":
		return false, client.StopTyping(ctx)
	case "/captcha":
		if arg = strings.TrimSpace(arg); arg == "" {
			return false, errors.New("usage: /captcha <answer>")
		}
		return false, client.SendCaptchaResponse(ctx, arg)
	default:
		return false, fmt.Errorf("unknown command %s", command)
	}
}

func describe(sig stranger.Signal) (string, bool) {
	switch sig.Name {
	case stranger.SignalError:
		return "! " + sig.Text(), true
	case stranger.SignalWaiting:
		return "Looking for someone you can chat with... (/skip to drop interests)", true
	case stranger.SignalConnected:
		return "You're now chatting with a random stranger. Say hi!", true
	case stranger.SignalCommonLikes:
		if len(sig.Args) > 0 {
			return fmt.Sprintf("You both like %v.", sig.Args[0]), true
		}
	case stranger.SignalServerMessage:
		return "* " + sig.Text(), true
	case stranger.SignalRecaptchaRequired:
		return "Captcha required (challenge " + sig.Text() + "). Answer with /captcha <answer>", true
	case stranger.SignalOmegleError:
		return "Service error: " + sig.Text(), true
	case stranger.SignalConnectionDied:
		return "Connection died.", true
	case stranger.SignalAntinudeBanned:
		return "Banned by the service. Next conversations will be unmonitored.", true
	case stranger.SignalTyping:
		return "Stranger is typing...", true
	case stranger.SignalMessage:
		return "Stranger: " + sig.Text(), true
	case stranger.SignalStrangerDisconnected:
		return "Stranger has disconnected. /next for another one.", true
	case stranger.SignalDisconnected:
		return "You have disconnected.", true
	}
	return "", false
}
