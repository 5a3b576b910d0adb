package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/glebk/stranger-bot/internal/bot"
	"github.com/glebk/stranger-bot/internal/captcha"
	"github.com/glebk/stranger-bot/internal/config"
	"github.com/glebk/stranger-bot/internal/metrics"
	"github.com/glebk/stranger-bot/internal/repository/sqlite"
	"github.com/glebk/stranger-bot/internal/service"
	"github.com/glebk/stranger-bot/internal/stranger"
	"github.com/glebk/stranger-bot/internal/stranger/webtransport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file (or CONFIG_FILE)")
	pflag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Bot stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if cfg.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is not set")
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	logger.Info("Database initialized", "path", cfg.DatabasePath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize repositories
	userRepo := sqlite.NewUserRepository(db)
	convRepo := sqlite.NewConversationRepository(db)

	// Initialize bot
	telegramBot, err := bot.New(cfg.TelegramToken, logger)
	if err != nil {
		return err
	}

	// Initialize service
	chatService := service.NewChatService(userRepo, convRepo, newClientFactory(cfg, logger, metrics.New(reg)),
		service.WithNotifier(telegramBot),
		service.WithLogger(logger),
		service.WithDefaultTopics(cfg.Stranger.DefaultTopics),
	)

	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		srv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           newRouter(reg, db.GetDB()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Metrics server listening", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Bot started. Press Ctrl+C to stop.")
		return telegramBot.Run(gctx, chatService)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := chatService.Shutdown(shutdownCtx)
		if srv != nil {
			err = errors.Join(err, srv.Shutdown(shutdownCtx))
		}
		return err
	})

	return g.Wait()
}

// newClientFactory shares one transport, captcha resolver and set of
// process flags between every user's client.
func newClientFactory(cfg *config.Config, logger *slog.Logger, collector *metrics.Collector) service.ClientFactory {
	transport := webtransport.New(webtransport.Config{
		Domain:    cfg.Stranger.Domain,
		Language:  cfg.Stranger.Language,
		UserAgent: cfg.Stranger.UserAgent,
	})
	resolver := captcha.NewResolver(captcha.DefaultEndpoint, &http.Client{Timeout: 15 * time.Second})

	base := []stranger.Option{
		stranger.WithResolver(resolver),
		stranger.WithLogger(logger),
		stranger.WithProcessFlags(stranger.NewProcessFlags()),
		stranger.WithMetrics(collector),
	}
	if cfg.Stranger.PollRetryRate > 0 {
		base = append(base, stranger.WithRetryLimiter(rate.NewLimiter(rate.Limit(cfg.Stranger.PollRetryRate), 1)))
	}

	return func(ctx context.Context, opts ...stranger.Option) (*stranger.Client, error) {
		return stranger.New(ctx, transport, append(slices.Clone(base), opts...)...)
	}
}
