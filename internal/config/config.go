package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	TelegramToken string         `yaml:"telegram_token"`
	DatabasePath  string         `yaml:"database_path"`
	MetricsAddr   string         `yaml:"metrics_addr"`
	Stranger      StrangerConfig `yaml:"stranger"`
	Log           LogConfig      `yaml:"log"`
}

// StrangerConfig configures the chat service connection
type StrangerConfig struct {
	Domain        string   `yaml:"domain"`
	Language      string   `yaml:"language"`
	UserAgent     string   `yaml:"user_agent"`
	DefaultTopics []string `yaml:"default_topics"`
	// PollRetryRate is the number of failed event fetches retried per
	// second. Zero retries immediately.
	PollRetryRate float64 `yaml:"poll_retry_rate"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		DatabasePath: "./stranger_bot.db",
		MetricsAddr:  ":9090",
		Stranger: StrangerConfig{
			Domain:   "omegle.com",
			Language: "en",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration. Values from the optional YAML file at path are
// overridden by environment variables.
func Load(path string) (*Config, error) {
	// Try to load .env file (ignore error if not exists)
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.TelegramToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.DatabasePath, "DATABASE_PATH")
	setString(&c.MetricsAddr, "METRICS_ADDR")
	setString(&c.Stranger.Domain, "STRANGER_DOMAIN")
	setString(&c.Stranger.Language, "STRANGER_LANGUAGE")
	setString(&c.Stranger.UserAgent, "STRANGER_USER_AGENT")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if v, ok := os.LookupEnv("DEFAULT_TOPICS"); ok {
		c.Stranger.DefaultTopics = SplitTopics(v)
	}

	if v := os.Getenv("POLL_RETRY_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid POLL_RETRY_RATE %q: %w", v, err)
		}
		c.Stranger.PollRetryRate = rate
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks values that cannot be fixed up with a default.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is empty"))
	}
	if c.Stranger.Domain == "" {
		errs = append(errs, errors.New("stranger domain is empty"))
	}
	if c.Stranger.PollRetryRate < 0 {
		errs = append(errs, fmt.Errorf("poll retry rate must not be negative, got %v", c.Stranger.PollRetryRate))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SplitTopics splits a comma separated list, dropping blanks.
func SplitTopics(s string) []string {
	var topics []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// NewLogger builds the process logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
