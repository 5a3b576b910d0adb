package stranger

import (
	"log/slog"
	"math/rand/v2"

	"golang.org/x/time/rate"
)

type Option func(*Client)

// WithObserver sets the function that receives every signal.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithResolver sets the captcha challenge resolver.
func WithResolver(r ChallengeResolver) Option {
	return func(c *Client) {
		c.resolver = r
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProcessFlags shares unmonitored state with other clients.
func WithProcessFlags(f *ProcessFlags) Option {
	return func(c *Client) {
		if f != nil {
			c.flags = f
		}
	}
}

// WithRetryLimiter bounds how fast failed event fetches are retried.
// Without it a failed fetch is retried immediately.
func WithRetryLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithRand sets the source used to pick a server.
func WithRand(r *rand.Rand) Option {
	return func(c *Client) {
		c.rand = r
	}
}
