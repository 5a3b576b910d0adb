// Package stranger is a client for a chat-pairing service that is only
// reachable through request/response calls. Events are pushed by long
// polling; a Client owns at most one conversation at a time.
package stranger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"golang.org/x/time/rate"
)

var (
	errMissingSiteKey = errors.New("captcha event without site key")
	errNoResolver     = errors.New("no captcha resolver configured")
)

// Client drives a single conversation against the service.
type Client struct {
	transport Transport
	resolver  ChallengeResolver
	observer  Observer
	logger    *slog.Logger
	flags     *ProcessFlags
	limiter   *rate.Limiter
	metrics   Metrics
	rand      *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	session    Session
	generation uint64
	connecting bool
	servers    []string
	pollers    map[uint64]chan struct{}
}

// New creates a client and bootstraps it against the service. On failure
// the error signal is emitted and the client must be recreated.
func New(ctx context.Context, transport Transport, opts ...Option) (*Client, error) {
	c := &Client{
		transport: transport,
		logger:    slog.Default(),
		flags:     NewProcessFlags(),
		metrics:   noopMetrics{},
		pollers:   make(map[uint64]chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))

	info, err := transport.Bootstrap(ctx)
	if err != nil {
		c.cancel()
		c.emit(newSignal(SignalError, err))
		return nil, fmt.Errorf("failed to bootstrap: %w", err)
	}

	c.servers = slices.Clone(info.Servers)
	if info.ForceUnmonitored {
		c.flags.ForceUnmonitored()
	}
	c.logger.Debug("Client bootstrapped", "servers", len(c.servers), "unmonitored", c.flags.UnmonitoredForced())

	c.emit(newSignal(SignalReady))
	return c, nil
}

// Connect starts a new conversation with the given interests. It blocks
// until the service has assigned an id.
func (c *Client) Connect(ctx context.Context, topics []string) error {
	c.mu.Lock()
	if c.session.Active() || c.connecting {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	if len(c.servers) == 0 {
		c.mu.Unlock()
		return ErrNoServers
	}
	server := c.pickServer()
	before := c.generation
	c.connecting = true
	c.mu.Unlock()

	req := StartRequest{Unmonitored: c.flags.UnmonitoredForced()}
	if len(topics) > 0 && topics[0] != "" {
		req.Topics = slices.Clone(topics)
	}

	resp, err := c.transport.Start(ctx, server, req)

	c.mu.Lock()
	c.connecting = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("Failed to start conversation", "server", server, "error", err)
		c.emit(newSignal(SignalError, err))
		return fmt.Errorf("failed to start conversation: %w", err)
	}
	if c.generation != before {
		// Disconnect or TransferSession ran while we were starting.
		active := c.session.Active()
		c.mu.Unlock()
		_ = c.transport.Action(ctx, server, resp.ID, ActionDisconnect, nil)
		if active {
			return ErrAlreadyConnected
		}
		return ErrStartAbandoned
	}
	c.generation++
	gen := c.generation
	c.session = Session{
		ID:     resp.ID,
		State:  StateStarting,
		Server: server,
		Topics: req.Topics,
	}
	c.mu.Unlock()

	c.logger.Info("Conversation started", "id", resp.ID, "server", server, "topics", req.Topics)
	c.emit(newSignal(SignalGotID, resp.ID))

	// The inline batch is applied before the poller starts so that its
	// events are always seen ahead of anything the first fetch returns.
	c.dispatch(gen, resp.Events)
	c.arm(gen, server, resp.ID)
	return nil
}

// Disconnect ends the conversation. The local reset always happens; the
// remote notification is best effort.
func (c *Client) Disconnect(ctx context.Context) {
	c.mu.Lock()
	id, server := c.session.ID, c.session.Server
	c.generation++
	c.session = c.session.terminated()
	c.mu.Unlock()

	c.emit(newSignal(SignalDisconnected))

	if id == "" {
		return
	}
	if err := c.transport.Action(ctx, server, id, ActionDisconnect, nil); err != nil {
		c.logger.Debug("Ignoring disconnect failure", "id", id, "error", err)
	}
}

// Send sends a chat message to the stranger.
func (c *Client) Send(ctx context.Context, message string) error {
	return c.act(ctx, ActionSend, map[string]string{"msg": message})
}

// StartTyping tells the stranger we are typing.
func (c *Client) StartTyping(ctx context.Context) error {
	return c.act(ctx, ActionTyping, nil)
}

// StopTyping tells the stranger we stopped typing.
func (c *Client) StopTyping(ctx context.Context) error {
	return c.act(ctx, ActionStoppedTyping, nil)
}

// StopLookingForCommonLikes asks the service to pair with anyone instead of
// someone sharing the requested interests.
func (c *Client) StopLookingForCommonLikes(ctx context.Context) error {
	c.mu.Lock()
	waiting := c.session.WaitingForCommonLikes
	c.mu.Unlock()
	if !waiting {
		return ErrNotWaiting
	}
	return c.act(ctx, ActionStopLookingForCommonLikes, nil)
}

// SendCaptchaResponse answers the last challenge delivered with
// recaptchaRequired.
func (c *Client) SendCaptchaResponse(ctx context.Context, response string) error {
	c.mu.Lock()
	challenge := c.session.PendingChallenge
	c.mu.Unlock()
	if challenge == "" {
		return ErrNoChallenge
	}
	return c.act(ctx, ActionRecaptcha, map[string]string{
		"challenge": challenge,
		"response":  response,
	})
}

// TransferSession starts polling a session handed over by another client.
// When server is empty one is picked from the pool. The state is assumed
// to be connected since it cannot be recovered from the id alone. The
// donor must have called PrepareTransferSession first.
func (c *Client) TransferSession(id, server string) error {
	if id == "" {
		return ErrNoSession
	}

	c.mu.Lock()
	if server == "" {
		if len(c.servers) == 0 {
			c.mu.Unlock()
			return ErrNoServers
		}
		server = c.pickServer()
	}
	c.generation++
	gen := c.generation
	c.session = Session{ID: id, State: StateConnected, Server: server}
	c.mu.Unlock()

	c.logger.Info("Session transferred in", "id", id, "server", server)
	c.emit(newSignal(SignalGotID, id))
	c.arm(gen, server, id)
	return nil
}

// PrepareTransferSession stops polling and returns the session id so
// another client can adopt it. The service is not told and the other
// session fields are kept. A batch still in flight is dropped when it
// returns; use Wait to know when the poller has exited.
func (c *Client) PrepareTransferSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.session.ID
	c.generation++
	c.session = c.session.detached()
	return id
}

// Session returns a copy of the current session.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// Servers returns the server pool received at bootstrap.
func (c *Client) Servers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.servers)
}

// Flags returns the process flags the client reads on every Connect.
func (c *Client) Flags() *ProcessFlags {
	return c.flags
}

// Wait blocks until every poller started so far has exited.
func (c *Client) Wait(ctx context.Context) error {
	c.mu.Lock()
	running := make([]chan struct{}, 0, len(c.pollers))
	for _, done := range c.pollers {
		running = append(running, done)
	}
	c.mu.Unlock()

	for _, done := range running {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close stops the poller once its in-flight fetch returns. The session is
// not disconnected.
func (c *Client) Close() {
	c.cancel()
}

func (c *Client) act(ctx context.Context, action Action, payload map[string]string) error {
	c.mu.Lock()
	id, server := c.session.ID, c.session.Server
	c.mu.Unlock()
	if id == "" {
		return ErrNoSession
	}

	if err := c.transport.Action(ctx, server, id, action, payload); err != nil {
		c.logger.Warn("Action failed", "action", action, "id", id, "error", err)
		c.emit(newSignal(SignalError, err))
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	return nil
}

// dispatch applies a batch in order. Each event is fully applied and its
// signals emitted before the next one is looked at. The batch is dropped
// as soon as gen is no longer the current generation. A terminal event
// starts a new generation, so whatever follows it in the batch is dropped.
func (c *Client) dispatch(gen uint64, events []Event) {
	for i, ev := range events {
		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			c.metrics.BatchDropped(len(events) - i)
			c.logger.Debug("Dropping events from superseded session", "events", len(events)-i)
			return
		}
		out := Reduce(c.session, ev)
		c.session = out.Session
		if out.Terminal {
			c.generation++
		}
		c.mu.Unlock()

		c.metrics.EventDispatched(ev.Tag)
		if out.ForceUnmonitored {
			c.flags.ForceUnmonitored()
		}
		if out.Terminal {
			c.logger.Info("Conversation ended", "event", ev.Tag)
			c.emit(out.Signals...)
			continue
		}
		if (ev.Tag == TagRecaptchaRequired || ev.Tag == TagRecaptchaRejected) && out.ChallengeSiteKey == "" {
			c.emitCurrent(gen, newSignal(SignalError, errMissingSiteKey))
		} else if out.ChallengeSiteKey != "" {
			go c.resolveChallenge(gen, out.ChallengeSiteKey)
		}
		c.emitCurrent(gen, out.Signals...)
	}
}

// emitCurrent emits the signals only while gen is still the current
// generation. It keeps an event's signals from trailing a Disconnect or
// transfer that ran after the event was applied.
func (c *Client) emitCurrent(gen uint64, signals ...Signal) {
	if len(signals) == 0 {
		return
	}
	c.mu.Lock()
	current := c.generation == gen
	c.mu.Unlock()
	if !current {
		c.logger.Debug("Dropping signals from superseded session", "signals", len(signals))
		return
	}
	c.emit(signals...)
}

func (c *Client) resolveChallenge(gen uint64, siteKey string) {
	if c.resolver == nil {
		c.emit(newSignal(SignalError, errNoResolver))
		return
	}

	token, err := c.resolver.Resolve(c.ctx, siteKey)
	if err != nil {
		c.logger.Warn("Failed to resolve captcha challenge", "error", err)
		c.emit(newSignal(SignalError, err))
		return
	}

	c.mu.Lock()
	if c.generation != gen || !c.session.Active() {
		c.mu.Unlock()
		c.logger.Debug("Discarding challenge for superseded session")
		return
	}
	c.session.PendingChallenge = token
	c.mu.Unlock()

	c.emit(newSignal(SignalRecaptchaRequired, token))
}

func (c *Client) emit(signals ...Signal) {
	for _, s := range signals {
		c.metrics.SignalEmitted(s.Name)
		if c.observer != nil {
			c.observer(s)
		}
	}
}

// pickServer must be called with mu held.
func (c *Client) pickServer() string {
	if c.rand != nil {
		return c.servers[c.rand.IntN(len(c.servers))]
	}
	return c.servers[rand.IntN(len(c.servers))]
}
