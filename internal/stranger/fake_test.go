package stranger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeTransport hands every FetchEvents call to the test through a channel
// so the test decides when and how each long poll resolves.
type fakeTransport struct {
	mu        sync.Mutex
	info      BootstrapInfo
	bootErr   error
	startResp StartResponse
	startErr  error
	starts    []StartRequest
	actions   []actionCall
	actionErr error

	fetches chan *fetchCall
}

type actionCall struct {
	server  string
	id      string
	action  Action
	payload map[string]string
}

type fetchCall struct {
	server string
	id     string
	reply  chan fetchResult
}

type fetchResult struct {
	events []Event
	err    error
}

func (f *fetchCall) respond(events ...Event) {
	f.reply <- fetchResult{events: events}
}

func (f *fetchCall) fail(err error) {
	f.reply <- fetchResult{err: err}
}

func newFakeTransport(servers ...string) *fakeTransport {
	if len(servers) == 0 {
		servers = []string{"front1"}
	}
	return &fakeTransport{
		info:    BootstrapInfo{Servers: servers},
		fetches: make(chan *fetchCall, 16),
	}
}

func (f *fakeTransport) Bootstrap(ctx context.Context) (BootstrapInfo, error) {
	return f.info, f.bootErr
}

func (f *fakeTransport) Start(ctx context.Context, server string, req StartRequest) (StartResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, req)
	return f.startResp, f.startErr
}

func (f *fakeTransport) FetchEvents(ctx context.Context, server, id string) ([]Event, error) {
	call := &fetchCall{server: server, id: id, reply: make(chan fetchResult, 1)}
	select {
	case f.fetches <- call:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-call.reply:
		return r.events, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) Action(ctx context.Context, server, id string, action Action, payload map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, actionCall{server: server, id: id, action: action, payload: payload})
	return f.actionErr
}

func (f *fakeTransport) recordedActions() []actionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]actionCall(nil), f.actions...)
}

func (f *fakeTransport) recordedStarts() []StartRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StartRequest(nil), f.starts...)
}

func (f *fakeTransport) nextFetch(t *testing.T) *fetchCall {
	t.Helper()
	select {
	case call := <-f.fetches:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch")
		return nil
	}
}

func (f *fakeTransport) assertNoFetch(t *testing.T) {
	t.Helper()
	select {
	case call := <-f.fetches:
		t.Fatalf("unexpected fetch for %q", call.id)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeResolver struct {
	tokens map[string]string
}

func (r fakeResolver) Resolve(ctx context.Context, siteKey string) (string, error) {
	token, ok := r.tokens[siteKey]
	if !ok {
		return "", errors.New("unknown site key")
	}
	return token, nil
}

// recorder collects signals in emission order.
type recorder struct {
	mu      sync.Mutex
	signals []Signal
}

func (r *recorder) observe(s Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, s)
}

func (r *recorder) all() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Signal(nil), r.signals...)
}

func (r *recorder) names() []SignalName {
	var out []SignalName
	for _, s := range r.all() {
		out = append(out, s.Name)
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.signals)
}

func newTestClient(t *testing.T, ft *fakeTransport, opts ...Option) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts = append([]Option{WithObserver(rec.observe)}, opts...)
	c, err := New(context.Background(), ft, opts...)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Wait(ctx)
	})
	return c, rec
}
