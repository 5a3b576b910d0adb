package stranger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/time/rate"
)

// blockUntilDone stands in for a long poll that never returns events.
func blockUntilDone(ctx context.Context, _, _ string) ([]Event, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func closeAndWait(t *testing.T, c *Client) {
	t.Helper()
	c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func TestConnect_SendsTopicsAndUnmonitoredGroup(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := NewMockTransport(ctrl)

	transport.EXPECT().Bootstrap(gomock.Any()).Return(BootstrapInfo{Servers: []string{"front4"}, ForceUnmonitored: true}, nil)
	transport.EXPECT().
		Start(gomock.Any(), "front4", StartRequest{Topics: []string{"music", "art"}, Unmonitored: true}).
		Return(StartResponse{ID: "abc"}, nil)
	transport.EXPECT().FetchEvents(gomock.Any(), "front4", "abc").DoAndReturn(blockUntilDone).AnyTimes()

	c, err := New(context.Background(), transport)
	require.NoError(t, err)

	require.NoError(t, c.Connect(context.Background(), []string{"music", "art"}))
	closeAndWait(t, c)
}

func TestActions_UseSessionServerAndID(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := NewMockTransport(ctrl)
	ctx := context.Background()

	transport.EXPECT().Bootstrap(gomock.Any()).Return(BootstrapInfo{Servers: []string{"front1"}}, nil)
	transport.EXPECT().FetchEvents(gomock.Any(), "front3", "xyz").DoAndReturn(blockUntilDone).AnyTimes()
	gomock.InOrder(
		transport.EXPECT().Action(gomock.Any(), "front3", "xyz", ActionSend, map[string]string{"msg": "hello"}).Return(nil),
		transport.EXPECT().Action(gomock.Any(), "front3", "xyz", ActionTyping, gomock.Nil()).Return(nil),
		transport.EXPECT().Action(gomock.Any(), "front3", "xyz", ActionStoppedTyping, gomock.Nil()).Return(nil),
		transport.EXPECT().Action(gomock.Any(), "front3", "xyz", ActionDisconnect, gomock.Nil()).Return(errors.New("ignored")),
	)

	c, err := New(ctx, transport)
	require.NoError(t, err)
	require.NoError(t, c.TransferSession("xyz", "front3"))

	require.NoError(t, c.Send(ctx, "hello"))
	require.NoError(t, c.StartTyping(ctx))
	require.NoError(t, c.StopTyping(ctx))
	c.Disconnect(ctx)

	assert.Equal(t, StateDisconnected, c.Session().State)
	closeAndWait(t, c)
}

func TestMetrics_PollAndDispatchCounted(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := NewMockTransport(ctrl)
	metrics := NewMockMetrics(ctrl)
	fetchErr := errors.New("reset by peer")

	transport.EXPECT().Bootstrap(gomock.Any()).Return(BootstrapInfo{Servers: []string{"front1"}}, nil)
	gomock.InOrder(
		transport.EXPECT().FetchEvents(gomock.Any(), "front1", "abc").Return(nil, fetchErr),
		transport.EXPECT().FetchEvents(gomock.Any(), "front1", "abc").
			Return([]Event{NewEvent(TagStrangerDisconnected)}, nil),
	)

	metrics.EXPECT().SignalEmitted(SignalReady)
	metrics.EXPECT().SignalEmitted(SignalGotID)
	metrics.EXPECT().PollCompleted(fetchErr)
	metrics.EXPECT().PollCompleted(nil)
	metrics.EXPECT().EventDispatched(TagStrangerDisconnected)
	metrics.EXPECT().SignalEmitted(SignalStrangerDisconnected)
	metrics.EXPECT().SignalEmitted(SignalDisconnected)

	limiter := rate.NewLimiter(rate.Every(time.Millisecond), 1)
	c, err := New(context.Background(), transport, WithMetrics(metrics), WithRetryLimiter(limiter))
	require.NoError(t, err)
	require.NoError(t, c.TransferSession("abc", "front1"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
	assert.False(t, c.Session().Active())
}

func TestMetrics_EventsAfterTerminalCountedAsDropped(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := NewMockTransport(ctrl)
	metrics := NewMockMetrics(ctrl)

	transport.EXPECT().Bootstrap(gomock.Any()).Return(BootstrapInfo{Servers: []string{"front1"}}, nil)
	transport.EXPECT().FetchEvents(gomock.Any(), "front1", "abc").
		Return([]Event{NewEvent(TagAntinudeBanned), NewEvent(TagConnected), NewEvent(TagTyping)}, nil)

	metrics.EXPECT().SignalEmitted(SignalReady)
	metrics.EXPECT().SignalEmitted(SignalGotID)
	metrics.EXPECT().PollCompleted(nil)
	metrics.EXPECT().EventDispatched(TagAntinudeBanned)
	metrics.EXPECT().SignalEmitted(SignalAntinudeBanned)
	metrics.EXPECT().SignalEmitted(SignalDisconnected)
	metrics.EXPECT().BatchDropped(2)

	c, err := New(context.Background(), transport, WithMetrics(metrics))
	require.NoError(t, err)
	require.NoError(t, c.TransferSession("abc", "front1"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))

	s := c.Session()
	assert.Equal(t, StateDisconnected, s.State)
	assert.Empty(t, s.ID)
	assert.True(t, c.Flags().UnmonitoredForced())
}

func TestRecaptcha_ResolvedThroughResolver(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := NewMockTransport(ctrl)
	resolver := NewMockChallengeResolver(ctrl)
	rec := &recorder{}

	transport.EXPECT().Bootstrap(gomock.Any()).Return(BootstrapInfo{Servers: []string{"front1"}}, nil)
	transport.EXPECT().
		Start(gomock.Any(), "front1", StartRequest{}).
		Return(StartResponse{ID: "abc", Events: []Event{NewEvent(TagRecaptchaRequired, "6Lc")}}, nil)
	transport.EXPECT().FetchEvents(gomock.Any(), "front1", "abc").DoAndReturn(blockUntilDone).AnyTimes()
	resolver.EXPECT().Resolve(gomock.Any(), "6Lc").Return("03AHJ", nil)
	transport.EXPECT().
		Action(gomock.Any(), "front1", "abc", ActionRecaptcha, map[string]string{"challenge": "03AHJ", "response": "words"}).
		Return(nil)

	c, err := New(context.Background(), transport, WithResolver(resolver), WithObserver(rec.observe))
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background(), nil))

	require.Eventually(t, func() bool { return c.Session().PendingChallenge == "03AHJ" }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.SendCaptchaResponse(context.Background(), "words"))

	require.Eventually(t, func() bool {
		names := rec.names()
		return names[len(names)-1] == SignalRecaptchaRequired
	}, time.Second, 5*time.Millisecond)
	closeAndWait(t, c)
}
