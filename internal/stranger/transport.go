package stranger

import "context"

//go:generate mockgen -source=transport.go -destination=mock_transport_test.go -package=stranger

// Action is the kind of fire-and-forget call made against a live session.
type Action string

const (
	ActionDisconnect                Action = "disconnect"
	ActionSend                      Action = "send"
	ActionTyping                    Action = "typing"
	ActionStoppedTyping             Action = "stoppedtyping"
	ActionStopLookingForCommonLikes Action = "stoplookingforcommonlikes"
	ActionRecaptcha                 Action = "recaptcha"
)

// BootstrapInfo is returned once per client by the service status call.
type BootstrapInfo struct {
	Servers          []string
	ForceUnmonitored bool
}

// StartRequest describes a new conversation.
type StartRequest struct {
	Topics      []string
	Unmonitored bool
}

// StartResponse carries the new session id and its inline first events.
type StartResponse struct {
	ID     string
	Events []Event
}

// Transport issues the remote calls the client needs. Every call may fail.
type Transport interface {
	Bootstrap(ctx context.Context) (BootstrapInfo, error)
	Start(ctx context.Context, server string, req StartRequest) (StartResponse, error)
	// FetchEvents blocks until the service has events or its own
	// ceiling elapses. Failures are transient.
	FetchEvents(ctx context.Context, server, id string) ([]Event, error)
	Action(ctx context.Context, server, id string, action Action, payload map[string]string) error
}

// ChallengeResolver turns a captcha site key into a challenge token.
type ChallengeResolver interface {
	Resolve(ctx context.Context, siteKey string) (string, error)
}

// Metrics receives counters from the client. All methods must be safe for
// concurrent use.
type Metrics interface {
	PollCompleted(err error)
	EventDispatched(tag string)
	BatchDropped(events int)
	SignalEmitted(name SignalName)
}

type noopMetrics struct{}

func (noopMetrics) PollCompleted(error)      {}
func (noopMetrics) EventDispatched(string)   {}
func (noopMetrics) BatchDropped(int)         {}
func (noopMetrics) SignalEmitted(SignalName) {}
