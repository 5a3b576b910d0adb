package stranger

import "fmt"

// SignalName identifies an outward notification. Consumers match on these
// exact names.
type SignalName string

const (
	SignalReady                SignalName = "ready"
	SignalError                SignalName = "error"
	SignalGotID                SignalName = "gotID"
	SignalWaiting              SignalName = "waiting"
	SignalConnected            SignalName = "connected"
	SignalStatusInfo           SignalName = "statusInfo"
	SignalCount                SignalName = "count"
	SignalCommonLikes          SignalName = "commonLikes"
	SignalPartnerCollege       SignalName = "partnerCollege"
	SignalServerMessage        SignalName = "serverMessage"
	SignalRecaptchaRequired    SignalName = "recaptchaRequired"
	SignalIdentDigests         SignalName = "identDigests"
	SignalOmegleError          SignalName = "omegleError"
	SignalConnectionDied       SignalName = "connectionDied"
	SignalAntinudeBanned       SignalName = "antinudeBanned"
	SignalTyping               SignalName = "typing"
	SignalStoppedTyping        SignalName = "stoppedTyping"
	SignalMessage              SignalName = "message"
	SignalStrangerDisconnected SignalName = "strangerDisconnected"
	SignalDisconnected         SignalName = "disconnected"
	SignalUnhandledEvent       SignalName = "unhandledEvent"
)

// Signal is emitted to the client's observer.
type Signal struct {
	Name SignalName
	Args []any
}

func newSignal(name SignalName, args ...any) Signal {
	return Signal{Name: name, Args: args}
}

// Text returns the first argument as a string.
func (s Signal) Text() string {
	if len(s.Args) == 0 {
		return ""
	}
	switch v := s.Args[0].(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}

// Err returns the error carried by an error signal.
func (s Signal) Err() error {
	if s.Name != SignalError || len(s.Args) == 0 {
		return nil
	}
	err, _ := s.Args[0].(error)
	return err
}

// Observer receives signals. It may be called from the poller goroutine,
// the caller's goroutine or a captcha resolution goroutine, so it must be
// safe for concurrent use. It may call back into the Client.
//
// Signals of an applied event are dropped when the session is superseded
// before they go out. A Disconnect racing with the poller can still land
// between that check and the observer call, so an observer must tolerate
// a late signal after disconnected.
type Observer func(Signal)
