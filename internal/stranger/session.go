package stranger

import "slices"

// State represents where a conversation is in its lifecycle
type State int

const (
	StateIdle State = iota
	StateStarting
	StateWaiting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateWaiting:
		return "waiting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is the state of one conversation. It is a value: every transition
// returns a new Session and never mutates slices it shares with a previous one.
type Session struct {
	ID     string
	State  State
	Server string

	Topics          []string
	CommonInterests []string

	PendingChallenge      string
	WaitingForCommonLikes bool
}

// Active reports whether the session holds a live identifier.
func (s Session) Active() bool {
	return s.ID != ""
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	s.Topics = slices.Clone(s.Topics)
	s.CommonInterests = slices.Clone(s.CommonInterests)
	return s
}

// terminated returns the shape every session ends in. Applying it twice
// yields the same value as applying it once.
func (s Session) terminated() Session {
	return Session{State: StateDisconnected}
}

// detached clears the identifier only. Topics and common interests stay so
// the donor can still show what the conversation was about.
func (s Session) detached() Session {
	s = s.Clone()
	s.ID = ""
	s.State = StateIdle
	return s
}
