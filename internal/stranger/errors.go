package stranger

import "errors"

// Invalid-state errors. They are returned synchronously and never emitted
// as an error signal.
var (
	ErrAlreadyConnected = errors.New("already connected")
	ErrNotWaiting       = errors.New("state is not waiting")
	ErrNoChallenge      = errors.New("no captcha offered")
	ErrNoSession        = errors.New("no active session")
	ErrNoServers        = errors.New("no servers available")
	ErrStartAbandoned   = errors.New("start abandoned by disconnect")
)
