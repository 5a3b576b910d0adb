package stranger

import (
	"encoding/json"
	"fmt"
)

// Event tags sent by the service.
const (
	TagWaiting              = "waiting"
	TagConnected            = "connected"
	TagStatusInfo           = "statusInfo"
	TagCount                = "count"
	TagCommonLikes          = "commonLikes"
	TagPartnerCollege       = "partnerCollege"
	TagServerMessage        = "serverMessage"
	TagRecaptchaRequired    = "recaptchaRequired"
	TagRecaptchaRejected    = "recaptchaRejected"
	TagIdentDigests         = "identDigests"
	TagError                = "error"
	TagConnectionDied       = "connectionDied"
	TagAntinudeBanned       = "antinudeBanned"
	TagTyping               = "typing"
	TagStoppedTyping        = "stoppedTyping"
	TagGotMessage           = "gotMessage"
	TagStrangerDisconnected = "strangerDisconnected"
)

// Event is one entry of an event batch: a tag followed by its arguments.
type Event struct {
	Tag  string
	Args []any
}

// NewEvent builds an event from a tag and arguments.
func NewEvent(tag string, args ...any) Event {
	return Event{Tag: tag, Args: args}
}

// UnmarshalJSON decodes the wire form ["tag", arg...].
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("failed to decode event: empty array")
	}

	var tag string
	if err := json.Unmarshal(raw[0], &tag); err != nil {
		return fmt.Errorf("failed to decode event tag: %w", err)
	}

	args := make([]any, 0, len(raw)-1)
	for _, r := range raw[1:] {
		var v any
		if err := json.Unmarshal(r, &v); err != nil {
			return fmt.Errorf("failed to decode %s argument: %w", tag, err)
		}
		args = append(args, v)
	}

	e.Tag = tag
	e.Args = args
	return nil
}

// MarshalJSON encodes the event back into its wire form.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(e.Args)+1)
	out = append(out, e.Tag)
	out = append(out, e.Args...)
	return json.Marshal(out)
}

// Arg returns the i-th argument as a string, or "" when missing or not a string.
func (e Event) Arg(i int) string {
	if i < 0 || i >= len(e.Args) {
		return ""
	}
	s, _ := e.Args[i].(string)
	return s
}

// stringList converts a decoded JSON array into a list of strings,
// skipping entries that are not strings.
func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{list}
	default:
		return nil
	}
}
