package stranger

// Outcome is the result of applying one event to a session.
type Outcome struct {
	Session Session
	Signals []Signal

	// ChallengeSiteKey is set when a captcha challenge must be resolved
	// before recaptchaRequired can be emitted.
	ChallengeSiteKey string

	// ForceUnmonitored is set when the process must join the unmonitored
	// group from now on.
	ForceUnmonitored bool

	// Terminal is set when the event ended the session.
	Terminal bool
}

type transition func(s Session, args []any) Outcome

var handlers = map[string]transition{
	TagWaiting: func(s Session, _ []any) Outcome {
		s.WaitingForCommonLikes = true
		s.State = StateWaiting
		return Outcome{Session: s, Signals: []Signal{newSignal(SignalWaiting)}}
	},
	TagConnected: func(s Session, _ []any) Outcome {
		s.WaitingForCommonLikes = false
		s.State = StateConnected
		return Outcome{Session: s, Signals: []Signal{newSignal(SignalConnected)}}
	},
	TagStatusInfo:     forward(SignalStatusInfo),
	TagCount:          forward(SignalCount),
	TagPartnerCollege: forward(SignalPartnerCollege),
	TagServerMessage:  forward(SignalServerMessage),
	TagIdentDigests:   forward(SignalIdentDigests),
	TagGotMessage:     forward(SignalMessage),
	TagCommonLikes: func(s Session, args []any) Outcome {
		s = s.Clone()
		s.CommonInterests = nil
		if len(args) > 0 {
			s.CommonInterests = stringList(args[0])
		}
		return Outcome{Session: s, Signals: []Signal{newSignal(SignalCommonLikes, args...)}}
	},
	TagRecaptchaRequired: challenge,
	TagRecaptchaRejected: challenge,
	TagTyping: func(s Session, _ []any) Outcome {
		return Outcome{Session: s, Signals: []Signal{newSignal(SignalTyping)}}
	},
	TagStoppedTyping: func(s Session, _ []any) Outcome {
		return Outcome{Session: s, Signals: []Signal{newSignal(SignalStoppedTyping)}}
	},
	TagError: func(s Session, args []any) Outcome {
		return terminate(s, newSignal(SignalOmegleError, args...))
	},
	TagConnectionDied: func(s Session, _ []any) Outcome {
		return terminate(s, newSignal(SignalConnectionDied))
	},
	TagAntinudeBanned: func(s Session, _ []any) Outcome {
		out := terminate(s, newSignal(SignalAntinudeBanned))
		out.ForceUnmonitored = true
		return out
	},
	TagStrangerDisconnected: func(s Session, _ []any) Outcome {
		return terminate(s, newSignal(SignalStrangerDisconnected))
	},
}

// Reduce applies a single event to a session. Unknown tags leave the session
// untouched and produce exactly one unhandledEvent signal.
func Reduce(s Session, ev Event) Outcome {
	h, ok := handlers[ev.Tag]
	if !ok {
		args := make([]any, 0, len(ev.Args)+1)
		args = append(args, ev.Tag)
		args = append(args, ev.Args...)
		return Outcome{Session: s, Signals: []Signal{newSignal(SignalUnhandledEvent, args...)}}
	}
	return h(s, ev.Args)
}

// Handles reports whether the tag is part of the dispatch table.
func Handles(tag string) bool {
	_, ok := handlers[tag]
	return ok
}

func forward(name SignalName) transition {
	return func(s Session, args []any) Outcome {
		return Outcome{Session: s, Signals: []Signal{newSignal(name, args...)}}
	}
}

// challenge defers the recaptchaRequired signal until the site key has been
// resolved. Required and rejected share this path and the signal name.
func challenge(s Session, args []any) Outcome {
	out := Outcome{Session: s}
	if len(args) > 0 {
		out.ChallengeSiteKey, _ = args[0].(string)
	}
	return out
}

func terminate(s Session, first Signal) Outcome {
	return Outcome{
		Session:  s.terminated(),
		Signals:  []Signal{first, newSignal(SignalDisconnected)},
		Terminal: true,
	}
}
