package stranger

import "sync/atomic"

// ProcessFlags is state that outlives any single session. Once unmonitored
// mode is forced, either by bootstrap or by an antinudeBanned event, it is
// never cleared. Several clients may share one ProcessFlags.
type ProcessFlags struct {
	unmonForced atomic.Bool
}

// NewProcessFlags returns flags with nothing forced.
func NewProcessFlags() *ProcessFlags {
	return &ProcessFlags{}
}

// ForceUnmonitored permanently switches to the unmonitored group.
func (f *ProcessFlags) ForceUnmonitored() {
	f.unmonForced.Store(true)
}

// UnmonitoredForced reports whether unmonitored mode has been forced.
func (f *ProcessFlags) UnmonitoredForced() bool {
	return f.unmonForced.Load()
}
