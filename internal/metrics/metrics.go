// Package metrics exposes Prometheus collectors for stranger clients.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/glebk/stranger-bot/internal/stranger"
)

const namespace = "strangerbot"

// Collector implements stranger.Metrics. One Collector is shared by every
// client in the process.
type Collector struct {
	polls         *prometheus.CounterVec
	events        *prometheus.CounterVec
	signals       *prometheus.CounterVec
	droppedEvents prometheus.Counter
}

var _ stranger.Metrics = (*Collector)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Completed event fetches by result.",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Events applied to sessions by tag.",
		}, []string{"tag"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_emitted_total",
			Help:      "Signals emitted to observers by name.",
		}, []string{"signal"}),
		droppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events discarded because their session was superseded.",
		}),
	}
	reg.MustRegister(c.polls, c.events, c.signals, c.droppedEvents)
	return c
}

func (c *Collector) PollCompleted(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.polls.WithLabelValues(result).Inc()
}

// EventDispatched counts by tag. Tags outside the dispatch table are folded
// into one label so a misbehaving server cannot grow the series.
func (c *Collector) EventDispatched(tag string) {
	if !stranger.Handles(tag) {
		tag = "unhandled"
	}
	c.events.WithLabelValues(tag).Inc()
}

func (c *Collector) BatchDropped(events int) {
	c.droppedEvents.Add(float64(events))
}

func (c *Collector) SignalEmitted(name stranger.SignalName) {
	c.signals.WithLabelValues(string(name)).Inc()
}
