// Package commandrouter delivers operator events to the addressed
// channel's supervisor, or to all of them for a broadcast disable.
package commandrouter

import (
	"sort"

	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

// Supervisor is the subset of *channel.Channel the router needs.
type Supervisor interface {
	SubmitOperator(domain.OperatorEvent)
}

// Router delivers operator events from an operator.Source to the
// addressed channel.
type Router struct {
	channels map[int]Supervisor
}

// New creates a Router over the given channel supervisors, keyed by
// channel ID.
func New(channels map[int]Supervisor) *Router {
	return &Router{channels: channels}
}

// Deliver routes ev to its addressed channel, or to every channel in
// ascending ID order if it is a broadcast. Broadcast delivery is
// synchronous with respect to the router: every channel's SubmitOperator
// has been called before Deliver returns, though each supervisor still
// processes the event asynchronously on its own goroutine.
func (r *Router) Deliver(ev domain.OperatorEvent) {
	if ev.ChannelID != domain.Broadcast {
		if ch, ok := r.channels[ev.ChannelID]; ok {
			ch.SubmitOperator(ev)
		}
		return
	}
	ids := make([]int, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		r.channels[id].SubmitOperator(ev)
	}
}
