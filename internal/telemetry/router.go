package telemetry

import (
	"context"
	"time"

	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

// DefaultSampleQueueCap is the default per-channel sample queue depth
// (cap, not total capacity — transitions/results/faults are additional
// and unbounded).
const DefaultSampleQueueCap = 64

// Router owns one queue per channel and drains them into a Sink.
type Router struct {
	sink   Sink
	queues map[int]*queue
}

// NewRouter creates a Router for the given channel IDs.
func NewRouter(sink Sink, channelIDs []int, sampleQueueCap int) *Router {
	r := &Router{sink: sink, queues: make(map[int]*queue, len(channelIDs))}
	for _, id := range channelIDs {
		r.queues[id] = newQueue(sampleQueueCap)
	}
	return r
}

// Offer enqueues rec for its channel. It never blocks: under
// back-pressure a sample is dropped rather than held.
func (r *Router) Offer(rec domain.Record) {
	q, ok := r.queues[rec.ChannelID]
	if !ok {
		return
	}
	q.offer(rec)
}

// Run drains every channel's queue on each tick, forwarding one record
// per channel per tick to the sink. A rejected sample is dropped; a
// rejected transition/result/fault is pushed back to the head of its
// queue and retried on the next tick.
func (r *Router) Run(ctx context.Context, tick <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			r.pump()
		}
	}
}

func (r *Router) pump() {
	for _, q := range r.queues {
		rec, ok := q.pop()
		if !ok {
			continue
		}
		if !r.sink.TrySend(rec) && rec.Kind != domain.KindSample {
			q.pushFront(rec)
		}
	}
}
