// Package sampler runs one channel's periodic acquisition loop: on every
// tick, pull a reading through the adc.Reader and hand it to the caller,
// or report a fault if the reading failed.
package sampler

import (
	"context"
	"time"

	"github.com/fitzterra/battery-capacity-meter/internal/adc"
	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

// Sampler ticks a channel's adc.Reader at a fixed period. Acquisition
// and conversion happen inline on the tick with no suspension beyond
// adc.Reader.Read itself (which suspends on the bus arbiter); the only
// other suspension point is the wait for the next tick.
type Sampler struct {
	channelID int
	reader    adc.Reader
}

// New creates a Sampler for one channel.
func New(channelID int, reader adc.Reader) *Sampler {
	return &Sampler{channelID: channelID, reader: reader}
}

// Run drives the loop until ctx is cancelled. tick and now are injected
// so tests can step the loop deterministically without a real clock.
func (s *Sampler) Run(ctx context.Context, now func() time.Time, tick <-chan time.Time, onSample func(domain.Sample), onFault func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-tick:
			sample, err := s.reader.Read(ctx, s.channelID, firstNonZero(t, now()))
			if err != nil {
				onFault(err)
				continue
			}
			onSample(sample)
		}
	}
}

func firstNonZero(t time.Time, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}
