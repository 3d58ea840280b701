// Package bus serialises access to the shared I2C line across the four
// channel Samplers: a single-holder lock with FIFO fairness and a bound
// on how long any one transaction may hold it.
package bus

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrHoldExceeded is returned by Do when the transaction did not finish
// within the arbiter's maximum hold time. The caller should raise a bus
// fault for the channel that was running the transaction.
var ErrHoldExceeded = errors.New("bus: transaction exceeded max hold time, abandoned")

// DefaultMaxHold is the default maximum lock hold time: enough for three
// ADC conversions per transaction at ~10ms settle each, plus overhead.
const DefaultMaxHold = 50 * time.Millisecond

// Arbiter is the single-holder exclusive lock over the I2C bus. Waiters
// are served in the order they called Do, per semaphore.Weighted's FIFO
// queueing.
type Arbiter struct {
	sem     *semaphore.Weighted
	maxHold time.Duration
}

// New creates an Arbiter bounding any one holder to maxHold.
func New(maxHold time.Duration) *Arbiter {
	return &Arbiter{sem: semaphore.NewWeighted(1), maxHold: maxHold}
}

// Do acquires the bus, runs fn with a context that expires after
// maxHold, and releases the bus before returning. If fn does not return
// before the deadline, Do returns ErrHoldExceeded once fn does return
// (fn is expected to respect ctx and give up promptly); the bus is
// always released regardless of how fn behaves.
//
// Acquire itself can be cancelled via ctx — a waiter that gives up
// before its turn returns ctx.Err(), not ErrHoldExceeded.
func (a *Arbiter) Do(ctx context.Context, channelID int, fn func(ctx context.Context) error) error {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer a.sem.Release(1)

	hctx, cancel := context.WithTimeout(ctx, a.maxHold)
	defer cancel()

	err := fn(hctx)
	if hctx.Err() == context.DeadlineExceeded {
		return ErrHoldExceeded
	}
	return err
}
