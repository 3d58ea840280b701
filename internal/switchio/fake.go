package switchio

import (
	"context"
	"sync"

	"github.com/fitzterra/battery-capacity-meter/internal/bcfsm"
)

// Fake is a test double recording every Set/SetMonitors call. Safe for
// concurrent use: a channel supervisor drives it from its own goroutine
// while a test polls the commanded state from another.
type Fake struct {
	mu sync.Mutex

	// charge/discharge/monitors hold the last commanded state per channel.
	charge    map[int]bool
	discharge map[int]bool
	monitors  map[int]bool

	// calls records every call in order, for assertions on ordering.
	calls []FakeCall

	// SetErr, if set, is returned by Set (and consumed once).
	SetErr error
	// SetMonitorsErr, if set, is returned by SetMonitors (and consumed once).
	SetMonitorsErr error

	closed bool
}

// FakeCall records one invocation of Set or SetMonitors.
type FakeCall struct {
	Channel int
	Leg     bcfsm.Leg // empty for SetMonitors calls
	On      bool
}

// NewFake creates an empty Fake driver.
func NewFake() *Fake {
	return &Fake{
		charge:    make(map[int]bool),
		discharge: make(map[int]bool),
		monitors:  make(map[int]bool),
	}
}

func (f *Fake) Set(_ context.Context, channel int, leg bcfsm.Leg, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, FakeCall{Channel: channel, Leg: leg, On: on})
	if f.SetErr != nil {
		err := f.SetErr
		f.SetErr = nil
		return err
	}
	switch leg {
	case bcfsm.LegCharge:
		f.charge[channel] = on
	case bcfsm.LegDischarge:
		f.discharge[channel] = on
	}
	return nil
}

func (f *Fake) SetMonitors(_ context.Context, channel int, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, FakeCall{Channel: channel, On: enabled})
	if f.SetMonitorsErr != nil {
		err := f.SetMonitorsErr
		f.SetMonitorsErr = nil
		return err
	}
	f.monitors[channel] = enabled
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Charge reports the last commanded charge-leg state for channel.
func (f *Fake) Charge(channel int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.charge[channel]
}

// Discharge reports the last commanded discharge-leg state for channel.
func (f *Fake) Discharge(channel int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discharge[channel]
}

// Monitors reports the last commanded monitor-enable state for channel.
func (f *Fake) Monitors(channel int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.monitors[channel]
}

// Closed reports whether Close has been called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Calls returns a snapshot of every Set/SetMonitors call recorded so far.
func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}
