package operator

import "github.com/fitzterra/battery-capacity-meter/internal/domain"

// FakeSource is a test double: events pushed with Push are delivered in
// order to Events().
type FakeSource struct {
	events chan domain.OperatorEvent
	closed bool
}

// NewFakeSource creates a FakeSource with a small internal buffer so
// tests can Push without a concurrent reader draining immediately.
func NewFakeSource() *FakeSource {
	return &FakeSource{events: make(chan domain.OperatorEvent, 32)}
}

func (f *FakeSource) Push(ev domain.OperatorEvent) { f.events <- ev }

func (f *FakeSource) Events() <-chan domain.OperatorEvent { return f.events }

func (f *FakeSource) Close() error {
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}
