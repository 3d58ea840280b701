package telemetry

import (
	"sync"

	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

// FakeSink records every accepted record for test assertions, and can
// be told to reject the next N sends to exercise back-pressure paths.
// Safe for concurrent use: a Router drains on its own goroutine while a
// test inspects what has landed so far.
type FakeSink struct {
	mu         sync.Mutex
	records    []domain.Record
	RejectNext int
}

// NewFakeSink creates an empty FakeSink.
func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

func (f *FakeSink) TrySend(rec domain.Record) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RejectNext > 0 {
		f.RejectNext--
		return false
	}
	f.records = append(f.records, rec)
	return true
}

// Records returns a snapshot of every record accepted so far.
func (f *FakeSink) Records() []domain.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Record(nil), f.records...)
}
