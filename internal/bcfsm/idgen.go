package bcfsm

import (
	"fmt"
	"sync/atomic"
	"time"
)

// counterIDGenerator mints battery_id values from a per-process counter,
// so generated IDs are unique and ordered within a process without
// depending on wall-clock resolution; the current Unix time in seconds
// is appended as a suffix.
type counterIDGenerator struct {
	seq atomic.Uint64
}

// NewCounterIDGenerator returns the default IDGenerator used outside
// tests.
func NewCounterIDGenerator() IDGenerator {
	return &counterIDGenerator{}
}

func (g *counterIDGenerator) Generate(channel int) string {
	n := g.seq.Add(1)
	return fmt.Sprintf("AUTO-%d-%04d-%d", channel, n, time.Now().Unix())
}
