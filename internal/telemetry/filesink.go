package telemetry

import (
	"bufio"
	"io"
	"sync"

	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

// FileSink writes one line-delimited JSON record per line to an
// io.Writer — a file, or stdout for local runs without a broker.
type FileSink struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewFileSink wraps w for buffered line-delimited writes.
func NewFileSink(w io.Writer) *FileSink {
	return &FileSink{w: bufio.NewWriter(w)}
}

// TrySend writes rec and flushes. A write error counts as rejection.
func (f *FileSink) TrySend(rec domain.Record) bool {
	line, err := Encode(rec)
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.w.Write(line); err != nil {
		return false
	}
	return f.w.Flush() == nil
}
