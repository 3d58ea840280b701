// Package telemetry multiplexes per-channel records onto an external
// sink: a bounded priority queue per channel (samples are the only kind
// that may be dropped under back-pressure) feeding into a Sink whose
// only contract is try-send, accepted or rejected.
package telemetry

import (
	"encoding/json"
	"time"

	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

// Sink is the external telemetry destination. TrySend must not block
// indefinitely; a false return means the router should apply
// back-pressure rather than retry forever.
type Sink interface {
	TrySend(rec domain.Record) bool
}

// WirePayload is the line-delimited JSON form used by FileSink and
// MQTTSink. The core does not mandate a wire encoding; this is the
// textual rendering recognised records are given when one is needed.
type WirePayload struct {
	ChannelID int             `json:"channel_id"`
	Kind      domain.RecordKind `json:"kind"`
	T         time.Time       `json:"t"`
	Payload   interface{}     `json:"payload"`
}

// Encode renders a record as one line of JSON, newline-terminated.
func Encode(rec domain.Record) ([]byte, error) {
	b, err := json.Marshal(WirePayload{
		ChannelID: rec.ChannelID,
		Kind:      rec.Kind,
		T:         rec.T,
		Payload:   rec.Payload,
	})
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
