// Package domain holds the data types shared by every stage of a channel's
// pipeline: raw samples, derived edge events, operator commands, and the
// telemetry records the core emits. None of these types know about I/O;
// they are the vocabulary the FSMs and the event deriver speak.
package domain

import "time"

// Sample is one timestamped reading of a channel's three measurement
// points. ICh and IDch are always non-negative; at most one is non-zero,
// since the charge and discharge MOSFETs are mutually exclusive.
type Sample struct {
	ChannelID  int
	TMonoUS    int64 // monotonic microseconds, for edge-window math
	VBattMV    int32
	IChMA      int32
	IDchMA     int32
}

// Time returns the sample's timestamp as a time.Duration since an
// arbitrary epoch, suitable for window arithmetic.
func (s Sample) Time() time.Duration {
	return time.Duration(s.TMonoUS) * time.Microsecond
}
