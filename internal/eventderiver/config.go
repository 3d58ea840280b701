package eventderiver

import "time"

// Config holds the thresholds and windows the deriver checks against. The
// edge windows (VJumpWindow, VDropWindow, IEdgeWindow) are applied both
// as the detection window and as the post-fire debounce suppression for
// that edge; the two Sustain durations are how long a done condition
// must hold before it fires. The edge windows follow the values
// v_jump/v_drop use (where window and debounce are numerically identical)
// extended to ch/dch edges for consistency — see DESIGN.md.
type Config struct {
	VJumpMV        int32
	VJumpWindow    time.Duration
	VDropMV        int32
	VDropWindow    time.Duration
	IEdgeMA        int32
	IEdgeWindow    time.Duration
	ITermChMA      int32
	VFullMV        int32
	ChDoneSustain  time.Duration
	VEmptyMV       int32
	DchDoneSustain time.Duration
}

// DefaultConfig returns the defaults used absent an operator-supplied config.
func DefaultConfig() Config {
	return Config{
		VJumpMV:        2000,
		VJumpWindow:    300 * time.Millisecond,
		VDropMV:        2000,
		VDropWindow:    500 * time.Millisecond,
		IEdgeMA:        200,
		IEdgeWindow:    100 * time.Millisecond,
		ITermChMA:      50,
		VFullMV:        4150,
		ChDoneSustain:  30 * time.Second,
		VEmptyMV:       2800,
		DchDoneSustain: 2 * time.Second,
	}
}
