package domain

// EdgeTag identifies the kind of edge the event deriver detected.
type EdgeTag string

const (
	VJump  EdgeTag = "v_jump"
	VDrop  EdgeTag = "v_drop"
	ChJump EdgeTag = "ch_jump"
	ChDrop EdgeTag = "ch_drop"
	DchJump EdgeTag = "dch_jump"
	DchDrop EdgeTag = "dch_drop"
	ChDone  EdgeTag = "ch_done"
	DchDone EdgeTag = "dch_done"
)

// EdgeEvent is a discrete event derived from the sample stream, with the
// sample that triggered it attached for telemetry and debugging.
type EdgeEvent struct {
	ChannelID int
	Tag       EdgeTag
	Sample    Sample
}
