package domain

// OpTag identifies the kind of operator command delivered to a channel.
type OpTag string

const (
	OpDisable      OpTag = "disable"
	OpInit         OpTag = "init"
	OpGetID        OpTag = "get_id"
	OpSetID        OpTag = "set_id"
	OpCharge       OpTag = "charge"
	OpDischarge    OpTag = "discharge"
	OpPause        OpTag = "pause"
	OpResume       OpTag = "resume"
	OpReset        OpTag = "reset"
	OpResetMetrics OpTag = "reset_metrics"
	OpCancel       OpTag = "cancel"
	OpAck          OpTag = "ack" // operator acknowledgement, clears SoC ERROR
)

// Broadcast addresses every channel at once. Only disable may be
// broadcast.
const Broadcast = -1

// OperatorEvent is one command from the operator source (UI, remote, or
// test harness), addressed to a channel or to all channels.
type OperatorEvent struct {
	ChannelID int // Broadcast for all channels
	Tag       OpTag
	BatteryID string // only meaningful for OpSetID
}
