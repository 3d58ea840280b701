package domain

import "time"

// RecordKind distinguishes the telemetry record kinds.
type RecordKind string

const (
	KindSample        RecordKind = "sample"
	KindBCTransition   RecordKind = "bc_transition"
	KindSoCTransition  RecordKind = "soc_transition"
	KindSoCResult      RecordKind = "soc_result"
	KindFault          RecordKind = "fault"
	KindHeartbeat      RecordKind = "heartbeat"
)

// FaultKind distinguishes the three hardware-facing fault sources.
type FaultKind string

const (
	FaultSampler FaultKind = "sampler"
	FaultSwitch  FaultKind = "switch"
	FaultBus     FaultKind = "bus"
	FaultCommand FaultKind = "command" // operator-command misuse
)

// Outcome is the terminal state of a SoC run.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomeCanceled Outcome = "canceled"
	OutcomeError    Outcome = "error"
)

// Record is the envelope every telemetry record is wrapped in before it
// reaches a Sink. Payload holds the kind-specific fields.
type Record struct {
	ChannelID int
	Kind      RecordKind
	T         time.Time
	Payload   interface{}
}

// SamplePayload is the payload for a decimated sample record.
type SamplePayload struct {
	VMV   int32
	IChMA int32
	IDchMA int32
}

// BCTransitionPayload is the payload for a bc_transition record.
type BCTransitionPayload struct {
	From          string
	To            string
	Event         string
	BatteryID     string
	MAhCharge     float64
	MAhDischarge  float64
}

// SoCTransitionPayload is the payload for a soc_transition record.
type SoCTransitionPayload struct {
	From       string
	To         string
	NumCycles  int
	MaxCycles  int
}

// CycleMetrics is one cycle's worth of measurement, part of a SoC result.
type CycleMetrics struct {
	CycleIndex     int
	ChargeMAh      float64
	DischargeMAh   float64
	ChargeMWh      float64
	DischargeMWh   float64
	TChargeS       float64
	TDischargeS    float64
	RestStartVMV   int32
	RestEndVMV     int32
}

// SoCResultPayload is the payload for a soc_result record.
type SoCResultPayload struct {
	BatteryID  string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    Outcome
	Cycles     []CycleMetrics
}

// FaultPayload is the payload for a fault record.
type FaultPayload struct {
	Kind   FaultKind
	Detail string
}

// HeartbeatPayload is the payload for the supplemented heartbeat record.
type HeartbeatPayload struct {
	Uptime    time.Duration
	NumFaults int
}
