// Package socfsm implements the State-of-Charge finite state machine: the
// per-channel run controller that drives BC-FSM through a priming charge
// followed by max_cycles discharge/charge cycles, recording per-cycle
// measurement and validating that BC stays in the states each phase
// expects.
package socfsm

// State is one of the SoC-FSM's states.
type State int

const (
	Ready State = iota
	Charging1st
	Charging
	RestCh
	Discharging
	RestDch
	Complete
	Cancel
	Error
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Charging1st:
		return "CHARGING_1ST"
	case Charging:
		return "CHARGING"
	case RestCh:
		return "REST_CH"
	case Discharging:
		return "DISCHARGING"
	case RestDch:
		return "REST_DCH"
	case Complete:
		return "COMPLETE"
	case Cancel:
		return "CANCEL"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// active reports whether a run is in progress in this state — i.e. BC
// state must be validated against the set the phase expects.
func (s State) active() bool {
	switch s {
	case Charging1st, Charging, Discharging, RestCh, RestDch:
		return true
	default:
		return false
	}
}

// cancelable mirrors active: the same five states accept an operator
// cancel.
func (s State) cancelable() bool { return s.active() }

// terminal reports whether an operator ack from this state returns the
// run to READY.
func (s State) terminal() bool {
	switch s {
	case Complete, Cancel, Error:
		return true
	default:
		return false
	}
}
