package socfsm

import (
	"fmt"
	"time"

	"github.com/fitzterra/battery-capacity-meter/internal/bcfsm"
	"github.com/fitzterra/battery-capacity-meter/internal/coulomb"
	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

// DefaultRestDuration is the default T_rest, applied uniformly to REST_CH
// and REST_DCH. The channel pipeline owns the actual time.Timer and takes
// its duration from config; SoC only tells it when to start one.
const DefaultRestDuration = 300 * time.Second

// Outcome bundles everything one SoC call can produce: commands to issue
// to BC, a transition record if the SoC state changed, a result record
// if the run just ended, and whether the caller should (re)start its
// rest timer.
type Outcome struct {
	Commands       []bcfsm.Event
	Transition     *domain.SoCTransitionPayload
	Result         *domain.SoCResultPayload
	StartRestTimer bool
}

// SoC is one channel's State-of-Charge run controller.
type SoC struct {
	state     State
	numCycles int
	maxCycles int
	batteryID string
	startedAt time.Time

	cycles  []domain.CycleMetrics
	pending domain.CycleMetrics

	// restStartVMV is the voltage sampled on entry to REST_CH, copied
	// into the pending cycle record when DISCHARGING completes.
	restStartVMV int32
}

// New creates a SoC controller at rest in READY.
func New() *SoC { return &SoC{state: Ready} }

// State returns the current SoC state.
func (s *SoC) State() State { return s.state }

// NumCycles returns the number of cycles completed so far in the current
// (or most recently finished) run.
func (s *SoC) NumCycles() int { return s.numCycles }

// MaxCycles returns the cycle target of the current (or most recently
// finished) run; zero if no run has started yet.
func (s *SoC) MaxCycles() int { return s.maxCycles }

// Start begins a run: issues the priming charge and moves to
// CHARGING_1ST. Only valid from READY. max_cycles is read once here and
// held for the run's duration. bcState is the BC-FSM's state at the
// moment of the request; BC must be in BAT_ID or the run goes straight
// to ERROR instead of issuing a charge into a battery-less or
// already-running channel.
func (s *SoC) Start(batteryID string, maxCycles int, bcState bcfsm.State, now time.Time) (Outcome, error) {
	if s.state != Ready {
		return Outcome{}, fmt.Errorf("socfsm: start ignored, not READY (in %s)", s.state)
	}
	if maxCycles < 1 {
		return Outcome{}, fmt.Errorf("socfsm: max_cycles must be >= 1, got %d", maxCycles)
	}
	from := s.state
	s.maxCycles = maxCycles
	s.numCycles = 0
	s.batteryID = batteryID
	s.startedAt = now
	s.cycles = nil
	s.pending = domain.CycleMetrics{}

	if bcState != bcfsm.BAT_ID {
		s.state = Error
		return Outcome{
			Transition: s.transitionPayload(from),
			Result:     s.resultPayload(now, domain.OutcomeError),
		}, nil
	}

	s.state = Charging1st
	return Outcome{
		Commands:   []bcfsm.Event{{Tag: "charge"}},
		Transition: s.transitionPayload(from),
	}, nil
}

// expectedBC returns the set of BC states this SoC state tolerates
// observing, and whether that set is even enforced (it is not while at
// rest between runs or once a run has ended).
func expectedBC(s State) map[bcfsm.State]bool {
	switch s {
	case Charging1st, Charging:
		return map[bcfsm.State]bool{bcfsm.CHARGE: true, bcfsm.CHARGE_PAUSE: true, bcfsm.CHARGED: true}
	case Discharging:
		return map[bcfsm.State]bool{bcfsm.DISCHARGE: true, bcfsm.DISCHARGE_PAUSE: true, bcfsm.DISCHARGED: true}
	case RestCh, RestDch:
		return map[bcfsm.State]bool{bcfsm.BAT_ID: true}
	default:
		return nil
	}
}

// ObserveBC feeds one BC-FSM transition to the SoC controller. accum and
// the two start times are the caller's current readings for the channel;
// they are only consulted when a phase just completed.
func (s *SoC) ObserveBC(bcState bcfsm.State, now time.Time, accum coulomb.Accumulator, vBattMV int32, chargeStartedAt, dischargeStartedAt time.Time) Outcome {
	if !s.state.active() {
		return Outcome{}
	}

	if want := expectedBC(s.state); want != nil && !want[bcState] {
		return s.fail(now)
	}

	switch s.state {
	case Charging1st:
		if bcState != bcfsm.CHARGED {
			return Outcome{}
		}
		from := s.state
		s.restStartVMV = vBattMV
		s.state = RestCh
		return Outcome{
			Commands:       []bcfsm.Event{{Tag: "reset_metrics"}},
			Transition:     s.transitionPayload(from),
			StartRestTimer: true,
		}

	case Charging:
		if bcState != bcfsm.CHARGED {
			return Outcome{}
		}
		from := s.state
		s.pending.ChargeMAh = accum.ChargeMAh
		s.pending.ChargeMWh = accum.ChargeMWh
		s.pending.TChargeS = now.Sub(chargeStartedAt).Seconds()
		s.numCycles++
		s.pending.CycleIndex = s.numCycles
		s.cycles = append(s.cycles, s.pending)
		s.pending = domain.CycleMetrics{}

		cmds := []bcfsm.Event{{Tag: "reset_metrics"}}
		if s.numCycles == s.maxCycles {
			s.state = Complete
			return Outcome{
				Commands:   cmds,
				Transition: s.transitionPayload(from),
				Result:     s.resultPayload(now, domain.OutcomeComplete),
			}
		}
		s.restStartVMV = vBattMV
		s.state = RestCh
		return Outcome{
			Commands:       cmds,
			Transition:     s.transitionPayload(from),
			StartRestTimer: true,
		}

	case Discharging:
		if bcState != bcfsm.DISCHARGED {
			return Outcome{}
		}
		from := s.state
		s.pending.DischargeMAh = accum.DischargeMAh
		s.pending.DischargeMWh = accum.DischargeMWh
		s.pending.TDischargeS = now.Sub(dischargeStartedAt).Seconds()
		s.pending.RestStartVMV = s.restStartVMV
		s.state = RestDch
		return Outcome{
			Commands:       []bcfsm.Event{{Tag: "reset_metrics"}},
			Transition:     s.transitionPayload(from),
			StartRestTimer: true,
		}

	default: // RestCh, RestDch: BC must stay in BAT_ID, nothing else to do here
		return Outcome{}
	}
}

// OnRestTimerExpired fires when the caller's rest timer for REST_CH or
// REST_DCH elapses. It is a no-op if a cancel or fault already moved the
// SoC out of that state before the timer fired — the caller is expected
// to have cancelled the timer in that case anyway, but a stray fire is
// harmless.
func (s *SoC) OnRestTimerExpired(now time.Time, vBattMV int32) Outcome {
	switch s.state {
	case RestCh:
		if s.numCycles > s.maxCycles {
			s.state = Complete
			return Outcome{Result: s.resultPayload(now, domain.OutcomeComplete)}
		}
		from := s.state
		s.state = Discharging
		return Outcome{
			Commands:   []bcfsm.Event{{Tag: "discharge"}},
			Transition: s.transitionPayload(from),
		}

	case RestDch:
		from := s.state
		s.pending.RestEndVMV = vBattMV
		s.state = Charging
		return Outcome{
			Commands:   []bcfsm.Event{{Tag: "charge"}},
			Transition: s.transitionPayload(from),
		}

	default:
		return Outcome{}
	}
}

// HandleCancel honours an operator cancel from any active state: BC is
// told to pause then reset its accumulator, and the run ends with
// whatever cycles have already been recorded.
func (s *SoC) HandleCancel(now time.Time) Outcome {
	if !s.state.cancelable() {
		return Outcome{}
	}
	from := s.state
	s.state = Cancel
	return Outcome{
		Commands:   []bcfsm.Event{{Tag: "pause"}, {Tag: "reset_metrics"}},
		Transition: s.transitionPayload(from),
		Result:     s.resultPayload(now, domain.OutcomeCanceled),
	}
}

// HandleAck clears a terminal SoC state (COMPLETE, CANCEL, ERROR) back to
// READY. It reports false if the SoC was not in a terminal state.
func (s *SoC) HandleAck() bool {
	if !s.state.terminal() {
		return false
	}
	s.state = Ready
	s.numCycles = 0
	s.maxCycles = 0
	s.batteryID = ""
	s.cycles = nil
	s.pending = domain.CycleMetrics{}
	return true
}

// fail moves the SoC to ERROR on an unexpected BC state and closes out
// the run with whatever cycles were recorded so far.
func (s *SoC) fail(now time.Time) Outcome {
	from := s.state
	s.state = Error
	return Outcome{
		Transition: s.transitionPayload(from),
		Result:     s.resultPayload(now, domain.OutcomeError),
	}
}

func (s *SoC) transitionPayload(from State) *domain.SoCTransitionPayload {
	return &domain.SoCTransitionPayload{
		From:      from.String(),
		To:        s.state.String(),
		NumCycles: s.numCycles,
		MaxCycles: s.maxCycles,
	}
}

func (s *SoC) resultPayload(now time.Time, outcome domain.Outcome) *domain.SoCResultPayload {
	return &domain.SoCResultPayload{
		BatteryID:  s.batteryID,
		StartedAt:  s.startedAt,
		FinishedAt: now,
		Outcome:    outcome,
		Cycles:     append([]domain.CycleMetrics(nil), s.cycles...),
	}
}
