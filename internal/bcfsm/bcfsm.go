package bcfsm

import (
	"context"
	"fmt"
	"time"
)

// Leg identifies which MOSFET leg a switch command addresses.
type Leg string

const (
	LegCharge    Leg = "charge"
	LegDischarge Leg = "discharge"
)

// SwitchDriver is the switch sink contract scoped to the calls BC-FSM's
// entry actions need. Implementations must be idempotent and complete
// within 5ms.
type SwitchDriver interface {
	Set(ctx context.Context, channel int, leg Leg, on bool) error
	SetMonitors(ctx context.Context, channel int, enabled bool) error
}

// IDGenerator mints a battery_id on NOBAT->BAT_NOID and YANKED->BAT_NOID
// transitions (fresh insertion or quick re-seat).
type IDGenerator interface {
	Generate(channel int) string
}

// Transition is the result of a single Step call: what changed, and what
// side effects the caller (the channel pipeline) must apply to the
// Coulomb Integrator and telemetry. BC-FSM does not touch the integrator
// itself — it only reports what happened; the owning channel applies
// these to its own coulomb.Integrator.
type Transition struct {
	ChannelID        int
	From             State
	To               State
	Event            string
	BatteryID        string
	ArmCharge        bool
	ArmDischarge     bool
	SealCharge       bool
	SealDischarge    bool
	ResetAccumulator bool
	Forced           bool // true if this transition was forced by a hardware fault
}

// Event is a single stimulus fed to Step: either an edge event tag
// (v_jump, ch_drop, ...) or an operator command tag (charge, pause, ...).
// SetID is only meaningful for the set_id command.
type Event struct {
	Tag   string
	SetID string
}

// BC is one channel's Battery Controller state machine.
type BC struct {
	channelID  int
	driver     SwitchDriver
	idGen      IDGenerator

	state     State
	batteryID string
	idSource  IDSource
	boundAt   time.Time

	chargeOn     bool
	dischargeOn  bool
	monitorsOn   bool

	tChargeStart    time.Time
	tDischargeStart time.Time
}

// New creates a BC-FSM for one channel. The initial state is DISABLED
// until init is stepped, matching the transition table's "(start)" row.
func New(channelID int, driver SwitchDriver, idGen IDGenerator) *BC {
	return &BC{
		channelID: channelID,
		driver:    driver,
		idGen:     idGen,
		state:     DISABLED,
	}
}

// State returns the current BC state.
func (b *BC) State() State { return b.state }

// BatteryID returns the currently bound battery_id, or "" if none.
func (b *BC) BatteryID() string { return b.batteryID }

// IDSource returns how the current battery_id was bound.
func (b *BC) IDSource() IDSource { return b.idSource }

// ChargeOn and DischargeOn expose the MOSFET invariant for tests and
// telemetry.
func (b *BC) ChargeOn() bool    { return b.chargeOn }
func (b *BC) DischargeOn() bool { return b.dischargeOn }

// ChargeStartedAt and DischargeStartedAt expose the timestamps recorded
// on entry to CHARGE/DISCHARGE, so the SoC-FSM can compute t_charge_s and
// t_discharge_s for a cycle's result without touching hardware itself.
func (b *BC) ChargeStartedAt() time.Time    { return b.tChargeStart }
func (b *BC) DischargeStartedAt() time.Time { return b.tDischargeStart }

// Step feeds one event to the FSM and returns the resulting transition,
// or nil if the event was a no-op in the current state. Entry actions
// run to completion before Step returns: the step is atomic from the
// channel's perspective.
func (b *BC) Step(ctx context.Context, ev Event, now time.Time) (*Transition, error) {
	// disable is honoured from any state.
	if ev.Tag == "disable" {
		return b.transition(ctx, DISABLED, ev, now)
	}
	// init is honoured from any state, matching the "(start)" row.
	if ev.Tag == "init" {
		return b.transition(ctx, NOBAT, ev, now)
	}

	to, ok := lookup(b.state, ev.Tag)
	if !ok {
		return nil, nil
	}
	return b.transition(ctx, to, ev, now)
}

// transition runs entry actions for the target state, re-asserts the
// MOSFET invariant defensively, and returns the resulting Transition.
// A switch-driver failure forces the channel to DISABLED and is
// reported as an error; the caller is expected to emit a switch fault
// record.
func (b *BC) transition(ctx context.Context, to State, ev Event, now time.Time) (*Transition, error) {
	from := b.state
	t := &Transition{ChannelID: b.channelID, From: from, To: to, Event: ev.Tag}

	if err := b.enter(ctx, to, ev, now, t); err != nil {
		// Hardware fault: force DISABLED, best-effort de-assert both legs.
		b.forceDisabled(ctx)
		t.To = DISABLED
		t.Forced = true
		b.state = DISABLED
		return t, fmt.Errorf("bc[%d]: entry action for %s failed, forced DISABLED: %w", b.channelID, to, err)
	}

	b.state = to
	if err := b.assertInvariant(ctx); err != nil {
		b.forceDisabled(ctx)
		t.To = DISABLED
		t.Forced = true
		b.state = DISABLED
		return t, fmt.Errorf("bc[%d]: invariant re-assertion failed, forced DISABLED: %w", b.channelID, err)
	}
	t.BatteryID = b.batteryID
	return t, nil
}

func (b *BC) enter(ctx context.Context, to State, ev Event, now time.Time, t *Transition) error {
	switch to {
	case DISABLED:
		if err := b.setLeg(ctx, LegCharge, false); err != nil {
			return err
		}
		if err := b.setLeg(ctx, LegDischarge, false); err != nil {
			return err
		}
		return b.setMonitors(ctx, false)

	case NOBAT:
		if err := b.setLeg(ctx, LegCharge, false); err != nil {
			return err
		}
		if err := b.setLeg(ctx, LegDischarge, false); err != nil {
			return err
		}
		b.batteryID = ""
		b.idSource = IDSourceNone

	case BAT_NOID:
		b.batteryID = b.idGen.Generate(b.channelID)
		b.idSource = IDSourceGenerated
		b.boundAt = now

	case GET_ID:
		// no entry actions

	case BAT_ID:
		if b.state == GET_ID {
			b.batteryID = ev.SetID
			b.idSource = IDSourceOperator
			b.boundAt = now
			if err := b.setMonitors(ctx, true); err != nil {
				return err
			}
		}
		// CHARGE_PAUSE/CHARGED/DISCHARGE_PAUSE/DISCHARGED -> BAT_ID via
		// reset_metrics carries no monitor/id action, just the reset.
		t.ResetAccumulator = true

	case CHARGE:
		if err := b.setLeg(ctx, LegCharge, true); err != nil {
			return err
		}
		b.tChargeStart = now
		t.ArmCharge = true

	case CHARGE_PAUSE:
		if err := b.setLeg(ctx, LegCharge, false); err != nil {
			return err
		}
		t.SealCharge = true

	case CHARGED:
		if err := b.setLeg(ctx, LegCharge, false); err != nil {
			return err
		}
		t.SealCharge = true

	case DISCHARGE:
		if err := b.setLeg(ctx, LegDischarge, true); err != nil {
			return err
		}
		b.tDischargeStart = now
		t.ArmDischarge = true

	case DISCHARGE_PAUSE:
		if err := b.setLeg(ctx, LegDischarge, false); err != nil {
			return err
		}
		t.SealDischarge = true

	case DISCHARGED:
		if err := b.setLeg(ctx, LegDischarge, false); err != nil {
			return err
		}
		t.SealDischarge = true

	case YANKED:
		if err := b.setLeg(ctx, LegCharge, false); err != nil {
			return err
		}
		if err := b.setLeg(ctx, LegDischarge, false); err != nil {
			return err
		}
	}
	return nil
}

// assertInvariant re-sends the on/off state both legs must be in for the
// current state, regardless of whether the entry action above already
// did so. This is a defensive re-assertion, independent of whatever the
// entry action above already did.
func (b *BC) assertInvariant(ctx context.Context) error {
	wantCharge := b.state == CHARGE
	wantDischarge := b.state == DISCHARGE
	if err := b.setLeg(ctx, LegCharge, wantCharge); err != nil {
		return err
	}
	return b.setLeg(ctx, LegDischarge, wantDischarge)
}

func (b *BC) setLeg(ctx context.Context, leg Leg, on bool) error {
	if err := b.driver.Set(ctx, b.channelID, leg, on); err != nil {
		return err
	}
	if leg == LegCharge {
		b.chargeOn = on
	} else {
		b.dischargeOn = on
	}
	return nil
}

func (b *BC) setMonitors(ctx context.Context, enabled bool) error {
	if err := b.driver.SetMonitors(ctx, b.channelID, enabled); err != nil {
		return err
	}
	b.monitorsOn = enabled
	return nil
}

// forceDisabled best-effort de-asserts both legs without propagating
// further errors — this is the last line of defense when a switch set
// call has already failed once.
func (b *BC) forceDisabled(ctx context.Context) {
	_ = b.driver.Set(ctx, b.channelID, LegCharge, false)
	_ = b.driver.Set(ctx, b.channelID, LegDischarge, false)
	_ = b.driver.SetMonitors(ctx, b.channelID, false)
	b.chargeOn = false
	b.dischargeOn = false
	b.monitorsOn = false
}

// lookup returns the transition table's target state for (state, tag),
// implementing the transition table exactly (disable/init excepted,
// handled in Step since they apply from every state).
func lookup(s State, tag string) (State, bool) {
	type key struct {
		s   State
		tag string
	}
	table := map[key]State{
		{NOBAT, "v_jump"}: BAT_NOID,

		{BAT_NOID, "v_drop"}: YANKED,
		{BAT_NOID, "get_id"}: GET_ID,

		{GET_ID, "set_id"}: BAT_ID,
		{GET_ID, "v_drop"}: YANKED,

		{BAT_ID, "charge"}:    CHARGE,
		{BAT_ID, "discharge"}: DISCHARGE,
		{BAT_ID, "v_drop"}:    YANKED,

		{CHARGE, "ch_drop"}: YANKED,
		{CHARGE, "pause"}:   CHARGE_PAUSE,
		{CHARGE, "ch_done"}: CHARGED,

		{CHARGE_PAUSE, "resume"}:        CHARGE,
		{CHARGE_PAUSE, "reset_metrics"}: BAT_ID,
		{CHARGE_PAUSE, "v_drop"}:        YANKED,

		{CHARGED, "reset_metrics"}: BAT_ID,
		{CHARGED, "v_drop"}:        YANKED,

		{DISCHARGE, "dch_drop"}: YANKED,
		{DISCHARGE, "pause"}:    DISCHARGE_PAUSE,
		{DISCHARGE, "dch_done"}: DISCHARGED,

		{DISCHARGE_PAUSE, "resume"}:        DISCHARGE,
		{DISCHARGE_PAUSE, "reset_metrics"}: BAT_ID,
		{DISCHARGE_PAUSE, "v_drop"}:        YANKED,

		{DISCHARGED, "reset_metrics"}: BAT_ID,
		{DISCHARGED, "v_drop"}:        YANKED,

		{YANKED, "reset"}:  NOBAT,
		{YANKED, "v_jump"}: BAT_NOID,
	}
	to, ok := table[key{s, tag}]
	return to, ok
}
