// Package channel implements the Channel Supervisor: the per-channel
// binding of Sampler, Event Deriver, BC-FSM, Coulomb Integrator, and
// SoC-FSM, plus operator-command dispatch and telemetry emission.
package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/fitzterra/battery-capacity-meter/internal/bcfsm"
	"github.com/fitzterra/battery-capacity-meter/internal/config"
	"github.com/fitzterra/battery-capacity-meter/internal/coulomb"
	"github.com/fitzterra/battery-capacity-meter/internal/domain"
	"github.com/fitzterra/battery-capacity-meter/internal/eventderiver"
	"github.com/fitzterra/battery-capacity-meter/internal/socfsm"
	"github.com/fitzterra/battery-capacity-meter/internal/status"
	"github.com/fitzterra/battery-capacity-meter/internal/telemetry"
)

// maxConsecutiveFaults is how many sampler/bus faults in a row force the
// channel to DISABLED; below that, faults are reported but the channel
// keeps running, per the supervisor owning that decision.
const maxConsecutiveFaults = 3

// Channel binds one physical channel's full pipeline and serialises all
// access to it through a single goroutine's worth of channel selects —
// samples, operator commands, and rest-timer expiries are never handled
// concurrently with each other.
type Channel struct {
	id     int
	cfg    *config.Config
	bc     *bcfsm.BC
	soc    *socfsm.SoC
	deriv   *eventderiver.Deriver
	integ   *coulomb.Integrator
	router  *telemetry.Router
	tracker *status.Tracker

	lastVBattMV int32
	sampleTick  int
	faults      int

	restTimer *time.Timer
	restFired chan struct{}

	samples chan domain.Sample
	faultCh chan error
	ops     chan domain.OperatorEvent
}

// New wires one channel's components together. driver and idGen are
// passed to bcfsm.New directly so the caller controls hardware binding.
func New(id int, cfg *config.Config, driver bcfsm.SwitchDriver, idGen bcfsm.IDGenerator, router *telemetry.Router, maxGap time.Duration) *Channel {
	return &Channel{
		id:        id,
		cfg:       cfg,
		bc:        bcfsm.New(id, driver, idGen),
		soc:       socfsm.New(),
		deriv:     eventderiver.New(derivConfig(cfg)),
		integ:     coulomb.New(maxGap),
		router:    router,
		restFired: make(chan struct{}, 1),
		samples:   make(chan domain.Sample, 1),
		faultCh:   make(chan error, 1),
		ops:       make(chan domain.OperatorEvent, 8),
	}
}

func derivConfig(cfg *config.Config) eventderiver.Config {
	d := eventderiver.DefaultConfig()
	d.VFullMV = cfg.VFullMV()
	d.VEmptyMV = cfg.VEmptyMV()
	d.ITermChMA = cfg.ITermChMA()
	d.VJumpMV = cfg.VJumpMV()
	d.VDropMV = cfg.VDropMV()
	d.IEdgeMA = cfg.IEdgeMA()
	d.VJumpWindow = cfg.VJumpWindow()
	d.VDropWindow = cfg.VDropWindow()
	d.IEdgeWindow = cfg.IEdgeWindow()
	return d
}

// SetTracker wires a status.Tracker that this channel's state is
// reported to after every sample, operator command, fault, and rest
// expiry. Optional; a nil tracker (the default) disables reporting.
func (c *Channel) SetTracker(t *status.Tracker) { c.tracker = t }

// SubmitSample feeds one reading from this channel's Sampler. Safe to
// call from the Sampler's own goroutine.
func (c *Channel) SubmitSample(s domain.Sample) { c.samples <- s }

// SubmitFault feeds a sampler read failure.
func (c *Channel) SubmitFault(err error) { c.faultCh <- err }

// SubmitOperator feeds one operator command addressed to this channel.
func (c *Channel) SubmitOperator(ev domain.OperatorEvent) { c.ops <- ev }

// Run drains samples, operator commands, and rest-timer expiries until
// ctx is cancelled.
func (c *Channel) Run(ctx context.Context) {
	if _, err := c.bc.Step(ctx, bcfsm.Event{Tag: "init"}, time.Now()); err != nil {
		c.emitFault(domain.FaultSwitch, time.Now(), err.Error())
	}
	c.reportStatus()
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-c.samples:
			c.handleSample(ctx, s)
		case err := <-c.faultCh:
			c.handleSamplerFault(ctx, err)
		case ev := <-c.ops:
			c.dispatch(ctx, ev)
		case <-c.restFired:
			c.handleRestExpiry(ctx)
		}
		c.reportStatus()
	}
}

// reportStatus pushes a fresh snapshot of this channel's state to the
// status tracker, if one is wired. Called once per handled event from
// the supervisor's own goroutine, the same pattern the daemon's status
// tracker update follows for every other tick of ambient state.
func (c *Channel) reportStatus() {
	if c.tracker == nil {
		return
	}
	c.tracker.UpdateChannel(c.id, status.ChannelSnapshot{
		BCState:   c.bc.State().String(),
		SoCState:  c.soc.State().String(),
		NumCycles: c.soc.NumCycles(),
		MaxCycles: c.soc.MaxCycles(),
		BatteryID: c.bc.BatteryID(),
		Faults:    c.faults,
	})
}

func (c *Channel) handleSample(ctx context.Context, s domain.Sample) {
	c.faults = 0
	c.lastVBattMV = s.VBattMV
	c.integ.Integrate(s)

	isCharging := c.bc.State() == bcfsm.CHARGE
	isDischarging := c.bc.State() == bcfsm.DISCHARGE
	for _, ev := range c.deriv.Process(s, isCharging, isDischarging) {
		c.stepBC(ctx, bcfsm.Event{Tag: string(ev.Tag)})
	}

	c.sampleTick++
	decim := c.cfg.TelemetryDecimation()
	if decim <= 0 {
		decim = 1
	}
	if c.sampleTick%decim == 0 {
		c.router.Offer(domain.Record{
			ChannelID: c.id,
			Kind:      domain.KindSample,
			T:         time.Now(),
			Payload:   domain.SamplePayload{VMV: s.VBattMV, IChMA: s.IChMA, IDchMA: s.IDchMA},
		})
	}
}

func (c *Channel) handleSamplerFault(ctx context.Context, err error) {
	c.faults++
	c.emitFault(domain.FaultSampler, time.Now(), err.Error())
	if c.faults >= maxConsecutiveFaults {
		c.stepBC(ctx, bcfsm.Event{Tag: "disable"})
	}
}

func (c *Channel) dispatch(ctx context.Context, ev domain.OperatorEvent) {
	now := time.Now()
	switch ev.Tag {
	case domain.OpDisable, domain.OpInit, domain.OpGetID, domain.OpPause, domain.OpResume, domain.OpReset, domain.OpResetMetrics:
		c.stepBC(ctx, bcfsm.Event{Tag: string(ev.Tag)})

	case domain.OpSetID:
		c.stepBC(ctx, bcfsm.Event{Tag: string(ev.Tag), SetID: ev.BatteryID})

	case domain.OpCharge:
		if c.soc.State() != socfsm.Ready {
			c.emitCommandFault(now, "charge rejected, a SoC run is already active")
			return
		}
		outcome, err := c.soc.Start(c.bc.BatteryID(), c.cfg.MaxCycles(), c.bc.State(), now)
		if err != nil {
			c.emitCommandFault(now, err.Error())
			return
		}
		c.applySoCOutcome(ctx, outcome, now)

	case domain.OpDischarge:
		if c.soc.State() != socfsm.Ready {
			c.emitCommandFault(now, "discharge rejected, a SoC run is already active")
			return
		}
		c.stepBC(ctx, bcfsm.Event{Tag: "discharge"})

	case domain.OpCancel:
		c.applySoCOutcome(ctx, c.soc.HandleCancel(now), now)
		c.stopRestTimer()

	case domain.OpAck:
		c.soc.HandleAck()

	default:
		c.emitCommandFault(now, fmt.Sprintf("unrecognised operator command %q", ev.Tag))
	}
}

func (c *Channel) stepBC(ctx context.Context, ev bcfsm.Event) {
	now := time.Now()
	t, err := c.bc.Step(ctx, ev, now)
	if err != nil {
		c.emitFault(domain.FaultSwitch, now, err.Error())
	}
	if t == nil {
		return
	}
	c.applyBCTransition(ctx, *t, now)
}

func (c *Channel) applyBCTransition(ctx context.Context, t bcfsm.Transition, now time.Time) {
	switch {
	case t.ArmCharge:
		c.integ.Arm(coulomb.Charging, now)
	case t.ArmDischarge:
		c.integ.Arm(coulomb.Discharging, now)
	case t.SealCharge, t.SealDischarge:
		c.integ.Seal()
	}
	if t.ResetAccumulator {
		c.integ.Reset()
	}

	acc := c.integ.Snapshot()
	c.router.Offer(domain.Record{
		ChannelID: c.id,
		Kind:      domain.KindBCTransition,
		T:         now,
		Payload: domain.BCTransitionPayload{
			From:         t.From.String(),
			To:           t.To.String(),
			Event:        t.Event,
			BatteryID:    t.BatteryID,
			MAhCharge:    acc.ChargeMAh,
			MAhDischarge: acc.DischargeMAh,
		},
	})
	if t.Forced {
		c.emitFault(domain.FaultSwitch, now, fmt.Sprintf("channel %d forced DISABLED on %s", c.id, t.Event))
	}

	outcome := c.soc.ObserveBC(t.To, now, acc, c.lastVBattMV, c.bc.ChargeStartedAt(), c.bc.DischargeStartedAt())
	c.applySoCOutcome(ctx, outcome, now)
}

func (c *Channel) applySoCOutcome(ctx context.Context, o socfsm.Outcome, now time.Time) {
	if o.Transition != nil {
		c.router.Offer(domain.Record{ChannelID: c.id, Kind: domain.KindSoCTransition, T: now, Payload: *o.Transition})
	}
	if o.Result != nil {
		c.router.Offer(domain.Record{ChannelID: c.id, Kind: domain.KindSoCResult, T: now, Payload: *o.Result})
	}
	if o.StartRestTimer {
		c.startRestTimer()
	}
	for _, cmd := range o.Commands {
		c.stepBC(ctx, cmd)
	}
}

func (c *Channel) startRestTimer() {
	c.stopRestTimer()
	c.restTimer = time.AfterFunc(c.cfg.RestDuration(), func() {
		select {
		case c.restFired <- struct{}{}:
		default:
		}
	})
}

func (c *Channel) stopRestTimer() {
	if c.restTimer != nil {
		c.restTimer.Stop()
		c.restTimer = nil
	}
}

func (c *Channel) handleRestExpiry(ctx context.Context) {
	now := time.Now()
	outcome := c.soc.OnRestTimerExpired(now, c.lastVBattMV)
	c.applySoCOutcome(ctx, outcome, now)
}

func (c *Channel) emitFault(kind domain.FaultKind, now time.Time, detail string) {
	c.router.Offer(domain.Record{
		ChannelID: c.id,
		Kind:      domain.KindFault,
		T:         now,
		Payload:   domain.FaultPayload{Kind: kind, Detail: detail},
	})
}

func (c *Channel) emitCommandFault(now time.Time, detail string) {
	c.emitFault(domain.FaultCommand, now, detail)
}
