// Package coulomb implements trapezoidal charge and instantaneous energy
// integration, armed and disarmed by the owning channel in lock-step with
// BC-FSM transitions.
package coulomb

import (
	"math"
	"time"

	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

// Direction is which leg is currently being integrated. At most one is
// active at a time, mirroring the MOSFET mutual-exclusion invariant.
type Direction int

const (
	None Direction = iota
	Charging
	Discharging
)

// Accumulator is the measurement accumulator for one armed window.
type Accumulator struct {
	ChargeMAh       float64
	ChargeMWh       float64
	DischargeMAh    float64
	DischargeMWh    float64
	WindowStartedAt time.Time
}

// Integrator accumulates delivered/extracted charge and energy while
// armed. It is owned by the channel pipeline, not by BC-FSM: BC-FSM only
// reports Arm/Seal/Reset intent via its Transition values.
type Integrator struct {
	dir        Direction
	acc        Accumulator
	prev       *domain.Sample
	maxGap     time.Duration
}

// New creates an Integrator that drops samples separated by more than
// maxGap, rather than interpolate across a gap too large to trust.
func New(maxGap time.Duration) *Integrator {
	return &Integrator{maxGap: maxGap}
}

// Arm starts (or resumes) integration in the given direction. A fresh
// window is opened; prior accumulated totals are preserved so resuming
// from pause appends rather than restarts.
func (it *Integrator) Arm(dir Direction, now time.Time) {
	it.dir = dir
	it.acc.WindowStartedAt = now
	it.prev = nil
}

// Seal disarms integration, sealing the current partial window. The
// accumulated totals are left untouched.
func (it *Integrator) Seal() {
	it.dir = None
	it.prev = nil
}

// Reset zeroes the accumulator, used on reset_metrics.
func (it *Integrator) Reset() {
	it.acc = Accumulator{}
	it.prev = nil
}

// Direction reports the currently armed direction (None if disarmed).
func (it *Integrator) Direction() Direction { return it.dir }

// Snapshot returns a copy of the current accumulator.
func (it *Integrator) Snapshot() Accumulator { return it.acc }

// Integrate folds one sample into the accumulator if armed. Samples with
// negative current, non-finite readings, or a gap from the previous
// sample larger than maxGap are dropped without altering the
// accumulator.
func (it *Integrator) Integrate(s domain.Sample) {
	if it.dir == None {
		return
	}

	var i int32
	switch it.dir {
	case Charging:
		i = s.IChMA
	case Discharging:
		i = s.IDchMA
	}
	if i < 0 || s.VBattMV < 0 {
		return
	}

	if it.prev == nil {
		prev := s
		it.prev = &prev
		return
	}

	dt := s.Time() - it.prev.Time()
	if dt <= 0 || dt > it.maxGap {
		prev := s
		it.prev = &prev
		return
	}

	var iPrev int32
	switch it.dir {
	case Charging:
		iPrev = it.prev.IChMA
	case Discharging:
		iPrev = it.prev.IDchMA
	}

	dtH := dt.Hours()
	dqMAh := (float64(iPrev)+float64(i))/2.0*dtH
	powerMW := float64(s.VBattMV) * float64(i) / 1000.0
	dEMWh := powerMW * dtH

	if isNaNOrInf(dqMAh) || isNaNOrInf(dEMWh) {
		prev := s
		it.prev = &prev
		return
	}

	switch it.dir {
	case Charging:
		it.acc.ChargeMAh += dqMAh
		it.acc.ChargeMWh += dEMWh
	case Discharging:
		it.acc.DischargeMAh += dqMAh
		it.acc.DischargeMWh += dEMWh
	}

	prev := s
	it.prev = &prev
}

func isNaNOrInf(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}
