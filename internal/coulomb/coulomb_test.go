package coulomb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

func sampleAt(usFromZero int64, vMV, iCh, iDch int32) domain.Sample {
	return domain.Sample{TMonoUS: usFromZero, VBattMV: vMV, IChMA: iCh, IDchMA: iDch}
}

// TestIntegrateTrapezoidal checks the accumulated charge (trapezoidal)
// and energy (instantaneous) against hand-computed results for two
// samples one second apart at a constant voltage and a current ramp.
func TestIntegrateTrapezoidal(t *testing.T) {
	it := New(5 * time.Second)
	it.Arm(Charging, time.Now())

	it.Integrate(sampleAt(0, 4000, 1000, 0))
	it.Integrate(sampleAt(1_000_000, 4000, 2000, 0))

	acc := it.Snapshot()
	// dt = 1h/3600, avg current = 1500mA -> dqMAh = 1500/3600
	wantMAh := 1500.0 / 3600.0
	assert.InDelta(t, wantMAh, acc.ChargeMAh, 1e-9)
	// instantaneous power = 4000mV*2000mA/1000 = 8000mW -> dEMWh = 8000/3600
	wantMWh := 8000.0 / 3600.0
	assert.InDelta(t, wantMWh, acc.ChargeMWh, 1e-9)
	assert.Zero(t, acc.DischargeMAh)
}

// TestIntegrateDropsNegativeCurrent leaves the accumulator and the
// reference sample untouched on a sample carrying a negative current
// reading (a bad ADC read): the following good sample still integrates
// against the last good sample, bridging across the dropped one as if it
// never arrived.
func TestIntegrateDropsNegativeCurrent(t *testing.T) {
	it := New(5 * time.Second)
	it.Arm(Charging, time.Now())

	it.Integrate(sampleAt(0, 4000, 1000, 0))
	before := it.Snapshot()

	it.Integrate(sampleAt(500_000, 4000, -5, 0))
	assert.Equal(t, before, it.Snapshot(), "a negative-current sample must not perturb the accumulator")

	it.Integrate(sampleAt(1_000_000, 4000, 1000, 0))
	acc := it.Snapshot()
	wantMAh := 1000.0 / 3600.0 // bridges the full 1s from t=0, dropped sample is invisible
	assert.InDelta(t, wantMAh, acc.ChargeMAh, 1e-9)
}

// TestIntegrateDropsOversizedGap ensures a gap larger than maxGap is not
// bridged: no charge is attributed across it, and the sample after the
// gap becomes the new reference point rather than accumulating against
// a stale prev.
func TestIntegrateDropsOversizedGap(t *testing.T) {
	it := New(2 * time.Second)
	it.Arm(Charging, time.Now())

	it.Integrate(sampleAt(0, 4000, 1000, 0))
	it.Integrate(sampleAt(10_000_000, 4000, 1000, 0)) // 10s gap, exceeds maxGap
	assert.Zero(t, it.Snapshot().ChargeMAh)

	it.Integrate(sampleAt(11_000_000, 4000, 1000, 0)) // 1s after the dropped sample
	acc := it.Snapshot()
	wantMAh := 1000.0 / 3600.0
	assert.InDelta(t, wantMAh, acc.ChargeMAh, 1e-9)
}

// TestIntegrateIgnoredWhenDisarmed confirms samples fed while no
// direction is armed leave the accumulator at zero.
func TestIntegrateIgnoredWhenDisarmed(t *testing.T) {
	it := New(5 * time.Second)
	it.Integrate(sampleAt(0, 4000, 1000, 0))
	it.Integrate(sampleAt(1_000_000, 4000, 1000, 0))
	assert.Equal(t, Accumulator{}, it.Snapshot())
	assert.Equal(t, None, it.Direction())
}

// TestSealPreservesTotalsResetZeroes checks the two ways a window ends:
// Seal keeps the accumulated totals for the caller to read later, Reset
// zeroes them outright.
func TestSealPreservesTotalsResetZeroes(t *testing.T) {
	it := New(5 * time.Second)
	it.Arm(Charging, time.Now())
	it.Integrate(sampleAt(0, 4000, 1000, 0))
	it.Integrate(sampleAt(1_000_000, 4000, 1000, 0))
	require.NotZero(t, it.Snapshot().ChargeMAh)

	it.Seal()
	assert.Equal(t, None, it.Direction())
	assert.NotZero(t, it.Snapshot().ChargeMAh, "seal must not clear accumulated totals")

	it.Reset()
	assert.Equal(t, Accumulator{}, it.Snapshot())
}

// TestArmSwitchesDirectionWithoutCarryingPrev checks that re-arming into
// the opposite direction starts a fresh window: a sample fed right after
// Arm never integrates against a sample from the prior direction.
func TestArmSwitchesDirectionWithoutCarryingPrev(t *testing.T) {
	it := New(5 * time.Second)
	it.Arm(Charging, time.Now())
	it.Integrate(sampleAt(0, 4000, 1000, 0))
	it.Integrate(sampleAt(1_000_000, 4000, 1000, 0))

	it.Arm(Discharging, time.Now())
	it.Integrate(sampleAt(2_000_000, 3000, 0, 800))
	assert.Zero(t, it.Snapshot().DischargeMAh, "first sample after Arm only seeds prev, it can't integrate alone")

	it.Integrate(sampleAt(3_000_000, 3000, 0, 800))
	assert.NotZero(t, it.Snapshot().DischargeMAh)
}
