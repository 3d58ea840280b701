// Package adc provides the sample source: per-channel voltage and
// current readings taken from an ADS1115-family ADC over I2C, serialised
// through the bus arbiter, plus a fake for tests.
package adc

import (
	"context"
	"time"

	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

// Reader is the sample source contract. A returned error means the
// reading could not be taken at all (I2C failure, bus hold exceeded);
// the caller is expected to raise a sampler fault and keep ticking.
type Reader interface {
	Read(ctx context.Context, channelID int, now time.Time) (domain.Sample, error)
}

// MuxInput selects one ADS1115 single-ended input.
type MuxInput uint16

const (
	MuxAIN0 MuxInput = 0x4000
	MuxAIN1 MuxInput = 0x5000
	MuxAIN2 MuxInput = 0x6000
	MuxAIN3 MuxInput = 0x7000
)

// Wiring maps one channel's three measurement points onto one ADS1115's
// inputs.
type Wiring struct {
	Addr     uint16
	VBattMux MuxInput
	IChMux   MuxInput
	IDchMux  MuxInput
}

// DefaultWiring returns placeholder wiring for channel idx (0-3): one
// ADS1115 per channel at a distinct address, using AIN0-AIN2.
func DefaultWiring(idx int) Wiring {
	return Wiring{
		Addr:     uint16(0x48 + idx),
		VBattMux: MuxAIN0,
		IChMux:   MuxAIN1,
		IDchMux:  MuxAIN2,
	}
}

// Calibration is the per-channel (adc_offset, adc_gain) pair applied to
// raw ADC counts before they become millivolts/milliamps. Gain is
// expressed in thousandths (1000 = unity).
type Calibration struct {
	VOffsetMV  int32
	VGainMilli int32
	IOffsetUA  int32
	IGainMilli int32
}

// DefaultCalibration is the identity calibration.
func DefaultCalibration() Calibration {
	return Calibration{VGainMilli: 1000, IGainMilli: 1000}
}

func applyV(raw int16, cal Calibration) int32 {
	mv := rawToMV(raw)
	return mv*cal.VGainMilli/1000 + cal.VOffsetMV
}

func applyI(raw int16, cal Calibration) int32 {
	ua := rawToUA(raw)
	scaled := ua*cal.IGainMilli/1000 + cal.IOffsetUA
	if scaled < 0 {
		return 0
	}
	return scaled / 1000
}

// rawToMV converts a 16-bit ADS1115 reading at the ±4.096V full-scale
// range to millivolts.
func rawToMV(raw int16) int32 {
	return int32(raw) * 4096 / 32768
}

// rawToUA converts the same raw reading to microamps across a shunt,
// assuming the analogue front-end has already scaled the shunt voltage
// into the same ±4.096V range at 1mV == 1mA (front-end gain is folded
// into Calibration.IGainMilli by the installer).
func rawToUA(raw int16) int32 {
	return rawToMV(raw) * 1000
}
