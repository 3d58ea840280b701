package adc

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/fitzterra/battery-capacity-meter/internal/bus"
	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

const (
	regConversion = 0x00
	regConfig     = 0x01

	// configBase sets single-shot mode, ±4.096V PGA, 128SPS, and leaves
	// the mux/start-conversion bits to be ORed in per reading.
	configBase uint16 = 0x0383
	configOS   uint16 = 0x8000 // start a single conversion
)

// Real reads all three measurement points for a channel from its
// ADS1115, one device transaction per point, inside a single bus-arbiter
// hold.
type Real struct {
	i2cBus  i2c.Bus
	arbiter *bus.Arbiter
	wiring  map[int]Wiring
	cal     map[int]Calibration
}

// NewReal wires a Real reader onto an already-opened I2C bus.
func NewReal(i2cBus i2c.Bus, arbiter *bus.Arbiter, wiring map[int]Wiring, cal map[int]Calibration) *Real {
	return &Real{i2cBus: i2cBus, arbiter: arbiter, wiring: wiring, cal: cal}
}

// Read takes one sample for channelID, retrying the whole transaction
// once before reporting an error.
func (r *Real) Read(ctx context.Context, channelID int, now time.Time) (domain.Sample, error) {
	var s domain.Sample
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		s, err = r.readOnce(ctx, channelID, now)
		if err == nil {
			return s, nil
		}
	}
	return domain.Sample{}, fmt.Errorf("adc: read channel %d: %w", channelID, err)
}

func (r *Real) readOnce(ctx context.Context, channelID int, now time.Time) (domain.Sample, error) {
	w, ok := r.wiring[channelID]
	if !ok {
		return domain.Sample{}, fmt.Errorf("adc: no wiring for channel %d", channelID)
	}
	cal := r.cal[channelID]

	dev := &i2c.Dev{Bus: r.i2cBus, Addr: w.Addr}

	var vRaw, iChRaw, iDchRaw int16
	err := r.arbiter.Do(ctx, channelID, func(_ context.Context) error {
		var err error
		if vRaw, err = convert(dev, w.VBattMux); err != nil {
			return err
		}
		if iChRaw, err = convert(dev, w.IChMux); err != nil {
			return err
		}
		if iDchRaw, err = convert(dev, w.IDchMux); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Sample{}, err
	}

	return domain.Sample{
		ChannelID: channelID,
		TMonoUS:   now.UnixMicro(),
		VBattMV:   applyV(vRaw, cal),
		IChMA:     applyI(iChRaw, cal),
		IDchMA:    applyI(iDchRaw, cal),
	}, nil
}

// convertSettle bounds a single-shot conversion at 128SPS (~7.8ms) with
// headroom; it does not poll the config register's OS bit for
// completion.
const convertSettle = 10 * time.Millisecond

// convert triggers a single-shot conversion on the given mux input and
// reads back the result.
func convert(dev *i2c.Dev, mux MuxInput) (int16, error) {
	cfg := configBase | configOS | uint16(mux)
	write := make([]byte, 3)
	write[0] = regConfig
	binary.BigEndian.PutUint16(write[1:], cfg)
	if err := dev.Tx(write, nil); err != nil {
		return 0, fmt.Errorf("adc: write config: %w", err)
	}

	time.Sleep(convertSettle)

	read := make([]byte, 2)
	if err := dev.Tx([]byte{regConversion}, read); err != nil {
		return 0, fmt.Errorf("adc: read conversion: %w", err)
	}
	return int16(binary.BigEndian.Uint16(read)), nil
}
