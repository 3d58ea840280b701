//go:build linux

package switchio

import (
	"context"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/fitzterra/battery-capacity-meter/internal/bcfsm"
)

// Real drives actual hardware using the Linux GPIO character device,
// one output line per channel per leg plus a monitor-enable line.
type Real struct {
	chip    *gpiocdev.Chip
	charge  map[int]*gpiocdev.Line
	dischg  map[int]*gpiocdev.Line
	monEn   map[int]*gpiocdev.Line
}

// NewReal opens gpiochip0 and requests the given lines as outputs,
// driven low (off) initially.
func NewReal(lines map[int]Lines) (*Real, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &Real{
		chip:   chip,
		charge: make(map[int]*gpiocdev.Line),
		dischg: make(map[int]*gpiocdev.Line),
		monEn:  make(map[int]*gpiocdev.Line),
	}

	for ch, l := range lines {
		cl, err := chip.RequestLine(l.Charge, gpiocdev.AsOutput(0))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request charge line for channel %d: %w", ch, err)
		}
		r.charge[ch] = cl

		dl, err := chip.RequestLine(l.Discharge, gpiocdev.AsOutput(0))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request discharge line for channel %d: %w", ch, err)
		}
		r.dischg[ch] = dl

		ml, err := chip.RequestLine(l.MonitorEn, gpiocdev.AsOutput(0))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request monitor-enable line for channel %d: %w", ch, err)
		}
		r.monEn[ch] = ml
	}

	return r, nil
}

// Set asserts or de-asserts the named leg's MOSFET for channel.
func (r *Real) Set(_ context.Context, channel int, leg bcfsm.Leg, on bool) error {
	var line *gpiocdev.Line
	switch leg {
	case bcfsm.LegCharge:
		line = r.charge[channel]
	case bcfsm.LegDischarge:
		line = r.dischg[channel]
	default:
		return fmt.Errorf("switchio: unknown leg %q", leg)
	}
	if line == nil {
		return fmt.Errorf("switchio: no line configured for channel %d leg %s", channel, leg)
	}
	return line.SetValue(boolToValue(on))
}

// SetMonitors enables or disables the channel's voltage/current monitor
// circuitry.
func (r *Real) SetMonitors(_ context.Context, channel int, enabled bool) error {
	line := r.monEn[channel]
	if line == nil {
		return fmt.Errorf("switchio: no monitor-enable line configured for channel %d", channel)
	}
	return line.SetValue(boolToValue(enabled))
}

// Close releases every requested line and the chip, driving all outputs
// low first so nothing is left energised.
func (r *Real) Close() error {
	var errs []error
	for _, l := range r.charge {
		_ = l.SetValue(0)
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, l := range r.dischg {
		_ = l.SetValue(0)
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, l := range r.monEn {
		_ = l.SetValue(0)
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("switchio: close errors: %v", errs)
	}
	return nil
}

func boolToValue(on bool) int {
	if on {
		return 1
	}
	return 0
}
