// Package switchio provides the switch sink: per-channel charge/discharge
// MOSFET control and monitor enable, with a real implementation backed by
// Linux GPIO character devices and a fake for tests.
package switchio

import (
	"github.com/fitzterra/battery-capacity-meter/internal/bcfsm"
)

// Driver is the switch sink contract. Set and SetMonitors must be
// idempotent and complete within 5ms; a failure is a hardware fault that
// forces the calling channel's BC-FSM to DISABLED.
type Driver interface {
	bcfsm.SwitchDriver
	Close() error
}

// Lines is the set of BCM GPIO line numbers for one channel's three
// outputs: charge MOSFET, discharge MOSFET, and monitor enable. Defaults
// are placeholders; real deployments set these from config.
type Lines struct {
	Charge      int
	Discharge   int
	MonitorEn   int
}

// DefaultLines returns placeholder line numbers for channel idx (0-3),
// spaced so four channels don't collide on one GPIO chip.
func DefaultLines(idx int) Lines {
	base := idx * 4
	return Lines{
		Charge:    base,
		Discharge: base + 1,
		MonitorEn: base + 2,
	}
}
