// Package eventderiver converts a channel's raw sample stream into the
// discrete edge events BC-FSM consumes. It is
// stateless with respect to BC state except for ch_done/dch_done, which
// it is told about through the IsCharging/IsDischarging flags on each
// call — it never reads BC-FSM directly.
package eventderiver

import (
	"time"

	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

const ringWindow = 600 * time.Millisecond

// Deriver holds the short sample ring and per-tag debounce state for one
// channel.
type Deriver struct {
	cfg Config

	ring []domain.Sample

	lastVJump time.Duration
	lastVDrop time.Duration
	lastChJump time.Duration
	lastChDrop time.Duration
	lastDchJump time.Duration
	lastDchDrop time.Duration
	firedVJump bool
	firedVDrop bool
	firedChJump bool
	firedChDrop bool
	firedDchJump bool
	firedDchDrop bool

	chBelowSince  *time.Duration
	dchEmptySince *time.Duration

	firedChDone  bool
	firedDchDone bool
}

// New creates a Deriver for one channel.
func New(cfg Config) *Deriver {
	return &Deriver{cfg: cfg}
}

// Process evaluates the new sample against the ring and returns the edge
// events it produces, in the order current-edge
// events before voltage-edge events, done events last.
func (d *Deriver) Process(s domain.Sample, isCharging, isDischarging bool) []domain.EdgeEvent {
	d.push(s)

	var events []domain.EdgeEvent

	if d.checkChJump(s) {
		events = append(events, d.event(domain.ChJump, s))
	} else if d.checkChDrop(s) {
		events = append(events, d.event(domain.ChDrop, s))
	}

	if d.checkDchJump(s) {
		events = append(events, d.event(domain.DchJump, s))
	} else if d.checkDchDrop(s) {
		events = append(events, d.event(domain.DchDrop, s))
	}

	if d.checkVJump(s) {
		events = append(events, d.event(domain.VJump, s))
	} else if d.checkVDrop(s) {
		events = append(events, d.event(domain.VDrop, s))
	}

	if d.checkChDone(s, isCharging) {
		events = append(events, d.event(domain.ChDone, s))
	}
	if d.checkDchDone(s, isDischarging) {
		events = append(events, d.event(domain.DchDone, s))
	}

	return events
}

func (d *Deriver) event(tag domain.EdgeTag, s domain.Sample) domain.EdgeEvent {
	return domain.EdgeEvent{ChannelID: s.ChannelID, Tag: tag, Sample: s}
}

func (d *Deriver) push(s domain.Sample) {
	d.ring = append(d.ring, s)
	cutoff := s.Time() - ringWindow
	i := 0
	for ; i < len(d.ring); i++ {
		if d.ring[i].Time() >= cutoff {
			break
		}
	}
	d.ring = d.ring[i:]
}

func (d *Deriver) within(now time.Duration, window time.Duration) []domain.Sample {
	cutoff := now - window
	var out []domain.Sample
	for _, s := range d.ring {
		if s.Time() >= cutoff {
			out = append(out, s)
		}
	}
	return out
}

func minV(samples []domain.Sample) int32 {
	m := samples[0].VBattMV
	for _, s := range samples[1:] {
		if s.VBattMV < m {
			m = s.VBattMV
		}
	}
	return m
}

func maxV(samples []domain.Sample) int32 {
	m := samples[0].VBattMV
	for _, s := range samples[1:] {
		if s.VBattMV > m {
			m = s.VBattMV
		}
	}
	return m
}

func minI(samples []domain.Sample, ch bool) int32 {
	m := pick(samples[0], ch)
	for _, s := range samples[1:] {
		v := pick(s, ch)
		if v < m {
			m = v
		}
	}
	return m
}

func maxI(samples []domain.Sample, ch bool) int32 {
	m := pick(samples[0], ch)
	for _, s := range samples[1:] {
		v := pick(s, ch)
		if v > m {
			m = v
		}
	}
	return m
}

func pick(s domain.Sample, ch bool) int32 {
	if ch {
		return s.IChMA
	}
	return s.IDchMA
}

func (d *Deriver) checkVJump(s domain.Sample) bool {
	if d.firedVJump && s.Time()-d.lastVJump < d.cfg.VJumpWindow {
		return false
	}
	win := d.within(s.Time(), d.cfg.VJumpWindow)
	if len(win) == 0 {
		return false
	}
	if s.VBattMV-minV(win) >= d.cfg.VJumpMV {
		d.firedVJump = true
		d.lastVJump = s.Time()
		return true
	}
	return false
}

func (d *Deriver) checkVDrop(s domain.Sample) bool {
	if d.firedVDrop && s.Time()-d.lastVDrop < d.cfg.VDropWindow {
		return false
	}
	win := d.within(s.Time(), d.cfg.VDropWindow)
	if len(win) == 0 {
		return false
	}
	if maxV(win)-s.VBattMV >= d.cfg.VDropMV {
		d.firedVDrop = true
		d.lastVDrop = s.Time()
		return true
	}
	return false
}

func (d *Deriver) checkChJump(s domain.Sample) bool {
	if d.firedChJump && s.Time()-d.lastChJump < d.cfg.IEdgeWindow {
		return false
	}
	win := d.within(s.Time(), d.cfg.IEdgeWindow)
	if len(win) == 0 {
		return false
	}
	if s.IChMA-minI(win, true) >= d.cfg.IEdgeMA {
		d.firedChJump = true
		d.lastChJump = s.Time()
		return true
	}
	return false
}

func (d *Deriver) checkChDrop(s domain.Sample) bool {
	if d.firedChDrop && s.Time()-d.lastChDrop < d.cfg.IEdgeWindow {
		return false
	}
	win := d.within(s.Time(), d.cfg.IEdgeWindow)
	if len(win) == 0 {
		return false
	}
	if maxI(win, true)-s.IChMA >= d.cfg.IEdgeMA {
		d.firedChDrop = true
		d.lastChDrop = s.Time()
		return true
	}
	return false
}

func (d *Deriver) checkDchJump(s domain.Sample) bool {
	if d.firedDchJump && s.Time()-d.lastDchJump < d.cfg.IEdgeWindow {
		return false
	}
	win := d.within(s.Time(), d.cfg.IEdgeWindow)
	if len(win) == 0 {
		return false
	}
	if s.IDchMA-minI(win, false) >= d.cfg.IEdgeMA {
		d.firedDchJump = true
		d.lastDchJump = s.Time()
		return true
	}
	return false
}

func (d *Deriver) checkDchDrop(s domain.Sample) bool {
	if d.firedDchDrop && s.Time()-d.lastDchDrop < d.cfg.IEdgeWindow {
		return false
	}
	win := d.within(s.Time(), d.cfg.IEdgeWindow)
	if len(win) == 0 {
		return false
	}
	if maxI(win, false)-s.IDchMA >= d.cfg.IEdgeMA {
		d.firedDchDrop = true
		d.lastDchDrop = s.Time()
		return true
	}
	return false
}

func (d *Deriver) checkChDone(s domain.Sample, isCharging bool) bool {
	if !isCharging {
		d.chBelowSince = nil
		d.firedChDone = false
		return false
	}
	if s.IChMA >= d.cfg.ITermChMA {
		d.chBelowSince = nil
		d.firedChDone = false
		return false
	}
	if d.chBelowSince == nil {
		t := s.Time()
		d.chBelowSince = &t
		return false
	}
	if s.VBattMV < d.cfg.VFullMV {
		return false
	}
	if d.firedChDone {
		return false
	}
	if s.Time()-*d.chBelowSince >= d.cfg.ChDoneSustain {
		d.firedChDone = true
		return true
	}
	return false
}

func (d *Deriver) checkDchDone(s domain.Sample, isDischarging bool) bool {
	if !isDischarging {
		d.dchEmptySince = nil
		d.firedDchDone = false
		return false
	}
	if s.VBattMV > d.cfg.VEmptyMV {
		d.dchEmptySince = nil
		d.firedDchDone = false
		return false
	}
	if d.dchEmptySince == nil {
		t := s.Time()
		d.dchEmptySince = &t
		return false
	}
	if d.firedDchDone {
		return false
	}
	if s.Time()-*d.dchEmptySince >= d.cfg.DchDoneSustain {
		d.firedDchDone = true
		return true
	}
	return false
}
