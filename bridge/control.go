package bridge

import (
	"log/slog"
	"time"
)

// displayPower is the two-state (Awake/Dimmed) inactivity machine for the
// bridge's local display. It is independent of the connection and input state
// machines: any traffic at all counts as activity, and the first activity
// after a timeout-triggered blank restores the previously commanded
// brightness.
type displayPower struct {
	display Display
	logger  *slog.Logger

	brightness   Brightness // last explicitly commanded level
	timeout      time.Duration
	awake        bool
	lastActivity time.Time
}

func newDisplayPower(display Display, logger *slog.Logger, now time.Time) *displayPower {
	return &displayPower{
		display:      display,
		logger:       logger,
		brightness:   BrightnessOn,
		awake:        true,
		lastActivity: now,
	}
}

// setBrightness applies an explicitly commanded level. Repeating the current
// level while awake is a no-op.
func (p *displayPower) setBrightness(level Brightness, now time.Time) {
	p.lastActivity = now
	if p.awake && level == p.brightness {
		return
	}
	p.brightness = level
	p.awake = true
	p.apply(level)
}

// setTimeout sets the inactivity threshold. Zero disables blanking.
func (p *displayPower) setTimeout(d time.Duration, now time.Time) {
	p.timeout = d
	p.lastActivity = now
	p.logger.Info("display timeout set", "timeout", d)
}

// activity records traffic of any kind and wakes a dimmed display back to
// the prior brightness.
func (p *displayPower) activity(now time.Time) {
	p.lastActivity = now
	if !p.awake {
		p.awake = true
		p.apply(p.brightness)
	}
}

// tick checks the inactivity threshold; called periodically from the session
// run loop.
func (p *displayPower) tick(now time.Time) {
	if !p.awake || p.timeout <= 0 {
		return
	}
	if now.Sub(p.lastActivity) >= p.timeout {
		p.awake = false
		p.apply(BrightnessOff)
	}
}

func (p *displayPower) apply(level Brightness) {
	if p.display == nil {
		return
	}
	if err := p.display.SetBrightness(level); err != nil {
		p.logger.Warn("display brightness change failed", "level", level, "error", err)
	}
}

// decodeBrightness maps the wire byte to a coarse level: zero is off, the
// maximum is full on, anything between is dim.
func decodeBrightness(b byte) Brightness {
	switch b {
	case 0x00:
		return BrightnessOff
	case 0xFF:
		return BrightnessOn
	default:
		return BrightnessDim
	}
}

// decodeTimeout reads the 1-2 byte little-endian second count.
func decodeTimeout(payload []byte) time.Duration {
	secs := uint16(payload[0])
	if len(payload) > 1 {
		secs |= uint16(payload[1]) << 8
	}
	return time.Duration(secs) * time.Second
}
