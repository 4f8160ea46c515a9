// Package power turns the display on when someone is around and off when they leave.
package power

import "github.com/jrockway/vfd-clock/control/timebase"

const (
	// PollInterval is how often the motion sensor should be checked, in milliseconds.
	PollInterval = 100
	// IdleTimeout is how long the display stays on after the last motion, in milliseconds.
	IdleTimeout = 3 * 60 * 1000
)

// Change is what a poll did to the display.
type Change int

const (
	NoChange Change = iota
	TurnedOn
	TurnedOff
)

// Manager tracks whether the display is on.  The display starts off.
type Manager struct {
	on      bool
	timeout uint32
}

// On returns true if the display should be lit.
func (m *Manager) On() bool { return m.on }

// Timeout returns the time base millisecond at which the display turns off absent motion.
func (m *Manager) Timeout() uint32 { return m.timeout }

// ForceOn turns the display on as if motion had been seen.
func (m *Manager) ForceOn(now uint32) Change {
	m.timeout = now + IdleTimeout
	if m.on {
		return NoChange
	}
	m.on = true
	return TurnedOn
}

// Poll takes one motion sensor reading.  Motion keeps the display on for another IdleTimeout;
// no motion after the timeout turns it off.
func (m *Manager) Poll(now uint32, motion bool) Change {
	if motion {
		return m.ForceOn(now)
	}
	// Signed difference, so the comparison survives the counter wrapping.
	if m.on && int32(timebase.Elapsed(now, m.timeout)) >= 0 {
		m.on = false
		return TurnedOff
	}
	return NoChange
}
