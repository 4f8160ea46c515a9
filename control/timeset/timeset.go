// Package timeset implements setting the clock with the up and down buttons: tap to step one
// minute, hold to step faster, and leave it alone for a few seconds to go back to showing time.
//
// All timestamps are time base milliseconds.
package timeset

import "github.com/jrockway/vfd-clock/control/timebase"

const (
	// DebounceWindow is how long after an accepted edge further edges on the same button are
	// ignored.
	DebounceWindow = 50

	// ModerateAfter and FastAfter are how long a button must be held to reach each tier.
	ModerateAfter = 500
	FastAfter     = 2000

	// RepeatInterval is how often a held button steps the time.
	RepeatInterval = 250

	// IdleExit is how long a session lasts with no buttons held and no adjustments.
	IdleExit = 5000
)

// Button identifies an adjustment button.
type Button int

const (
	None Button = iota
	Up
	Down
)

func (b Button) String() string {
	switch b {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "none"
	}
}

func (b Button) direction() int {
	switch b {
	case Up:
		return 1
	case Down:
		return -1
	default:
		return 0
	}
}

// Tier is how fast a held button adjusts the time.
type Tier int

const (
	Slow     Tier = iota // no repeat; only the initial step
	Moderate             // 1 minute per repeat
	Fast                 // 5 minutes per repeat
)

func (t Tier) step() int {
	switch t {
	case Moderate:
		return 1
	case Fast:
		return 5
	default:
		return 0
	}
}

// Debouncer drops edges that follow an accepted edge too closely.
type Debouncer struct {
	last uint32
	seen bool
}

// Accept returns true if an edge at now should be acted on.
func (d *Debouncer) Accept(now uint32) bool {
	if d.seen && timebase.Elapsed(now, d.last) < DebounceWindow {
		return false
	}
	d.last, d.seen = now, true
	return true
}

// Session is the time-setting state machine.  The zero value is an idle clock.
type Session struct {
	active bool
	held   Button
	tier   Tier

	pressStart   uint32
	lastActivity uint32
	lastRepeat   uint32
}

// Active returns true while the time is being set.
func (s *Session) Active() bool { return s.active }

// Held returns the button currently held down, if any.
func (s *Session) Held() Button { return s.held }

// Tier returns how fast the held button is adjusting the time.
func (s *Session) Tier() Tier { return s.tier }

// Press handles an accepted press of b.  It returns whether the press started a new session,
// and how many minutes to adjust the time by.  A press while another button is held starts a
// session if needed but doesn't adjust anything.
func (s *Session) Press(b Button, now uint32) (started bool, minutes int) {
	if !s.active {
		s.active = true
		s.tier = Slow
		started = true
	}
	if s.held != None || b == None {
		return started, 0
	}
	s.held = b
	s.pressStart = now
	s.lastActivity = now
	s.lastRepeat = now
	return started, b.direction()
}

// Hold is called on every loop pass.  While a button is held, it escalates the tier with the
// hold duration and, every RepeatInterval, returns a number of minutes to adjust the time by.
func (s *Session) Hold(now uint32) (minutes int) {
	if !s.active || s.held == None {
		return 0
	}
	held := timebase.Elapsed(now, s.pressStart)
	switch {
	case held >= FastAfter:
		s.tier = Fast
	case held >= ModerateAfter:
		s.tier = Moderate
	default:
		s.tier = Slow
	}
	if timebase.Elapsed(now, s.lastRepeat) < RepeatInterval {
		return 0
	}
	s.lastRepeat = now
	step := s.tier.step()
	if step == 0 {
		return 0
	}
	s.lastActivity = now
	return step * s.held.direction()
}

// Release clears the held button.
func (s *Session) Release(now uint32) {
	if s.held == None {
		return
	}
	s.held = None
	s.tier = Slow
	s.lastActivity = now
}

// Expire ends the session if no button is held and nothing has happened for IdleExit.  It
// returns true if the session ended.
func (s *Session) Expire(now uint32) bool {
	if !s.active || s.held != None {
		return false
	}
	if timebase.Elapsed(now, s.lastActivity) < IdleExit {
		return false
	}
	s.active = false
	return true
}
