// Package brightness fades the display between a fixed set of brightness levels.
package brightness

import "github.com/jrockway/vfd-clock/control/timebase"

// Levels are the PWM duty values for each brightness step, dimmest first.
var Levels = [...]uint8{
	26,  // 10%
	51,  // 20%
	102, // 40%
	153, // 60%
	204, // 80%
	255, // 100%
}

const (
	// FadeDuration is how long a fade between two levels takes, in milliseconds.
	FadeDuration = 200
	// FadeStep is the minimum time between duty updates during a fade, in milliseconds.
	FadeStep = 10
)

// Fader tracks the brightness level and any fade in progress.  Timestamps are time base
// milliseconds.
type Fader struct {
	level   int
	current uint8
	start   uint8
	target  uint8
	fading  bool

	fadeStart  uint32
	lastUpdate uint32
}

// NewFader returns a Fader resting at level 0.
func NewFader() *Fader {
	d := Levels[0]
	return &Fader{current: d, start: d, target: d}
}

// Level returns the selected brightness step.
func (f *Fader) Level() int { return f.level }

// Current returns the duty the display should be driven at right now, display power aside.
func (f *Fader) Current() uint8 { return f.current }

// Target returns the duty of the selected level.
func (f *Fader) Target() uint8 { return f.target }

// Fading returns true while a fade is in progress.
func (f *Fader) Fading() bool { return f.fading }

// Cycle selects the next level, wrapping from the brightest back to the dimmest, and starts a
// fade to it from wherever the duty is now.  A cycle during a fade starts the new fade from the
// partially-faded duty.
func (f *Fader) Cycle(now uint32) {
	f.level = (f.level + 1) % len(Levels)
	f.start = f.current
	f.target = Levels[f.level]
	f.fading = true
	f.fadeStart = now
	f.lastUpdate = now
}

// Step advances a fade in progress.  It returns true if the current duty changed and should be
// written out.
func (f *Fader) Step(now uint32) bool {
	if !f.fading {
		return false
	}
	elapsed := timebase.Elapsed(now, f.fadeStart)
	if elapsed >= FadeDuration {
		f.current = f.target
		f.fading = false
		return true
	}
	if timebase.Elapsed(now, f.lastUpdate) < FadeStep {
		return false
	}
	f.current = Interpolate(f.start, f.target, elapsed)
	f.lastUpdate = now
	return true
}

// Interpolate returns the duty elapsed milliseconds into a linear fade from start to target,
// clamped to lie between the two.
func Interpolate(start, target uint8, elapsed uint32) uint8 {
	if elapsed >= FadeDuration {
		return target
	}
	s, t := int(start), int(target)
	v := s + (t-s)*int(elapsed)/FadeDuration
	lo, hi := s, t
	if lo > hi {
		lo, hi = hi, lo
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return uint8(v)
}
