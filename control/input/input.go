// Package input watches the clock's buttons and motion sensor.
package input

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// edgeWait bounds each wait for an edge, so that cancellation is noticed.
const edgeWait = 100 * time.Millisecond

// EdgePin is a pin that can wait for an edge.  gpio.PinIn satisfies it.
type EdgePin interface {
	WaitForEdge(timeout time.Duration) bool
}

// Watch calls fn for each edge seen on p until the context is cancelled.  fn runs on Watch's
// goroutine and must not block.
func Watch(ctx context.Context, p EdgePin, fn func()) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("watch edges: %w", err)
		}
		if p.WaitForEdge(edgeWait) {
			fn()
		}
	}
}

// LevelPin is a pin that can be read.  gpio.PinIn satisfies it.
type LevelPin interface {
	Read() gpio.Level
}

// Line is a digital input with a polarity.
type Line struct {
	Pin       LevelPin
	ActiveLow bool
}

// Asserted returns true if the input is in its active state: a button pressed, or motion seen.
func (l Line) Asserted() bool {
	return (l.Pin.Read() == gpio.High) != l.ActiveLow
}

// SetupButton configures a momentary button wired to ground: pulled up, interrupting on the
// falling edge when it is pressed.
func SetupButton(p gpio.PinIn) (Line, error) {
	if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return Line{}, fmt.Errorf("setup button %s: %w", p, err)
	}
	return Line{Pin: p, ActiveLow: true}, nil
}

// SetupSensor configures an active-high level input such as a PIR sensor.
func SetupSensor(p gpio.PinIn) (Line, error) {
	if err := p.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return Line{}, fmt.Errorf("setup sensor %s: %w", p, err)
	}
	return Line{Pin: p}, nil
}
