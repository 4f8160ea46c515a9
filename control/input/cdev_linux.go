//go:build linux

package input

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/conn/v3/gpio"
)

// CdevButton is a button read through the GPIO character device.  The kernel delivers edges to
// a handler instead of us waiting for them.
type CdevButton struct {
	line *gpiocdev.Line
}

// OpenCdevButton requests line offset on chip (e.g. "gpiochip0") as a pulled-up button and
// calls onPress from the kernel event goroutine for each falling edge.  onPress must not block.
func OpenCdevButton(chip string, offset int, onPress func()) (*CdevButton, error) {
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { onPress() }),
	)
	if err != nil {
		return nil, fmt.Errorf("request %s line %d: %w", chip, offset, err)
	}
	return &CdevButton{line: l}, nil
}

// Read implements LevelPin.  A line that can't be read reads as released.
func (b *CdevButton) Read() gpio.Level {
	v, err := b.line.Value()
	if err != nil || v != 0 {
		return gpio.High
	}
	return gpio.Low
}

// Close releases the line.
func (b *CdevButton) Close() error {
	return b.line.Close()
}
