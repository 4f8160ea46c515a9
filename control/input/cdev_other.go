//go:build !linux

package input

import (
	"errors"

	"periph.io/x/conn/v3/gpio"
)

// CdevButton is not available on non-Linux platforms.
type CdevButton struct{}

// OpenCdevButton returns an error on non-Linux platforms.
func OpenCdevButton(chip string, offset int, onPress func()) (*CdevButton, error) {
	return nil, errors.New("gpio character device: not supported on this platform (requires Linux)")
}

func (b *CdevButton) Read() gpio.Level { return gpio.High }

func (b *CdevButton) Close() error { return nil }
