package brightness

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// DefaultFrequency is the PWM carrier for the display's brightness control.
const DefaultFrequency = 1 * physic.KiloHertz

// Pin is a PWM-capable output.  Any gpio.PinOut satisfies it.
type Pin interface {
	PWM(duty gpio.Duty, f physic.Frequency) error
}

// PWM writes 8-bit duty values to a pin.
type PWM struct {
	Pin       Pin
	Frequency physic.Frequency
}

// ToDuty scales an 8-bit duty to periph.io's fixed-point duty.
func ToDuty(d uint8) gpio.Duty {
	return gpio.Duty(int64(d) * int64(gpio.DutyMax) / 255)
}

// Write sets the output duty.  Zero turns the display off.
func (p *PWM) Write(d uint8) error {
	f := p.Frequency
	if f == 0 {
		f = DefaultFrequency
	}
	if err := p.Pin.PWM(ToDuty(d), f); err != nil {
		return fmt.Errorf("set pwm duty %d: %w", d, err)
	}
	return nil
}
