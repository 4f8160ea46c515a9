package rtc

import (
	"fmt"

	"golang.org/x/exp/io/i2c"
	"periph.io/x/conn/v3/physic"
)

// Device is an I2C device already bound to the chip's address.  *i2c.Device from
// golang.org/x/exp/io/i2c satisfies it.
type Device interface {
	Read(buf []byte) error
	Write(buf []byte) error
}

// devBus adapts a Device to the bus interface BusTransport drives.  The address was fixed when
// the device was opened, so the one passed to Tx is only checked.
type devBus struct {
	dev  Device
	addr uint16
}

func (b *devBus) String() string { return fmt.Sprintf("i2c-dev@%#x", b.addr) }

func (b *devBus) SetSpeed(physic.Frequency) error {
	return fmt.Errorf("%s: bus speed is set by the kernel", b)
}

func (b *devBus) Tx(addr uint16, w, r []byte) error {
	if addr != b.addr {
		return fmt.Errorf("%s: device opened for %#x, not %#x", b, b.addr, addr)
	}
	if len(w) > 0 {
		if err := b.dev.Write(w); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		return b.dev.Read(r)
	}
	return nil
}

// NewDeviceTransport returns a transport for d, a device opened at addr.
func NewDeviceTransport(d Device, addr uint16) *BusTransport {
	return &BusTransport{Bus: &devBus{dev: d, addr: addr}}
}

// OpenDevfs opens the chip on an i2c-dev character device such as /dev/i2c-1.
func OpenDevfs(path string) (*BusTransport, *i2c.Device, error) {
	d, err := i2c.Open(&i2c.Devfs{Dev: path}, int(Addr))
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewDeviceTransport(d, Addr), d, nil
}
