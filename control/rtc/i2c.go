package rtc

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// BusTransport runs Transport primitives on a periph.io I2C bus.  The bus only does whole
// transactions, so written bytes are buffered until Stop, and each received byte is its own
// one-byte read; the chip's register pointer auto-increments between them.  Dev uses Tx instead,
// which reads everything in one transaction.
type BusTransport struct {
	Bus i2c.Bus

	addr uint16
	read bool
	open bool
	w    []byte
}

var errNoTransaction = errors.New("no transaction in progress")

func (b *BusTransport) Start(addr uint16, read bool) error {
	if b.open {
		return errors.New("transaction already in progress")
	}
	b.addr, b.read, b.open = addr, read, true
	b.w = b.w[:0]
	return nil
}

func (b *BusTransport) Send(x byte) error {
	if !b.open {
		return errNoTransaction
	}
	if b.read {
		return errors.New("write during read transaction")
	}
	b.w = append(b.w, x)
	return nil
}

func (b *BusTransport) Receive(ack bool) (byte, error) {
	if !b.open {
		return 0, errNoTransaction
	}
	if !b.read {
		return 0, errors.New("read during write transaction")
	}
	var r [1]byte
	if err := b.Bus.Tx(b.addr, nil, r[:]); err != nil {
		return 0, fmt.Errorf("i2c read: %w", err)
	}
	return r[0], nil
}

func (b *BusTransport) Stop() error {
	if !b.open {
		return nil
	}
	b.open = false
	if b.read || len(b.w) == 0 {
		return nil
	}
	if err := b.Bus.Tx(b.addr, b.w, nil); err != nil {
		return fmt.Errorf("i2c write: %w", err)
	}
	return nil
}

// Tx runs one bus transaction: w is written, then len(r) bytes are read after a repeated start.
func (b *BusTransport) Tx(addr uint16, w, r []byte) error {
	if b.open {
		return errors.New("transaction already in progress")
	}
	if err := b.Bus.Tx(addr, w, r); err != nil {
		return fmt.Errorf("i2c tx: %w", err)
	}
	return nil
}
