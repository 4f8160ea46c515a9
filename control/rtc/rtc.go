// Package rtc keeps the clock's time in sync with a battery-backed DS1307-style timekeeping chip.
//
// The chip holds seconds, minutes, and hours in BCD starting at register 0.  Bit 7 of the seconds
// register is the clock-halt flag; the chip powers up with it set and the oscillator stopped.  On
// this board bit 6 of the hours register selects 24-hour mode, and bit 5 is the PM flag when it
// is clear.  We always persist 24-hour time with no PM flag; 12-hour rendering is the display's
// business.
package rtc

import (
	"errors"
	"fmt"
	"time"

	"github.com/jrockway/vfd-clock/control/hms"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Addr is the chip's 7-bit bus address.
const Addr = 0x68

const (
	regSeconds = 0x00

	clockHalt = 0x80
	hour24    = 0x40
	hourPM    = 0x20
)

const (
	// DefaultAttempts is how many times each transaction is tried before giving up.
	DefaultAttempts = 3
	// DefaultRetryDelay is how long to wait between attempts.
	DefaultRetryDelay = 10 * time.Millisecond
)

var (
	// ErrTransport is the error kind for any failure on the bus: a start, address, ack,
	// write, or read that didn't go through, or data that can't be a time.
	ErrTransport = errors.New("rtc transport failure")

	// ErrNotConfirmed is returned by Init when the sentinel time can't be read back.
	ErrNotConfirmed = errors.New("rtc did not confirm sentinel time")
)

var retriesCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rtc_retries",
	Help: "count of rtc transactions that were retried after a failure",
})

// Transport is a two-wire bus master, one primitive at a time.
type Transport interface {
	// Start issues a start condition and addresses the device for reading or writing.
	Start(addr uint16, read bool) error
	// Send writes one byte to the addressed device.
	Send(b byte) error
	// Receive reads one byte, acknowledging it if more bytes are to follow.
	Receive(ack bool) (byte, error)
	// Stop issues a stop condition, ending the transaction.
	Stop() error
}

// Dev is a timekeeping chip on a Transport.  It is not safe for concurrent use.
type Dev struct {
	t Transport

	Addr       uint16
	Attempts   int
	RetryDelay time.Duration

	sleep func(time.Duration)
}

// New returns a Dev at the default address with the default retry policy.
func New(t Transport) *Dev {
	return &Dev{
		t:          t,
		Addr:       Addr,
		Attempts:   DefaultAttempts,
		RetryDelay: DefaultRetryDelay,
		sleep:      time.Sleep,
	}
}

func transportErr(step string, err error) error {
	return fmt.Errorf("%s: %w: %w", step, ErrTransport, err)
}

// abort ends a failed transaction.  The stop is best-effort; the first failure is what gets
// reported.
func (d *Dev) abort(step string, err error) error {
	d.t.Stop() //nolint:errcheck
	return transportErr(step, err)
}

// Combined is a Transport that can also run a whole write-then-read exchange as one bus
// transaction.  The chip latches its time registers once per read transaction, so only a
// combined read of all three is guaranteed to be a time it actually held.
type Combined interface {
	Transport
	Tx(addr uint16, w, r []byte) error
}

// tx writes w in one transaction, then, if r is non-empty, reads len(r) bytes in a second one.
// A Combined transport does both in one.
func (d *Dev) tx(w, r []byte) error {
	if c, ok := d.t.(Combined); ok {
		if err := c.Tx(d.Addr, w, r); err != nil {
			return transportErr("transaction", err)
		}
		return nil
	}
	if len(w) > 0 {
		if err := d.t.Start(d.Addr, false); err != nil {
			return d.abort("start write", err)
		}
		for i, b := range w {
			if err := d.t.Send(b); err != nil {
				return d.abort(fmt.Sprintf("write byte %d", i), err)
			}
		}
		if err := d.t.Stop(); err != nil {
			return transportErr("stop write", err)
		}
	}
	if len(r) == 0 {
		return nil
	}
	if err := d.t.Start(d.Addr, true); err != nil {
		return d.abort("start read", err)
	}
	for i := range r {
		b, err := d.t.Receive(i < len(r)-1)
		if err != nil {
			return d.abort(fmt.Sprintf("read byte %d", i), err)
		}
		r[i] = b
	}
	if err := d.t.Stop(); err != nil {
		return transportErr("stop read", err)
	}
	return nil
}

// retry runs f until it succeeds or the attempts are used up.
func (d *Dev) retry(op string, f func() error) error {
	n := d.Attempts
	if n < 1 {
		n = 1
	}
	var err error
	for i := 0; i < n; i++ {
		if i > 0 {
			retriesCounter.Inc()
			if d.sleep != nil {
				d.sleep(d.RetryDelay)
			}
		}
		if err = f(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%s: %d attempts: %w", op, n, err)
}

// ReadTime reads the current time from the chip.
func (d *Dev) ReadTime() (hms.Time, error) {
	var result hms.Time
	err := d.retry("read time", func() error {
		var buf [3]byte
		if err := d.tx([]byte{regSeconds}, buf[:]); err != nil {
			return err
		}
		t, err := decodeTime(buf)
		if err != nil {
			return transportErr("decode", err)
		}
		result = t
		return nil
	})
	if err != nil {
		return hms.Time{}, err
	}
	return result, nil
}

// WriteTime sets the chip's time, clearing the clock-halt flag.
func (d *Dev) WriteTime(t hms.Time) error {
	if !t.Valid() {
		return fmt.Errorf("write time: %w: %v is out of range", ErrTransport, t)
	}
	buf := encodeTime(t)
	return d.retry("write time", func() error {
		return d.tx([]byte{regSeconds, buf[0], buf[1], buf[2]}, nil)
	})
}

// halted reports whether the chip's oscillator is stopped.
func (d *Dev) halted() (bool, error) {
	var buf [1]byte
	if err := d.retry("read clock-halt", func() error {
		return d.tx([]byte{regSeconds}, buf[:])
	}); err != nil {
		return false, err
	}
	return buf[0]&clockHalt != 0, nil
}

// Init checks whether the chip has ever been set.  A halted chip gets the sentinel time written
// to it and read back; initialized is true only if that round trip worked, in which case the
// chip now holds hms.Sentinel.  A chip that was already running is left alone.
func (d *Dev) Init() (initialized bool, err error) {
	halted, err := d.halted()
	if err != nil {
		return false, fmt.Errorf("init: %w", err)
	}
	if !halted {
		return false, nil
	}
	if err := d.WriteTime(hms.Sentinel); err != nil {
		return false, fmt.Errorf("init: %w: %w", ErrNotConfirmed, err)
	}
	got, err := d.ReadTime()
	if err != nil {
		return false, fmt.Errorf("init: %w: %w", ErrNotConfirmed, err)
	}
	if got != hms.Sentinel {
		return false, fmt.Errorf("init: %w: read back %v", ErrNotConfirmed, got)
	}
	return true, nil
}
