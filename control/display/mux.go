package display

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"periph.io/x/conn/v3/gpio"
)

const (
	// Phases is the number of steps in one multiplex cycle: four digits, then the separator.
	Phases = 5

	separatorPhase = 4

	// Word A is constant while a digit is lit; the separator phase uses it for the dots.
	wordADigit        = 0x001
	wordASeparatorOn  = 0x007
	wordASeparatorOff = 0x000

	// Word B carries segments in bits 0-6 and the one-hot grid select from bit 7.
	gridShift = 7

	// DefaultPeriod is the time spent on each phase.  A full cycle takes five of these.
	DefaultPeriod = time.Millisecond

	// LatchHold is how long the latch stays high.
	LatchHold = 5 * time.Microsecond
)

var droppedFramesCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "dropped_frames",
	Help: "count of multiplex frames that could not be sent to the shift registers",
})

// Frame is the pair of 16-bit words shifted out for one phase.
type Frame struct {
	A, B uint16
}

// EncodeFrame builds the frame for one phase of d.
func EncodeFrame(d Digits, phase int) Frame {
	if phase == separatorPhase {
		if d.Separator {
			return Frame{A: wordASeparatorOn}
		}
		return Frame{A: wordASeparatorOff}
	}
	return Frame{
		A: wordADigit,
		B: uint16(segments[d.D[phase]%10]&0x7f) | 1<<(gridShift+phase),
	}
}

// Bytes returns the frame in shift order: word A first, each word most-significant byte first.
func (f Frame) Bytes() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:], f.A)
	binary.BigEndian.PutUint16(buf[2:], f.B)
	return buf
}

// Conn shifts bytes out to the display.  periph.io's spi.Conn satisfies it.  Tx returns once
// the transfer is complete.
type Conn interface {
	Tx(w, r []byte) error
}

// Latch is the shift registers' load line.  Any gpio.PinOut satisfies it.
type Latch interface {
	Out(l gpio.Level) error
}

// Multiplexer lights one phase of the display at a time.  Render must only be called from one
// goroutine.
type Multiplexer struct {
	conn  Conn
	latch Latch
	board *Board
	phase int

	hold  time.Duration
	sleep func(time.Duration)
}

// NewMultiplexer returns a Multiplexer showing whatever is on board.
func NewMultiplexer(c Conn, latch Latch, board *Board) *Multiplexer {
	return &Multiplexer{conn: c, latch: latch, board: board, hold: LatchHold, sleep: time.Sleep}
}

// Phase returns the phase the next Render will draw.
func (m *Multiplexer) Phase() int {
	return m.phase
}

// Render sends the current phase and latches it.  The latch stays low while bits are shifted so
// the display keeps showing the previous frame until the new one is complete.  On failure the
// phase is not advanced, so the next call tries it again.
func (m *Multiplexer) Render() error {
	if err := m.load(EncodeFrame(m.board.Load(), m.phase)); err != nil {
		return fmt.Errorf("phase %d: %w", m.phase, err)
	}
	m.phase = (m.phase + 1) % Phases
	return nil
}

func (m *Multiplexer) load(f Frame) error {
	if err := m.latch.Out(gpio.Low); err != nil {
		droppedFramesCounter.Inc()
		return fmt.Errorf("lower latch: %w", err)
	}
	if err := m.conn.Tx(f.Bytes(), nil); err != nil {
		droppedFramesCounter.Inc()
		return fmt.Errorf("shift frame: %w", err)
	}
	if err := m.latch.Out(gpio.High); err != nil {
		droppedFramesCounter.Inc()
		return fmt.Errorf("raise latch: %w", err)
	}
	m.sleep(m.hold)
	if err := m.latch.Out(gpio.Low); err != nil {
		return fmt.Errorf("lower latch after load: %w", err)
	}
	return nil
}

// Blank loads an empty frame, turning every grid off.
func Blank(c Conn, latch Latch) error {
	m := &Multiplexer{conn: c, latch: latch, hold: LatchHold, sleep: time.Sleep}
	if err := m.load(Frame{}); err != nil {
		return fmt.Errorf("blank: %w", err)
	}
	return nil
}

// Run renders one phase every period until the context is cancelled.  Failed frames are counted
// and retried on the next tick; the first failure in a run of them is passed to onError, if set.
func (m *Multiplexer) Run(ctx context.Context, period time.Duration, onError func(error)) error {
	t := time.NewTicker(period)
	defer t.Stop()
	failing := false
	for {
		select {
		case <-t.C:
			err := m.Render()
			if err != nil && !failing && onError != nil {
				onError(err)
			}
			failing = err != nil
		case <-ctx.Done():
			return fmt.Errorf("multiplexer: %w", ctx.Err())
		}
	}
}
