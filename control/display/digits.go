// Package display drives the clock's four-digit multiplexed VFD through a pair of shift registers.
package display

import (
	"sync/atomic"

	"github.com/jrockway/vfd-clock/control/hms"
)

// segments maps a decimal digit to its 7-segment pattern, segment A in bit 0 through G in bit 6.
var segments = [10]uint8{
	0x3f, // 0
	0x06, // 1
	0x5b, // 2
	0x4f, // 3
	0x66, // 4
	0x6d, // 5
	0x7d, // 6
	0x07, // 7
	0x7f, // 8
	0x6f, // 9
}

// Segments returns the segment pattern for digit d.
func Segments(d uint8) uint8 {
	return segments[d%10]
}

// Digits is what the display shows: hour tens, hour ones, minute tens, minute ones, and whether
// the separator between them is lit.
type Digits struct {
	D         [4]uint8
	Separator bool
}

// ToDigits renders t in 12-hour form.  The separator blinks with the seconds, on for even
// seconds, except while the time is being set, when it stays on.
func ToDigits(t hms.Time, setting bool) Digits {
	h := t.Hours12()
	return Digits{
		D:         [4]uint8{h / 10, h % 10, t.Minutes / 10, t.Minutes % 10},
		Separator: setting || t.Seconds%2 == 0,
	}
}

// Hours and Minutes read the time back off the digits.
func (d Digits) Hours() uint8   { return d.D[0]*10 + d.D[1] }
func (d Digits) Minutes() uint8 { return d.D[2]*10 + d.D[3] }

const separatorBit = 1 << 16

func (d Digits) pack() uint32 {
	var x uint32
	for i, v := range d.D {
		x |= uint32(v&0xf) << (4 * (3 - i))
	}
	if d.Separator {
		x |= separatorBit
	}
	return x
}

func unpack(x uint32) Digits {
	var d Digits
	for i := range d.D {
		d.D[i] = uint8(x>>(4*(3-i))) & 0xf
	}
	d.Separator = x&separatorBit != 0
	return d
}

// Board holds the digits currently being shown.  The whole set is stored as one word, so the
// multiplexer never sees half of an update.
type Board struct {
	v atomic.Uint32
}

// Store publishes a new set of digits.
func (b *Board) Store(d Digits) {
	b.v.Store(d.pack())
}

// Load returns the current digits.
func (b *Board) Load() Digits {
	return unpack(b.v.Load())
}
