package rtc

import (
	"fmt"

	"github.com/jrockway/vfd-clock/control/hms"
)

func toBCD(x uint8) byte {
	return (x/10)<<4 | x%10
}

// fromBCD decodes a BCD byte, rejecting nibbles that aren't decimal digits.
func fromBCD(b byte) (uint8, bool) {
	hi, lo := b>>4, b&0x0f
	if hi > 9 || lo > 9 {
		return 0, false
	}
	return hi*10 + lo, true
}

// encodeTime returns the seconds, minutes, and hours registers for t.
func encodeTime(t hms.Time) [3]byte {
	return [3]byte{
		toBCD(t.Seconds), // clock-halt clear
		toBCD(t.Minutes),
		hour24 | toBCD(t.Hours),
	}
}

// decodeHours handles both hour register formats, since a chip set by something else may be in
// 12-hour mode.
func decodeHours(b byte) (uint8, bool) {
	if b&hour24 != 0 {
		return fromBCD(b & 0x3f)
	}
	h, ok := fromBCD(b & 0x1f)
	if !ok || h < 1 || h > 12 {
		return 0, false
	}
	h %= 12
	if b&hourPM != 0 {
		h += 12
	}
	return h, true
}

func decodeTime(buf [3]byte) (hms.Time, error) {
	s, ok := fromBCD(buf[0] &^ clockHalt)
	if !ok {
		return hms.Time{}, fmt.Errorf("bad seconds register %#02x", buf[0])
	}
	m, ok := fromBCD(buf[1] & 0x7f)
	if !ok {
		return hms.Time{}, fmt.Errorf("bad minutes register %#02x", buf[1])
	}
	h, ok := decodeHours(buf[2])
	if !ok {
		return hms.Time{}, fmt.Errorf("bad hours register %#02x", buf[2])
	}
	t := hms.Time{Hours: h, Minutes: m, Seconds: s}
	if !t.Valid() {
		return hms.Time{}, fmt.Errorf("time %v out of range", t)
	}
	return t, nil
}
