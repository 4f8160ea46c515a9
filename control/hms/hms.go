// Package hms is the clock's notion of wall time: hours, minutes, and seconds with no date.
package hms

import "fmt"

// Time is a time of day in 24-hour form.  The zero value is midnight.
type Time struct {
	Hours   uint8 // 0-23
	Minutes uint8 // 0-59
	Seconds uint8 // 0-59
}

var (
	// Fallback is displayed when the RTC can't be read.
	Fallback = Time{Hours: 12, Minutes: 12}

	// Sentinel is written to an RTC that reports its oscillator halted, and read back to
	// confirm the device is working.
	Sentinel = Time{Hours: 11, Minutes: 11}
)

const minutesPerDay = 24 * 60

// Valid returns true if every field is in range.
func (t Time) Valid() bool {
	return t.Hours < 24 && t.Minutes < 60 && t.Seconds < 60
}

// AddMinutes returns t moved by delta minutes, carrying into the hour and wrapping around the
// day in either direction.  Seconds are left alone.
func (t Time) AddMinutes(delta int) Time {
	m := (int(t.Hours)*60 + int(t.Minutes) + delta) % minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return Time{Hours: uint8(m / 60), Minutes: uint8(m % 60), Seconds: t.Seconds}
}

// AddSecond returns t advanced by one second.
func (t Time) AddSecond() Time {
	if t.Seconds < 59 {
		t.Seconds++
		return t
	}
	t.Seconds = 0
	return t.AddMinutes(1)
}

// Hours12 returns the hour in 12-hour form, 1 through 12.
func (t Time) Hours12() uint8 {
	switch {
	case t.Hours == 0:
		return 12
	case t.Hours > 12:
		return t.Hours - 12
	default:
		return t.Hours
	}
}

func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hours, t.Minutes, t.Seconds)
}
