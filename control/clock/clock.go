// Package clock is the clock's scheduler: it owns the time, brightness, display power, and
// time-setting state, and runs the loop that ties the hardware together.
//
// Button handlers run on their own goroutines.  They only debounce and queue what was pressed;
// everything else, including every RTC transaction, happens on the loop goroutine.  The loop
// shares exactly two things with the rest of the program: the time base counter, and the
// display.Board the multiplexer reads from.
package clock

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/jrockway/vfd-clock/control/brightness"
	"github.com/jrockway/vfd-clock/control/display"
	"github.com/jrockway/vfd-clock/control/hms"
	"github.com/jrockway/vfd-clock/control/power"
	"github.com/jrockway/vfd-clock/control/timebase"
	"github.com/jrockway/vfd-clock/control/timeset"
	"golang.org/x/net/trace"
)

const (
	// LoopPeriod is how often Run polls.
	LoopPeriod = time.Millisecond

	// RefreshInterval is how often the time is re-read from the RTC, in milliseconds.
	RefreshInterval = 500

	// intentQueue is how many presses may be waiting for the loop.
	intentQueue = 16
)

// RTC is the external timekeeper.  *rtc.Dev satisfies it.
type RTC interface {
	Init() (initialized bool, err error)
	ReadTime() (hms.Time, error)
	WriteTime(hms.Time) error
}

// DutyWriter drives display brightness.  *brightness.PWM satisfies it.
type DutyWriter interface {
	Write(duty uint8) error
}

// Sensor is a digital input.  input.Line satisfies it.
type Sensor interface {
	Asserted() bool
}

// Hardware is what the clock is wired to.
type Hardware struct {
	RTC        RTC
	Brightness DutyWriter
	Motion     Sensor
	Up, Down   Sensor // read to detect release; presses arrive through PressUp and PressDown
}

type intentKind int

const (
	intentUp intentKind = iota
	intentDown
	intentBrightness
)

type intent struct {
	kind intentKind
	at   uint32
}

// Clock is the state of the whole appliance.
type Clock struct {
	// Shared.
	base    *timebase.Counter
	board   *display.Board
	intents chan intent
	duty    atomic.Uint32 // last duty written, for the preview

	// Each owned by the goroutine handling that button.
	upDebounce, downDebounce, brightDebounce timeset.Debouncer

	// Owned by the loop.
	hw         Hardware
	now        hms.Time
	synced     bool   // the last RTC read worked
	lastSecond uint32 // when now was last known correct to the second
	lastRead   uint32
	lastPIR    uint32
	fader      *brightness.Fader
	power      power.Manager
	session    timeset.Session
	events     trace.EventLog
}

// New returns a Clock.  Call Start before the first Poll.
func New(base *timebase.Counter, board *display.Board, hw Hardware) *Clock {
	return &Clock{
		base:    base,
		board:   board,
		intents: make(chan intent, intentQueue),
		hw:      hw,
		fader:   brightness.NewFader(),
		events:  trace.NewEventLog("clock", "loop"),
	}
}

// Close releases the clock's event log.
func (c *Clock) Close() {
	c.events.Finish()
}

// Start blanks the display and syncs with the RTC.  A chip that has never been set gets the
// sentinel time; a chip that can't be read leaves the clock at hms.Fallback.  Nothing here
// fails; the clock runs either way.
func (c *Clock) Start() {
	now := c.base.Now()
	c.writeDuty()

	initialized, err := c.hw.RTC.Init()
	if err != nil {
		rtcErrorsCounter.WithLabelValues("init").Inc()
		log.Printf("rtc init: %v", err)
		c.events.Errorf("rtc init: %v", err)
		c.now = hms.Fallback
	}
	if initialized {
		log.Printf("rtc was halted; set to %v", hms.Sentinel)
		c.now = hms.Sentinel
		c.synced = true
	} else if t, err := c.hw.RTC.ReadTime(); err != nil {
		rtcErrorsCounter.WithLabelValues("read").Inc()
		log.Printf("rtc read: %v; using %v", err, hms.Fallback)
		c.events.Errorf("rtc read at startup: %v", err)
		c.now = hms.Fallback
	} else {
		c.now = t
		c.synced = true
	}
	c.lastSecond, c.lastRead, c.lastPIR = now, now, now
	c.publish()
}

// PressUp, PressDown, and PressBrightness are the button handlers.  They are safe to call from
// any goroutine, one goroutine per button, and never block.
func (c *Clock) PressUp() { c.press(&c.upDebounce, intentUp, "up") }

func (c *Clock) PressDown() { c.press(&c.downDebounce, intentDown, "down") }

func (c *Clock) PressBrightness() { c.press(&c.brightDebounce, intentBrightness, "brightness") }

func (c *Clock) press(d *timeset.Debouncer, kind intentKind, name string) {
	now := c.base.Now()
	if !d.Accept(now) {
		return
	}
	buttonPressesCounter.WithLabelValues(name).Inc()
	select {
	case c.intents <- intent{kind: kind, at: now}:
	default:
		droppedIntentsCounter.Inc()
	}
}

// Poll runs one pass of the loop.  It must only be called from one goroutine.
func (c *Clock) Poll() {
	now := c.base.Now()
	c.drain(now)

	if c.fader.Step(now) {
		c.writeDuty()
	}

	if timebase.Elapsed(now, c.lastPIR) >= power.PollInterval {
		c.lastPIR = now
		c.checkMotion(now)
	}

	if timebase.Elapsed(now, c.lastRead) >= RefreshInterval {
		c.lastRead = now
		if !c.session.Active() {
			c.refresh(now)
		}
	}
	if c.session.Active() {
		// Seconds stand still while the time is being set.
		c.lastSecond = now
	} else {
		c.freeRun(now)
	}

	if m := c.session.Hold(now); m != 0 {
		c.adjust(m)
	}
	if c.session.Expire(now) {
		c.events.Printf("time setting finished at %v", c.now)
		c.publish()
	}
	c.checkRelease(now)
}

// Run polls every LoopPeriod until the context is cancelled.
func (c *Clock) Run(ctx context.Context) error {
	t := time.NewTicker(LoopPeriod)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			start := time.Now()
			c.Poll()
			loopDurationMetric.Observe(float64(time.Since(start).Nanoseconds()))
		case <-ctx.Done():
			return fmt.Errorf("clock loop: %w", ctx.Err())
		}
	}
}

func (c *Clock) drain(now uint32) {
	for {
		select {
		case in := <-c.intents:
			c.handle(in, now)
		default:
			return
		}
	}
}

func (c *Clock) handle(in intent, now uint32) {
	switch in.kind {
	case intentBrightness:
		c.fader.Cycle(now)
		if c.power.ForceOn(now) == power.TurnedOn {
			displayOnGauge.Set(1)
		}
		c.writeDuty()
	case intentUp, intentDown:
		b := timeset.Up
		if in.kind == intentDown {
			b = timeset.Down
		}
		// A press stamped after this pass read the time base would look like it was
		// held for the whole wrap of the counter.
		at := in.at
		if int32(timebase.Elapsed(now, at)) < 0 {
			at = now
		}
		started, minutes := c.session.Press(b, at)
		if started {
			c.now.Seconds = 0
			c.events.Printf("time setting started at %v", c.now)
		}
		if minutes != 0 {
			c.adjust(minutes)
		} else if started {
			c.publish()
		}
	}
}

// adjust moves the time and writes it through to the RTC.  The displayed time changes even if
// the write fails.
func (c *Clock) adjust(minutes int) {
	c.now = c.now.AddMinutes(minutes)
	if err := c.hw.RTC.WriteTime(c.now); err != nil {
		rtcErrorsCounter.WithLabelValues("write").Inc()
		c.events.Errorf("write %v: %v", c.now, err)
	}
	c.lastSecond = c.base.Now()
	c.publish()
}

func (c *Clock) refresh(now uint32) {
	t, err := c.hw.RTC.ReadTime()
	if err != nil {
		rtcErrorsCounter.WithLabelValues("read").Inc()
		if c.synced {
			log.Printf("rtc read failed; keeping time from the time base: %v", err)
		}
		c.events.Errorf("rtc read: %v", err)
		c.synced = false
		return
	}
	if !c.synced {
		log.Printf("rtc read ok again: %v", t)
	}
	c.synced = true
	c.now = t
	c.lastSecond = now
	c.publish()
}

// freeRun keeps the seconds moving while the RTC can't be read.
func (c *Clock) freeRun(now uint32) {
	if c.synced {
		return
	}
	for timebase.Elapsed(now, c.lastSecond) >= 1000 {
		c.lastSecond += 1000
		c.now = c.now.AddSecond()
		c.publish()
	}
}

func (c *Clock) checkMotion(now uint32) {
	switch c.power.Poll(now, c.hw.Motion.Asserted()) {
	case power.TurnedOn:
		displayOnGauge.Set(1)
		c.events.Printf("motion; display on")
		c.writeDuty()
	case power.TurnedOff:
		displayOnGauge.Set(0)
		c.events.Printf("idle; display off")
		c.writeDuty()
	}
}

func (c *Clock) checkRelease(now uint32) {
	var s Sensor
	switch c.session.Held() {
	case timeset.Up:
		s = c.hw.Up
	case timeset.Down:
		s = c.hw.Down
	default:
		return
	}
	if !s.Asserted() {
		c.session.Release(now)
	}
}

// writeDuty drives the display at the faded brightness, or at zero while it is off.
func (c *Clock) writeDuty() {
	var d uint8
	if c.power.On() {
		d = c.fader.Current()
	}
	c.duty.Store(uint32(d))
	brightnessDutyGauge.Set(float64(d))
	if err := c.hw.Brightness.Write(d); err != nil {
		c.events.Errorf("write brightness: %v", err)
	}
}

func (c *Clock) publish() {
	c.board.Store(display.ToDigits(c.now, c.session.Active()))
}

// Digits returns what the display is showing.  Safe to call from any goroutine.
func (c *Clock) Digits() display.Digits {
	return c.board.Load()
}

// Duty returns the brightness duty last written.  Safe to call from any goroutine.
func (c *Clock) Duty() uint8 {
	return uint8(c.duty.Load())
}

// The rest of the accessors read loop-owned state; call them only from the loop's goroutine.

// Time returns the clock's current idea of the time.
func (c *Clock) Time() hms.Time { return c.now }

// Setting returns true while the time is being set with the buttons.
func (c *Clock) Setting() bool { return c.session.Active() }

// DisplayOn returns true if the display is lit.
func (c *Clock) DisplayOn() bool { return c.power.On() }

// Level returns the selected brightness level.
func (c *Clock) Level() int { return c.fader.Level() }

// Synced returns true if the last RTC read worked.
func (c *Clock) Synced() bool { return c.synced }
