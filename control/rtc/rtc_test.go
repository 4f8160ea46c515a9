package rtc

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jrockway/vfd-clock/control/hms"
)

// fakeChip emulates the chip's registers behind the Transport primitives.
type fakeChip struct {
	regs     [8]byte
	ptr      byte
	read     bool
	pointer  bool // the next byte sent sets the register pointer
	readOnly bool // ignore register writes

	broken   bool // every primitive except Stop fails
	failNext int  // the next n primitives except Stop fail

	ops []string
}

var errBus = errors.New("nak")

func (c *fakeChip) fail() error {
	if c.broken {
		return errBus
	}
	if c.failNext > 0 {
		c.failNext--
		return errBus
	}
	return nil
}

func (c *fakeChip) Start(addr uint16, read bool) error {
	mode := "w"
	if read {
		mode = "r"
	}
	c.ops = append(c.ops, fmt.Sprintf("start %#x %s", addr, mode))
	if err := c.fail(); err != nil {
		return err
	}
	c.read = read
	c.pointer = !read
	return nil
}

func (c *fakeChip) Send(b byte) error {
	c.ops = append(c.ops, fmt.Sprintf("send %#02x", b))
	if err := c.fail(); err != nil {
		return err
	}
	if c.pointer {
		c.ptr = b
		c.pointer = false
		return nil
	}
	if !c.readOnly {
		c.regs[c.ptr] = b
	}
	c.ptr++
	return nil
}

func (c *fakeChip) Receive(ack bool) (byte, error) {
	if ack {
		c.ops = append(c.ops, "recv ack")
	} else {
		c.ops = append(c.ops, "recv nak")
	}
	if err := c.fail(); err != nil {
		return 0, err
	}
	b := c.regs[c.ptr]
	c.ptr++
	return b, nil
}

func (c *fakeChip) Stop() error {
	c.ops = append(c.ops, "stop")
	return nil
}

func newTestDev(c *fakeChip) (*Dev, *[]time.Duration) {
	d := New(c)
	var sleeps []time.Duration
	d.sleep = func(t time.Duration) { sleeps = append(sleeps, t) }
	return d, &sleeps
}

func TestWriteTime(t *testing.T) {
	c := &fakeChip{regs: [8]byte{0x80}}
	d, _ := newTestDev(c)
	if err := d.WriteTime(hms.Time{Hours: 13, Minutes: 5, Seconds: 9}); err != nil {
		t.Fatalf("write time: %v", err)
	}
	// Hours are persisted in 24-hour mode: bit 6 set, no PM bit, BCD 13.
	if diff := cmp.Diff([]byte{0x09, 0x05, 0x53}, c.regs[:3]); diff != "" {
		t.Errorf("registers after write (-want +got):\n%s", diff)
	}
	wantOps := []string{"start 0x68 w", "send 0x00", "send 0x09", "send 0x05", "send 0x53", "stop"}
	if diff := cmp.Diff(wantOps, c.ops); diff != "" {
		t.Errorf("bus operations (-want +got):\n%s", diff)
	}
}

func TestWriteTimeOutOfRange(t *testing.T) {
	c := &fakeChip{}
	d, _ := newTestDev(c)
	if err := d.WriteTime(hms.Time{Hours: 24}); !errors.Is(err, ErrTransport) {
		t.Errorf("writing hour 24:\n  got: %v\n want: %v", err, ErrTransport)
	}
	if len(c.ops) != 0 {
		t.Errorf("unexpected bus traffic: %v", c.ops)
	}
}

func TestReadTime(t *testing.T) {
	testData := []struct {
		name string
		regs [3]byte
		want hms.Time
	}{
		{"24-hour", [3]byte{0x30, 0x45, 0x40 | 0x23}, hms.Time{Hours: 23, Minutes: 45, Seconds: 30}},
		{"clock halt masked", [3]byte{0x80 | 0x59, 0x00, 0x40}, hms.Time{Seconds: 59}},
		{"12-hour midnight", [3]byte{0x00, 0x01, 0x12}, hms.Time{Hours: 0, Minutes: 1}},
		{"12-hour noon", [3]byte{0x00, 0x01, 0x20 | 0x12}, hms.Time{Hours: 12, Minutes: 1}},
		{"12-hour pm", [3]byte{0x00, 0x00, 0x20 | 0x01}, hms.Time{Hours: 13}},
		{"12-hour am", [3]byte{0x00, 0x00, 0x11}, hms.Time{Hours: 11}},
	}
	for _, test := range testData {
		t.Run(test.name, func(t *testing.T) {
			c := &fakeChip{}
			copy(c.regs[:], test.regs[:])
			d, _ := newTestDev(c)
			got, err := d.ReadTime()
			if err != nil {
				t.Fatalf("read time: %v", err)
			}
			if want := test.want; got != want {
				t.Errorf("read time:\n  got: %v\n want: %v", got, want)
			}
			wantOps := []string{"start 0x68 w", "send 0x00", "stop", "start 0x68 r", "recv ack", "recv ack", "recv nak", "stop"}
			if diff := cmp.Diff(wantOps, c.ops); diff != "" {
				t.Errorf("bus operations (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadTimeMalformed(t *testing.T) {
	for _, regs := range [][3]byte{
		{0x5a, 0x00, 0x40}, // bad seconds nibble
		{0x00, 0x60, 0x40}, // minute 60
		{0x00, 0x00, 0x40 | 0x24},
		{0x00, 0x00, 0x13}, // 12-hour mode, hour 13
	} {
		c := &fakeChip{}
		copy(c.regs[:], regs[:])
		d, _ := newTestDev(c)
		if _, err := d.ReadTime(); !errors.Is(err, ErrTransport) {
			t.Errorf("registers %x: expected transport error, got %v", regs, err)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	c := &fakeChip{}
	d, _ := newTestDev(c)
	for h := uint8(0); h < 24; h++ {
		for m := uint8(0); m < 60; m += 7 {
			want := hms.Time{Hours: h, Minutes: m, Seconds: (h + m) % 60}
			if err := d.WriteTime(want); err != nil {
				t.Fatalf("write %v: %v", want, err)
			}
			if c.regs[2]&hourPM != 0 {
				t.Errorf("write %v: pm bit set in hour register %#02x", want, c.regs[2])
			}
			got, err := d.ReadTime()
			if err != nil {
				t.Fatalf("read %v: %v", want, err)
			}
			if got != want {
				t.Errorf("round trip:\n  got: %v\n want: %v", got, want)
			}
		}
	}
}

func TestReadRetriesExhausted(t *testing.T) {
	c := &fakeChip{broken: true}
	d, sleeps := newTestDev(c)
	got, err := d.ReadTime()
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !errors.Is(err, errBus) {
		t.Errorf("expected underlying bus error to be wrapped, got %v", err)
	}
	if got != (hms.Time{}) {
		t.Errorf("failed read returned a time: %v", got)
	}
	var starts int
	for _, op := range c.ops {
		if op == "start 0x68 w" {
			starts++
		}
	}
	if got, want := starts, 3; got != want {
		t.Errorf("attempts:\n  got: %d\n want: %d", got, want)
	}
	if diff := cmp.Diff([]time.Duration{DefaultRetryDelay, DefaultRetryDelay}, *sleeps); diff != "" {
		t.Errorf("retry delays (-want +got):\n%s", diff)
	}
}

func TestTransientFailure(t *testing.T) {
	c := &fakeChip{regs: [8]byte{0x01, 0x02, 0x43}, failNext: 2}
	d, sleeps := newTestDev(c)
	got, err := d.ReadTime()
	if err != nil {
		t.Fatalf("read time: %v", err)
	}
	if want := (hms.Time{Hours: 3, Minutes: 2, Seconds: 1}); got != want {
		t.Errorf("read time:\n  got: %v\n want: %v", got, want)
	}
	if got, want := len(*sleeps), 2; got != want {
		t.Errorf("retries:\n  got: %d\n want: %d", got, want)
	}
}

func TestFailureIssuesStop(t *testing.T) {
	c := &fakeChip{}
	d, _ := newTestDev(c)
	d.Attempts = 1
	// Fail the second primitive: the pointer write.
	calls := 0
	wrapped := &countingTransport{Transport: c, failAt: 2, calls: &calls}
	d.t = wrapped
	if err := d.WriteTime(hms.Time{}); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	want := []string{"start 0x68 w", "send 0x00", "stop"}
	if diff := cmp.Diff(want, c.ops); diff != "" {
		t.Errorf("bus operations (-want +got):\n%s", diff)
	}
}

// countingTransport fails the failAt'th non-stop primitive.
type countingTransport struct {
	Transport
	failAt int
	calls  *int
}

func (t *countingTransport) step() error {
	*t.calls++
	if *t.calls == t.failAt {
		return errBus
	}
	return nil
}

func (t *countingTransport) Start(addr uint16, read bool) error {
	if err := t.Transport.Start(addr, read); err != nil {
		return err
	}
	return t.step()
}

func (t *countingTransport) Send(b byte) error {
	if err := t.Transport.Send(b); err != nil {
		return err
	}
	return t.step()
}

func TestInit(t *testing.T) {
	t.Run("halted", func(t *testing.T) {
		c := &fakeChip{regs: [8]byte{0x80 | 0x12, 0x34, 0x56}}
		d, _ := newTestDev(c)
		ok, err := d.Init()
		if err != nil {
			t.Fatalf("init: %v", err)
		}
		if !ok {
			t.Error("halted chip should report initialized")
		}
		if diff := cmp.Diff([]byte{0x00, 0x11, 0x40 | 0x11}, c.regs[:3]); diff != "" {
			t.Errorf("registers after init (-want +got):\n%s", diff)
		}
	})
	t.Run("running", func(t *testing.T) {
		c := &fakeChip{regs: [8]byte{0x12, 0x34, 0x40 | 0x05}}
		d, _ := newTestDev(c)
		ok, err := d.Init()
		if err != nil {
			t.Fatalf("init: %v", err)
		}
		if ok {
			t.Error("running chip should not be re-initialized")
		}
		if diff := cmp.Diff([]byte{0x12, 0x34, 0x45}, c.regs[:3]); diff != "" {
			t.Errorf("registers after init (-want +got):\n%s", diff)
		}
	})
	t.Run("not confirmed", func(t *testing.T) {
		c := &fakeChip{regs: [8]byte{0x80, 0x00, 0x40}, readOnly: true}
		d, _ := newTestDev(c)
		ok, err := d.Init()
		if !errors.Is(err, ErrNotConfirmed) {
			t.Errorf("expected ErrNotConfirmed, got %v", err)
		}
		if ok {
			t.Error("unconfirmed chip should not report initialized")
		}
	})
	t.Run("absent", func(t *testing.T) {
		c := &fakeChip{broken: true}
		d, _ := newTestDev(c)
		ok, err := d.Init()
		if !errors.Is(err, ErrTransport) {
			t.Errorf("expected transport error, got %v", err)
		}
		if ok {
			t.Error("absent chip should not report initialized")
		}
	})
}
