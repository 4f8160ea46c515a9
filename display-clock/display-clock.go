// Command display-clock shows the host's wall clock on the VFD, without the RTC, buttons, or
// motion sensor.  It's for checking the display wiring.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrockway/vfd-clock/control/display"
	"github.com/jrockway/vfd-clock/control/hms"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	spiName = flag.String("spi", "", "spi port the display shift registers are on")
	latch   = flag.String("latch", "", "gpio pin for the shift register latch")
	pwmPin  = flag.String("pwm", "", "gpio pin for the display brightness pwm; left alone if empty")
	zone    = flag.String("tz", "Local", "time zone to show")
)

func main() {
	flag.Parse()
	if _, err := host.Init(); err != nil {
		log.Fatalf("init periph.io: %v", err)
	}
	here, err := time.LoadLocation(*zone)
	if err != nil {
		log.Fatal(err)
	}

	port, err := spireg.Open(*spiName)
	if err != nil {
		log.Fatalf("open spi port %q: %v", *spiName, err)
	}
	defer port.Close()
	conn, err := port.Connect(physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		log.Fatalf("connect to spi port: %v", err)
	}
	latchPin := gpioreg.ByName(*latch)
	if latchPin == nil {
		log.Fatalf("no gpio pin %q", *latch)
	}
	if *pwmPin != "" {
		p := gpioreg.ByName(*pwmPin)
		if p == nil {
			log.Fatalf("no gpio pin %q", *pwmPin)
		}
		if err := p.Out(gpio.High); err != nil {
			log.Fatalf("drive brightness pin: %v", err)
		}
	}

	board := new(display.Board)
	mux := display.NewMultiplexer(conn, latchPin, board)
	ctx, cancel := context.WithCancel(context.Background())
	muxDone := make(chan error)
	go func() {
		muxDone <- mux.Run(ctx, display.DefaultPeriod, func(err error) { log.Printf("display: %v", err) })
		close(muxDone)
	}()

	log.Printf("clock initialized")
	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

clock:
	for {
		h, m, s := time.Now().In(here).Clock()
		board.Store(display.ToDigits(hms.Time{Hours: uint8(h), Minutes: uint8(m), Seconds: uint8(s)}, false))

		// Wake up again right as the next second starts.  The display shows the wrong
		// separator state for a fraction of a millisecond, which nobody will notice.
		next := time.Now().Add(time.Second).Truncate(time.Second).Sub(time.Now())
		select {
		case <-exit:
			break clock
		case <-time.After(next):
		}
	}
	log.Printf("exiting")
	cancel()
	<-muxDone

	// Blank all digits when exiting on a signal, so someone looking at the clock can tell
	// whether the OS crashed or we just exited the program for some reason.
	if err := display.Blank(conn, latchPin); err != nil {
		log.Printf("blank display: %v", err)
	}
}
