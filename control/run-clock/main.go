package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jrockway/vfd-clock/control/brightness"
	"github.com/jrockway/vfd-clock/control/clock"
	"github.com/jrockway/vfd-clock/control/display"
	"github.com/jrockway/vfd-clock/control/input"
	"github.com/jrockway/vfd-clock/control/rtc"
	"github.com/jrockway/vfd-clock/control/screen"
	"github.com/jrockway/vfd-clock/control/timebase"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	expspi "golang.org/x/exp/io/spi"
	_ "golang.org/x/net/trace" // registers /debug/events
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	bind     = flag.String("bind", ":8080", "address to bind for debug/metrics server; empty disables it")
	i2cName  = flag.String("i2c", "", "i2c bus the rtc is on")
	i2cDev   = flag.String("i2cdev", "", "if set, talk to the rtc through this i2c-dev device instead of -i2c")
	spiName  = flag.String("spi", "", "spi port the display shift registers are on")
	spiDev   = flag.String("spidev", "", "if set, drive the display through this spidev device instead of -spi")
	latch    = flag.String("latch", "", "gpio pin for the shift register latch")
	pwmPin   = flag.String("pwm", "", "gpio pin for the display brightness pwm")
	pirPin   = flag.String("pir", "", "gpio pin for the motion sensor")
	upPin    = flag.String("up", "", "gpio pin, or line offset with -gpiochip, for the up button")
	downPin  = flag.String("down", "", "gpio pin, or line offset with -gpiochip, for the down button")
	brightPn = flag.String("bright", "", "gpio pin, or line offset with -gpiochip, for the brightness button")
	gpiochip = flag.String("gpiochip", "", "if set, read buttons through this gpio character device")
	spiSpeed = physic.MegaHertz
	pwmFreq  = brightness.DefaultFrequency
)

func init() {
	flag.Var(&spiSpeed, "spi-speed", "spi clock for the display")
	flag.Var(&pwmFreq, "pwm-freq", "pwm carrier frequency for display brightness")
}

// buttons are wired up before the clock exists, so presses go through here.
type presser struct {
	clock atomic.Pointer[clock.Clock]
}

func (p *presser) handler(f func(*clock.Clock)) func() {
	return func() {
		if c := p.clock.Load(); c != nil {
			f(c)
		}
	}
}

type button struct {
	line    input.Line
	pin     gpio.PinIn // nil for character device buttons
	onPress func()
}

func openButton(name string, p *presser, f func(*clock.Clock)) (button, func(), error) {
	b := button{onPress: p.handler(f)}
	if *gpiochip != "" {
		offset, err := strconv.Atoi(name)
		if err != nil {
			return b, nil, fmt.Errorf("parse line offset %q: %w", name, err)
		}
		cb, err := input.OpenCdevButton(*gpiochip, offset, b.onPress)
		if err != nil {
			return b, nil, err
		}
		b.line = input.Line{Pin: cb, ActiveLow: true}
		return b, func() { cb.Close() }, nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return b, nil, fmt.Errorf("no gpio pin %q", name)
	}
	line, err := input.SetupButton(pin)
	if err != nil {
		return b, nil, err
	}
	b.line, b.pin = line, pin
	return b, func() {}, nil
}

func openRTC() (clock.RTC, func(), error) {
	if *i2cDev != "" {
		t, dev, err := rtc.OpenDevfs(*i2cDev)
		if err != nil {
			return nil, nil, err
		}
		return rtc.New(t), func() { dev.Close() }, nil
	}
	bus, err := i2creg.Open(*i2cName)
	if err != nil {
		return nil, nil, fmt.Errorf("open i2c bus %q: %w", *i2cName, err)
	}
	return rtc.New(&rtc.BusTransport{Bus: bus}), func() { bus.Close() }, nil
}

func openDisplay() (display.Conn, func(), error) {
	if *spiDev != "" {
		d, err := expspi.Open(&expspi.Devfs{Dev: *spiDev, Mode: expspi.Mode0, MaxSpeed: int64(spiSpeed / physic.Hertz)})
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", *spiDev, err)
		}
		return d, func() { d.Close() }, nil
	}
	port, err := spireg.Open(*spiName)
	if err != nil {
		return nil, nil, fmt.Errorf("open spi port %q: %w", *spiName, err)
	}
	c, err := port.Connect(spiSpeed, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("connect to spi port %q: %w", *spiName, err)
	}
	return c, func() { port.Close() }, nil
}

func openPin(flagName, name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("-%s: no gpio pin %q", flagName, name)
	}
	return p, nil
}

func main() {
	flag.Parse()
	if _, err := host.Init(); err != nil {
		log.Fatalf("init periph.io: %v", err)
	}
	err := run()
	log.Printf("exiting: %v", err)
	os.Exit(1)
}

// run runs the clock until it is interrupted or something fails.  The display is blanked on the
// way out so someone looking at the clock can tell it isn't running.
func run() error {
	chip, closeRTC, err := openRTC()
	if err != nil {
		return fmt.Errorf("open rtc: %w", err)
	}
	defer closeRTC()

	conn, closeDisplay, err := openDisplay()
	if err != nil {
		return fmt.Errorf("open display: %w", err)
	}
	defer closeDisplay()

	latchPin, err := openPin("latch", *latch)
	if err != nil {
		return err
	}
	if err := latchPin.Out(gpio.Low); err != nil {
		return fmt.Errorf("lower latch: %w", err)
	}
	pwmOut, err := openPin("pwm", *pwmPin)
	if err != nil {
		return err
	}
	pwm := &brightness.PWM{Pin: pwmOut, Frequency: pwmFreq}
	pirIn, err := openPin("pir", *pirPin)
	if err != nil {
		return err
	}
	pir, err := input.SetupSensor(pirIn)
	if err != nil {
		return fmt.Errorf("setup motion sensor: %w", err)
	}

	p := new(presser)
	var buttons []button
	for _, b := range []struct {
		flag, name string
		f          func(*clock.Clock)
	}{
		{"up", *upPin, (*clock.Clock).PressUp},
		{"down", *downPin, (*clock.Clock).PressDown},
		{"bright", *brightPn, (*clock.Clock).PressBrightness},
	} {
		btn, closeButton, err := openButton(b.name, p, b.f)
		if err != nil {
			return fmt.Errorf("-%s: %w", b.flag, err)
		}
		defer closeButton()
		buttons = append(buttons, btn)
	}

	base := new(timebase.Counter)
	board := new(display.Board)
	cl := clock.New(base, board, clock.Hardware{
		RTC:        chip,
		Brightness: pwm,
		Motion:     pir,
		Up:         buttons[0].line,
		Down:       buttons[1].line,
	})
	defer cl.Close()
	cl.Start()
	p.clock.Store(cl)
	log.Printf("clock started at %v", cl.Time())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error { return base.Run(ctx, timebase.Period) })
	mux := display.NewMultiplexer(conn, latchPin, board)
	eg.Go(func() error {
		return mux.Run(ctx, display.DefaultPeriod, func(err error) { log.Printf("display: %v", err) })
	})
	eg.Go(func() error { return cl.Run(ctx) })
	for _, b := range buttons {
		if b.pin == nil {
			continue
		}
		b := b
		eg.Go(func() error { return input.Watch(ctx, b.pin, b.onPress) })
	}

	var httpServer *http.Server
	if *bind != "" {
		http.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, "/display.png", http.StatusFound)
		})
		http.Handle("/display.png", screen.New(cl))
		http.Handle("/metrics", promhttp.Handler())
		httpServer = &http.Server{Addr: *bind}
		eg.Go(func() error {
			log.Printf("http server listening on %s", httpServer.Addr)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	eg.Go(func() error {
		select {
		case <-sigCh:
			log.Printf("interrupt")
			return errors.New("interrupted")
		case <-ctx.Done():
			return nil
		}
	})
	go func() {
		<-ctx.Done()
		if httpServer != nil {
			tctx, c := context.WithTimeout(context.Background(), time.Second)
			httpServer.Shutdown(tctx)
			c()
		}
	}()

	err = eg.Wait()
	signal.Stop(sigCh)

	if err := pwm.Write(0); err != nil {
		log.Printf("dim display: %v", err)
	}
	if err := display.Blank(conn, latchPin); err != nil {
		log.Printf("blank display: %v", err)
	}
	return err
}
