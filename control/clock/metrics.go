package clock

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rtcErrorsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtc_errors",
		Help: "count of rtc operations that failed after all retries",
	}, []string{"op"})

	droppedIntentsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dropped_intents",
		Help: "count of button presses dropped because the loop had not drained the previous ones",
	})

	buttonPressesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "button_presses",
		Help: "count of debounced button presses",
	}, []string{"button"})

	displayOnGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "display_on",
		Help: "1 if the display is lit, 0 if it has been turned off for lack of motion",
	})

	brightnessDutyGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brightness_duty",
		Help: "pwm duty currently driving the display, 0-255",
	})

	loopDurationMetric = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "loop_duration",
		Help:    "time taken by one pass of the scheduler loop, in nanoseconds",
		Buckets: prometheus.ExponentialBuckets(1000, 10, 8),
	})
)
