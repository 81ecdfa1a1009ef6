package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/san-kum/rigidsim/internal/engine"
)

// Recorder receives driver telemetry.
type Recorder interface {
	RecordStep(stats engine.UpdateStats, duration time.Duration, err error)
	RecordScratch(used, highWater, capacity int)
	RecordWorkers(n int)
}

// Collector exports driver telemetry on a private Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	steps         *prometheus.CounterVec
	stepLatency   prometheus.Histogram
	bodies        *prometheus.GaugeVec
	bodyPairs     prometheus.Gauge
	contacts      prometheus.Gauge
	kineticEnergy prometheus.Gauge
	updateErrors  *prometheus.CounterVec
	scratch       *prometheus.GaugeVec
	workers       prometheus.Gauge
}

func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "rigidsim"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.steps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "steps_total",
			Help:      "Total number of driver steps",
		},
		[]string{"result"},
	)

	c.stepLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "step_duration_seconds",
			Help:      "Wall time of one driver step",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 14), // 10us to ~80ms
		},
	)

	c.bodies = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "bodies",
			Help:      "Bodies in the engine after the last step",
		},
		[]string{"state"},
	)

	c.bodyPairs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "body_pairs",
			Help:      "Touching body pairs found by the last step",
		},
	)

	c.contacts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "contacts",
			Help:      "Contact points found by the last step",
		},
	)

	c.kineticEnergy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "kinetic_energy",
			Help:      "Kinetic energy of dynamic bodies after the last step",
		},
	)

	c.updateErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "update_errors_total",
			Help:      "Steps that raised each update error flag",
		},
		[]string{"flag"},
	)

	c.scratch = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "scratch_bytes",
			Help:      "Scratch arena usage (used, high_water, capacity)",
		},
		[]string{"kind"},
	)

	c.workers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "workers",
			Help:      "Worker goroutines in the job pool",
		},
	)

	c.registry.MustRegister(
		c.steps,
		c.stepLatency,
		c.bodies,
		c.bodyPairs,
		c.contacts,
		c.kineticEnergy,
		c.updateErrors,
		c.scratch,
		c.workers,
	)

	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) RecordStep(stats engine.UpdateStats, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.steps.WithLabelValues(result).Inc()
	c.stepLatency.Observe(duration.Seconds())
	if err != nil {
		return
	}

	c.bodies.WithLabelValues("total").Set(float64(stats.Bodies))
	c.bodies.WithLabelValues("active").Set(float64(stats.ActiveBodies))
	c.bodyPairs.Set(float64(stats.BodyPairs))
	c.contacts.Set(float64(stats.Contacts))
	c.kineticEnergy.Set(stats.KineticEnergy)
	for _, flag := range engine.UpdateErrorFlags() {
		if stats.Errors.Has(flag) {
			c.updateErrors.WithLabelValues(flag.String()).Inc()
		}
	}
}

func (c *Collector) RecordScratch(used, highWater, capacity int) {
	c.scratch.WithLabelValues("used").Set(float64(used))
	c.scratch.WithLabelValues("high_water").Set(float64(highWater))
	c.scratch.WithLabelValues("capacity").Set(float64(capacity))
}

func (c *Collector) RecordWorkers(n int) {
	c.workers.Set(float64(n))
}

// Reset clears the gauges.
func (c *Collector) Reset() {
	c.bodies.Reset()
	c.scratch.Reset()
	c.bodyPairs.Set(0)
	c.contacts.Set(0)
	c.kineticEnergy.Set(0)
}

// NoOpCollector discards all telemetry.
type NoOpCollector struct{}

func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (*NoOpCollector) RecordStep(stats engine.UpdateStats, d time.Duration, err error) {}
func (*NoOpCollector) RecordScratch(used, highWater, capacity int)                    {}
func (*NoOpCollector) RecordWorkers(n int)                                             {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = (*NoOpCollector)(nil)
)
