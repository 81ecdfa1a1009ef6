package sim

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/jakecoffman/cp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/diag"
	"github.com/san-kum/rigidsim/internal/engine"
	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/lifecycle"
	"github.com/san-kum/rigidsim/internal/metrics"
)

const frameDt = 1.0 / 60.0

func startContext(asserts *atomic.Int64) *lifecycle.Context {
	lc := lifecycle.New(
		lifecycle.WithAssertsEnabled(true),
		lifecycle.WithAssertHook(func(diag.AssertReport) bool {
			asserts.Add(1)
			return false
		}),
	)
	Expect(lc.Start()).To(Succeed())
	return lc
}

func dropSphere(s *engine.System, x, y float64) engine.BodyID {
	id, err := s.CreateBody(engine.BodyCreationSettings{
		Shape:      engine.SphereShape{Radius: 0.5},
		Position:   cp.Vector{X: x, Y: y},
		MotionType: engine.MotionDynamic,
		Layer:      layers.Moving,
		Mass:       1,
	})
	Expect(err).NotTo(HaveOccurred())
	return id
}

var _ = Describe("Driver", func() {
	var (
		asserts atomic.Int64
		lc      *lifecycle.Context
		cfg     config.Config
		d       *Driver
	)

	BeforeEach(func() {
		asserts.Store(0)
		lc = startContext(&asserts)
		cfg = *config.DefaultConfig()
		var err error
		d, err = New(lc, cfg)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(d.Close()).To(Succeed())
		_ = lc.Shutdown()
	})

	It("steps 1000 frames at 60 Hz with default limits and no bodies", func() {
		for i := 0; i < 1000; i++ {
			stats, err := d.Step(frameDt, 1, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Errors).To(BeZero())
			Expect(lc.Factory()).NotTo(BeNil())
		}
		Expect(d.Frames()).To(Equal(uint64(1000)))
		Expect(asserts.Load()).To(BeZero())
	})

	It("returns the same engine instance on every call", func() {
		s := d.System()
		Expect(s).NotTo(BeNil())
		for i := 0; i < 10; i++ {
			Expect(d.System()).To(BeIdenticalTo(s))
		}
		_, err := d.Step(frameDt, 1, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.System()).To(BeIdenticalTo(s))
	})

	It("uses the engine limits from the config", func() {
		settings := d.System().Settings()
		Expect(settings.MaxBodies).To(Equal(1024))
		Expect(settings.MaxBodyPairs).To(Equal(1024))
		Expect(settings.MaxContactConstraints).To(Equal(1024))
		Expect(settings.NumBodyMutexes).To(Equal(engine.DefaultBodyMutexes()))
	})

	It("rejects step counts below one", func() {
		_, err := d.Step(frameDt, 0, 1)
		Expect(err).To(MatchError(engine.ErrInvalidStepCount))
		_, err = d.Step(frameDt, 1, 0)
		Expect(err).To(MatchError(engine.ErrInvalidStepCount))
		Expect(asserts.Load()).To(Equal(int64(2)))
		Expect(d.Frames()).To(BeZero())
	})

	It("treats a non-positive dt as a no-op", func() {
		id := dropSphere(d.System(), 0, 10)
		for _, dt := range []float64{0, -frameDt} {
			_, err := d.Step(dt, 1, 1)
			Expect(err).NotTo(HaveOccurred())
		}
		p, err := d.System().Position(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Y).To(Equal(10.0))
	})

	It("rejects a non-finite dt without moving the world", func() {
		id := dropSphere(d.System(), 0, 10)
		for _, dt := range []float64{math.NaN(), math.Inf(1)} {
			_, err := d.Step(dt, 1, 1)
			Expect(err).To(MatchError(engine.ErrInvalidTimeStep))
		}
		Expect(asserts.Load()).To(Equal(int64(2)))
		Expect(d.Frames()).To(BeZero())

		stats, err := d.Step(frameDt, 1, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.InvalidBodies).To(BeZero())
		p, err := d.System().Position(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Y).To(BeNumerically("<", 10.0))
	})

	It("lets a dropped body fall under gravity", func() {
		id := dropSphere(d.System(), 0, 10)
		for i := 0; i < 60; i++ {
			_, err := d.Step(frameDt, 1, 1)
			Expect(err).NotTo(HaveOccurred())
		}
		p, err := d.System().Position(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Y).To(BeNumerically("~", 10-0.5*9.81, 0.2))
	})

	It("rejects a Step while another is in flight", func() {
		entered := make(chan struct{})
		proceed := make(chan struct{})
		d.beforeUpdate = func() {
			close(entered)
			<-proceed
		}

		done := make(chan error, 1)
		go func() {
			_, err := d.Step(frameDt, 1, 1)
			done <- err
		}()
		Eventually(entered).Should(BeClosed())

		d.beforeUpdate = nil
		_, err := d.Step(frameDt, 1, 1)
		Expect(err).To(MatchError(ErrStepInFlight))
		Expect(asserts.Load()).To(Equal(int64(1)))

		close(proceed)
		Eventually(done).Should(Receive(BeNil()))
		Expect(d.Frames()).To(Equal(uint64(1)))
	})

	It("holds the lifecycle open until closed", func() {
		Expect(lc.Shutdown()).To(MatchError(lifecycle.ErrDriversAlive))
		Expect(lc.State()).To(Equal(lifecycle.Active))

		Expect(d.Close()).To(Succeed())
		Expect(lc.Shutdown()).To(Succeed())
		Expect(lc.Factory()).To(BeNil())
	})

	It("refuses use after Close", func() {
		Expect(d.Close()).To(Succeed())
		Expect(d.Close()).To(Succeed())

		_, err := d.Step(frameDt, 1, 1)
		Expect(err).To(MatchError(ErrClosed))
		Expect(d.System()).To(BeNil())
		Expect(asserts.Load()).To(Equal(int64(1)))
	})

	It("stops a run when the callback returns false", func() {
		var seen []int
		err := d.Run(context.Background(), 100, ParamsFrom(&cfg), func(frame int, _ engine.UpdateStats) bool {
			seen = append(seen, frame)
			return frame < 4
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(Equal([]int{0, 1, 2, 3, 4}))
	})

	It("checks the context between steps", func() {
		ctx, cancel := context.WithCancel(context.Background())
		err := d.Run(ctx, 100, ParamsFrom(&cfg), func(frame int, _ engine.UpdateStats) bool {
			if frame == 2 {
				cancel()
			}
			return true
		})
		Expect(err).To(MatchError(context.Canceled))
		Expect(d.Frames()).To(Equal(uint64(3)))
	})

	It("collects per-frame results", func() {
		dropSphere(d.System(), 0, 10)
		result, err := d.Simulate(context.Background(), 30, ParamsFrom(&cfg), metrics.Defaults()...)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Frames).To(Equal(30))
		Expect(result.Energy).To(HaveLen(30))
		Expect(result.Energy[29]).To(BeNumerically(">", result.Energy[0]))
		Expect(result.Metrics).To(HaveKey("energy"))
		Expect(result.Metrics["stability"]).To(Equal(1.0))
	})
})

var _ = Describe("Driver construction", func() {
	var (
		asserts atomic.Int64
		lc      *lifecycle.Context
	)

	BeforeEach(func() {
		lc = startContext(&asserts)
	})

	AfterEach(func() {
		_ = lc.Shutdown()
	})

	It("requires an active lifecycle", func() {
		fresh := lifecycle.New()
		_, err := New(fresh, *config.DefaultConfig())
		Expect(err).To(MatchError(lifecycle.ErrNotActive))
	})

	It("rejects an invalid config without holding the lifecycle", func() {
		cfg := *config.DefaultConfig()
		cfg.ScratchBytes = 0
		_, err := New(lc, cfg)
		Expect(err).To(MatchError(config.ErrInvalid))
		Expect(lc.Drivers()).To(BeZero())
	})

	It("rejects a scratch arena too small for one step", func() {
		cfg := *config.DefaultConfig()
		cfg.ScratchBytes = 4096
		_, err := New(lc, cfg)
		Expect(err).To(MatchError(config.ErrInvalid))
		Expect(lc.Drivers()).To(BeZero())
	})

	It("steps with the smallest accepted scratch arena", func() {
		cfg := *config.DefaultConfig()
		cfg.Jobs.Threads = 2
		cfg.ScratchBytes = cfg.MinScratchBytes()
		d, err := New(lc, cfg)
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		for i := 0; i < 5; i++ {
			dropSphere(d.System(), float64(i)*2, 5)
		}
		for i := 0; i < 10; i++ {
			_, err := d.Step(frameDt, 1, 1)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(d.Frames()).To(Equal(uint64(10)))
	})

	It("runs jobs inline with zero worker threads", func() {
		cfg := *config.GetPreset("empty", "single_thread")
		d, err := New(lc, cfg)
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		Expect(d.Workers()).To(BeZero())
		for i := 0; i < 3; i++ {
			dropSphere(d.System(), float64(i)*2, 5)
		}
		stats, err := d.Step(frameDt, 1, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.ActiveBodies).To(Equal(3))
	})

	It("records telemetry through the collector", func() {
		c := metrics.NewCollector("test")
		d, err := New(lc, *config.DefaultConfig(), WithMetrics(c))
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		for i := 0; i < 5; i++ {
			_, err := d.Step(frameDt, 1, 1)
			Expect(err).NotTo(HaveOccurred())
		}
		families, err := c.Registry().Gather()
		Expect(err).NotTo(HaveOccurred())

		var steps float64
		for _, mf := range families {
			if mf.GetName() == "test_driver_steps_total" {
				steps = mf.GetMetric()[0].GetCounter().GetValue()
			}
		}
		Expect(steps).To(Equal(5.0))
		Expect(d.ScratchHighWater()).To(BeNumerically(">", 0))
	})

	It("supports several drivers from one lifecycle", func() {
		ensemble := NewEnsemble(lc, func() config.Config {
			cfg := *config.DefaultConfig()
			cfg.Frames = 20
			return cfg
		}(), 3)

		results, err := ensemble.Run(context.Background(), func(d *Driver, seed int64) error {
			_, err := d.System().CreateBody(engine.BodyCreationSettings{
				Shape:      engine.BoxShape{Width: 1, Height: 1},
				Position:   cp.Vector{Y: float64(seed)},
				MotionType: engine.MotionDynamic,
				Layer:      layers.Moving,
			})
			return err
		}, metrics.Defaults)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))
		for _, r := range results {
			Expect(r.Frames).To(Equal(20))
		}
		Expect(lc.Drivers()).To(BeZero())
	})
})

var _ = Describe("Lifecycle restart", func() {
	It("builds working drivers from a new context after shutdown", func() {
		var asserts atomic.Int64
		for cycle := 0; cycle < 3; cycle++ {
			lc := startContext(&asserts)
			d, err := New(lc, *config.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 10; i++ {
				_, err := d.Step(frameDt, 1, 1)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(d.Close()).To(Succeed())
			Expect(lc.Shutdown()).To(Succeed())
			Expect(lc.State()).To(Equal(lifecycle.Destroyed))
		}
		Expect(asserts.Load()).To(BeZero())
	})
})
