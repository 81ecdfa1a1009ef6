// Package sim is the per-frame driver: it owns a scratch arena, a worker
// pool and one engine instance, and advances the engine one Step at a time.
package sim

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/rigidsim/internal/arena"
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/diag"
	"github.com/san-kum/rigidsim/internal/engine"
	"github.com/san-kum/rigidsim/internal/jobs"
	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/lifecycle"
	"github.com/san-kum/rigidsim/internal/metrics"
	"go.uber.org/zap"
)

var (
	ErrClosed       = errors.New("sim: driver closed")
	ErrStepInFlight = errors.New("sim: step already in flight")
)

type Option func(*Driver)

func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(d *Driver) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithScheme replaces the two-layer collision policy.
func WithScheme(s layers.Scheme) Option {
	return func(d *Driver) { d.scheme = s }
}

// StepParams are the arguments of one Step.
type StepParams struct {
	Dt                  float64
	CollisionSteps      int
	IntegrationSubSteps int
}

func ParamsFrom(cfg *config.Config) StepParams {
	return StepParams{
		Dt:                  cfg.Step.Dt,
		CollisionSteps:      cfg.Step.CollisionSteps,
		IntegrationSubSteps: cfg.Step.IntegrationSubSteps,
	}
}

// Driver advances one engine instance. Step must not be called
// concurrently; System and the read-only accessors may be.
type Driver struct {
	release  func()
	diag     *diag.Registry
	logger   *zap.Logger
	recorder metrics.Recorder
	scheme   layers.Scheme

	arena  *arena.Arena
	pool   *jobs.Pool
	system *engine.System

	// mu is held shared by Step and exclusively by Close.
	mu       sync.RWMutex
	stepping atomic.Bool
	closed   atomic.Bool
	frames   atomic.Uint64

	beforeUpdate func()
}

// New builds the scratch arena, worker pool and engine instance. lc must be
// Active and stays held until Close.
func New(lc *lifecycle.Context, cfg config.Config, opts ...Option) (*Driver, error) {
	if lc == nil {
		return nil, lifecycle.ErrNotActive
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	release, err := lc.Acquire()
	if err != nil {
		return nil, err
	}

	d := &Driver{
		release:  release,
		diag:     lc.Diagnostics(),
		logger:   lc.Logger(),
		recorder: metrics.NewNoOpCollector(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.scheme == nil {
		d.scheme = layers.NewTwoLayerPolicy(d.diag)
	}

	d.arena, err = arena.New(cfg.ScratchBytes)
	if err != nil {
		release()
		return nil, fmt.Errorf("sim: scratch arena: %w", err)
	}
	d.pool, err = jobs.New(cfg.Jobs.MaxJobs, cfg.Jobs.MaxBarriers, cfg.Jobs.Threads)
	if err != nil {
		d.arena.Release()
		release()
		return nil, fmt.Errorf("sim: job pool: %w", err)
	}
	d.system, err = engine.NewSystem(lc.Factory(), cfg.EngineSettings(), d.scheme, d.diag)
	if err != nil {
		d.pool.Close()
		d.arena.Release()
		release()
		return nil, fmt.Errorf("sim: engine: %w", err)
	}

	d.recorder.RecordWorkers(d.pool.Workers())
	d.logger.Debug("driver created",
		zap.Int("scratch_bytes", d.arena.Capacity()),
		zap.Int("workers", d.pool.Workers()),
		zap.Int("max_bodies", cfg.Physics.MaxBodies),
		zap.Int("body_mutexes", d.system.Settings().NumBodyMutexes),
	)
	return d, nil
}

// Step advances the simulation by dt. The returned Pairs are valid until the
// next Step.
func (d *Driver) Step(dt float64, collisionSteps, integrationSubSteps int) (engine.UpdateStats, error) {
	if d.closed.Load() {
		return engine.UpdateStats{}, ErrClosed
	}
	if !d.stepping.CompareAndSwap(false, true) {
		d.diag.Assert(false, "!stepping", "Step called while another Step is in flight")
		return engine.UpdateStats{}, ErrStepInFlight
	}
	defer d.stepping.Store(false)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed.Load() {
		return engine.UpdateStats{}, ErrClosed
	}

	d.arena.Reset()
	if d.beforeUpdate != nil {
		d.beforeUpdate()
	}

	start := time.Now()
	stats, err := d.system.Update(dt, collisionSteps, integrationSubSteps, d.arena, d.pool)
	d.recorder.RecordStep(stats, time.Since(start), err)
	d.recorder.RecordScratch(d.arena.Used(), d.arena.HighWater(), d.arena.Capacity())
	if err != nil {
		return stats, err
	}
	d.frames.Add(1)
	return stats, nil
}

// StepWith is Step with bundled parameters.
func (d *Driver) StepWith(p StepParams) (engine.UpdateStats, error) {
	return d.Step(p.Dt, p.CollisionSteps, p.IntegrationSubSteps)
}

// System returns the engine instance for body creation and queries. It
// returns the same pointer for the life of the driver and nil after Close.
func (d *Driver) System() *engine.System {
	if d.closed.Load() {
		d.diag.Assert(false, "system != nil", "System called on a closed driver")
		return nil
	}
	return d.system
}

// Close waits for an in-flight Step, then releases the engine instance, the
// pool, the arena and the lifecycle hold. It is idempotent.
func (d *Driver) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.system.Destroy()
	d.pool.Close()
	highWater := d.arena.HighWater()
	d.arena.Release()
	d.release()

	d.logger.Debug("driver closed",
		zap.Uint64("frames", d.frames.Load()),
		zap.Int("scratch_high_water", highWater),
	)
	return nil
}

func (d *Driver) Closed() bool { return d.closed.Load() }

// Frames counts successful steps.
func (d *Driver) Frames() uint64 { return d.frames.Load() }

func (d *Driver) Workers() int { return d.pool.Workers() }

func (d *Driver) Scheme() layers.Scheme { return d.scheme }

// ScratchHighWater is the largest arena usage seen by any step.
func (d *Driver) ScratchHighWater() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.arena.HighWater()
}
