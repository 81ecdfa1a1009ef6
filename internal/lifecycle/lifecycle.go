// Package lifecycle owns the process-level engine setup that every driver
// depends on: diagnostic hooks, the type factory and built-in type
// registration.
//
// A Context moves Uninitialized -> Active -> Destroyed exactly once. A new
// Context may be started after an old one has been shut down.
package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/san-kum/rigidsim/internal/diag"
	"github.com/san-kum/rigidsim/internal/engine"
	"go.uber.org/zap"
)

var (
	ErrAlreadyStarted = errors.New("lifecycle: already started")
	ErrDestroyed      = errors.New("lifecycle: context destroyed")
	ErrNotActive      = errors.New("lifecycle: context not active")
	ErrDriversAlive   = errors.New("lifecycle: drivers still open")
)

type State int

const (
	Uninitialized State = iota
	Active
	Destroyed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Option func(*Context)

// WithLogger sets the logger behind the default diagnostic sinks.
func WithLogger(l *zap.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTraceHook replaces the default zap trace sink.
func WithTraceHook(fn diag.TraceFunc) Option {
	return func(c *Context) { c.trace = fn }
}

// WithAssertHook replaces the default zap assertion sink.
func WithAssertHook(fn diag.AssertFunc) Option {
	return func(c *Context) { c.assert = fn }
}

// WithAssertsEnabled overrides the build default for assertions.
func WithAssertsEnabled(enabled bool) Option {
	return func(c *Context) { c.asserts = &enabled }
}

// WithStateChange registers a callback run after every transition.
func WithStateChange(fn func(State)) Option {
	return func(c *Context) { c.onState = fn }
}

type Context struct {
	mu      sync.Mutex
	state   State
	factory *engine.Factory
	diag    *diag.Registry
	drivers int

	logger  *zap.Logger
	trace   diag.TraceFunc
	assert  diag.AssertFunc
	asserts *bool
	onState func(State)
}

func New(opts ...Option) *Context {
	c := &Context{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start installs the diagnostic hooks, then creates the factory, then
// registers the built-in types.
func (c *Context) Start() error {
	c.mu.Lock()
	switch c.state {
	case Active:
		c.mu.Unlock()
		return ErrAlreadyStarted
	case Destroyed:
		c.mu.Unlock()
		return ErrDestroyed
	}

	reg := diag.NewRegistry()
	if c.asserts != nil {
		reg.SetAssertsEnabled(*c.asserts)
	}
	trace, assert := c.trace, c.assert
	if trace == nil {
		trace = diag.ZapTrace(c.logger)
	}
	if assert == nil {
		assert = diag.ZapAssert(c.logger)
	}
	if err := reg.Install(trace, assert); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("lifecycle: install hooks: %w", err)
	}

	f := engine.NewFactory()
	if err := engine.RegisterTypes(f); err != nil {
		f.Destroy()
		c.mu.Unlock()
		return fmt.Errorf("lifecycle: register types: %w", err)
	}

	c.diag = reg
	c.factory = f
	c.state = Active
	c.mu.Unlock()

	c.logger.Info("engine started", zap.Int("types", f.Len()), zap.Bool("asserts", reg.AssertsEnabled()))
	c.notify(Active)
	return nil
}

// Shutdown destroys the factory. Every driver must be closed first.
func (c *Context) Shutdown() error {
	c.mu.Lock()
	switch c.state {
	case Uninitialized:
		c.mu.Unlock()
		return ErrNotActive
	case Destroyed:
		c.mu.Unlock()
		return ErrDestroyed
	}
	if c.drivers > 0 {
		n := c.drivers
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrDriversAlive, n)
	}
	c.factory.Destroy()
	c.factory = nil
	c.state = Destroyed
	c.mu.Unlock()

	c.logger.Info("engine shut down")
	c.notify(Destroyed)
	return nil
}

// Acquire registers a live simulation object. The returned release func is
// idempotent.
func (c *Context) Acquire() (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Active {
		return nil, fmt.Errorf("%w: %v", ErrNotActive, c.state)
	}
	c.drivers++

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.drivers--
			c.mu.Unlock()
		})
	}, nil
}

// Factory returns the type factory, nil outside Active.
func (c *Context) Factory() *engine.Factory {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.factory
}

// Diagnostics returns the registry installed by Start.
func (c *Context) Diagnostics() *diag.Registry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.diag
}

func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Drivers returns the number of outstanding Acquire holds.
func (c *Context) Drivers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drivers
}

func (c *Context) Logger() *zap.Logger { return c.logger }

func (c *Context) notify(s State) {
	if c.onState != nil {
		c.onState(s)
	}
}
