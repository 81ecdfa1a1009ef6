package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/jakecoffman/cp"
	"github.com/san-kum/rigidsim/internal/diag"
	"github.com/san-kum/rigidsim/internal/layers"
)

const (
	DefaultMaxBodies             = 1024
	DefaultMaxBodyPairs          = 1024
	DefaultMaxContactConstraints = 1024
	DefaultIterations            = 10
)

// Settings are fixed for the lifetime of a System.
type Settings struct {
	MaxBodies int
	// NumBodyMutexes of zero selects DefaultBodyMutexes.
	NumBodyMutexes        int
	MaxBodyPairs          int
	MaxContactConstraints int
	Gravity               cp.Vector
	Iterations            uint
}

func DefaultSettings() Settings {
	return Settings{
		MaxBodies:             DefaultMaxBodies,
		MaxBodyPairs:          DefaultMaxBodyPairs,
		MaxContactConstraints: DefaultMaxContactConstraints,
		Gravity:               cp.Vector{X: 0, Y: -9.81},
		Iterations:            DefaultIterations,
	}
}

func (s Settings) Validate() error {
	if s.MaxBodies <= 0 {
		return fmt.Errorf("%w: max bodies %d", ErrInvalidSettings, s.MaxBodies)
	}
	if s.MaxBodyPairs <= 0 {
		return fmt.Errorf("%w: max body pairs %d", ErrInvalidSettings, s.MaxBodyPairs)
	}
	if s.MaxContactConstraints <= 0 {
		return fmt.Errorf("%w: max contact constraints %d", ErrInvalidSettings, s.MaxContactConstraints)
	}
	if s.NumBodyMutexes < 0 {
		return fmt.Errorf("%w: body mutexes %d", ErrInvalidSettings, s.NumBodyMutexes)
	}
	return nil
}

// System is one engine instance.
type System struct {
	factory  *Factory
	settings Settings
	scheme   layers.Scheme
	masks    []uint
	diag     *diag.Registry

	space *cp.Space
	locks *bodyLocks

	bodies      map[BodyID]*bodyEntry
	active      []*bodyEntry
	nextBody    BodyID
	constraints map[ConstraintID]*constraintEntry
	nextCons    ConstraintID

	destroyed atomic.Bool
}

// NewSystem initializes an engine instance. The factory must have its
// built-in types registered and scheme must pass layers.Validate.
func NewSystem(f *Factory, settings Settings, scheme layers.Scheme, reg *diag.Registry) (*System, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil factory", ErrInvalidSettings)
	}
	if err := f.ready(); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if scheme == nil {
		return nil, fmt.Errorf("%w: nil layer scheme", ErrInvalidSettings)
	}
	if err := layers.Validate(scheme); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	if settings.Iterations == 0 {
		settings.Iterations = DefaultIterations
	}
	space := cp.NewSpace()
	space.Iterations = settings.Iterations
	space.SetGravity(settings.Gravity)

	masks := make([]uint, scheme.NumObjectLayers())
	for i := range masks {
		masks[i] = layers.Mask(scheme, layers.ObjectLayer(i))
	}

	locks := newBodyLocks(settings.NumBodyMutexes)
	settings.NumBodyMutexes = locks.len()

	return &System{
		factory:     f,
		settings:    settings,
		scheme:      scheme,
		masks:       masks,
		diag:        reg,
		space:       space,
		locks:       locks,
		bodies:      make(map[BodyID]*bodyEntry),
		constraints: make(map[ConstraintID]*constraintEntry),
	}, nil
}

// Settings returns the effective settings, with defaults resolved.
func (s *System) Settings() Settings { return s.settings }

func (s *System) Scheme() layers.Scheme { return s.scheme }

// Destroy removes every body and constraint. The System cannot be used
// afterwards.
func (s *System) Destroy() {
	if !s.destroyed.CompareAndSwap(false, true) {
		return
	}
	s.locks.lockAll()
	defer s.locks.unlockAll()

	for id, c := range s.constraints {
		s.space.RemoveConstraint(c.constraint)
		delete(s.constraints, id)
	}
	for id, e := range s.bodies {
		s.detach(e)
		delete(s.bodies, id)
	}
	s.active = nil
}

func (s *System) Destroyed() bool { return s.destroyed.Load() }

func (s *System) alive() error {
	if s.destroyed.Load() {
		return ErrDestroyed
	}
	return nil
}
