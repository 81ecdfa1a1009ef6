package engine

import (
	"fmt"

	"github.com/jakecoffman/cp"
	"github.com/san-kum/rigidsim/internal/diag"
	"github.com/san-kum/rigidsim/internal/layers"
)

type BodyID uint32

// StaticAnchor refers to the world when used as a constraint body.
const StaticAnchor BodyID = ^BodyID(0)

type MotionType int

const (
	MotionStatic MotionType = iota
	MotionKinematic
	MotionDynamic
)

func (m MotionType) String() string {
	switch m {
	case MotionStatic:
		return "static"
	case MotionKinematic:
		return "kinematic"
	case MotionDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("motion(%d)", int(m))
	}
}

type BodyCreationSettings struct {
	Shape      ShapeSettings
	Position   cp.Vector
	Angle      float64
	Velocity   cp.Vector
	MotionType MotionType
	Layer      layers.ObjectLayer
	// Mass of a dynamic body; non-positive values select 1.
	Mass       float64
	Friction   float64
	Elasticity float64
}

type bodyEntry struct {
	id     BodyID
	body   *cp.Body
	shape  *cp.Shape
	layer  layers.ObjectLayer
	motion MotionType
	// index into System.active, -1 for static bodies.
	index int
}

type constraintEntry struct {
	constraint *cp.Constraint
	a, b       BodyID
}

// CreateBody creates a body with one shape and adds it to the space.
func (s *System) CreateBody(settings BodyCreationSettings) (BodyID, error) {
	if err := s.alive(); err != nil {
		return 0, err
	}
	if int(settings.Layer) >= s.scheme.NumObjectLayers() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLayer, settings.Layer)
	}
	if _, ok := s.scheme.BroadPhaseLayer(settings.Layer); !ok {
		return 0, fmt.Errorf("%w: %d has no broad-phase layer", ErrInvalidLayer, settings.Layer)
	}
	if settings.Shape == nil {
		return 0, fmt.Errorf("%w: body without shape", ErrInvalidSettings)
	}
	if err := settings.Shape.validate(); err != nil {
		return 0, err
	}

	s.locks.lockAll()
	defer s.locks.unlockAll()

	if len(s.bodies) >= s.settings.MaxBodies {
		s.diag.Tracef(diag.SeverityWarn, "body capacity %d exhausted", s.settings.MaxBodies)
		return 0, fmt.Errorf("%w: %d", ErrTooManyBodies, s.settings.MaxBodies)
	}
	if settings.MotionType == MotionStatic && s.scheme.ShouldCollide(settings.Layer, settings.Layer) {
		s.diag.Tracef(diag.SeverityWarn, "static body in self-colliding layer %v: static pairs are never tested", settings.Layer)
	}

	var body *cp.Body
	switch settings.MotionType {
	case MotionStatic:
		body = cp.NewStaticBody()
	case MotionKinematic:
		body = cp.NewKinematicBody()
	case MotionDynamic:
		mass := settings.Mass
		if mass <= 0 {
			mass = 1
		}
		body = cp.NewBody(mass, settings.Shape.moment(mass))
	default:
		return 0, fmt.Errorf("%w: motion type %v", ErrInvalidSettings, settings.MotionType)
	}
	body.SetPosition(settings.Position)
	body.SetAngle(settings.Angle)
	if settings.MotionType != MotionStatic {
		body.SetVelocityVector(settings.Velocity)
	}

	shape, err := s.factory.CreateShape(body, settings.Shape)
	if err != nil {
		return 0, err
	}
	shape.SetFriction(settings.Friction)
	shape.SetElasticity(settings.Elasticity)
	shape.SetFilter(cp.ShapeFilter{
		Categories: layers.Category(settings.Layer),
		Mask:       s.masks[settings.Layer],
	})

	id := s.nextBody
	s.nextBody++
	body.UserData = id

	s.space.AddBody(body)
	s.space.AddShape(shape)

	e := &bodyEntry{id: id, body: body, shape: shape, layer: settings.Layer, motion: settings.MotionType, index: -1}
	if settings.MotionType != MotionStatic {
		e.index = len(s.active)
		s.active = append(s.active, e)
	}
	s.bodies[id] = e
	return id, nil
}

// RemoveBody removes a body and every constraint attached to it.
func (s *System) RemoveBody(id BodyID) error {
	if err := s.alive(); err != nil {
		return err
	}
	s.locks.lockAll()
	defer s.locks.unlockAll()

	e, ok := s.bodies[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidBody, id)
	}
	for cid, c := range s.constraints {
		if c.a == id || c.b == id {
			s.space.RemoveConstraint(c.constraint)
			delete(s.constraints, cid)
		}
	}
	s.detach(e)
	if e.index >= 0 {
		last := len(s.active) - 1
		moved := s.active[last]
		s.active[e.index] = moved
		moved.index = e.index
		s.active[last] = nil
		s.active = s.active[:last]
	}
	delete(s.bodies, id)
	return nil
}

func (s *System) detach(e *bodyEntry) {
	s.space.RemoveShape(e.shape)
	s.space.RemoveBody(e.body)
}

func (s *System) BodyCount() int {
	s.locks.lockAll()
	defer s.locks.unlockAll()
	return len(s.bodies)
}

func (s *System) withBody(id BodyID, fn func(e *bodyEntry)) error {
	if err := s.alive(); err != nil {
		return err
	}
	s.locks.lock(id)
	defer s.locks.unlock(id)
	e, ok := s.bodies[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidBody, id)
	}
	fn(e)
	return nil
}

func (s *System) Position(id BodyID) (cp.Vector, error) {
	var p cp.Vector
	err := s.withBody(id, func(e *bodyEntry) { p = e.body.Position() })
	return p, err
}

func (s *System) LinearVelocity(id BodyID) (cp.Vector, error) {
	var v cp.Vector
	err := s.withBody(id, func(e *bodyEntry) { v = e.body.Velocity() })
	return v, err
}

func (s *System) SetLinearVelocity(id BodyID, v cp.Vector) error {
	return s.withBody(id, func(e *bodyEntry) {
		if e.motion != MotionStatic {
			e.body.SetVelocityVector(v)
		}
	})
}

func (s *System) Layer(id BodyID) (layers.ObjectLayer, error) {
	var l layers.ObjectLayer
	err := s.withBody(id, func(e *bodyEntry) { l = e.layer })
	return l, err
}

func (s *System) MotionType(id BodyID) (MotionType, error) {
	var m MotionType
	err := s.withBody(id, func(e *bodyEntry) { m = e.motion })
	return m, err
}

// AddConstraint creates a built-in constraint between two bodies.
func (s *System) AddConstraint(settings ConstraintSettings) (ConstraintID, error) {
	if err := s.alive(); err != nil {
		return 0, err
	}
	if settings == nil {
		return 0, fmt.Errorf("%w: nil constraint", ErrInvalidSettings)
	}
	s.locks.lockAll()
	defer s.locks.unlockAll()

	ida, idb := settings.Bodies()
	a, err := s.constraintBody(ida)
	if err != nil {
		return 0, err
	}
	b, err := s.constraintBody(idb)
	if err != nil {
		return 0, err
	}
	c, err := s.factory.CreateConstraint(a, b, settings)
	if err != nil {
		return 0, err
	}
	s.space.AddConstraint(c)

	id := s.nextCons
	s.nextCons++
	s.constraints[id] = &constraintEntry{constraint: c, a: ida, b: idb}
	return id, nil
}

func (s *System) RemoveConstraint(id ConstraintID) error {
	if err := s.alive(); err != nil {
		return err
	}
	s.locks.lockAll()
	defer s.locks.unlockAll()

	c, ok := s.constraints[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidConstraint, id)
	}
	s.space.RemoveConstraint(c.constraint)
	delete(s.constraints, id)
	return nil
}

func (s *System) ConstraintCount() int {
	s.locks.lockAll()
	defer s.locks.unlockAll()
	return len(s.constraints)
}

func (s *System) constraintBody(id BodyID) (*cp.Body, error) {
	if id == StaticAnchor {
		return s.space.StaticBody, nil
	}
	e, ok := s.bodies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBody, id)
	}
	return e.body, nil
}

func bodyIDOf(b *cp.Body) (BodyID, bool) {
	if b == nil {
		return 0, false
	}
	id, ok := b.UserData.(BodyID)
	return id, ok
}
