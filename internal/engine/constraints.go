package engine

import "github.com/jakecoffman/cp"

type ConstraintID uint32

// ConstraintSettings describes a built-in constraint. Use StaticAnchor as a
// body to pin against the world.
type ConstraintSettings interface {
	TypeName() string
	Bodies() (BodyID, BodyID)
	create(a, b *cp.Body) *cp.Constraint
}

type PinConstraint struct {
	BodyA, BodyB     BodyID
	AnchorA, AnchorB cp.Vector
}

func (PinConstraint) TypeName() string           { return TypePin }
func (c PinConstraint) Bodies() (BodyID, BodyID) { return c.BodyA, c.BodyB }

func (c PinConstraint) create(a, b *cp.Body) *cp.Constraint {
	return cp.NewPinJoint(a, b, c.AnchorA, c.AnchorB)
}

type SlideConstraint struct {
	BodyA, BodyB     BodyID
	AnchorA, AnchorB cp.Vector
	Min, Max         float64
}

func (SlideConstraint) TypeName() string           { return TypeSlide }
func (c SlideConstraint) Bodies() (BodyID, BodyID) { return c.BodyA, c.BodyB }

func (c SlideConstraint) create(a, b *cp.Body) *cp.Constraint {
	return cp.NewSlideJoint(a, b, c.AnchorA, c.AnchorB, c.Min, c.Max)
}

// PivotConstraint joins two bodies at a world-space point.
type PivotConstraint struct {
	BodyA, BodyB BodyID
	Pivot        cp.Vector
}

func (PivotConstraint) TypeName() string           { return TypePivot }
func (c PivotConstraint) Bodies() (BodyID, BodyID) { return c.BodyA, c.BodyB }

func (c PivotConstraint) create(a, b *cp.Body) *cp.Constraint {
	return cp.NewPivotJoint(a, b, c.Pivot)
}

type DampedSpringConstraint struct {
	BodyA, BodyB       BodyID
	AnchorA, AnchorB   cp.Vector
	RestLength         float64
	Stiffness, Damping float64
}

func (DampedSpringConstraint) TypeName() string           { return TypeDampedSpring }
func (c DampedSpringConstraint) Bodies() (BodyID, BodyID) { return c.BodyA, c.BodyB }

func (c DampedSpringConstraint) create(a, b *cp.Body) *cp.Constraint {
	return cp.NewDampedSpring(a, b, c.AnchorA, c.AnchorB, c.RestLength, c.Stiffness, c.Damping)
}
