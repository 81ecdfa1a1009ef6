package engine

import (
	"fmt"

	"github.com/jakecoffman/cp"
)

const (
	TypeSphere       = "SphereShape"
	TypeBox          = "BoxShape"
	TypeSegment      = "SegmentShape"
	TypePin          = "PinConstraint"
	TypeSlide        = "SlideConstraint"
	TypePivot        = "PivotConstraint"
	TypeDampedSpring = "DampedSpringConstraint"
)

// ShapeSettings describes a built-in shape.
type ShapeSettings interface {
	TypeName() string
	validate() error
	create(body *cp.Body) *cp.Shape
	moment(mass float64) float64
}

// SphereShape is a circle in the 2D engine.
type SphereShape struct {
	Radius float64
}

func (SphereShape) TypeName() string { return TypeSphere }

func (s SphereShape) validate() error {
	if s.Radius <= 0 {
		return fmt.Errorf("%w: sphere radius %g", ErrInvalidSettings, s.Radius)
	}
	return nil
}

func (s SphereShape) create(body *cp.Body) *cp.Shape {
	return cp.NewCircle(body, s.Radius, cp.Vector{})
}

func (s SphereShape) moment(mass float64) float64 {
	return cp.MomentForCircle(mass, 0, s.Radius, cp.Vector{})
}

// BoxShape is centered on the body; Radius rounds the corners.
type BoxShape struct {
	Width, Height float64
	Radius        float64
}

func (BoxShape) TypeName() string { return TypeBox }

func (s BoxShape) validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: box %gx%g", ErrInvalidSettings, s.Width, s.Height)
	}
	return nil
}

func (s BoxShape) create(body *cp.Body) *cp.Shape {
	return cp.NewBox(body, s.Width, s.Height, s.Radius)
}

func (s BoxShape) moment(mass float64) float64 {
	return cp.MomentForBox(mass, s.Width, s.Height)
}

// SegmentShape is a thick line in body-local coordinates.
type SegmentShape struct {
	A, B   cp.Vector
	Radius float64
}

func (SegmentShape) TypeName() string { return TypeSegment }

func (s SegmentShape) validate() error {
	if s.A == s.B {
		return fmt.Errorf("%w: degenerate segment", ErrInvalidSettings)
	}
	return nil
}

func (s SegmentShape) create(body *cp.Body) *cp.Shape {
	return cp.NewSegment(body, s.A, s.B, s.Radius)
}

func (s SegmentShape) moment(mass float64) float64 {
	return cp.MomentForSegment(mass, s.A, s.B, s.Radius)
}
