// Package scene populates an engine instance with the demo worlds used by
// the CLI and the live view.
package scene

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/jakecoffman/cp"
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/engine"
	"github.com/san-kum/rigidsim/internal/layers"
)

const (
	KindEmpty = "empty"
	KindPile  = "pile"
	KindChain = "chain"

	groundWidth = 60.0
	linkLength  = 1.0
)

var ErrUnknownKind = errors.New("scene: unknown kind")

type Scene struct {
	Kind        string
	Static      []engine.BodyID
	Bodies      []engine.BodyID
	Constraints []engine.ConstraintID
}

func Kinds() []string {
	return []string{KindChain, KindEmpty, KindPile}
}

// Build creates the bodies of cfg.Kind in s. On error the bodies created so
// far are left in place.
func Build(s *engine.System, cfg config.SceneConfig) (*Scene, error) {
	sc := &Scene{Kind: cfg.Kind}
	switch cfg.Kind {
	case "", KindEmpty:
		sc.Kind = KindEmpty
		return sc, nil
	case KindPile:
		return sc, sc.buildPile(s, cfg)
	case KindChain:
		return sc, sc.buildChain(s, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

func (sc *Scene) addStatic(s *engine.System, shape engine.ShapeSettings, pos cp.Vector) error {
	id, err := s.CreateBody(engine.BodyCreationSettings{
		Shape:      shape,
		Position:   pos,
		MotionType: engine.MotionStatic,
		Layer:      layers.NonMoving,
		Friction:   0.8,
	})
	if err != nil {
		return err
	}
	sc.Static = append(sc.Static, id)
	return nil
}

func (sc *Scene) addGround(s *engine.System, wallHeight float64) error {
	if err := sc.addStatic(s, engine.BoxShape{Width: groundWidth, Height: 1}, cp.Vector{}); err != nil {
		return fmt.Errorf("scene: ground: %w", err)
	}
	if wallHeight <= 0 {
		return nil
	}
	half := groundWidth / 2
	for _, x := range []float64{-half, half} {
		wall := engine.SegmentShape{A: cp.Vector{X: 0, Y: 0}, B: cp.Vector{X: 0, Y: wallHeight}, Radius: 0.25}
		if err := sc.addStatic(s, wall, cp.Vector{X: x}); err != nil {
			return fmt.Errorf("scene: wall: %w", err)
		}
	}
	return nil
}

func (sc *Scene) buildPile(s *engine.System, cfg config.SceneConfig) error {
	height := cfg.Height
	if height <= 0 {
		height = config.DefaultSceneHeight
	}
	if err := sc.addGround(s, height*2); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	for i := 0; i < cfg.Bodies; i++ {
		var shape engine.ShapeSettings = engine.SphereShape{Radius: 0.3 + rng.Float64()*0.3}
		if rng.Intn(2) == 0 {
			shape = engine.BoxShape{Width: 0.5 + rng.Float64()*0.5, Height: 0.5 + rng.Float64()*0.5}
		}
		pos := cp.Vector{
			X: (rng.Float64() - 0.5) * (groundWidth - 10),
			Y: 2 + rng.Float64()*height + float64(i)*0.05,
		}
		id, err := s.CreateBody(engine.BodyCreationSettings{
			Shape:      shape,
			Position:   pos,
			Angle:      rng.Float64() * 3.14,
			MotionType: engine.MotionDynamic,
			Layer:      layers.Moving,
			Mass:       1,
			Friction:   0.6,
			Elasticity: 0.1,
		})
		if err != nil {
			return fmt.Errorf("scene: body %d: %w", i, err)
		}
		sc.Bodies = append(sc.Bodies, id)
	}
	return nil
}

// buildChain hangs cfg.Bodies links from a world pivot at cfg.Height.
func (sc *Scene) buildChain(s *engine.System, cfg config.SceneConfig) error {
	height := cfg.Height
	if height <= 0 {
		height = config.DefaultSceneHeight
	}
	if err := sc.addGround(s, 0); err != nil {
		return err
	}

	prev := engine.StaticAnchor
	for i := 0; i < cfg.Bodies; i++ {
		center := cp.Vector{X: (float64(i) + 0.5) * linkLength, Y: height}
		id, err := s.CreateBody(engine.BodyCreationSettings{
			Shape:      engine.BoxShape{Width: linkLength * 0.8, Height: 0.2},
			Position:   center,
			MotionType: engine.MotionDynamic,
			Layer:      layers.Moving,
			Mass:       0.5,
			Friction:   0.3,
		})
		if err != nil {
			return fmt.Errorf("scene: link %d: %w", i, err)
		}
		sc.Bodies = append(sc.Bodies, id)

		joint := cp.Vector{X: float64(i) * linkLength, Y: height}
		cid, err := s.AddConstraint(engine.PivotConstraint{BodyA: prev, BodyB: id, Pivot: joint})
		if err != nil {
			return fmt.Errorf("scene: joint %d: %w", i, err)
		}
		sc.Constraints = append(sc.Constraints, cid)
		prev = id
	}

	if n := len(sc.Bodies); n > 1 {
		// Caps the chain's stretch at its rest length.
		cid, err := s.AddConstraint(engine.SlideConstraint{
			BodyA:   engine.StaticAnchor,
			BodyB:   sc.Bodies[n-1],
			AnchorA: cp.Vector{X: 0, Y: height},
			Max:     float64(n) * linkLength,
		})
		if err != nil {
			return fmt.Errorf("scene: limit: %w", err)
		}
		sc.Constraints = append(sc.Constraints, cid)
	}
	return nil
}

// Count is the number of bodies the scene created.
func (sc *Scene) Count() int {
	return len(sc.Static) + len(sc.Bodies)
}
