package scene

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/rigidsim/internal/arena"
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/engine"
	"github.com/san-kum/rigidsim/internal/layers"
)

func newSystem(t *testing.T, settings engine.Settings) *engine.System {
	t.Helper()
	f := engine.NewFactory()
	if err := engine.RegisterTypes(f); err != nil {
		t.Fatalf("register: %v", err)
	}
	s, err := engine.NewSystem(f, settings, layers.NewTwoLayerPolicy(nil), nil)
	if err != nil {
		t.Fatalf("system: %v", err)
	}
	t.Cleanup(s.Destroy)
	return s
}

func step(t *testing.T, s *engine.System, frames int) engine.UpdateStats {
	t.Helper()
	a, err := arena.New(arena.DefaultCapacity)
	if err != nil {
		t.Fatalf("arena: %v", err)
	}
	var stats engine.UpdateStats
	for i := 0; i < frames; i++ {
		a.Reset()
		stats, err = s.Update(config.DefaultDt, 1, 1, a, nil)
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}
	return stats
}

func TestBuildEmpty(t *testing.T) {
	s := newSystem(t, engine.DefaultSettings())
	for _, kind := range []string{"", KindEmpty} {
		sc, err := Build(s, config.SceneConfig{Kind: kind, Bodies: 10})
		if err != nil {
			t.Fatalf("build %q: %v", kind, err)
		}
		if sc.Kind != KindEmpty || sc.Count() != 0 {
			t.Errorf("expected empty scene, got %+v", sc)
		}
	}
}

func TestBuildUnknown(t *testing.T) {
	s := newSystem(t, engine.DefaultSettings())
	if _, err := Build(s, config.SceneConfig{Kind: "volcano"}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestPileSettles(t *testing.T) {
	s := newSystem(t, engine.DefaultSettings())
	sc, err := Build(s, config.SceneConfig{Kind: KindPile, Bodies: 25, Seed: 7, Height: 5})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(sc.Static) != 3 || len(sc.Bodies) != 25 {
		t.Fatalf("expected 3 static and 25 dynamic bodies, got %d/%d", len(sc.Static), len(sc.Bodies))
	}
	if s.BodyCount() != 28 {
		t.Errorf("expected 28 bodies, got %d", s.BodyCount())
	}

	stats := step(t, s, 300)
	if stats.BodyPairs == 0 {
		t.Error("expected resting contacts")
	}
	if stats.InvalidBodies != 0 {
		t.Errorf("expected no invalid bodies, got %d", stats.InvalidBodies)
	}
	for _, id := range sc.Bodies {
		p, err := s.Position(id)
		if err != nil {
			t.Fatalf("position: %v", err)
		}
		if p.Y < 0 {
			t.Errorf("body %d fell through the ground: y=%v", id, p.Y)
		}
	}
}

func TestPileDeterministic(t *testing.T) {
	cfg := config.SceneConfig{Kind: KindPile, Bodies: 5, Seed: 42}
	a := newSystem(t, engine.DefaultSettings())
	b := newSystem(t, engine.DefaultSettings())
	sa, err := Build(a, cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	sb, err := Build(b, cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for i := range sa.Bodies {
		pa, _ := a.Position(sa.Bodies[i])
		pb, _ := b.Position(sb.Bodies[i])
		if pa != pb {
			t.Errorf("body %d: %v != %v", i, pa, pb)
		}
	}
}

func TestPileCapacity(t *testing.T) {
	settings := engine.DefaultSettings()
	settings.MaxBodies = 10
	s := newSystem(t, settings)

	if _, err := Build(s, config.SceneConfig{Kind: KindPile, Bodies: 20}); !errors.Is(err, engine.ErrTooManyBodies) {
		t.Errorf("expected ErrTooManyBodies, got %v", err)
	}
	if s.BodyCount() != 10 {
		t.Errorf("expected 10 bodies, got %d", s.BodyCount())
	}
}

func TestChainHangs(t *testing.T) {
	s := newSystem(t, engine.DefaultSettings())
	sc, err := Build(s, config.SceneConfig{Kind: KindChain, Bodies: 6, Height: 10})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(sc.Constraints) != 7 || s.ConstraintCount() != 7 {
		t.Errorf("expected 7 constraints, got %d/%d", len(sc.Constraints), s.ConstraintCount())
	}

	step(t, s, 240)

	first, err := s.Position(sc.Bodies[0])
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if d := math.Hypot(first.X, first.Y-10); d > 0.75 {
		t.Errorf("first link drifted %v from the pivot", d)
	}
	last, _ := s.Position(sc.Bodies[len(sc.Bodies)-1])
	if last.Y >= 10 {
		t.Errorf("expected chain to swing down, last link at y=%v", last.Y)
	}
}
