package layers

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	ErrTooManyLayers    = errors.New("layers: more object layers than filter bits")
	ErrBroadPhaseLayers = errors.New("layers: more broad-phase layers than object layers")
	ErrUnmapped         = errors.New("layers: object layer without broad-phase layer")
	ErrAsymmetric       = errors.New("layers: collision predicate is not symmetric")
	ErrInconsistent     = errors.New("layers: object and broad-phase predicates disagree")
)

// Category is the filter bit of an object layer.
func Category(o ObjectLayer) uint {
	return 1 << uint(o)
}

// Mask returns the categories o may touch: layers accepted by the object
// predicate whose broad-phase tree is also accepted for o.
func Mask(s Scheme, o ObjectLayer) uint {
	var mask uint
	for other := 0; other < s.NumObjectLayers(); other++ {
		ol := ObjectLayer(other)
		bp, ok := s.BroadPhaseLayer(ol)
		if !ok {
			continue
		}
		if s.ShouldCollide(o, ol) && s.ShouldCollideBroadPhase(o, bp) {
			mask |= Category(ol)
		}
	}
	return mask
}

// Validate checks a scheme for the invariants the engine relies on.
func Validate(s Scheme) error {
	n := s.NumObjectLayers()
	if n > bits.UintSize {
		return fmt.Errorf("%w: %d", ErrTooManyLayers, n)
	}
	if s.NumBroadPhaseLayers() > n {
		return fmt.Errorf("%w: %d > %d", ErrBroadPhaseLayers, s.NumBroadPhaseLayers(), n)
	}

	mapped := make([]BroadPhaseLayer, n)
	for i := 0; i < n; i++ {
		bp, ok := s.BroadPhaseLayer(ObjectLayer(i))
		if !ok || int(bp) >= s.NumBroadPhaseLayers() {
			return fmt.Errorf("%w: %d", ErrUnmapped, i)
		}
		mapped[i] = bp
	}

	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			la, lb := ObjectLayer(a), ObjectLayer(b)
			ab := s.ShouldCollide(la, lb)
			if ab != s.ShouldCollide(lb, la) {
				return fmt.Errorf("%w: (%d, %d)", ErrAsymmetric, a, b)
			}
			if ab && !s.ShouldCollideBroadPhase(la, mapped[b]) {
				return fmt.Errorf("%w: (%d, %d) collide but broad-phase layer %d is skipped", ErrInconsistent, a, b, mapped[b])
			}
		}
	}
	return nil
}
