// Package layers classifies bodies for collision purposes.
//
// Every body carries one ObjectLayer. The engine inserts its bounding volume
// into the broad-phase tree of the BroadPhaseLayer its object layer maps to.
// Static geometry lives in its own tree so static-vs-static pairs are never
// tested.
package layers

import "fmt"

type ObjectLayer uint16

const (
	NonMoving ObjectLayer = iota
	Moving
	NumLayers
)

func (l ObjectLayer) String() string {
	switch l {
	case NonMoving:
		return "NON_MOVING"
	case Moving:
		return "MOVING"
	default:
		return fmt.Sprintf("ObjectLayer(%d)", uint16(l))
	}
}

type BroadPhaseLayer uint8

const (
	BroadPhaseNonMoving BroadPhaseLayer = iota
	BroadPhaseMoving
	NumBroadPhaseLayers
)

// BroadPhaseLayerInterface maps object layers onto broad-phase trees.
type BroadPhaseLayerInterface interface {
	NumBroadPhaseLayers() int
	// BroadPhaseLayer returns false for an object layer outside the table.
	BroadPhaseLayer(ObjectLayer) (BroadPhaseLayer, bool)
	BroadPhaseLayerName(BroadPhaseLayer) (string, bool)
}

// ObjectLayerPairFilter decides whether bodies in two object layers collide.
type ObjectLayerPairFilter interface {
	ShouldCollide(a, b ObjectLayer) bool
}

// ObjectVsBroadPhaseLayerFilter decides whether an object layer needs to be
// tested against a broad-phase tree at all.
type ObjectVsBroadPhaseLayerFilter interface {
	ShouldCollideBroadPhase(ObjectLayer, BroadPhaseLayer) bool
}

// Scheme bundles the three capabilities the engine needs at init time.
type Scheme interface {
	BroadPhaseLayerInterface
	ObjectLayerPairFilter
	ObjectVsBroadPhaseLayerFilter
	NumObjectLayers() int
}
