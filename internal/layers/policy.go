package layers

import (
	"fmt"

	"github.com/san-kum/rigidsim/internal/diag"
)

// Policy is the two-category scheme: static geometry never collides with
// other static geometry, moving bodies collide with everything.
type Policy struct {
	table Table
	// members[bp] lists the object layers mapped onto bp.
	members [NumBroadPhaseLayers][]ObjectLayer
	diag    *diag.Registry
}

var _ Scheme = (*Policy)(nil)

// NewTwoLayerPolicy maps NonMoving and Moving 1:1 onto their broad-phase
// layers. Contract violations are reported to reg, which may be nil.
func NewTwoLayerPolicy(reg *diag.Registry) *Policy {
	p := &Policy{
		table: NewTable(BroadPhaseNonMoving, BroadPhaseMoving),
		diag:  reg,
	}
	for bp := range p.members {
		p.members[bp] = p.table.Members(BroadPhaseLayer(bp))
	}
	return p
}

func (p *Policy) NumObjectLayers() int     { return int(NumLayers) }
func (p *Policy) NumBroadPhaseLayers() int { return int(NumBroadPhaseLayers) }

// Table exposes the mapping table.
func (p *Policy) Table() Table { return p.table }

func (p *Policy) BroadPhaseLayer(o ObjectLayer) (BroadPhaseLayer, bool) {
	bp, ok := p.table.Lookup(o)
	p.diag.Assert(ok, "inLayer < NumLayers", fmt.Sprintf("object layer %d has no broad-phase layer", o))
	return bp, ok
}

func (p *Policy) BroadPhaseLayerName(bp BroadPhaseLayer) (string, bool) {
	switch bp {
	case BroadPhaseNonMoving:
		return "NON_MOVING", true
	case BroadPhaseMoving:
		return "MOVING", true
	default:
		p.diag.Assert(false, "known broad-phase layer", fmt.Sprintf("broad-phase layer %d", bp))
		return "INVALID", false
	}
}

func (p *Policy) ShouldCollide(a, b ObjectLayer) bool {
	if b >= NumLayers {
		p.diag.Assert(false, "inObject2 < NumLayers", fmt.Sprintf("object layer %d", b))
		return false
	}
	switch a {
	case NonMoving:
		return b == Moving
	case Moving:
		return true
	default:
		p.diag.Assert(false, "inObject1 < NumLayers", fmt.Sprintf("object layer %d", a))
		return false
	}
}

// ShouldCollideBroadPhase is derived from ShouldCollide and the table: a
// tree is worth testing when it holds at least one collidable object layer.
func (p *Policy) ShouldCollideBroadPhase(o ObjectLayer, bp BroadPhaseLayer) bool {
	if o >= NumLayers {
		p.diag.Assert(false, "inLayer1 < NumLayers", fmt.Sprintf("object layer %d", o))
		return false
	}
	if bp >= NumBroadPhaseLayers {
		p.diag.Assert(false, "inLayer2 < NumBroadPhaseLayers", fmt.Sprintf("broad-phase layer %d", bp))
		return false
	}
	for _, member := range p.members[bp] {
		if p.ShouldCollide(o, member) {
			return true
		}
	}
	return false
}
