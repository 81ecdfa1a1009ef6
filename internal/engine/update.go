package engine

import (
	"fmt"
	"math"
	"strings"
	"unsafe"

	"github.com/jakecoffman/cp"
	"github.com/san-kum/rigidsim/internal/arena"
	"github.com/san-kum/rigidsim/internal/diag"
	"github.com/san-kum/rigidsim/internal/jobs"
)

// UpdateError is a set of non-fatal conditions raised during one Update.
type UpdateError uint32

const (
	ErrorBodyPairCacheFull UpdateError = 1 << iota
	ErrorContactConstraintsFull
	ErrorInvalidBodyState
)

var updateErrorNames = []struct {
	flag UpdateError
	name string
}{
	{ErrorBodyPairCacheFull, "body_pair_cache_full"},
	{ErrorContactConstraintsFull, "contact_constraints_full"},
	{ErrorInvalidBodyState, "invalid_body_state"},
}

// UpdateErrorFlags lists every flag in bit order.
func UpdateErrorFlags() []UpdateError {
	out := make([]UpdateError, len(updateErrorNames))
	for i, n := range updateErrorNames {
		out[i] = n.flag
	}
	return out
}

func (e UpdateError) Has(flag UpdateError) bool { return e&flag != 0 }

func (e UpdateError) String() string {
	if e == 0 {
		return "none"
	}
	var parts []string
	for _, n := range updateErrorNames {
		if e&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := e &^ (ErrorBodyPairCacheFull | ErrorContactConstraintsFull | ErrorInvalidBodyState); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// BodyPair is one touching pair found during an Update, with A < B. A static
// body may appear on either side.
type BodyPair struct {
	A, B     BodyID
	Contacts int32
}

type UpdateStats struct {
	CollisionSteps int
	SubSteps       int
	Bodies         int
	ActiveBodies   int
	BodyPairs      int
	Contacts       int
	KineticEnergy  float64
	InvalidBodies  int
	ScratchBytes   int
	Errors         UpdateError
	// Pairs lives in scratch memory and is only valid until the
	// allocator is reset.
	Pairs []BodyPair
}

type usage interface {
	Used() int
}

// Update advances the simulation by dt, split into collisionSteps steps of
// subSteps integration steps each. Per-step scratch memory comes from alloc
// and the body state pass is spread over js when it is not nil.
func (s *System) Update(dt float64, collisionSteps, subSteps int, alloc arena.Allocator, js jobs.System) (UpdateStats, error) {
	stats := UpdateStats{CollisionSteps: collisionSteps, SubSteps: subSteps}
	if err := s.alive(); err != nil {
		return stats, err
	}
	if collisionSteps < 1 || subSteps < 1 {
		s.diag.Assert(false, "collisionSteps >= 1 && subSteps >= 1",
			fmt.Sprintf("got %d collision steps, %d sub steps", collisionSteps, subSteps))
		return stats, fmt.Errorf("%w: %d, %d", ErrInvalidStepCount, collisionSteps, subSteps)
	}
	if alloc == nil {
		return stats, fmt.Errorf("%w: nil allocator", ErrInvalidSettings)
	}
	if math.IsNaN(dt) || math.IsInf(dt, 0) {
		s.diag.Assert(false, "dt is finite", fmt.Sprintf("got dt %v", dt))
		return stats, fmt.Errorf("%w: %v", ErrInvalidTimeStep, dt)
	}

	s.locks.lockAll()
	defer s.locks.unlockAll()

	stats.Bodies = len(s.bodies)
	stats.ActiveBodies = len(s.active)
	if dt <= 0 {
		return stats, nil
	}

	// Scratch is taken before the space moves so exhaustion leaves the
	// world untouched.
	pairs, err := arena.Make[BodyPair](alloc, s.settings.MaxBodyPairs)
	if err != nil {
		return stats, fmt.Errorf("engine: body pair scratch: %w", err)
	}
	chunks := stateChunks(js, len(s.active))
	energy, err := arena.Make[float64](alloc, chunks)
	if err != nil {
		return stats, fmt.Errorf("engine: state scratch: %w", err)
	}
	invalid, err := arena.Make[int32](alloc, chunks)
	if err != nil {
		return stats, fmt.Errorf("engine: state scratch: %w", err)
	}

	h := stepSize(dt, collisionSteps, subSteps)
	for c := 0; c < collisionSteps; c++ {
		for i := 0; i < subSteps; i++ {
			s.space.Step(h)
		}
	}

	n := s.collectPairs(pairs, &stats)
	stats.Pairs = pairs[:n]
	stats.BodyPairs = n
	if stats.Contacts > s.settings.MaxContactConstraints {
		stats.Errors |= ErrorContactConstraintsFull
	}

	s.integrateState(js, energy, invalid, &stats)
	if stats.InvalidBodies > 0 {
		stats.Errors |= ErrorInvalidBodyState
	}

	if u, ok := alloc.(usage); ok {
		stats.ScratchBytes = u.Used()
	}
	if stats.Errors != 0 {
		s.diag.Tracef(diag.SeverityWarn, "update errors: %v (pairs=%d contacts=%d invalid=%d)",
			stats.Errors, stats.BodyPairs, stats.Contacts, stats.InvalidBodies)
	}
	return stats, nil
}

// collectPairs walks arbiters serially; cp arbiter iteration is not safe
// to run concurrently.
func (s *System) collectPairs(pairs []BodyPair, stats *UpdateStats) int {
	n := 0
	for _, e := range s.active {
		e.body.EachArbiter(func(arb *cp.Arbiter) {
			a, b := arb.Bodies()
			other := b
			if b == e.body {
				other = a
			}
			oid, ok := bodyIDOf(other)
			if !ok {
				return
			}
			if o, ok := s.bodies[oid]; !ok || (o.index >= 0 && oid < e.id) {
				return
			}
			contacts := arb.Count()
			stats.Contacts += contacts
			if n >= len(pairs) {
				stats.Errors |= ErrorBodyPairCacheFull
				return
			}
			pairs[n] = BodyPair{A: min(e.id, oid), B: max(e.id, oid), Contacts: int32(contacts)}
			n++
		})
	}
	return n
}

// stepSize divides dt without forming the product of the step counts.
func stepSize(dt float64, collisionSteps, subSteps int) float64 {
	return dt / float64(collisionSteps) / float64(subSteps)
}

// stateChunks is how many slices the body state pass is split into.
func stateChunks(js jobs.System, active int) int {
	if active == 0 {
		return 0
	}
	if js == nil {
		return 1
	}
	return min(js.Workers()+1, active)
}

// ScratchBytes is the least arena capacity one Update needs with the given
// settings when the state pass is spread over workers.
func ScratchBytes(settings Settings, workers int) int {
	const pad = 16
	chunks := max(workers, 0) + 1
	pairs := settings.MaxBodyPairs * int(unsafe.Sizeof(BodyPair{}))
	return pairs + pad + chunks*int(unsafe.Sizeof(float64(0))) + pad + chunks*int(unsafe.Sizeof(int32(0))) + pad
}

// integrateState sums kinetic energy and counts non-finite bodies in
// parallel chunks, one per element of energy and invalid.
func (s *System) integrateState(js jobs.System, energy []float64, invalid []int32, stats *UpdateStats) {
	active := s.active
	chunks := len(energy)
	if len(active) == 0 || chunks == 0 {
		return
	}

	size := (len(active) + chunks - 1) / chunks
	s.parallel(js, chunks, func(c int) {
		lo := min(c*size, len(active))
		hi := min(lo+size, len(active))
		for _, e := range active[lo:hi] {
			b := e.body
			p, v, w := b.Position(), b.Velocity(), b.AngularVelocity()
			if !finite(p.X, p.Y, v.X, v.Y, w, b.Angle()) {
				invalid[c]++
				continue
			}
			if e.motion == MotionDynamic {
				energy[c] += 0.5*b.Mass()*(v.X*v.X+v.Y*v.Y) + 0.5*b.Moment()*w*w
			}
		}
	})

	for c := range chunks {
		stats.KineticEnergy += energy[c]
		stats.InvalidBodies += int(invalid[c])
	}
}

func (s *System) parallel(js jobs.System, chunks int, fn func(c int)) {
	if js == nil || chunks <= 1 {
		for c := range chunks {
			fn(c)
		}
		return
	}
	b, err := js.CreateBarrier()
	if err != nil {
		s.diag.Tracef(diag.SeverityWarn, "running state pass inline: %v", err)
		for c := range chunks {
			fn(c)
		}
		return
	}
	defer js.DestroyBarrier(b)
	for c := range chunks {
		if err := b.AddJob(func() { fn(c) }); err != nil {
			fn(c)
		}
	}
	b.Wait()
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
