package metrics

import "github.com/san-kum/rigidsim/internal/engine"

// Stability is the fraction of steps that raised no update error.
type Stability struct {
	name       string
	violations int
	samples    int
}

func NewStability() *Stability {
	return &Stability{name: "stability"}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(stats engine.UpdateStats) {
	s.samples++
	if stats.Errors != 0 || stats.InvalidBodies > 0 {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
