package metrics

import "github.com/san-kum/rigidsim/internal/engine"

// Metric summarises a run from per-step statistics.
type Metric interface {
	Name() string
	Observe(stats engine.UpdateStats)
	Value() float64
	Reset()
}

// Defaults returns the metrics reported by the run and bench commands.
func Defaults() []Metric {
	return []Metric{
		NewEnergy(),
		NewEnergyDrift(),
		NewStability(),
		NewContactLoad(),
	}
}
