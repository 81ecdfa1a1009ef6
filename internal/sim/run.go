package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/san-kum/rigidsim/internal/engine"
	"github.com/san-kum/rigidsim/internal/metrics"
)

// Result summarises a run of Simulate.
type Result struct {
	Frames   int
	Energy   []float64
	Contacts []int
	Metrics  map[string]float64
	Errors   engine.UpdateError
	Elapsed  time.Duration
}

// Run steps the driver up to frames times. callback, when not nil, sees
// every frame and stops the run by returning false. ctx is only checked
// between steps.
func (d *Driver) Run(ctx context.Context, frames int, p StepParams, callback func(frame int, stats engine.UpdateStats) bool) error {
	for i := 0; i < frames; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		stats, err := d.StepWith(p)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if callback != nil && !callback(i, stats) {
			return nil
		}
	}
	return nil
}

// Simulate runs frames steps and records per-frame energy and contacts
// along with the given metrics.
func (d *Driver) Simulate(ctx context.Context, frames int, p StepParams, ms ...metrics.Metric) (*Result, error) {
	result := &Result{
		Energy:   make([]float64, 0, frames),
		Contacts: make([]int, 0, frames),
		Metrics:  make(map[string]float64),
	}

	for _, m := range ms {
		m.Reset()
	}

	start := time.Now()
	err := d.Run(ctx, frames, p, func(frame int, stats engine.UpdateStats) bool {
		for _, m := range ms {
			m.Observe(stats)
		}
		result.Energy = append(result.Energy, stats.KineticEnergy)
		result.Contacts = append(result.Contacts, stats.Contacts)
		result.Errors |= stats.Errors
		result.Frames++
		return true
	})
	result.Elapsed = time.Since(start)

	for _, m := range ms {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, err
}
