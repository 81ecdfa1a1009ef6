package sim

import (
	"context"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/lifecycle"
	"github.com/san-kum/rigidsim/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Ensemble runs independent drivers side by side from one lifecycle.
type Ensemble struct {
	lc      *lifecycle.Context
	cfg     config.Config
	numRuns int
	opts    []Option
}

func NewEnsemble(lc *lifecycle.Context, cfg config.Config, numRuns int, opts ...Option) *Ensemble {
	return &Ensemble{lc: lc, cfg: cfg, numRuns: numRuns, opts: opts}
}

// Run builds one driver per run, lets setup populate it with the run's
// seed, then simulates cfg.Frames frames. The first error cancels the rest.
func (e *Ensemble) Run(ctx context.Context, setup func(d *Driver, seed int64) error, newMetrics func() []metrics.Metric) ([]*Result, error) {
	results := make([]*Result, e.numRuns)
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < e.numRuns; i++ {
		g.Go(func() error {
			d, err := New(e.lc, e.cfg, e.opts...)
			if err != nil {
				return err
			}
			defer d.Close()

			if setup != nil {
				if err := setup(d, e.cfg.Scene.Seed+int64(i)); err != nil {
					return err
				}
			}
			var ms []metrics.Metric
			if newMetrics != nil {
				ms = newMetrics()
			}
			results[i], err = d.Simulate(ctx, e.cfg.Frames, ParamsFrom(&e.cfg), ms...)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
