package metrics

import (
	"errors"
	"math"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/san-kum/rigidsim/internal/engine"
)

func gather(t *testing.T, c *Collector) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out
}

func labelled(mf *dto.MetricFamily, name, value string) *dto.Metric {
	if mf == nil {
		return nil
	}
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == name && l.GetValue() == value {
				return m
			}
		}
	}
	return nil
}

func TestNewCollector(t *testing.T) {
	c := NewCollector("")
	if c == nil {
		t.Fatal("NewCollector returned nil")
	}
	if c.Registry() == nil {
		t.Error("registry should not be nil")
	}
}

func TestCollectorRecordStep(t *testing.T) {
	c := NewCollector("test")

	c.RecordStep(engine.UpdateStats{
		Bodies:        3,
		ActiveBodies:  2,
		BodyPairs:     1,
		Contacts:      2,
		KineticEnergy: 4.5,
		Errors:        engine.ErrorBodyPairCacheFull,
	}, time.Millisecond, nil)
	c.RecordStep(engine.UpdateStats{}, time.Millisecond, errors.New("step failed"))

	families := gather(t, c)

	steps := families["test_driver_steps_total"]
	if m := labelled(steps, "result", "ok"); m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("expected 1 ok step, got %v", m)
	}
	if m := labelled(steps, "result", "error"); m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("expected 1 failed step, got %v", m)
	}

	if m := labelled(families["test_engine_bodies"], "state", "active"); m == nil || m.GetGauge().GetValue() != 2 {
		t.Errorf("expected 2 active bodies, got %v", m)
	}
	if ke := families["test_engine_kinetic_energy"]; ke == nil || ke.GetMetric()[0].GetGauge().GetValue() != 4.5 {
		t.Errorf("unexpected kinetic energy %v", ke)
	}

	errs := families["test_engine_update_errors_total"]
	if m := labelled(errs, "flag", "body_pair_cache_full"); m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("expected one body_pair_cache_full, got %v", m)
	}
	if m := labelled(errs, "flag", "invalid_body_state"); m != nil {
		t.Errorf("unexpected invalid_body_state sample %v", m)
	}

	latency := families["test_driver_step_duration_seconds"]
	if latency == nil || latency.GetMetric()[0].GetHistogram().GetSampleCount() != 2 {
		t.Errorf("expected 2 latency samples, got %v", latency)
	}
}

func TestCollectorScratchAndWorkers(t *testing.T) {
	c := NewCollector("test")
	c.RecordScratch(128, 256, 1024)
	c.RecordWorkers(3)

	families := gather(t, c)
	if m := labelled(families["test_driver_scratch_bytes"], "kind", "high_water"); m == nil || m.GetGauge().GetValue() != 256 {
		t.Errorf("expected high water 256, got %v", m)
	}
	if w := families["test_driver_workers"]; w == nil || w.GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Errorf("expected 3 workers, got %v", w)
	}

	c.Reset()
	families = gather(t, c)
	if _, ok := families["test_driver_scratch_bytes"]; ok {
		t.Error("expected scratch gauges cleared")
	}
}

func TestNoOpCollector(t *testing.T) {
	c := NewNoOpCollector()

	// All these should not panic
	c.RecordStep(engine.UpdateStats{}, time.Millisecond, nil)
	c.RecordScratch(1, 2, 3)
	c.RecordWorkers(4)
}

func TestEnergy(t *testing.T) {
	m := NewEnergy()
	m.Observe(engine.UpdateStats{KineticEnergy: 2})
	m.Observe(engine.UpdateStats{KineticEnergy: 4})

	if math.Abs(m.Value()-3) > 1e-9 {
		t.Errorf("expected mean energy 3, got %f", m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero energy after reset")
	}
}

func TestEnergyDrift(t *testing.T) {
	m := NewEnergyDrift()
	m.Observe(engine.UpdateStats{})
	m.Observe(engine.UpdateStats{KineticEnergy: 10})
	m.Observe(engine.UpdateStats{KineticEnergy: 12})
	m.Observe(engine.UpdateStats{KineticEnergy: 9})

	if math.Abs(m.Value()-0.2) > 1e-9 {
		t.Errorf("expected drift 0.2, got %f", m.Value())
	}
}

func TestStability(t *testing.T) {
	m := NewStability()
	if m.Value() != 1 {
		t.Errorf("expected 1 with no samples, got %f", m.Value())
	}

	m.Observe(engine.UpdateStats{})
	m.Observe(engine.UpdateStats{Errors: engine.ErrorContactConstraintsFull})
	m.Observe(engine.UpdateStats{InvalidBodies: 1})
	m.Observe(engine.UpdateStats{})

	if m.Value() != 0.5 {
		t.Errorf("expected 0.5, got %f", m.Value())
	}
}

func TestContactLoad(t *testing.T) {
	m := NewContactLoad()
	m.Observe(engine.UpdateStats{Contacts: 1})
	m.Observe(engine.UpdateStats{Contacts: 3})

	if m.Value() != 2 {
		t.Errorf("expected 2, got %f", m.Value())
	}
	if m.Name() != "contact_load" {
		t.Errorf("unexpected name %q", m.Name())
	}
}

func TestDefaults(t *testing.T) {
	seen := make(map[string]bool)
	for _, m := range Defaults() {
		if seen[m.Name()] {
			t.Errorf("duplicate metric %s", m.Name())
		}
		seen[m.Name()] = true
	}
	if len(seen) != 4 {
		t.Errorf("expected 4 metrics, got %d", len(seen))
	}
}

func BenchmarkCollectorRecordStep(b *testing.B) {
	c := NewCollector("bench")
	stats := engine.UpdateStats{Bodies: 10, ActiveBodies: 9, BodyPairs: 4, Contacts: 8}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.RecordStep(stats, time.Microsecond, nil)
	}
}
