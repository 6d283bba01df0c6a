package newton_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/floats"

	newton "github.com/monkeyman192/NMS-Newton"
	"github.com/monkeyman192/NMS-Newton/memhost"
)

const (
	ε = 1e-9
)

func vectorsEqual(a, b mgl64.Vec3) bool {
	return floats.EqualApprox(a[:], b[:], ε)
}

// twoBodies is a planet (index 0, seed 42) and its moon (index 1, seed 7).
func twoBodies() []memhost.BodySpec {
	return []memhost.BodySpec{
		{Index: 0, Seed: 42, Parent: newton.NoBody, Radius: 60000,
			Atmosphere: newton.Atmosphere{EndHeight: 10000, SkyHeight: 20000},
			Position:   mgl64.Vec3{1000, 2000, 3000}},
		{Index: 1, Seed: 7, Parent: 0, Radius: 15000,
			Atmosphere: newton.Atmosphere{EndHeight: 2000, SkyHeight: 4000},
			Position:   mgl64.Vec3{-1000, 500, 3000}},
	}
}

// threeBodies adds a second planet to twoBodies.
func threeBodies() []memhost.BodySpec {
	return append(twoBodies(), memhost.BodySpec{
		Index: 2, Seed: 1234, Parent: newton.NoBody, Radius: 80000,
		Atmosphere: newton.Atmosphere{EndHeight: 12000, SkyHeight: 25000},
	})
}

type fixture struct {
	ctrl     *newton.Controller
	sim      *newton.Simulation
	universe *memhost.Universe
	reg      *prometheus.Registry
	store    *newton.Store
}

// newFixture loads specs into a running controller with a unit time rate.
func newFixture(t *testing.T, specs []memhost.BodySpec) fixture {
	t.Helper()
	universe, err := memhost.NewUniverse(specs)
	if err != nil {
		t.Fatal(err)
	}
	reg := prometheus.NewRegistry()
	metrics, err := newton.NewMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}
	cfg := newton.DefaultConfig()
	cfg.Running = true
	store := newton.NewStore(t.TempDir())
	ctrl := newton.NewController(cfg, universe.Scene, store, metrics, nil)
	if err := universe.Load(ctrl); err != nil {
		t.Fatalf("could not load universe: %s", err)
	}
	return fixture{ctrl, ctrl.Simulation(), universe, reg, store}
}

func (f fixture) orbit(t *testing.T, index int) newton.OrbitParams {
	t.Helper()
	b, ok := f.sim.Registry.Get(index)
	if !ok || b.Orbit == nil {
		t.Fatalf("body %d has no orbit", index)
	}
	return *b.Orbit
}

func (f fixture) tick(delta float64) bool {
	f.ctrl.OnFrameTime(delta)
	return f.ctrl.OnFrameTick(false)
}

func (f fixture) metric(t *testing.T, name string) float64 {
	t.Helper()
	families, err := f.reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		total := 0.0
		for _, m := range fam.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		return total
	}
	return 0
}
