package newton_test

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	newton "github.com/monkeyman192/NMS-Newton"
)

func radius(r float64) newton.RadiusFunc {
	return func() (float64, error) { return r, nil }
}

func TestGenerateDeterminism(t *testing.T) {
	gen := newton.NewGenerator(newton.DefaultGlobals(), nil)
	for _, seed := range []uint64{0, 1, 7, 42, 275850, math.MaxUint64} {
		for _, isMoon := range []bool{false, true} {
			o1 := gen.Generate(3, seed, isMoon, nil)
			o2 := gen.Generate(3, seed, isMoon, nil)
			if o1 != o2 {
				t.Fatalf("seed %d moon=%v: %s != %s", seed, isMoon, o1, o2)
			}
			// With a readable radius too.
			o1 = gen.Generate(3, seed, isMoon, radius(50000))
			o2 = gen.Generate(3, seed, isMoon, radius(50000))
			if o1 != o2 {
				t.Fatalf("seed %d moon=%v with radius: %s != %s", seed, isMoon, o1, o2)
			}
		}
	}
	// Another generator with the same globals yields the same orbits.
	other := newton.NewGenerator(newton.DefaultGlobals(), nil)
	if gen.Generate(0, 42, false, nil) != other.Generate(0, 42, false, nil) {
		t.Fatal("orbit depends on the generator instance")
	}
	if gen.Generate(0, 42, false, nil) == gen.Generate(0, 43, false, nil) {
		t.Fatal("different seeds yield the same orbit")
	}
}

func TestGenerateBounds(t *testing.T) {
	g := newton.DefaultGlobals()
	gen := newton.NewGenerator(g, nil)
	for seed := uint64(0); seed < 2000; seed++ {
		index := int(seed % newton.MaxBodies)
		planet := gen.Generate(index, seed, false, nil)
		if e := planet.Eccentricity(); e < g.MinPlanetEccentricity-1e-9 || e >= g.MaxPlanetEccentricity {
			t.Fatalf("seed %d: planet eccentricity %f out of bounds", seed, e)
		}
		moon := gen.Generate(index, seed, true, radius(30000))
		if e := moon.Eccentricity(); e < 0 || e >= g.MaxMoonEccentricity {
			t.Fatalf("seed %d: moon eccentricity %f out of bounds", seed, e)
		}
		for _, o := range []newton.OrbitParams{planet, moon} {
			if o.A < o.B {
				t.Fatalf("seed %d: a=%f < b=%f", seed, o.A, o.B)
			}
			if o.Delta < 0 || o.Delta >= 2*math.Pi {
				t.Fatalf("seed %d: phase %f out of [0, 2π)", seed, o.Delta)
			}
			exp := g.RateConstant / (2 * math.Pi * math.Pow(o.A, 1.5))
			if !scalar.EqualWithinRel(o.Alpha, exp, 1e-12) {
				t.Fatalf("seed %d: α=%e expected %e", seed, o.Alpha, exp)
			}
		}
		// Planets are spread by index.
		sep := g.AvgSeparation
		if lo, hi := float64(index+1)*sep-0.1*sep, float64(index+1)*sep+0.1*sep; planet.B < lo || planet.B >= hi {
			t.Fatalf("seed %d: planet b=%f not in [%f, %f)", seed, planet.B, lo, hi)
		}
		// Moons are spread around their parent.
		if moon.B < 1.75*30000 || moon.B >= 2.25*30000 {
			t.Fatalf("seed %d: moon b=%f not around the parent radius", seed, moon.B)
		}
	}
}

func TestGenerateLargerOrbitsAreSlower(t *testing.T) {
	gen := newton.NewGenerator(newton.DefaultGlobals(), nil)
	prev := gen.Generate(0, 99, false, nil)
	for index := 1; index < newton.MaxBodies; index++ {
		o := gen.Generate(index, 99, false, nil)
		if o.A <= prev.A {
			t.Fatalf("orbit %d (a=%f) not larger than orbit %d (a=%f)", index, o.A, index-1, prev.A)
		}
		if o.Alpha >= prev.Alpha {
			t.Fatalf("orbit %d is not slower than orbit %d", index, index-1)
		}
		prev = o
	}
}

func TestGenerateMoonFallback(t *testing.T) {
	g := newton.DefaultGlobals()
	gen := newton.NewGenerator(g, nil)
	unreadable := func() (float64, error) { return 0, errors.New("region map not ready") }
	for seed := uint64(0); seed < 100; seed++ {
		noParent := gen.Generate(4, seed, true, nil)
		failed := gen.Generate(4, seed, true, unreadable)
		if noParent != failed {
			t.Fatalf("seed %d: fallback differs: %s != %s", seed, noParent, failed)
		}
		invalid := gen.Generate(4, seed, true, radius(math.NaN()))
		if noParent != invalid {
			t.Fatalf("seed %d: NaN radius did not fall back", seed)
		}
		sep := g.AvgSeparation
		if failed.B < 5*sep-0.1*sep || failed.B >= 5*sep+0.1*sep {
			t.Fatalf("seed %d: fallback b=%f not around the separation", seed, failed.B)
		}
		// The phase and eccentricity come first in the stream, so they do not
		// depend on how b was picked.
		withRadius := gen.Generate(4, seed, true, radius(20000))
		if withRadius.Delta != failed.Delta {
			t.Fatalf("seed %d: phase depends on the parent radius", seed)
		}
	}
}
