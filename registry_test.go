package newton_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	newton "github.com/monkeyman192/NMS-Newton"
	"github.com/monkeyman192/NMS-Newton/memhost"
)

func TestRegistry(t *testing.T) {
	r := newton.NewRegistry()
	h := memhost.NewBody(0, mgl64.Vec3{}, 1)
	b, first, err := r.Register(0, 42, newton.NoBody, h)
	if err != nil || !first {
		t.Fatalf("first registration: first=%v err=%v", first, err)
	}
	if b.Class() != newton.Planet {
		t.Fatalf("body 0 should be a planet, got %s", b.Class())
	}
	if _, _, err := r.Register(3, 7, 0, memhost.NewBody(3, mgl64.Vec3{}, 4)); err != nil {
		t.Fatal(err)
	}
	if c, err := r.Classify(3); err != nil || c != newton.Moon {
		t.Fatalf("body 3 should be a moon: %s %v", c, err)
	}
	if _, err := r.Classify(5); !errors.Is(err, newton.ErrUnregisteredBody) {
		t.Fatalf("unknown body classified: %v", err)
	}
	if err := r.SetOrbit(0, newton.OrbitParams{A: 2, B: 1, Alpha: 1}); err != nil {
		t.Fatal(err)
	}
	if err := r.SetOrbit(0, newton.OrbitParams{A: 3, B: 1, Alpha: 1}); err == nil {
		t.Fatal("orbit regenerated")
	}
	if err := r.SetOrbit(6, newton.OrbitParams{}); !errors.Is(err, newton.ErrUnregisteredBody) {
		t.Fatalf("orbit of unknown body set: %v", err)
	}

	// Reusing the index keeps seed, parent, orbit and classification; only the handle changes.
	h2 := memhost.NewBody(0, mgl64.Vec3{1, 1, 1}, 9)
	b2, first, err := r.Register(0, 1000, 2, h2)
	if err != nil || first {
		t.Fatalf("second registration: first=%v err=%v", first, err)
	}
	if b2 != b || b2.Seed != 42 || b2.Parent != newton.NoBody || b2.Orbit.A != 2 || b2.Handle != h2 {
		t.Fatalf("second registration changed the body: %+v", b2)
	}
	if !reflect.DeepEqual(r.Planets(), []int{0}) || !reflect.DeepEqual(r.Moons(), []int{3}) {
		t.Fatalf("planets %v moons %v", r.Planets(), r.Moons())
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 bodies, got %d", r.Len())
	}

	r.Reset()
	if _, ok := r.Get(0); ok || r.Len() != 0 {
		t.Fatal("reset did not empty the registry")
	}
}

func TestRegistryInvalid(t *testing.T) {
	r := newton.NewRegistry()
	for _, tc := range []struct {
		index, parent int
	}{
		{-1, newton.NoBody},
		{newton.MaxBodies, newton.NoBody},
		{2, 2},
		{2, newton.MaxBodies},
		{2, -5},
	} {
		if _, _, err := r.Register(tc.index, 0, tc.parent, nil); err == nil {
			t.Fatalf("registered index %d with parent %d", tc.index, tc.parent)
		}
	}
	if r.Len() != 0 {
		t.Fatal("invalid registrations were kept")
	}
}

func TestRegistryOrdering(t *testing.T) {
	r := newton.NewRegistry()
	for _, idx := range []int{5, 1, 7, 0} {
		if _, _, err := r.Register(idx, 0, newton.NoBody, nil); err != nil {
			t.Fatal(err)
		}
	}
	for _, idx := range []int{6, 2} {
		if _, _, err := r.Register(idx, 0, 1, nil); err != nil {
			t.Fatal(err)
		}
	}
	if !reflect.DeepEqual(r.Planets(), []int{0, 1, 5, 7}) {
		t.Fatalf("planets not sorted: %v", r.Planets())
	}
	if !reflect.DeepEqual(r.Moons(), []int{2, 6}) {
		t.Fatalf("moons not sorted: %v", r.Moons())
	}
	if !r.IsMoon(6) || r.IsMoon(5) {
		t.Fatal("incorrect moon membership")
	}
}

func TestHierarchy(t *testing.T) {
	r := newton.NewRegistry()
	if p := r.ParentOf(3); p != newton.NoBody {
		t.Fatalf("no hierarchy yet, got parent %d", p)
	}
	parents := [newton.MaxBodies]int{-1, -1, 0, 0, 1, -1, -1, -1}
	r.SetHierarchy(parents)
	for i, exp := range parents {
		if p := r.ParentOf(i); p != exp {
			t.Fatalf("parent of %d is %d, expected %d", i, p, exp)
		}
	}
	if p := r.ParentOf(newton.MaxBodies); p != newton.NoBody {
		t.Fatalf("out of range index has parent %d", p)
	}
}
