package newton

import (
	"errors"
	"fmt"
	"sort"
)

const (
	// MaxBodies is the size of a universe: body indexes live in [0, MaxBodies).
	MaxBodies = 8
	// NoBody is the index used when no body applies.
	NoBody = -1
)

// ErrUnregisteredBody is returned when an index has no registered body.
var ErrUnregisteredBody = errors.New("body not registered")

// Class is the role of a body in the hierarchy.
type Class uint8

const (
	// Planet is a root body which orbits the solar system center.
	Planet Class = iota + 1
	// Moon is a body which orbits another body.
	Moon
)

func (c Class) String() string {
	switch c {
	case Planet:
		return "planet"
	case Moon:
		return "moon"
	default:
		return "unknown"
	}
}

// Body is a simulated planet or moon.
type Body struct {
	Index  int
	Seed   uint64
	Parent int          // NoBody for a planet
	Orbit  *OrbitParams // nil until generated
	Period string       // formatted orbital period
	Handle BodyHandle
}

// Class returns the role of this body.
func (b *Body) Class() Class {
	if b.Parent == NoBody {
		return Planet
	}
	return Moon
}

// String implements the Stringer interface.
func (b *Body) String() string {
	return fmt.Sprintf("%s #%d (seed %d)", b.Class(), b.Index, b.Seed)
}

// Registry tracks the bodies of the currently loaded universe.
type Registry struct {
	bodies    [MaxBodies]*Body
	hierarchy [MaxBodies]int
	planets   map[int]struct{}
	moons     map[int]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Reset forgets every body and the hierarchy table.
func (r *Registry) Reset() {
	r.bodies = [MaxBodies]*Body{}
	for i := range r.hierarchy {
		r.hierarchy[i] = NoBody
	}
	r.planets = make(map[int]struct{})
	r.moons = make(map[int]struct{})
}

// SetHierarchy stores the parent of each index as generated by the host.
func (r *Registry) SetHierarchy(parents [MaxBodies]int) {
	r.hierarchy = parents
}

// ParentOf returns the parent index from the hierarchy table.
func (r *Registry) ParentOf(index int) int {
	if !validIndex(index) {
		return NoBody
	}
	return r.hierarchy[index]
}

// Register records the body at index. The returned bool is true on the first
// registration of that index, in which case the body has no orbit yet and
// the caller must generate it. Subsequent registrations only refresh the
// host handle: seed, parent and classification are kept.
func (r *Registry) Register(index int, seed uint64, parent int, handle BodyHandle) (*Body, bool, error) {
	if !validIndex(index) {
		return nil, false, fmt.Errorf("body index %d out of range [0, %d)", index, MaxBodies)
	}
	if parent != NoBody && (!validIndex(parent) || parent == index) {
		return nil, false, fmt.Errorf("body %d has invalid parent %d", index, parent)
	}
	if b := r.bodies[index]; b != nil {
		b.Handle = handle
		return b, false, nil
	}
	b := &Body{Index: index, Seed: seed, Parent: parent, Handle: handle}
	r.bodies[index] = b
	if parent == NoBody {
		r.planets[index] = struct{}{}
	} else {
		r.moons[index] = struct{}{}
	}
	return b, true, nil
}

// SetOrbit stores the generated orbit of a body. The orbit is only ever set once.
func (r *Registry) SetOrbit(index int, o OrbitParams) error {
	b, ok := r.Get(index)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnregisteredBody, index)
	}
	if b.Orbit != nil {
		return fmt.Errorf("orbit of body %d already generated", index)
	}
	b.Orbit = &o
	b.Period = o.PeriodString()
	return nil
}

// Get returns the body at index, if registered.
func (r *Registry) Get(index int) (*Body, bool) {
	if !validIndex(index) || r.bodies[index] == nil {
		return nil, false
	}
	return r.bodies[index], true
}

// Classify returns whether the body at index is a planet or a moon.
func (r *Registry) Classify(index int) (Class, error) {
	if _, ok := r.planets[index]; ok {
		return Planet, nil
	}
	if _, ok := r.moons[index]; ok {
		return Moon, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnregisteredBody, index)
}

// IsMoon returns whether the body at index is a registered moon.
func (r *Registry) IsMoon(index int) bool {
	_, ok := r.moons[index]
	return ok
}

// Planets returns the planet indexes in ascending order.
func (r *Registry) Planets() []int {
	return sortedKeys(r.planets)
}

// Moons returns the moon indexes in ascending order.
func (r *Registry) Moons() []int {
	return sortedKeys(r.moons)
}

// Len returns the number of registered bodies.
func (r *Registry) Len() int {
	return len(r.planets) + len(r.moons)
}

func sortedKeys(set map[int]struct{}) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func validIndex(index int) bool {
	return index >= 0 && index < MaxBodies
}
