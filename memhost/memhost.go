// Package memhost is an in-memory host: it implements the host interfaces of
// newton over plain Go values, for tests and for the headless daemon.
package memhost

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/exp/rand"

	newton "github.com/monkeyman192/NMS-Newton"
)

// Body is an in-memory body.
type Body struct {
	Index     int
	position  mgl64.Vec3
	region    newton.Transform
	node      newton.NodeHandle
	hasNode   bool
	Radius    float64
	RadiusErr error // Returned by CachedRadius when set
	Atmo      newton.Atmosphere
	AtmoErr   error // Returned by Atmosphere when set
	WriteErr  error // Returned by every setter when set
	PanicRead bool  // Position panics when set, like a bad memory read
	Writes    int
}

// NewBody returns a body at pos attached to node.
func NewBody(index int, pos mgl64.Vec3, node newton.NodeHandle) *Body {
	return &Body{
		Index:    index,
		position: pos,
		region:   newton.IdentityTransform(pos),
		node:     node,
		hasNode:  true,
	}
}

// Position implements newton.BodyHandle.
func (b *Body) Position() mgl64.Vec3 {
	if b.PanicRead {
		panic(fmt.Sprintf("access violation reading body %d", b.Index))
	}
	return b.position
}

// SetPosition implements newton.BodyHandle.
func (b *Body) SetPosition(p mgl64.Vec3) error {
	if b.WriteErr != nil {
		return b.WriteErr
	}
	b.position = p
	b.Writes++
	return nil
}

// RegionTransform implements newton.BodyHandle.
func (b *Body) RegionTransform() newton.Transform {
	return b.region
}

// SetRegionTransform implements newton.BodyHandle.
func (b *Body) SetRegionTransform(t newton.Transform) error {
	if b.WriteErr != nil {
		return b.WriteErr
	}
	b.region = t
	return nil
}

// Node implements newton.BodyHandle.
func (b *Body) Node() (newton.NodeHandle, bool) {
	return b.node, b.hasNode
}

// Detach removes the body from the scene graph.
func (b *Body) Detach() {
	b.hasNode = false
}

// CachedRadius implements newton.BodyHandle.
func (b *Body) CachedRadius() (float64, error) {
	if b.RadiusErr != nil {
		return 0, b.RadiusErr
	}
	if b.Radius <= 0 {
		return 0, newton.ErrUnreadable
	}
	return b.Radius, nil
}

// Atmosphere implements newton.BodyHandle.
func (b *Body) Atmosphere() (newton.Atmosphere, error) {
	if b.AtmoErr != nil {
		return newton.Atmosphere{}, b.AtmoErr
	}
	return b.Atmo, nil
}

// Scene is an in-memory scene graph: every node has a list of child positions.
type Scene struct {
	Children map[newton.NodeHandle][]mgl64.Vec3
	Shifts   int
	Err      error
}

// NewScene returns an empty scene graph.
func NewScene() *Scene {
	return &Scene{Children: make(map[newton.NodeHandle][]mgl64.Vec3)}
}

// Attach adds a child transform at pos under node.
func (s *Scene) Attach(node newton.NodeHandle, pos mgl64.Vec3) {
	s.Children[node] = append(s.Children[node], pos)
}

// ShiftSubtree implements newton.SceneGraph.
func (s *Scene) ShiftSubtree(node newton.NodeHandle, delta mgl64.Vec3) error {
	if s.Err != nil {
		return s.Err
	}
	children := s.Children[node]
	for i := range children {
		children[i] = children[i].Add(delta)
	}
	s.Shifts++
	return nil
}

// Gravity is an in-memory gravity table.
type Gravity struct {
	Centers [newton.MaxBodies]mgl64.Vec3
	Writes  int
}

// SetGravityCenter implements newton.GravityTable.
func (g *Gravity) SetGravityCenter(index int, center mgl64.Vec3) error {
	if index < 0 || index >= newton.MaxBodies {
		return fmt.Errorf("gravity point %d out of range", index)
	}
	g.Centers[index] = center
	g.Writes++
	return nil
}

// BodySpec describes one body of a generated system.
type BodySpec struct {
	Index      int
	Seed       uint64
	Parent     int
	Radius     float64
	Atmosphere newton.Atmosphere
	Position   mgl64.Vec3 // Static position the host would load the body at
}

// Universe is a whole in-memory system.
type Universe struct {
	Specs   []BodySpec
	Bodies  [newton.MaxBodies]*Body
	Scene   *Scene
	Gravity *Gravity
}

// NewUniverse builds the bodies described by specs, each with one child
// transform attached to its node.
func NewUniverse(specs []BodySpec) (*Universe, error) {
	u := &Universe{Specs: specs, Scene: NewScene(), Gravity: &Gravity{}}
	for _, spec := range specs {
		if spec.Index < 0 || spec.Index >= newton.MaxBodies {
			return nil, fmt.Errorf("body index %d out of range", spec.Index)
		}
		if u.Bodies[spec.Index] != nil {
			return nil, fmt.Errorf("duplicate body index %d", spec.Index)
		}
		node := newton.NodeHandle(spec.Index + 1)
		b := NewBody(spec.Index, spec.Position, node)
		b.Radius = spec.Radius
		b.Atmo = spec.Atmosphere
		u.Bodies[spec.Index] = b
		u.Scene.Attach(node, spec.Position)
	}
	return u, nil
}

// Parents returns the hierarchy table of the system.
func (u *Universe) Parents() [newton.MaxBodies]int {
	var parents [newton.MaxBodies]int
	for i := range parents {
		parents[i] = newton.NoBody
	}
	for _, spec := range u.Specs {
		parents[spec.Index] = spec.Parent
	}
	return parents
}

// Load replays the events a host fires when a system loads: the system is
// generated, the gravity singleton shows up, each body finishes its setup,
// and finally the player respawns.
func (u *Universe) Load(c *newton.Controller) error {
	c.OnSystemGenerated(u.Parents())
	c.ProvideGravitySingleton(u.Gravity)
	var errs []error
	for _, spec := range u.Specs {
		err := c.OnBodyInitialized(newton.BodyInit{Index: spec.Index, Seed: spec.Seed, Handle: u.Bodies[spec.Index]})
		if err != nil {
			errs = append(errs, err)
		}
	}
	c.OnRespawn("load")
	return errors.Join(errs...)
}

// Distance returns the distance from the surface of the body at index to p.
func (u *Universe) Distance(index int, p mgl64.Vec3) float64 {
	b := u.Bodies[index]
	if b == nil {
		return 0
	}
	d := p.Sub(b.position).Len() - b.Radius
	if d < 0 {
		return 0
	}
	return d
}

// Nearest returns the body whose surface is closest to p and the distance to it.
func (u *Universe) Nearest(p mgl64.Vec3) (int, float64) {
	nearest, best := newton.NoBody, 0.0
	for i, b := range u.Bodies {
		if b == nil {
			continue
		}
		if d := u.Distance(i, p); nearest == newton.NoBody || d < best {
			nearest, best = i, d
		}
	}
	return nearest, best
}

// RandomSystem returns a system of planets and moons whose seeds derive from seed.
// Moons orbit the first planets, one moon per planet.
func RandomSystem(seed uint64, planets, moons int) ([]BodySpec, error) {
	if planets < 1 || moons > planets || planets+moons > newton.MaxBodies {
		return nil, fmt.Errorf("cannot build %d planets and %d moons", planets, moons)
	}
	rng := rand.New(rand.NewSource(seed))
	specs := make([]BodySpec, 0, planets+moons)
	for i := 0; i < planets+moons; i++ {
		parent := newton.NoBody
		radius := 40000 + 80000*rng.Float64()
		if i >= planets {
			parent = i - planets
			radius /= 4
		}
		specs = append(specs, BodySpec{
			Index:  i,
			Seed:   rng.Uint64(),
			Parent: parent,
			Radius: radius,
			Atmosphere: newton.Atmosphere{
				EndHeight: 0.1 * radius,
				SkyHeight: 0.2 * radius,
			},
			Position: mgl64.Vec3{float64(i) * 100000, 0, 0},
		})
	}
	return specs, nil
}
