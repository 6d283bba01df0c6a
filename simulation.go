package newton

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

/* Handles the motion of every body of the universe, one frame at a time. */

// TickError is returned by Tick when the host state could not be updated.
// The tick was aborted part way, so the caller should stop ticking.
type TickError struct {
	Index int    // Body being processed, NoBody if none
	Op    string // What was being done
	Err   error
}

func (e *TickError) Error() string {
	if e.Index == NoBody {
		return fmt.Sprintf("tick: %s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("tick: %s body %d: %s", e.Op, e.Index, e.Err)
}

func (e *TickError) Unwrap() error {
	return e.Err
}

// Simulation is the state of one loaded universe.
type Simulation struct {
	Registry *Registry
	Observer ObserverContext
	Center   mgl64.Vec3         // Solar system center all planet orbits are centered on
	Times    [MaxBodies]float64 // Per body time accumulators, in seconds
	gen      *Generator
	scene    SceneGraph
	gravity  GravityTable
	metrics  *Metrics
	logger   kitlog.Logger
}

// NewSimulation returns an empty universe. scene may be nil, in which case
// attached sub objects are not moved along with their body.
func NewSimulation(g Globals, scene SceneGraph, metrics *Metrics, logger kitlog.Logger) *Simulation {
	return &Simulation{
		Registry: NewRegistry(),
		Observer: NewObserverContext(),
		Center:   Origin,
		gen:      NewGenerator(g, logger),
		scene:    scene,
		metrics:  metrics,
		logger:   subsys(logger, "advance"),
	}
}

// Reset empties the universe: the next bodies registered belong to a new system.
// The gravity table is kept since it is a host singleton.
func (s *Simulation) Reset() {
	s.Registry.Reset()
	s.Observer = NewObserverContext()
	s.Center = Origin
	s.Times = [MaxBodies]float64{}
	s.metrics.setLocked(false)
}

// ProvideGravity stores the host gravity table. Only the first call has an
// effect; returns whether the table was stored.
func (s *Simulation) ProvideGravity(t GravityTable) bool {
	if s.gravity != nil || t == nil {
		return false
	}
	s.gravity = t
	return true
}

// RegisterBody registers the body at index and places it on its orbit.
// The orbit is generated on the first registration of the index only.
func (s *Simulation) RegisterBody(index int, seed uint64, parent int, handle BodyHandle) (*Body, error) {
	b, first, err := s.Registry.Register(index, seed, parent, handle)
	if err != nil {
		return nil, err
	}
	if first {
		var radius RadiusFunc
		if p, ok := s.Registry.Get(parent); ok && p.Handle != nil {
			radius = p.Handle.CachedRadius
		}
		o := s.gen.Generate(index, seed, b.Class() == Moon, radius)
		if err := s.Registry.SetOrbit(index, o); err != nil {
			return b, err
		}
		level.Info(s.logger).Log("message", "registered", "body", b, "orbit", o)
	}
	return b, s.place(b)
}

// place moves a body to where its clock says it should be.
func (s *Simulation) place(b *Body) error {
	if b.Class() == Planet {
		return s.Move(b, Position(s.Center, *b.Orbit, s.Times[b.Index]))
	}
	p, ok := s.Registry.Get(b.Parent)
	if !ok || p.Handle == nil {
		level.Debug(s.logger).Log("message", "parent not loaded, moon left in place", "body", b, "parent", b.Parent)
		return nil
	}
	return s.Move(b, Position(p.Handle.Position(), *b.Orbit, s.Times[b.Index]))
}

// Move places the body at p. The body's attached sub objects are shifted by
// the same amount and, if the host gravity table is known, the body's gravity
// point follows.
func (s *Simulation) Move(b *Body, p mgl64.Vec3) error {
	if b == nil || b.Handle == nil {
		return nil
	}
	node, ok := b.Handle.Node()
	if !ok {
		return nil
	}
	if !isFinite(p) {
		return fmt.Errorf("non finite position %v", p)
	}
	delta := p.Sub(b.Handle.Position())
	if err := b.Handle.SetPosition(p); err != nil {
		return fmt.Errorf("set position: %w", err)
	}
	if err := b.Handle.SetRegionTransform(b.Handle.RegionTransform().WithPos(p)); err != nil {
		return fmt.Errorf("set region transform: %w", err)
	}
	if s.scene != nil {
		if err := s.scene.ShiftSubtree(node, delta); err != nil {
			return fmt.Errorf("shift node %d: %w", node, err)
		}
	}
	if s.gravity != nil {
		if err := s.gravity.SetGravityCenter(b.Index, p); err != nil {
			return fmt.Errorf("gravity center: %w", err)
		}
	}
	s.metrics.moved(b.Class())
	return nil
}

// EnterOrbit locks the observer on the nearest body, if active.
func (s *Simulation) EnterOrbit(active bool) bool {
	nearest, _ := s.Registry.Get(s.Observer.Nearest)
	if !s.Observer.EnterOrbit(active, nearest) {
		return false
	}
	level.Info(s.logger).Log("message", "orbit entered", "body", nearest, "fixed", fmt.Sprint(s.Observer.FixedBodyPosition))
	s.metrics.setLocked(true)
	return true
}

// ExitOrbit releases the lock.
func (s *Simulation) ExitOrbit() {
	s.Observer.ExitOrbit(s.Center)
	level.Info(s.logger).Log("message", "orbit left", "center", fmt.Sprint(s.Center))
	s.metrics.setLocked(false)
}

// TimeModifier returns how fast the clock of the body at index runs, in [0, 1].
// Only the nearest body is slowed: it stops at the top of its atmosphere and
// reaches full speed at ten times its sky height, following a power curve.
func (s *Simulation) TimeModifier(index int) float64 {
	if index == NoBody || index != s.Observer.Nearest {
		return 1
	}
	b, ok := s.Registry.Get(index)
	if !ok || b.Handle == nil {
		return 1
	}
	atmo, err := b.Handle.Atmosphere()
	if err != nil {
		level.Debug(s.logger).Log("message", "atmosphere unavailable", "body", b, "err", err)
		return 1
	}
	// Everything in km.
	dist := s.Observer.Distance / 1000
	far := 10 * atmo.SkyHeight / 1000
	near := atmo.EndHeight / 1000
	return approachModifier(dist, near, far, s.gen.Globals.ApproachDropoff)
}

func approachModifier(dist, near, far, n float64) float64 {
	if dist >= far {
		return 1
	}
	if dist <= near {
		return 0
	}
	nearN := math.Pow(near, n)
	v := (math.Pow(dist, n) - nearN) / (math.Pow(far, n) - nearN)
	return math.Min(math.Max(v, 0), 1)
}

// Tick advances the universe by delta seconds.
func (s *Simulation) Tick(delta float64) error {
	nearest := s.Observer.Nearest
	held := s.Observer.Held()
	if _, ok := s.Registry.Get(held); held != NoBody && !ok {
		// Nothing to hold still until the nearest body loads.
		level.Debug(s.logger).Log("message", "held body not registered, advancing freely", "index", held)
		held = NoBody
	}
	toSlow := NoBody
	if b, ok := s.Registry.Get(nearest); ok && s.Registry.IsMoon(nearest) {
		toSlow = b.Parent
	}
	var err error
	if held == NoBody {
		err = s.advanceFree(delta, nearest, toSlow)
	} else {
		err = s.advanceLocked(delta, held)
	}
	if err == nil {
		s.metrics.ticked(delta)
	}
	return err
}

func (s *Simulation) advanceFree(delta float64, nearest, toSlow int) error {
	for _, idx := range s.Registry.Planets() {
		b, err := s.body(idx)
		if err != nil {
			return err
		}
		// Slow down the parent of the moon we are approaching as much as the moon itself.
		if idx == toSlow {
			s.Times[idx] += s.TimeModifier(nearest) * delta
		} else {
			s.Times[idx] += s.TimeModifier(idx) * delta
		}
		if err := s.Move(b, Position(s.Center, *b.Orbit, s.Times[idx])); err != nil {
			return &TickError{idx, "move planet", err}
		}
	}
	for _, idx := range s.Registry.Moons() {
		b, err := s.body(idx)
		if err != nil {
			return err
		}
		s.Times[idx] += s.TimeModifier(idx) * delta
		parent, err := s.body(b.Parent)
		if err != nil {
			return err
		}
		if err := s.Move(b, Position(parent.Handle.Position(), *b.Orbit, s.Times[idx])); err != nil {
			return &TickError{idx, "move moon", err}
		}
	}
	return nil
}

func (s *Simulation) advanceLocked(delta float64, held int) error {
	expected, err := s.expectedPosition(held, delta)
	if err != nil {
		return err
	}
	// Move the center opposite to the motion of the held body so that it stays put.
	s.Center = s.Observer.FixedCenter.Sub(expected).Add(s.Observer.FixedBodyPosition)

	// No time modifier here: we are on the held body, so nothing else is slowed.
	for _, idx := range s.Registry.Planets() {
		b, err := s.body(idx)
		if err != nil {
			return err
		}
		s.Times[idx] += delta
		if idx == held {
			continue
		}
		if err := s.Move(b, Position(s.Center, *b.Orbit, s.Times[idx])); err != nil {
			return &TickError{idx, "move planet", err}
		}
	}
	for _, idx := range s.Registry.Moons() {
		b, err := s.body(idx)
		if err != nil {
			return err
		}
		s.Times[idx] += delta
		if idx == held {
			continue
		}
		parent, err := s.body(b.Parent)
		if err != nil {
			return err
		}
		if err := s.Move(b, Position(parent.Handle.Position(), *b.Orbit, s.Times[idx])); err != nil {
			return &TickError{idx, "move moon", err}
		}
	}
	return nil
}

// expectedPosition returns where the body at index would be after delta
// seconds if it had moved freely around the fixed center since the lock.
func (s *Simulation) expectedPosition(index int, delta float64) (mgl64.Vec3, error) {
	b, err := s.body(index)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	if b.Class() == Planet {
		return Position(s.Observer.FixedCenter, *b.Orbit, s.Times[index]+delta), nil
	}
	// For a moon, this is the expected position of the parent plus the moon's own offset.
	parent, err := s.body(b.Parent)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	parentPos := Position(s.Observer.FixedCenter, *parent.Orbit, s.Times[parent.Index]+delta)
	return Position(parentPos, *b.Orbit, s.Times[index]+delta), nil
}

// body returns a registered body with its orbit; anything else is a broken invariant.
func (s *Simulation) body(index int) (*Body, error) {
	b, ok := s.Registry.Get(index)
	if !ok || b.Orbit == nil || b.Handle == nil {
		return nil, &TickError{index, "lookup", ErrUnregisteredBody}
	}
	return b, nil
}
