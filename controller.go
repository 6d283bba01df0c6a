package newton

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// BodyInit is what the host knows about a body once its region is set up.
type BodyInit struct {
	Index  int
	Seed   uint64
	Handle BodyHandle
}

// ObserverSample is the observer environment as updated by the host every frame.
type ObserverSample struct {
	Nearest  int     // NoBody if there is no nearest body
	Distance float64 // From the nearest body's surface, in host units
}

// BodySnapshot is a copy of one body's state.
type BodySnapshot struct {
	Index    int        `json:"index"`
	Class    string     `json:"class"`
	Parent   int        `json:"parent"`
	Position mgl64.Vec3 `json:"position"`
	Time     float64    `json:"time"`
	Period   string     `json:"period"`
	Modifier float64    `json:"modifier"`
}

// Snapshot is a copy of the session state, safe to hand to another goroutine.
type Snapshot struct {
	Frame    uint64         `json:"frame"`
	Running  bool           `json:"running"`
	Stopped  bool           `json:"stopped"`
	TimeRate float64        `json:"time_rate"`
	Locked   bool           `json:"locked"`
	Nearest  int            `json:"nearest"`
	Center   mgl64.Vec3     `json:"center"`
	Bodies   []BodySnapshot `json:"bodies"`
}

// Controller receives the host events and drives the simulation.
// All methods must be called from the host update thread.
type Controller struct {
	sim          *Simulation
	store        *Store
	metrics      *Metrics
	logger       kitlog.Logger
	running      bool    // Toggled by the user
	loadedEnough bool    // Set once the host respawned the player
	stopped      bool    // Set forever once a tick failed
	timeRate     float64 // Multiplier of the frame time
	frameTime    float64 // Last timer sample, consumed by the next tick
	frame        uint64
	onTick       func(Snapshot)
}

// NewController returns a controller for a fresh universe. store may be nil if
// nothing is persisted.
func NewController(cfg Config, scene SceneGraph, store *Store, metrics *Metrics, logger kitlog.Logger) *Controller {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &Controller{
		sim:      NewSimulation(cfg.Globals, scene, metrics, logger),
		store:    store,
		metrics:  metrics,
		logger:   subsys(logger, "controller"),
		running:  cfg.Running,
		timeRate: cfg.TimeRate,
	}
}

// Simulation returns the underlying simulation.
func (c *Controller) Simulation() *Simulation {
	return c.sim
}

// OnTick registers f to be called with a snapshot after every successful tick.
func (c *Controller) OnTick(f func(Snapshot)) {
	c.onTick = f
}

// ProvideGravitySingleton hands over the host gravity table; later calls are ignored.
func (c *Controller) ProvideGravitySingleton(t GravityTable) {
	if c.sim.ProvideGravity(t) {
		level.Debug(c.logger).Log("message", "gravity singleton stored")
	}
}

// OnSystemGenerated starts a new universe with the provided parent table.
func (c *Controller) OnSystemGenerated(parents [MaxBodies]int) {
	c.sim.Reset()
	c.sim.Registry.SetHierarchy(parents)
	c.metrics.countBodies(c.sim.Registry)
	level.Info(c.logger).Log("message", "system generated", "parents", fmt.Sprint(parents))
}

// OnBodyInitialized registers a body whose region is ready and places it on its orbit.
func (c *Controller) OnBodyInitialized(init BodyInit) error {
	if init.Handle == nil {
		return fmt.Errorf("body %d initialized without a handle", init.Index)
	}
	parent := c.sim.Registry.ParentOf(init.Index)
	b, err := c.sim.RegisterBody(init.Index, init.Seed, parent, init.Handle)
	if err != nil {
		level.Error(c.logger).Log("message", "could not register body", "index", init.Index, "err", err)
		return err
	}
	c.metrics.countBodies(c.sim.Registry)
	level.Debug(c.logger).Log("message", "body initialized", "body", b, "position", fmt.Sprint(init.Handle.Position()))
	return nil
}

// OnRespawn marks the world as loaded enough for the planets to move.
func (c *Controller) OnRespawn(reason string) {
	if !c.loadedEnough {
		level.Info(c.logger).Log("message", "world loaded", "reason", reason)
	}
	c.loadedEnough = true
}

// OnObserverUpdated records the observer environment.
func (c *Controller) OnObserverUpdated(s ObserverSample) {
	c.sim.Observer.Update(s.Nearest, s.Distance)
}

// OnOrbitEntered locks the observer on the nearest body; returns whether it locked.
func (c *Controller) OnOrbitEntered() bool {
	return c.sim.EnterOrbit(c.Active())
}

// OnOrbitExited releases the lock.
func (c *Controller) OnOrbitExited() {
	c.sim.ExitOrbit()
}

// OnFrameTime caches the frame duration measured by the host timer.
func (c *Controller) OnFrameTime(seconds float64) {
	c.frameTime = seconds
}

// OnFrameTick runs at most one tick with the cached frame time. Nothing moves
// while the host is paused, before the world is loaded, or when the simulation
// is toggled off. Returns whether a tick ran successfully.
func (c *Controller) OnFrameTick(paused bool) (ok bool) {
	if c.stopped || paused || !c.loadedEnough || !c.running {
		return false
	}
	delta := c.timeRate * c.frameTime
	c.frameTime = 0

	start := time.Now()
	err := c.safeTick(delta)
	c.metrics.observeTick(time.Since(start))
	if err != nil {
		c.stop(err)
		return false
	}
	c.frame++
	if c.onTick != nil {
		c.onTick(c.Snapshot())
	}
	return true
}

// safeTick converts a panic from a host accessor into an error.
func (c *Controller) safeTick(delta float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TickError{NoBody, "host access", fmt.Errorf("panic: %v", r)}
		}
	}()
	return c.sim.Tick(delta)
}

// stop disables the simulation for good: resuming over a state which failed
// to update risks corrupting the host further.
func (c *Controller) stop(err error) {
	c.stopped = true
	c.metrics.failed()
	var te *TickError
	index := NoBody
	if errors.As(err, &te) {
		index = te.Index
	}
	level.Error(c.logger).Log("message", "error moving the planets, simulation stopped", "err", err, "index", index,
		"frame", c.frame, "locked", c.sim.Observer.Locked, "nearest", c.sim.Observer.Nearest, "center", fmt.Sprint(c.sim.Center))
}

// Active returns whether the planets are moving.
func (c *Controller) Active() bool {
	return c.running && !c.stopped
}

// Running returns whether the user toggled the simulation on.
func (c *Controller) Running() bool {
	return c.running
}

// SetRunning toggles the simulation.
func (c *Controller) SetRunning(running bool) {
	if running != c.running {
		level.Info(c.logger).Log("message", "simulation toggled", "running", running)
	}
	c.running = running
}

// Stopped returns whether a tick failed.
func (c *Controller) Stopped() bool {
	return c.stopped
}

// TimeRate returns the frame time multiplier.
func (c *Controller) TimeRate() float64 {
	return c.timeRate
}

// SetTimeRate sets the frame time multiplier.
func (c *Controller) SetTimeRate(rate float64) error {
	if rate < 0 {
		return fmt.Errorf("negative time rate %f", rate)
	}
	c.timeRate = rate
	return nil
}

// PeriodLabel returns the orbital period text of the body at index, or an
// empty string if the body is unknown.
func (c *Controller) PeriodLabel(index int) string {
	b, ok := c.sim.Registry.Get(index)
	if !ok {
		return ""
	}
	return PeriodLabel(b.Period)
}

// Save persists the session in the provided slot.
func (c *Controller) Save(slot int) error {
	if c.store == nil {
		return errors.New("no state store")
	}
	if err := c.store.Save(slot, c.sim.SaveState()); err != nil {
		level.Error(c.logger).Log("message", "save failed", "slot", slot, "err", err)
		return err
	}
	level.Info(c.logger).Log("message", "saved", "slot", slot, "path", c.store.Path(slot))
	return nil
}

// Load restores the session saved in slot. A slot never saved is not an error.
// It must run once the system is generated and its bodies initialized:
// OnSystemGenerated starts from a blank state.
func (c *Controller) Load(slot int) error {
	if c.store == nil {
		return errors.New("no state store")
	}
	st, err := c.store.Load(slot)
	if errors.Is(err, ErrNoSave) {
		level.Debug(c.logger).Log("message", "nothing to load", "slot", slot)
		return nil
	} else if err != nil {
		return err
	}
	if err := c.sim.ApplyState(st); err != nil {
		return err
	}
	level.Info(c.logger).Log("message", "loaded", "slot", slot, "locked", st.IsInOrbit)
	return nil
}

// Snapshot copies the current state.
func (c *Controller) Snapshot() Snapshot {
	s := c.sim
	snap := Snapshot{
		Frame:    c.frame,
		Running:  c.running,
		Stopped:  c.stopped,
		TimeRate: c.timeRate,
		Locked:   s.Observer.Locked,
		Nearest:  s.Observer.Nearest,
		Center:   s.Center,
	}
	for _, idx := range append(s.Registry.Planets(), s.Registry.Moons()...) {
		b, _ := s.Registry.Get(idx)
		bs := BodySnapshot{
			Index:    idx,
			Class:    b.Class().String(),
			Parent:   b.Parent,
			Time:     s.Times[idx],
			Period:   b.Period,
			Modifier: s.TimeModifier(idx),
		}
		if b.Handle != nil {
			bs.Position = b.Handle.Position()
		}
		snap.Bodies = append(snap.Bodies, bs)
	}
	return snap
}
