package newton

import (
	"github.com/go-gl/mathgl/mgl64"
)

// ObserverContext tracks where the observer is relative to the bodies.
// It is either Free or Locked: when Locked, the nearest body is held still
// and the rest of the universe moves around it.
type ObserverContext struct {
	Nearest           int     // Index of the nearest body, NoBody if unknown
	Distance          float64 // Distance from the nearest body's surface, in host units
	Locked            bool
	FixedCenter       mgl64.Vec3 // Solar system center when the observer last left an orbit
	FixedBodyPosition mgl64.Vec3 // Position of the held body when the lock engaged
}

// NewObserverContext returns a Free context with no nearest body.
func NewObserverContext() ObserverContext {
	return ObserverContext{Nearest: NoBody}
}

// Update records the latest observer sample.
func (c *ObserverContext) Update(nearest int, distance float64) {
	if !validIndex(nearest) {
		nearest = NoBody
	}
	c.Nearest = nearest
	c.Distance = distance
}

// EnterOrbit engages the lock on nearest. It only happens if the simulation is
// active and the nearest body exists; returns whether the lock engaged.
func (c *ObserverContext) EnterOrbit(active bool, nearest *Body) bool {
	if !active || c.Nearest == NoBody || nearest == nil {
		return false
	}
	c.Locked = true
	if nearest.Handle != nil {
		c.FixedBodyPosition = nearest.Handle.Position()
	}
	return true
}

// ExitOrbit releases the lock, freezing the current center as the reference for the next lock.
func (c *ObserverContext) ExitOrbit(center mgl64.Vec3) {
	c.FixedCenter = center
	c.FixedBodyPosition = mgl64.Vec3{}
	c.Locked = false
}

// Held returns the index of the body held still, NoBody when Free.
func (c *ObserverContext) Held() int {
	if c.Locked {
		return c.Nearest
	}
	return NoBody
}
