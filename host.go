package newton

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

// The host owns the authoritative copy of every body. Everything the
// simulation reads or writes on the host goes through the interfaces below;
// implementations are responsible for the memory layout.

// ErrUnreadable is returned by a host accessor when the field is not populated yet.
var ErrUnreadable = errors.New("host field unreadable")

// NodeHandle is an opaque reference to a node of the host scene graph.
type NodeHandle uint64

// Atmosphere holds the atmosphere heights of a body, in host units (meters).
type Atmosphere struct {
	EndHeight float64 // At and below this altitude, the body is considered reached
	SkyHeight float64 // Top of the visible sky
}

// BodyHandle is the host side view of one loaded body.
type BodyHandle interface {
	// Position returns the current world position of the body.
	Position() mgl64.Vec3
	// SetPosition overwrites the world position of the body.
	SetPosition(mgl64.Vec3) error
	// RegionTransform returns the transform of the body's region map.
	RegionTransform() Transform
	// SetRegionTransform overwrites the transform of the body's region map.
	SetRegionTransform(Transform) error
	// Node returns the scene graph node of the body, if it has one.
	Node() (NodeHandle, bool)
	// CachedRadius returns the radius cached on the region map; it may not be populated yet.
	CachedRadius() (float64, error)
	// Atmosphere returns the atmosphere properties of the body.
	Atmosphere() (Atmosphere, error)
}

// SceneGraph is the host primitive used to move every transform attached under a node.
type SceneGraph interface {
	ShiftSubtree(node NodeHandle, delta mgl64.Vec3) error
}

// GravityTable is the host gravity singleton: one gravity point per body index.
type GravityTable interface {
	SetGravityCenter(index int, center mgl64.Vec3) error
}
