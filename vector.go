package newton

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"
)

const (
	positionε = 1e-6 // in host units
)

// Origin is the default solar system center.
var Origin = mgl64.Vec3{0, 0, 0}

// Transform is a body's orientation and position in world space. The first
// three columns are the basis, the last column is the position.
type Transform struct {
	mgl64.Mat3x4
}

// IdentityTransform returns a transform with a unit basis located at pos.
func IdentityTransform(pos mgl64.Vec3) Transform {
	return Transform{mgl64.Mat3x4FromCols(
		mgl64.Vec3{1, 0, 0},
		mgl64.Vec3{0, 1, 0},
		mgl64.Vec3{0, 0, 1},
		pos,
	)}
}

// Pos returns the position column.
func (t Transform) Pos() mgl64.Vec3 {
	return t.Col(3)
}

// WithPos returns a copy of the transform moved to pos; the basis is untouched.
func (t Transform) WithPos(pos mgl64.Vec3) Transform {
	t.SetCol(3, pos)
	return t
}

// vectorsEqual returns whether both vectors are within positionε of each other, component wise.
func vectorsEqual(a, b mgl64.Vec3) bool {
	return floats.EqualApprox(a[:], b[:], positionε)
}

// isFinite returns whether all components are neither NaN nor infinite.
func isFinite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
