package newton

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// OrbitParams defines a planar ellipse and how fast a body travels along it.
// NOTE: There is no out-of-plane component, all motion happens in the z-plane of the center.
type OrbitParams struct {
	A     float64 // Semi-major axis
	B     float64 // Semi-minor axis
	Alpha float64 // Angular rate (rad/s)
	Delta float64 // Phase (rad)
}

// Position returns the position at time t on the ellipse centered on center.
func Position(center mgl64.Vec3, o OrbitParams, t float64) mgl64.Vec3 {
	sinθ, cosθ := math.Sincos(o.Alpha*t + o.Delta)
	return mgl64.Vec3{
		center[0] + o.A*cosθ,
		center[1] + o.B*sinθ,
		center[2],
	}
}

// Eccentricity returns the eccentricity of this ellipse.
func (o OrbitParams) Eccentricity() float64 {
	if o.A == 0 {
		return 0
	}
	ratio := (o.B * o.B) / (o.A * o.A)
	if ratio >= 1 {
		return 0
	}
	return math.Sqrt(1 - ratio)
}

// Period returns the orbital period in seconds.
func (o OrbitParams) Period() float64 {
	return 2 * math.Pi / o.Alpha
}

// PeriodString returns the period formatted for display, e.g. "4.50 minutes".
func (o OrbitParams) PeriodString() string {
	return FormatPeriod(o.Period())
}

// String implements the Stringer interface.
func (o OrbitParams) String() string {
	return fmt.Sprintf("a=%.3f b=%.3f e=%.4f α=%.3e δ=%.4f P=%s", o.A, o.B, o.Eccentricity(), o.Alpha, o.Delta, o.PeriodString())
}

// FormatPeriod formats a duration in seconds as seconds, minutes or hours with two decimals.
func FormatPeriod(seconds float64) string {
	switch {
	case seconds >= 3600:
		return fmt.Sprintf("%.2f hours", seconds/3600)
	case seconds >= 60:
		return fmt.Sprintf("%.2f minutes", seconds/60)
	default:
		return fmt.Sprintf("%.2f seconds", seconds)
	}
}

// PeriodLabel returns the text shown in the selected body panel.
func PeriodLabel(period string) string {
	if period == "" {
		return ""
	}
	return "Orbital Period: " + period
}
