package newton

import (
	"math"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// RadiusFunc reads the radius of a parent body. It may fail if the host has
// not populated it yet.
type RadiusFunc func() (float64, error)

// Generator maps a body seed to its orbit parameters.
type Generator struct {
	Globals Globals
	logger  kitlog.Logger
}

// NewGenerator returns a new Generator.
func NewGenerator(g Globals, logger kitlog.Logger) *Generator {
	return &Generator{g, subsys(logger, "orbit")}
}

// Generate returns the orbit parameters of the body at index.
// The draws happen in a fixed order on a stream seeded by seed (phase, then
// eccentricity, then the semi-minor axis), so the same inputs always yield
// the same orbit. parentRadius is only used for moons and may be nil.
func (g *Generator) Generate(index int, seed uint64, isMoon bool, parentRadius RadiusFunc) OrbitParams {
	src := rand.NewSource(seed)
	uniform := func(lo, hi float64) float64 {
		return distuv.Uniform{Min: lo, Max: hi, Src: src}.Rand()
	}

	δ := uniform(0, 2*math.Pi)

	var e float64
	if isMoon {
		e = uniform(g.Globals.MinMoonEccentricity, g.Globals.MaxMoonEccentricity)
	} else {
		e = uniform(g.Globals.MinPlanetEccentricity, g.Globals.MaxPlanetEccentricity)
	}

	// The semi-minor axis is chosen first so that each orbit clears the previous one.
	var b float64
	fallback := true
	if isMoon && parentRadius != nil {
		if r, err := parentRadius(); err != nil {
			level.Warn(g.logger).Log("index", index, "message", "parent radius unavailable, using separation", "err", err)
		} else if r <= 0 || math.IsNaN(r) {
			level.Warn(g.logger).Log("index", index, "message", "parent radius invalid, using separation", "radius", r)
		} else {
			level.Debug(g.logger).Log("index", index, "parentRadius", r)
			b = uniform(1.75*r, 2.25*r)
			fallback = false
		}
	}
	if fallback {
		variance := 0.1 * g.Globals.AvgSeparation
		b = float64(index+1)*g.Globals.AvgSeparation + variance*uniform(-1, 1)
	}

	a := b / math.Sqrt(1-e*e)
	α := g.Globals.RateConstant / (2 * math.Pi * math.Pow(a, 1.5))
	return OrbitParams{A: a, B: b, Alpha: α, Delta: δ}
}
