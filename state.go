package newton

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/go-kit/log/level"
)

// ErrNoSave is returned when a save slot has never been written.
var ErrNoSave = errors.New("no save for this slot")

// SaveState is the part of a session which survives a reload of the host save.
type SaveState struct {
	PlanetTimes         []float64  `json:"planet_times"`
	StoppedPlanetIndex  int        `json:"stopped_planet_index"`
	FixedPlanetPosition mgl64.Vec3 `json:"fixed_planet_position"`
	SolarSystemCenter   mgl64.Vec3 `json:"solar_system_center"`
	FixedCenter         mgl64.Vec3 `json:"fixed_center"`
	IsInOrbit           bool       `json:"is_in_orbit"`
}

// Validate returns an error if the state cannot be applied.
func (st SaveState) Validate() error {
	if len(st.PlanetTimes) > MaxBodies {
		return fmt.Errorf("%d body times for a universe of %d", len(st.PlanetTimes), MaxBodies)
	}
	for i, t := range st.PlanetTimes {
		if t < 0 {
			return fmt.Errorf("negative time %f for body %d", t, i)
		}
	}
	if st.IsInOrbit && !validIndex(st.StoppedPlanetIndex) {
		return fmt.Errorf("in orbit of invalid body %d", st.StoppedPlanetIndex)
	}
	for _, v := range []mgl64.Vec3{st.FixedPlanetPosition, st.SolarSystemCenter, st.FixedCenter} {
		if !isFinite(v) {
			return fmt.Errorf("non finite position %v", v)
		}
	}
	return nil
}

// SaveState returns the persistent part of the simulation.
func (s *Simulation) SaveState() SaveState {
	times := make([]float64, MaxBodies)
	copy(times, s.Times[:])
	return SaveState{
		PlanetTimes:         times,
		StoppedPlanetIndex:  s.Observer.Held(),
		FixedPlanetPosition: s.Observer.FixedBodyPosition,
		SolarSystemCenter:   s.Center,
		FixedCenter:         s.Observer.FixedCenter,
		IsInOrbit:           s.Observer.Locked,
	}
}

// ApplyState restores a saved state and moves every registered body to
// where its restored clock places it.
func (s *Simulation) ApplyState(st SaveState) error {
	if err := st.Validate(); err != nil {
		return err
	}
	s.Times = [MaxBodies]float64{}
	copy(s.Times[:], st.PlanetTimes)
	s.Center = st.SolarSystemCenter
	s.Observer.FixedCenter = st.FixedCenter
	s.Observer.FixedBodyPosition = st.FixedPlanetPosition
	s.Observer.Locked = st.IsInOrbit
	if st.IsInOrbit {
		s.Observer.Nearest = st.StoppedPlanetIndex
	}
	s.metrics.setLocked(st.IsInOrbit)
	// Planets first: moons are placed around their parent's new position.
	for _, idx := range append(s.Registry.Planets(), s.Registry.Moons()...) {
		b, _ := s.Registry.Get(idx)
		if err := s.place(b); err != nil {
			return fmt.Errorf("place body %d: %w", idx, err)
		}
	}
	if held, ok := s.Registry.Get(s.Observer.Held()); ok && held.Handle != nil {
		if pos := held.Handle.Position(); !vectorsEqual(pos, st.FixedPlanetPosition) {
			level.Warn(s.logger).Log("message", "held body restored away from its fixed position",
				"body", held, "position", fmt.Sprint(pos), "fixed", fmt.Sprint(st.FixedPlanetPosition))
		}
	}
	return nil
}

// Store writes save states as JSON files, one per host save slot.
type Store struct {
	dir string
}

// NewStore returns a store writing into dir.
func NewStore(dir string) *Store {
	return &Store{dir}
}

// Path returns the file of a slot.
func (s *Store) Path(slot int) string {
	return filepath.Join(s.dir, fmt.Sprintf("newton-%d.json", slot))
}

// Save writes the state of a slot, replacing any previous one.
func (s *Store) Save(slot int, st SaveState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, fmt.Sprintf(".newton-%d-*.json", slot))
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.Path(slot))
}

// Load reads the state of a slot. Returns ErrNoSave if the slot was never saved.
func (s *Store) Load(slot int) (SaveState, error) {
	st := SaveState{StoppedPlanetIndex: NoBody}
	data, err := os.ReadFile(s.Path(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return st, ErrNoSave
	} else if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("%s: %w", s.Path(slot), err)
	}
	return st, st.Validate()
}
