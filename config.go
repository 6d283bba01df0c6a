package newton

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// ConfigEnv names the directory holding conf.toml.
	ConfigEnv = "NEWTON_CONFIG"
)

// Globals are the tunables of the orbit generator and the approach slowdown.
type Globals struct {
	MinPlanetEccentricity float64
	MaxPlanetEccentricity float64
	MinMoonEccentricity   float64
	MaxMoonEccentricity   float64
	AvgSeparation         float64 // Average distance between consecutive planet orbits
	RateConstant          float64 // K in α = K / (2π a^1.5)
	ApproachDropoff       float64 // Exponent of the approach slowdown curve
}

// DefaultGlobals returns the stock tunables.
func DefaultGlobals() Globals {
	return Globals{
		MinPlanetEccentricity: 0.01,
		MaxPlanetEccentricity: 0.2,
		MinMoonEccentricity:   0,
		MaxMoonEccentricity:   0.05,
		AvgSeparation:         300000.0,
		RateConstant:          3500000.0,
		ApproachDropoff:       3,
	}
}

// Validate returns an error if the globals cannot produce valid orbits.
func (g Globals) Validate() error {
	if g.MinPlanetEccentricity < 0 || g.MaxPlanetEccentricity >= 1 || g.MinPlanetEccentricity > g.MaxPlanetEccentricity {
		return fmt.Errorf("invalid planet eccentricity range [%f, %f)", g.MinPlanetEccentricity, g.MaxPlanetEccentricity)
	}
	if g.MinMoonEccentricity < 0 || g.MaxMoonEccentricity >= 1 || g.MinMoonEccentricity > g.MaxMoonEccentricity {
		return fmt.Errorf("invalid moon eccentricity range [%f, %f)", g.MinMoonEccentricity, g.MaxMoonEccentricity)
	}
	if g.AvgSeparation <= 0 {
		return errors.New("average separation must be positive")
	}
	if g.RateConstant <= 0 {
		return errors.New("rate constant must be positive")
	}
	if g.ApproachDropoff <= 0 {
		return errors.New("approach dropoff must be positive")
	}
	return nil
}

// Config is the full configuration of a newton session and of the daemon.
type Config struct {
	Globals   Globals
	TimeRate  float64 // Multiplier applied to every frame time
	Running   bool    // Whether planets move as soon as the world is loaded
	StateDir  string  // Where save slots are written
	LogLevel  string
	Listen    string        // Daemon HTTP address
	FPS       int           // Daemon frame rate
	Telemetry time.Duration // Minimum interval between two telemetry snapshots
	Origins   []string      // Origins allowed to open the telemetry stream, any if empty
}

func setDefaults(v *viper.Viper) {
	g := DefaultGlobals()
	v.SetDefault("orbits.min_planet_eccentricity", g.MinPlanetEccentricity)
	v.SetDefault("orbits.max_planet_eccentricity", g.MaxPlanetEccentricity)
	v.SetDefault("orbits.min_moon_eccentricity", g.MinMoonEccentricity)
	v.SetDefault("orbits.max_moon_eccentricity", g.MaxMoonEccentricity)
	v.SetDefault("orbits.avg_separation", g.AvgSeparation)
	v.SetDefault("orbits.rate_constant", g.RateConstant)
	v.SetDefault("orbits.approach_dropoff", g.ApproachDropoff)
	v.SetDefault("simulation.time_rate", 1.0)
	v.SetDefault("simulation.running", false)
	v.SetDefault("state.directory", ".")
	v.SetDefault("log.level", "info")
	v.SetDefault("daemon.listen", ":8192")
	v.SetDefault("daemon.fps", 60)
	v.SetDefault("telemetry.rate", "100ms")
	v.SetDefault("telemetry.origins", []string{})
}

// DefaultConfig returns the configuration used when no file is provided.
func DefaultConfig() Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := configFrom(v)
	if err != nil {
		panic(fmt.Errorf("invalid default configuration: %w", err))
	}
	return cfg
}

// LoadConfig reads conf.toml from dir. If dir is empty, the NEWTON_CONFIG
// environment variable is used, and if that is unset, defaults are returned.
func LoadConfig(dir string) (Config, error) {
	if dir == "" {
		dir = os.Getenv(ConfigEnv)
	}
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("newton")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if dir != "" {
		v.SetConfigName("conf")
		v.SetConfigType("toml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%s/conf.toml: %w", dir, err)
		}
	}
	return configFrom(v)
}

func configFrom(v *viper.Viper) (Config, error) {
	cfg := Config{
		Globals: Globals{
			MinPlanetEccentricity: v.GetFloat64("orbits.min_planet_eccentricity"),
			MaxPlanetEccentricity: v.GetFloat64("orbits.max_planet_eccentricity"),
			MinMoonEccentricity:   v.GetFloat64("orbits.min_moon_eccentricity"),
			MaxMoonEccentricity:   v.GetFloat64("orbits.max_moon_eccentricity"),
			AvgSeparation:         v.GetFloat64("orbits.avg_separation"),
			RateConstant:          v.GetFloat64("orbits.rate_constant"),
			ApproachDropoff:       v.GetFloat64("orbits.approach_dropoff"),
		},
		TimeRate:  v.GetFloat64("simulation.time_rate"),
		Running:   v.GetBool("simulation.running"),
		StateDir:  v.GetString("state.directory"),
		LogLevel:  v.GetString("log.level"),
		Listen:    v.GetString("daemon.listen"),
		FPS:       v.GetInt("daemon.fps"),
		Telemetry: v.GetDuration("telemetry.rate"),
		Origins:   v.GetStringSlice("telemetry.origins"),
	}
	if err := cfg.Globals.Validate(); err != nil {
		return cfg, err
	}
	if cfg.TimeRate < 0 {
		return cfg, fmt.Errorf("negative time rate %f", cfg.TimeRate)
	}
	if cfg.FPS <= 0 {
		return cfg, fmt.Errorf("invalid frame rate %d", cfg.FPS)
	}
	return cfg, nil
}
