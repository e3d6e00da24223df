package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Server    ServerConfig    `yaml:"server"`
	Ticker    TickerConfig    `yaml:"ticker"`
	Triggers  TriggersConfig  `yaml:"triggers"`
	Nav       NavConfig       `yaml:"nav"`
	Fuel      FuelConfig      `yaml:"fuel"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Aircraft  AircraftConfig  `yaml:"aircraft"`
	Position  PositionConfig  `yaml:"position"`
	Waypoints WaypointsConfig `yaml:"waypoints"`
	Import    ImportConfig    `yaml:"import"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path       string `yaml:"path"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
	// FlightLogRetention bounds how long completed flight logs are kept.
	FlightLogRetention Duration `yaml:"flight_log_retention"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// TickerConfig holds ticker settings.
type TickerConfig struct {
	Interval Duration `yaml:"interval"`
	// MinUpdate is the minimum spacing between two processed position/time ticks.
	MinUpdate Duration `yaml:"min_update_interval"`
}

// TriggersConfig holds job scheduling thresholds.
type TriggersConfig struct {
	TrackDistance Distance `yaml:"track_distance"`
	SnapshotTime  Duration `yaml:"snapshot_time"`
}

// NavConfig holds the navigation model.
type NavConfig struct {
	Units             string  `yaml:"units"` // "nautical", "statute"
	MagneticVariation float64 `yaml:"magnetic_variation"`
}

// FuelConfig holds fuel bookkeeping defaults.
type FuelConfig struct {
	StartFuel      float64 `yaml:"start_fuel"`
	FillOAT        float64 `yaml:"fill_oat"`
	CompPerDegreeF float64 `yaml:"comp_per_degree_f"`
	PumpFactor     float64 `yaml:"pump_factor"`
}

// ScoringConfig holds rally penalty multipliers.
type ScoringConfig struct {
	TimePointsPerSecond  float64 `yaml:"time_points_per_second"`
	FuelPointsPerPercent float64 `yaml:"fuel_points_per_percent"`
}

// AircraftConfig holds the available aircraft power profiles.
type AircraftConfig struct {
	Active   string            `yaml:"active"`
	Profiles []AircraftProfile `yaml:"profiles"`
}

// AircraftProfile is one aircraft's power table, in slot order
// Taxi, Runup, Takeoff, Climb, Cruise, Low Cruise, Pattern.
type AircraftProfile struct {
	Name       string         `yaml:"name"`
	PowerUnits string         `yaml:"power_units"` // "MP", "%HP"
	Settings   []PowerSetting `yaml:"settings"`
}

// PowerSetting is one row of an aircraft power table.
type PowerSetting struct {
	Name             string  `yaml:"name"`
	RPM              int     `yaml:"rpm"`
	ManifoldPressure string  `yaml:"manifold_pressure"`
	FuelFlow         float64 `yaml:"fuel_flow"`
	TAS              float64 `yaml:"tas"`
}

// Profile returns the named profile.
func (a *AircraftConfig) Profile(name string) (*AircraftProfile, bool) {
	for i := range a.Profiles {
		if a.Profiles[i].Name == name {
			return &a.Profiles[i], true
		}
	}
	return nil, false
}

// PositionConfig selects the position source.
type PositionConfig struct {
	Provider string     `yaml:"provider"` // "gpsd", "mock"
	GPSD     GPSDConfig `yaml:"gpsd"`
	Mock     MockConfig `yaml:"mock"`
}

// GPSDConfig holds gpsd connection settings.
type GPSDConfig struct {
	Address        string   `yaml:"address"`
	ReconnectDelay Duration `yaml:"reconnect_delay"`
	StaleAfter     Duration `yaml:"stale_after"`
}

// MockConfig holds settings for the simulated aircraft.
type MockConfig struct {
	SpeedKts float64  `yaml:"speed_kts"`
	Tick     Duration `yaml:"tick"`
	StartLat float64  `yaml:"start_lat"`
	StartLon float64  `yaml:"start_lon"`
}

// WaypointsConfig holds waypoint lookup settings.
type WaypointsConfig struct {
	CacheSize int            `yaml:"cache_size"`
	UserSeed  []SeedWaypoint `yaml:"user_seed"`
}

// ImportConfig holds the reference waypoint sources checked at startup.
type ImportConfig struct {
	// NASRDir is an unzipped FAA 28-day NASR subscription (APT.txt, NAV.txt, FIX.txt).
	NASRDir string   `yaml:"nasr_dir"`
	States  []string `yaml:"states"`
	// Shapefile is an optional ESRI point shapefile of additional reference fixes.
	Shapefile string `yaml:"shapefile"`
	NameField string `yaml:"name_field"`
}

// SeedWaypoint is a user waypoint created on first start.
type SeedWaypoint struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Latitude    float64 `yaml:"latitude"`
	Longitude   float64 `yaml:"longitude"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:       "./logs/server.log",
				Level:      "INFO",
				MaxSizeMB:  10,
				MaxBackups: 3,
			},
			Requests: LogSettings{
				Path:       "./logs/requests.log",
				Level:      "INFO",
				MaxSizeMB:  10,
				MaxBackups: 1,
			},
			Events: LogSettings{
				Path:       "./logs/events.log",
				Level:      "INFO",
				MaxSizeMB:  5,
				MaxBackups: 5,
			},
		},
		DB: DBConfig{
			Path:               "./data/rallynav.db",
			FlightLogRetention: Duration(365 * 24 * time.Hour),
		},
		Server: ServerConfig{
			Address: "localhost:1921",
		},
		Ticker: TickerConfig{
			Interval:  Duration(250 * time.Millisecond),
			MinUpdate: Duration(1 * time.Second),
		},
		Triggers: TriggersConfig{
			TrackDistance: Distance(926), // 0.5nm
			SnapshotTime:  Duration(15 * time.Second),
		},
		Nav: NavConfig{
			Units:             UnitsNautical,
			MagneticVariation: -14,
		},
		Fuel: FuelConfig{
			StartFuel:      74,
			FillOAT:        72,
			CompPerDegreeF: 0.00056,
			PumpFactor:     1.0,
		},
		Scoring: ScoringConfig{
			TimePointsPerSecond:  1.5,
			FuelPointsPerPercent: 30,
		},
		Aircraft: AircraftConfig{
			Active: "N7346R",
			Profiles: []AircraftProfile{
				{
					Name:       "N7346R",
					PowerUnits: "MP",
					Settings: []PowerSetting{
						{Name: "Taxi", RPM: 1000, ManifoldPressure: "Rich", FuelFlow: 2.80, TAS: 0},
						{Name: "Runup", RPM: 1800, ManifoldPressure: "Rich", FuelFlow: 5.80, TAS: 0},
						{Name: "Takeoff", RPM: 2700, ManifoldPressure: "Rich", FuelFlow: 24.90, TAS: 105},
						{Name: "Climb", RPM: 2500, ManifoldPressure: "25", FuelFlow: 22.00, TAS: 130},
						{Name: "Cruise", RPM: 2400, ManifoldPressure: "20", FuelFlow: 14.80, TAS: 142},
						{Name: "Low Cruise", RPM: 2400, ManifoldPressure: "20", FuelFlow: 14.80, TAS: 142},
						{Name: "Pattern", RPM: 2700, ManifoldPressure: "15", FuelFlow: 11.10, TAS: 95},
					},
				},
				{
					Name:       "N80377",
					PowerUnits: "%HP",
					Settings: []PowerSetting{
						{Name: "Taxi", RPM: 1000, ManifoldPressure: "20%", FuelFlow: 1.40, TAS: 0},
						{Name: "Runup", RPM: 1800, ManifoldPressure: "40%", FuelFlow: 3.50, TAS: 0},
						{Name: "Takeoff", RPM: 2700, ManifoldPressure: "100%", FuelFlow: 8.90, TAS: 85},
						{Name: "Climb", RPM: 2500, ManifoldPressure: "80%", FuelFlow: 8.90, TAS: 85},
						{Name: "Cruise", RPM: 2400, ManifoldPressure: "65%", FuelFlow: 6.70, TAS: 100},
						{Name: "Low Cruise", RPM: 2000, ManifoldPressure: "45%", FuelFlow: 5.40, TAS: 75},
						{Name: "Pattern", RPM: 1800, ManifoldPressure: "45%", FuelFlow: 5.40, TAS: 75},
					},
				},
			},
		},
		Position: PositionConfig{
			Provider: "gpsd",
			GPSD: GPSDConfig{
				Address:        "localhost:2947",
				ReconnectDelay: Duration(5 * time.Second),
				StaleAfter:     Duration(5 * time.Second),
			},
			Mock: MockConfig{
				SpeedKts: 120,
				Tick:     Duration(1 * time.Second),
				StartLat: 36.68471,
				StartLon: -120.50277,
			},
		},
		Waypoints: WaypointsConfig{
			CacheSize: 256,
			UserSeed: []SeedWaypoint{
				{Name: "OILCAMP", Description: "Oil Camp", Latitude: 36.68471, Longitude: -120.50277},
				{Name: "I5.WESTSHIELDS", Description: "I5 & West Shields", Latitude: 36.77774, Longitude: -120.72426},
				{Name: "I5.165", Description: "I5 & 165", Latitude: 36.93022, Longitude: -120.84068},
				{Name: "I5.VOLTA", Description: "I5 & Volta", Latitude: 37.01419, Longitude: -120.92878},
				{Name: "PT.ALPHA", Description: "I5 & 152", Latitude: 37.05665, Longitude: -120.96990},
			},
		},
		Import: ImportConfig{
			NASRDir:   "./data/nasr",
			States:    []string{"CA", "ID", "OR", "WA", "NV", "AZ"},
			NameField: "NAME",
		},
	}
}

// Distance units.
const (
	UnitsNautical = "nautical"
	UnitsStatute  = "statute"
)

// ErrInvalidConfig wraps all validation failures.
var ErrInvalidConfig = errors.New("invalid config")

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT save back to disk.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// .env next to the binary is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to read .env file", "error", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)
	cfg.DB.Path = expandPath(cfg.DB.Path)
	cfg.Log.Server.Path = expandPath(cfg.Log.Server.Path)
	cfg.Log.Requests.Path = expandPath(cfg.Log.Requests.Path)
	cfg.Log.Events.Path = expandPath(cfg.Log.Events.Path)
	cfg.Import.NASRDir = expandPath(cfg.Import.NASRDir)
	cfg.Import.Shapefile = expandPath(cfg.Import.Shapefile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides deployment settings from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("RALLYNAV_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("RALLYNAV_GPSD_ADDRESS"); v != "" {
		cfg.Position.GPSD.Address = v
	}
	if v := os.Getenv("RALLYNAV_DB_PATH"); v != "" {
		cfg.DB.Path = v
	}
	if v := os.Getenv("RALLYNAV_POSITION_PROVIDER"); v != "" {
		cfg.Position.Provider = v
	}
}

var winEnvRE = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*)%`)

// expandPath resolves $VAR and %VAR% references in configured paths.
func expandPath(p string) string {
	p = winEnvRE.ReplaceAllString(p, "$${$1}")
	return os.ExpandEnv(p)
}

// Validate checks value ranges that the engine relies on.
func (c *Config) Validate() error {
	if c.Nav.Units != UnitsNautical && c.Nav.Units != UnitsStatute {
		return fmt.Errorf("%w: nav.units must be %q or %q, got %q", ErrInvalidConfig, UnitsNautical, UnitsStatute, c.Nav.Units)
	}
	if c.Fuel.PumpFactor < 0.90 || c.Fuel.PumpFactor > 1.10 {
		return fmt.Errorf("%w: fuel.pump_factor %.4f outside 0.90-1.10", ErrInvalidConfig, c.Fuel.PumpFactor)
	}
	if c.Fuel.StartFuel < 0 || c.Fuel.StartFuel > 2000 {
		return fmt.Errorf("%w: fuel.start_fuel %.2f outside 0-2000", ErrInvalidConfig, c.Fuel.StartFuel)
	}
	if c.Fuel.FillOAT < 0 || c.Fuel.FillOAT > 130 {
		return fmt.Errorf("%w: fuel.fill_oat %.0f outside 0-130", ErrInvalidConfig, c.Fuel.FillOAT)
	}
	if _, ok := c.Aircraft.Profile(c.Aircraft.Active); !ok {
		return fmt.Errorf("%w: aircraft.active %q has no profile", ErrInvalidConfig, c.Aircraft.Active)
	}
	switch c.Position.Provider {
	case "gpsd", "mock":
	default:
		return fmt.Errorf("%w: position.provider must be gpsd or mock, got %q", ErrInvalidConfig, c.Position.Provider)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# RallyNav Configuration
# ----------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), nm (nautical miles), ft (feet)

`)
	data = append(header, data...)

	reUnits := regexp.MustCompile(`(?m)^(\s+)units:`)
	data = reUnits.ReplaceAll(data, []byte("${1}# Options: nautical, statute\n${1}units:"))

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: gpsd, mock\n${1}provider:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
