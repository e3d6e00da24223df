package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "rallynav.yaml")

	tests := []struct {
		name          string
		setup         func()
		validate      func(*testing.T, *Config)
		checkFile     func(*testing.T)
		expectedError bool
	}{
		{
			name:  "NewFile_Defaults",
			setup: func() {},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Nav.Units != UnitsNautical {
					t.Errorf("expected default units %q, got %q", UnitsNautical, cfg.Nav.Units)
				}
				if cfg.Fuel.StartFuel != 74 {
					t.Errorf("expected start fuel 74, got %v", cfg.Fuel.StartFuel)
				}
				if time.Duration(cfg.Ticker.MinUpdate) != time.Second {
					t.Errorf("expected min update 1s, got %v", time.Duration(cfg.Ticker.MinUpdate))
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "units: nautical") {
					t.Error("config file missing default values")
				}
				if !strings.Contains(string(content), "# Options: gpsd, mock") {
					t.Error("config file missing provider comment")
				}
			},
		},
		{
			name: "ExistingFile_Override",
			setup: func() {
				err := os.WriteFile(configPath, []byte("nav:\n  units: statute\nfuel:\n  start_fuel: 40\naircraft:\n  active: N80377\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Nav.Units != UnitsStatute {
					t.Errorf("expected units statute, got %q", cfg.Nav.Units)
				}
				if cfg.Fuel.StartFuel != 40 {
					t.Errorf("expected start fuel 40, got %v", cfg.Fuel.StartFuel)
				}
				if cfg.Fuel.FillOAT != 72 {
					t.Errorf("expected default fill OAT 72 to survive, got %v", cfg.Fuel.FillOAT)
				}
				if cfg.Aircraft.Active != "N80377" {
					t.Errorf("expected active N80377, got %q", cfg.Aircraft.Active)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if strings.Contains(string(content), "fill_oat") {
					t.Error("existing config must not be rewritten")
				}
			},
		},
		{
			name: "Env_Override",
			setup: func() {
				t.Setenv("RALLYNAV_GPSD_ADDRESS", "10.0.0.5:2947")
				err := os.WriteFile(configPath, []byte("position:\n  provider: gpsd\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Position.GPSD.Address != "10.0.0.5:2947" {
					t.Errorf("expected gpsd address from env, got %q", cfg.Position.GPSD.Address)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if strings.Contains(string(content), "10.0.0.5") {
					t.Error("environment override should NOT be persisted to config file")
				}
			},
		},
		{
			name: "Path_Env_Expansion",
			setup: func() {
				t.Setenv("RALLY_HOME", "/home/rally")
				t.Setenv("APP_DATA", "/app/data")
				err := os.WriteFile(configPath, []byte("db:\n  path: \"$RALLY_HOME/nav.db\"\nlog:\n  server:\n    path: \"%APP_DATA%/server.log\"\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.DB.Path != "/home/rally/nav.db" {
					t.Errorf("expected expanded db path, got %q", cfg.DB.Path)
				}
				if cfg.Log.Server.Path != "/app/data/server.log" {
					t.Errorf("expected expanded log path, got %q", cfg.Log.Server.Path)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "$RALLY_HOME") {
					t.Error("config file should persist raw $VAR path")
				}
			},
		},
		{
			name: "Invalid_YAML",
			setup: func() {
				err := os.WriteFile(configPath, []byte("nav: [not a map]"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "Invalid_Units",
			setup: func() {
				err := os.WriteFile(configPath, []byte("nav:\n  units: furlongs\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "Invalid_PumpFactor",
			setup: func() {
				err := os.WriteFile(configPath, []byte("fuel:\n  pump_factor: 1.5\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "Unknown_Aircraft",
			setup: func() {
				err := os.WriteFile(configPath, []byte("aircraft:\n  active: N12345\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Remove(configPath)
			tt.setup()

			cfg, err := Load(configPath)
			if (err != nil) != tt.expectedError {
				t.Fatalf("Load() error = %v, expectedError %v", err, tt.expectedError)
			}
			if err == nil {
				tt.validate(t, cfg)
				tt.checkFile(t)
			}
		})
	}
}

func TestAircraftProfile(t *testing.T) {
	cfg := DefaultConfig()

	p, ok := cfg.Aircraft.Profile("N80377")
	if !ok {
		t.Fatal("expected N80377 profile")
	}
	if p.PowerUnits != "%HP" {
		t.Errorf("expected %%HP power units, got %q", p.PowerUnits)
	}
	if len(p.Settings) != 7 {
		t.Errorf("expected 7 settings, got %d", len(p.Settings))
	}
	if _, ok := cfg.Aircraft.Profile("nope"); ok {
		t.Error("unexpected profile for unknown name")
	}
}

func TestGenerateDefault(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "sub", "default_config.yaml")

	if err := GenerateDefault(configPath); err != nil {
		t.Fatalf("GenerateDefault() error = %v", err)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("GenerateDefault() did not create file")
	}
	if err := GenerateDefault(configPath); err != nil {
		t.Errorf("GenerateDefault() error on second run = %v", err)
	}
}
