package power

import (
	"fmt"
	"log/slog"

	"rallynav/pkg/config"
)

// FromProfile builds a registry from a configured aircraft profile and selects Taxi.
func FromProfile(p *config.AircraftProfile) (*Registry, error) {
	if len(p.Settings) < int(slotCount) {
		return nil, fmt.Errorf("%w: %s has %d of %d", ErrIncompleteProfile, p.Name, len(p.Settings), slotCount)
	}

	r := NewRegistry(p.Name, p.PowerUnits)
	for _, s := range p.Settings {
		if err := r.Append(s.Name, s.RPM, s.ManifoldPressure, s.FuelFlow, s.TAS); err != nil {
			return nil, fmt.Errorf("failed to load profile %s: %w", p.Name, err)
		}
	}
	r.Select(Taxi)

	slog.Info("Aircraft profile loaded", "aircraft", p.Name, "settings", r.Len())
	return r, nil
}

// FromConfig loads the active profile from the aircraft section.
func FromConfig(cfg *config.AircraftConfig) (*Registry, error) {
	p, ok := cfg.Profile(cfg.Active)
	if !ok {
		return nil, fmt.Errorf("aircraft profile %q not found", cfg.Active)
	}
	return FromProfile(p)
}
