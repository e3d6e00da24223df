// Package power holds the aircraft power settings (taxi, climb, cruise...)
// that give each leg its fuel flow and planned true airspeed.
package power

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// Index identifies a power setting slot. Legs reference settings by slot,
// so every profile registers its settings in this order.
type Index int

const (
	Taxi Index = iota
	Runup
	Takeoff
	Climb
	Cruise
	LowCruise
	Pattern

	slotCount
)

// WarmTaxi shares the runup slot.
const WarmTaxi = Runup

var slotNames = [...]string{"Taxi", "Runup", "Takeoff", "Climb", "Cruise", "Low Cruise", "Pattern"}

func (i Index) String() string {
	if i < 0 || i >= slotCount {
		return fmt.Sprintf("Index(%d)", int(i))
	}
	return slotNames[i]
}

var (
	// ErrDuplicateSetting is returned when a setting name is already registered.
	ErrDuplicateSetting = errors.New("duplicate power setting")
	// ErrIncompleteProfile is returned when a profile does not fill every slot.
	ErrIncompleteProfile = errors.New("profile must define all power settings")
)

// Setting is a named power setting.
type Setting struct {
	Name string `json:"name"`
	RPM  int    `json:"rpm"`
	// ManifoldPressure is a number ("25") or a descriptive value ("Rich", "65%").
	ManifoldPressure string  `json:"manifold_pressure"`
	FuelFlow         float64 `json:"fuel_flow"`
	TrueAirspeed     float64 `json:"tas"`
}

// Registry is an ordered, name-unique collection of settings with one
// "current" entry for display.
type Registry struct {
	mu         sync.RWMutex
	name       string
	powerUnits string
	settings   []Setting
	current    Index
}

// NewRegistry creates an empty registry for the named aircraft.
func NewRegistry(name, powerUnits string) *Registry {
	return &Registry{name: name, powerUnits: powerUnits}
}

// Name returns the aircraft name of the profile.
func (r *Registry) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

// PowerUnits returns how the manifold pressure column is labelled ("MP" or "%HP").
func (r *Registry) PowerUnits() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.powerUnits
}

// Append registers a setting. Duplicate names are logged and rejected.
func (r *Registry) Append(name string, rpm int, mp string, fuelFlow, tas float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.settings {
		if s.Name == name {
			slog.Warn("Power setting already registered", "name", name, "profile", r.name)
			return fmt.Errorf("%w: %s", ErrDuplicateSetting, name)
		}
	}
	r.settings = append(r.settings, Setting{
		Name:             name,
		RPM:              rpm,
		ManifoldPressure: mp,
		FuelFlow:         fuelFlow,
		TrueAirspeed:     tas,
	})
	return nil
}

// Get returns the setting at index i.
func (r *Registry) Get(i Index) (Setting, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || int(i) >= len(r.settings) {
		return Setting{}, false
	}
	return r.settings[i], true
}

// Select marks index i as the current setting. Out-of-range indices are ignored.
func (r *Registry) Select(i Index) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || int(i) >= len(r.settings) {
		return
	}
	r.current = i
}

// Current returns the selected index.
func (r *Registry) Current() Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// CurrentTAS returns the true airspeed of the selected setting.
func (r *Registry) CurrentTAS() float64 {
	s, _ := r.Get(r.Current())
	return s.TrueAirspeed
}

// Settings returns a copy of all registered settings in slot order.
func (r *Registry) Settings() []Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Setting, len(r.settings))
	copy(out, r.settings)
	return out
}

// Len returns the number of registered settings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.settings)
}

// RPMForPercentPower estimates the RPM giving the requested percent power at a
// pressure altitude and outside air temperature (°F). The table is anchored at
// 2500 RPM for 65% at 6000 ft density altitude.
func RPMForPercentPower(pressureAltFt, oatF float64, percent int) int {
	const rpm65PctAt6000 = 2500
	standardTempF := 59 - (3.564 * pressureAltFt / 1000)
	densityAlt := pressureAltFt + 66.667*(oatF-standardTempF)
	return int(math.Round(rpm65PctAt6000 + 0.03*(densityAlt-6000) - float64(65-percent)/0.06))
}
