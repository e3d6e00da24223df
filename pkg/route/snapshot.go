package route

import (
	"time"

	"rallynav/pkg/flighttime"
	"rallynav/pkg/power"
)

// Snapshot is a copy of the route and its progress.
type Snapshot struct {
	State              string               `json:"state"`
	Running            bool                 `json:"running"`
	Timing             bool                 `json:"timing"`
	Rebuilding         bool                 `json:"rebuilding"`
	CurrentLeg         int                  `json:"current_leg"` // 0 when none
	StartLegIndex      int                  `json:"start_leg_index"`
	Power              power.Index          `json:"power"`
	PowerName          string               `json:"power_name"`
	ETAWaypoint        *time.Time           `json:"eta_waypoint,omitempty"`
	ETAGate            *time.Time           `json:"eta_gate,omitempty"`
	DeltaTime          *flighttime.Duration `json:"delta_time,omitempty"`
	DistanceToWaypoint float64              `json:"distance_to_waypoint"`
	Route              string               `json:"route"`
	Legs               []Leg                `json:"legs"`
}

// Snapshot returns a consistent copy of the engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.reg.Current()
	s := Snapshot{
		State:              e.state(),
		Running:            e.running,
		Timing:             e.timing,
		Rebuilding:         e.rebuilding,
		CurrentLeg:         e.current,
		StartLegIndex:      e.startLegIndex,
		Power:              cur,
		PowerName:          cur.String(),
		ETAWaypoint:        optTime(e.etaWaypoint),
		ETAGate:            optTime(e.etaGate),
		DistanceToWaypoint: e.distanceToWaypoint,
		Route:              e.currentRoute(),
		Legs:               append([]Leg(nil), e.legs...),
	}
	if e.deltaTime != nil {
		d := *e.deltaTime
		s.DeltaTime = &d
	}
	return s
}

// Legs returns a copy of the leg table.
func (e *Engine) Legs() []Leg {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Leg(nil), e.legs...)
}

// Leg returns leg i.
func (e *Engine) Leg(i int) (Leg, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.legs) {
		return Leg{}, false
	}
	return e.legs[i], true
}

// Warnings returns the retained warnings, oldest first.
func (e *Engine) Warnings() []Warning {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Warning(nil), e.warnings...)
}

// DeltaTime returns the gate delta, when one has been measured.
func (e *Engine) DeltaTime() (flighttime.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deltaTime == nil {
		return 0, false
	}
	return *e.deltaTime, true
}

func optTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Running reports whether the route has been started and not yet completed.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// CurrentLegIndex returns the active leg, 0 when none.
func (e *Engine) CurrentLegIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}
