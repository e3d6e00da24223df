package route

import (
	"time"

	"rallynav/pkg/flighttime"
	"rallynav/pkg/geo"
	"rallynav/pkg/power"
)

// LegKind tags the leg variants.
type LegKind int

const (
	KindFix LegKind = iota
	KindStart
	KindTiming
	KindTaxi
	KindRunup
	KindTakeoff
	KindClimb
	KindPattern
	KindLeft
	KindRight
)

var kindNames = [...]string{"Fix", "Start", "Timing", "Taxi", "Runup", "Takeoff", "Climb", "Pattern", "Left", "Right"}

func (k LegKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k LegKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// IsTurn reports whether k is a timed standard-rate turn.
func (k LegKind) IsTurn() bool { return k == KindLeft || k == KindRight }

// fixedETE reports whether the kind's ete comes from its token rather than
// from distance and ground speed.
func (k LegKind) fixedETE() bool {
	switch k {
	case KindTaxi, KindRunup, KindTakeoff, KindClimb, KindPattern, KindLeft, KindRight:
		return true
	}
	return false
}

// Payload is the kind-specific data of a maneuver leg.
type Payload interface{ payload() }

// TaxiPayload carries the engine state of a taxi leg.
type TaxiPayload struct {
	Mode string `json:"mode,omitempty"` // "", "COLD", "WARM"
}

// TakeoffPayload places the end of the takeoff relative to the start fix.
type TakeoffPayload struct {
	Bearing  int     `json:"bearing"`
	Distance float64 `json:"distance"`
}

// ClimbPayload is the target altitude and planned time to reach it.
type ClimbPayload struct {
	Altitude  int                 `json:"altitude"`
	ClimbTime flighttime.Duration `json:"climb_time"`
}

// TurnPayload counts full orbits flown in addition to the turn itself.
type TurnPayload struct {
	ExtraTurns int `json:"extra_turns"`
}

func (TaxiPayload) payload()    {}
func (TakeoffPayload) payload() {}
func (ClimbPayload) payload()   {}
func (TurnPayload) payload()    {}

// Wind is a direction (degrees, 1-360 when set) and speed.
type Wind struct {
	Direction int `json:"direction"`
	Speed     int `json:"speed"`
}

// LegState is the progress state of a leg.
type LegState string

const (
	LegPlanned   LegState = "planned"
	LegActive    LegState = "active"
	LegCompleted LegState = "completed"
)

// Leg is one row of the plan. Legs are comparable so the engine can detect
// which rows changed since the last notification.
type Leg struct {
	Index       int          `json:"index"`
	Kind        LegKind      `json:"kind"`
	Fix         string       `json:"fix"`
	Location    geo.Location `json:"location"`
	HasLocation bool         `json:"has_location"`
	Payload     Payload      `json:"payload,omitempty"`
	State       LegState     `json:"state"`

	Power             power.Index `json:"power"`
	EstTAS            float64     `json:"est_tas"`
	Wind              Wind        `json:"wind"`
	StartFlightTiming bool        `json:"start_flight_timing"`
	StopFlightTiming  bool        `json:"stop_flight_timing"`
	OAT               float64     `json:"oat"`
	gsOverride        float64

	Course                float64             `json:"course"`
	Heading               float64             `json:"heading"`
	Distance              float64             `json:"distance"`
	LegDistance           float64             `json:"leg_distance"`
	DistanceRemaining     float64             `json:"distance_remaining"`
	DistanceRemainingNext float64             `json:"distance_remaining_after"`
	EstGS                 float64             `json:"est_gs"`
	ETE                   flighttime.Duration `json:"ete"`
	ETESet                bool                `json:"-"`
	EstTimeRemaining      flighttime.Duration `json:"est_time_remaining"`
	EstTimeRemainingNext  flighttime.Duration `json:"est_time_remaining_after"`
	FuelFlow              float64             `json:"fuel_flow"`
	EstFuel               float64             `json:"est_fuel"`
	EstCumulativeFuel     float64             `json:"est_cumulative_fuel"`

	StartTime         time.Time           `json:"start_time"`
	EndTime           time.Time           `json:"end_time"`
	ATE               flighttime.Duration `json:"ate"`
	ActGS             float64             `json:"act_gs"`
	ActTimeRemaining  flighttime.Duration `json:"act_time_remaining"`
	ActFuel           float64             `json:"act_fuel"`
	ActCumulativeFuel float64             `json:"act_cumulative_fuel"`
	CompFuel          float64             `json:"comp_fuel"`
	FuelUsed          float64             `json:"fuel_used"`

	originalLocation    geo.Location
	hasOriginalLocation bool
}

func (l *Leg) setETE(d flighttime.Duration) {
	l.ETE = d
	l.ETESet = true
}

// invalidate drops the memoized ete of distance-derived legs so the next
// recompute derives it again.
func (l *Leg) invalidate() {
	if l.Kind.fixedETE() {
		return
	}
	l.ETE = 0
	l.ETESet = false
}

func (l *Leg) resetActuals() {
	l.StartTime, l.EndTime = time.Time{}, time.Time{}
	l.ATE, l.ActTimeRemaining = 0, 0
	l.ActGS, l.ActFuel, l.ActCumulativeFuel = 0, 0, 0
	l.CompFuel, l.FuelUsed = 0, 0
	l.State = LegPlanned
}

// FixName is the leg's route text token.
func (l *Leg) FixName() string {
	switch l.Kind {
	case KindStart:
		return l.Fix + "|Start"
	case KindTiming:
		return l.Fix + "|Timing"
	case KindTaxi:
		if p, ok := l.Payload.(TaxiPayload); ok && p.Mode != "" {
			return "Taxi|" + p.Mode + "|" + l.ETE.String()
		}
		return "Taxi|" + l.ETE.String()
	case KindRunup:
		return "Runup|" + l.ETE.String()
	case KindTakeoff:
		name := "Takeoff"
		if l.ETE != defaultTakeoffTime {
			name += "|" + l.ETE.String()
		}
		if p, ok := l.Payload.(TakeoffPayload); ok && p.Distance != 0 {
			name += "|" + formatBearingDistance(p.Bearing, p.Distance)
		}
		return name
	case KindClimb:
		p, _ := l.Payload.(ClimbPayload)
		return "Climb|" + itoa(p.Altitude) + "|" + l.ETE.String()
	case KindPattern:
		return "Pattern|" + l.ETE.String()
	case KindLeft, KindRight:
		name := l.Kind.String()
		if p, ok := l.Payload.(TurnPayload); ok && p.ExtraTurns != 0 {
			name += "|+" + itoa(p.ExtraTurns)
		}
		return name
	default:
		return l.Fix
	}
}

func (l *Leg) windString() string {
	if l.Wind.Speed == 0 {
		return ""
	}
	dir := l.Wind.Direction
	if dir == 0 {
		dir = 360
	}
	return itoa(dir) + "@" + itoa(l.Wind.Speed)
}
