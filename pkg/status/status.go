// Package status aggregates live flight telemetry: the rolling ground speed
// average, required speeds to make the waypoint and gate ETAs, rally time
// points and the fuel bookkeeping behind fuel points.
package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"rallynav/pkg/flighttime"
	"rallynav/pkg/geo"
	"rallynav/pkg/gps"
)

// Unit conversions.
const (
	MetersPerSecToKnots = 1.94384
	MetersPerSecToMPH   = 2.23694
	MetersToFeet        = 3.28084
)

const speedWindow = 10

var (
	// ErrRunning is returned for post-flight entries made while a flight is running.
	ErrRunning = errors.New("not editable while running")
	// ErrOutOfRange is returned for values outside their accepted range.
	ErrOutOfRange = errors.New("value out of range")
)

// Settings configures a FlightStatus.
type Settings struct {
	Statute              bool
	MagneticVariation    float64
	TimePointsPerSecond  float64
	FuelPointsPerPercent float64
	StartFuel            float64
	FillOAT              float64
	PumpFactor           float64
}

// RequiredSpeed is the ground speed needed to arrive on time. Infinite means
// the ETA has already passed.
type RequiredSpeed struct {
	Value    float64
	Infinite bool
}

// Required returns dist / remaining hours, or Infinite when no time is left.
func Required(dist float64, remaining flighttime.Duration) RequiredSpeed {
	hours := remaining.Hours()
	if hours <= 0 {
		return RequiredSpeed{Infinite: true}
	}
	return RequiredSpeed{Value: dist / hours}
}

func (r RequiredSpeed) String() string {
	if r.Infinite {
		return "Inf"
	}
	return fmt.Sprintf("%.1f", r.Value)
}

// MarshalJSON encodes a number, or the string "Inf".
func (r RequiredSpeed) MarshalJSON() ([]byte, error) {
	if r.Infinite {
		return []byte(`"Inf"`), nil
	}
	return json.Marshal(math.Round(r.Value*10) / 10)
}

// Trend classifies how current speed compares to a required speed.
type Trend string

const (
	TrendNone   Trend = ""
	TrendAhead  Trend = "ahead"
	TrendBehind Trend = "behind"
	TrendClose  Trend = "close"
)

// TrendFor classifies a speed delta with a one unit dead band.
func TrendFor(delta float64) Trend {
	switch {
	case delta > 1.0:
		return TrendAhead
	case delta < -1.0:
		return TrendBehind
	default:
		return TrendClose
	}
}

// Progress is what the route engine knows about the active leg and gate on a tick.
type Progress struct {
	HaveRequired       bool
	Gate               RequiredSpeed
	Leg                RequiredSpeed
	DistanceToWaypoint float64
	ETAWaypoint        time.Time
	ETAGate            time.Time
	DeltaTime          *flighttime.Duration
}

// Snapshot is a point-in-time copy of the displayed status.
type Snapshot struct {
	Time       time.Time     `json:"time"`
	SpeedUnits string        `json:"speed_units"`
	Position   *geo.Location `json:"position,omitempty"`
	Latitude   string        `json:"latitude,omitempty"`
	Longitude  string        `json:"longitude,omitempty"`
	FixTime    *time.Time    `json:"fix_time,omitempty"`

	Speed        float64        `json:"speed"`
	AverageSpeed float64        `json:"average_speed"`
	RequiredGate *RequiredSpeed `json:"required_gate_gs,omitempty"`
	RequiredLeg  *RequiredSpeed `json:"required_leg_gs,omitempty"`
	DeltaGate    *float64       `json:"delta_gate_gs,omitempty"`
	GateTrend    Trend          `json:"gate_trend,omitempty"`
	DeltaLeg     *float64       `json:"delta_leg_gs,omitempty"`
	LegTrend     Trend          `json:"leg_trend,omitempty"`
	Heading      int            `json:"heading,omitempty"` // magnetic, 1-360
	AltitudeFt   int            `json:"altitude_ft,omitempty"`
	AccuracyFt   int            `json:"accuracy_ft,omitempty"`

	DistanceToWaypoint float64              `json:"distance_to_waypoint"`
	ETAWaypoint        *time.Time           `json:"eta_waypoint,omitempty"`
	ETAGate            *time.Time           `json:"eta_gate,omitempty"`
	DeltaTime          *flighttime.Duration `json:"delta_time,omitempty"`
	TimePoints         float64              `json:"time_points"`
	TakeoffTime        *time.Time           `json:"takeoff_time,omitempty"`
	SubmittedTime      flighttime.Duration  `json:"submitted_time"`

	Fuel FuelReport `json:"fuel"`
}

// FlightStatus holds live telemetry for one aircraft.
type FlightStatus struct {
	mu sync.RWMutex

	cfg          Settings
	speedConvert float64
	speedUnits   string

	speeds []float64 // newest first
	avgGS  float64
	view   Snapshot

	takeoffTime     time.Time
	origTakeoffTime time.Time
	submittedTime   flighttime.Duration
	timePoints      float64

	running       bool
	submittedFuel float64
	startFuel     float64
	fillOAT       float64
	fuelUsed      float64
	fuelMeter     *float64
	pumpFactor    float64
	fuelVector    float64
}

// New creates a FlightStatus.
func New(cfg Settings) *FlightStatus {
	fs := &FlightStatus{
		cfg:          cfg,
		speedConvert: MetersPerSecToKnots,
		speedUnits:   "KTS",
		startFuel:    cfg.StartFuel,
		fillOAT:      cfg.FillOAT,
		pumpFactor:   cfg.PumpFactor,
	}
	if cfg.Statute {
		fs.speedConvert = MetersPerSecToMPH
		fs.speedUnits = "MPH"
	}
	if fs.pumpFactor == 0 {
		fs.pumpFactor = 1.0
	}
	return fs
}

// Update records a tick. fix is nil on time-only ticks.
func (fs *FlightStatus) Update(now time.Time, fix *gps.Fix, p Progress) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	v := &fs.view
	if fix != nil {
		loc := fix.Location()
		v.Position = &loc
		v.Latitude = loc.LatitudeString()
		v.Longitude = loc.LongitudeString()

		speed := fix.Speed * fs.speedConvert
		v.Speed = speed
		fs.speeds = append([]float64{speed}, fs.speeds...)
		if len(fs.speeds) > speedWindow {
			fs.speeds = fs.speeds[:speedWindow]
		}
		var sum float64
		for _, s := range fs.speeds {
			sum += s
		}
		fs.avgGS = sum / float64(len(fs.speeds))
		v.AverageSpeed = fs.avgGS

		v.RequiredGate, v.DeltaGate, v.GateTrend = nil, nil, TrendNone
		v.RequiredLeg, v.DeltaLeg, v.LegTrend = nil, nil, TrendNone
		if p.HaveRequired {
			v.RequiredGate, v.DeltaGate, v.GateTrend = compare(speed, p.Gate)
			v.RequiredLeg, v.DeltaLeg, v.LegTrend = compare(speed, p.Leg)
		}

		v.Heading = 0
		if fix.Track != 0 {
			v.Heading = MagneticHeading(fix.Track, fs.cfg.MagneticVariation)
		}
		v.AltitudeFt = int(math.Round(fix.Altitude * MetersToFeet))
		v.AccuracyFt = int(math.Round(fix.Accuracy * MetersToFeet))
		if !fix.Time.IsZero() {
			t := fix.Time
			v.FixTime = &t
		}
	}

	v.Time = now
	v.DistanceToWaypoint = p.DistanceToWaypoint
	v.ETAWaypoint = timePtr(p.ETAWaypoint)
	v.ETAGate = timePtr(p.ETAGate)
	if v.ETAGate != nil && p.DeltaTime != nil {
		fs.timePoints = math.Abs(float64(p.DeltaTime.Seconds())) * fs.cfg.TimePointsPerSecond
	}
	v.DeltaTime = p.DeltaTime
}

func compare(speed float64, req RequiredSpeed) (*RequiredSpeed, *float64, Trend) {
	r := req
	if req.Infinite {
		return &r, nil, TrendNone
	}
	delta := speed - req.Value
	return &r, &delta, TrendFor(delta)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// MagneticHeading converts a true track to a rounded magnetic heading, shown as 360 for north.
func MagneticHeading(track, magVar float64) int {
	h := int(math.Round(track + magVar))
	h = ((h % 360) + 360) % 360
	if h == 0 {
		h = 360
	}
	return h
}

// AverageGS returns the mean of the recent ground speed samples, in display units.
func (fs *FlightStatus) AverageGS() float64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.avgGS
}

// ResetAverageGS drops all speed samples and the average built from them.
func (fs *FlightStatus) ResetAverageGS() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.speeds = nil
	fs.avgGS = 0
	fs.view.AverageSpeed = 0
}

// SetRunning tells the fuel bookkeeping whether a flight is in progress.
func (fs *FlightStatus) SetRunning(running bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.running = running
}

// SetSubmittedTime records the planned time between the timing legs.
func (fs *FlightStatus) SetSubmittedTime(d flighttime.Duration) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.submittedTime = d
}

// SetTakeoffTime records the takeoff time. The first value is kept as the original.
func (fs *FlightStatus) SetTakeoffTime(t time.Time) {
	if t.IsZero() {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.takeoffTime = t
	if fs.origTakeoffTime.IsZero() {
		fs.origTakeoffTime = t
	}
}

// ResetTakeoffTime forgets the takeoff times of a previous flight.
func (fs *FlightStatus) ResetTakeoffTime() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.takeoffTime = time.Time{}
	fs.origTakeoffTime = time.Time{}
}

// TakeoffTime returns the current takeoff time.
func (fs *FlightStatus) TakeoffTime() time.Time {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.takeoffTime
}

// OriginalTakeoffTime returns the first recorded takeoff time.
func (fs *FlightStatus) OriginalTakeoffTime() time.Time {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.origTakeoffTime
}

// Snapshot returns a copy of the current display values.
func (fs *FlightStatus) Snapshot() Snapshot {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	s := fs.view
	s.SpeedUnits = fs.speedUnits
	s.TimePoints = fs.timePoints
	s.TakeoffTime = timePtr(fs.takeoffTime)
	s.SubmittedTime = fs.submittedTime
	s.Fuel = fs.fuelReport()
	return s
}
