package model

import (
	"time"
)

// Waypoint types.
const (
	WaypointTypeUser         = "User"
	WaypointTypeIntersection = "Intersection"
	WaypointTypeVOR          = "VOR"
	WaypointTypeAirport      = "AIRPORT"
)

// Waypoint is a named fix from the user table or the FAA reference table.
type Waypoint struct {
	Name        string  `json:"name"` // Primary Key, uppercase
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Lat         float64 `json:"latitude"`
	Lon         float64 `json:"longitude"`
	State       string  `json:"state,omitempty"` // reference table only

	// Technical
	Source    string    `json:"source,omitempty"` // "user", "faa"
	CreatedAt time.Time `json:"created_at"`
}

// FlightPlan is a saved route text.
type FlightPlan struct {
	Name        string    `json:"name"` // Primary Key
	Description string    `json:"description"`
	Route       string    `json:"route"`
	Aircraft    string    `json:"aircraft"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FlightEventType classifies entries of a flight's event log.
type FlightEventType string

const (
	FlightEventStart     FlightEventType = "start"
	FlightEventMark      FlightEventType = "mark"
	FlightEventTiming    FlightEventType = "timing"
	FlightEventGate      FlightEventType = "gate"
	FlightEventWarning   FlightEventType = "warning"
	FlightEventComplete  FlightEventType = "complete"
	FlightEventTrack     FlightEventType = "track"
	FlightEventRouteSet  FlightEventType = "route"
	FlightEventWaypoint  FlightEventType = "waypoint"
	FlightEventFuelEntry FlightEventType = "fuel"
)

// FlightEvent is one entry in a flight's event log.
type FlightEvent struct {
	Timestamp time.Time       `json:"timestamp" msgpack:"ts"`
	Type      FlightEventType `json:"type" msgpack:"t"`
	Title     string          `json:"title" msgpack:"ti"`
	Summary   string          `json:"summary,omitempty" msgpack:"s,omitempty"`
	LegIndex  int             `json:"leg_index" msgpack:"l"`
	Lat       float64         `json:"lat,omitempty" msgpack:"la,omitempty"`
	Lon       float64         `json:"lon,omitempty" msgpack:"lo,omitempty"`
}

// FlightLog is the record of a completed (or abandoned) flight.
type FlightLog struct {
	ID         string    `json:"id"` // uuid
	Name       string    `json:"name"`
	DateFlown  time.Time `json:"date_flown"`
	Aircraft   string    `json:"aircraft"`
	Route      string    `json:"route"`
	DeltaTime  int64     `json:"delta_time_sec"` // seconds early (-) or late (+) at the gate
	TimePoints float64   `json:"time_points"`
	FuelPoints float64   `json:"fuel_points"`

	// Blob payloads, msgpack encoded
	Legs   []byte `json:"-"`
	Events []byte `json:"-"`
}
