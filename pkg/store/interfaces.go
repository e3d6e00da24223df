package store

import (
	"context"
	"time"

	"rallynav/pkg/model"
)

// WaypointStore handles the user waypoint table and the FAA reference table.
type WaypointStore interface {
	GetUserWaypoint(ctx context.Context, name string) (*model.Waypoint, error)
	SaveUserWaypoint(ctx context.Context, w *model.Waypoint) error
	DeleteUserWaypoint(ctx context.Context, name string) error
	ListUserWaypoints(ctx context.Context) ([]*model.Waypoint, error)

	GetFAAWaypoint(ctx context.Context, name string) (*model.Waypoint, error)
	SaveFAAWaypoints(ctx context.Context, ws []model.Waypoint) (int, error)
	CountFAAWaypoints(ctx context.Context) (int, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// FlightPlanStore handles saved route texts.
type FlightPlanStore interface {
	GetFlightPlan(ctx context.Context, name string) (*model.FlightPlan, error)
	SaveFlightPlan(ctx context.Context, p *model.FlightPlan) error
	DeleteFlightPlan(ctx context.Context, name string) error
	ListFlightPlans(ctx context.Context) ([]*model.FlightPlan, error)
}

// FlightLogStore handles completed flight records.
type FlightLogStore interface {
	GetFlightLog(ctx context.Context, id string) (*model.FlightLog, error)
	SaveFlightLog(ctx context.Context, l *model.FlightLog) error
	DeleteFlightLog(ctx context.Context, id string) error
	// ListFlightLogs returns headers only (no leg or event blobs), newest first.
	ListFlightLogs(ctx context.Context, since time.Time, limit int) ([]*model.FlightLog, error)
}
