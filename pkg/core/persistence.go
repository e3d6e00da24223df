package core

import (
	"context"
	"log/slog"
	"time"

	"rallynav/pkg/geo"
	"rallynav/pkg/gps"
	"rallynav/pkg/model"
)

// Checkpointer saves the in-progress flight.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// NewCheckpointJob periodically persists the in-progress flight log.
func NewCheckpointJob(c Checkpointer, interval time.Duration) *TimeJob {
	return NewTimeJob("Checkpoint", interval, func(ctx context.Context, _ *gps.Fix) {
		if err := c.Checkpoint(ctx); err != nil {
			slog.Error("Failed to checkpoint flight", "error", err)
		}
	})
}

// EventSink receives flight events.
type EventSink interface {
	FlightEvent(ev model.FlightEvent)
}

// RunState reports whether a flight is in progress.
type RunState interface {
	Running() bool
	CurrentLegIndex() int
}

// NewTrackJob records a breadcrumb every threshold units flown while a flight is running.
func NewTrackJob(sink EventSink, run RunState, sphere geo.Sphere, threshold float64) *DistanceJob {
	return NewDistanceJob("Track", sphere, threshold, func(_ context.Context, f gps.Fix) {
		if !run.Running() {
			return
		}
		sink.FlightEvent(model.FlightEvent{
			Timestamp: f.Time,
			Type:      model.FlightEventTrack,
			Title:     "Track",
			LegIndex:  run.CurrentLegIndex(),
			Lat:       f.Lat,
			Lon:       f.Lon,
		})
	})
}
