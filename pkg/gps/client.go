package gps

import (
	"context"
	"errors"
)

var (
	// ErrNoFix is returned when no fresh position is available.
	ErrNoFix = errors.New("no position fix")
)

// State is the connection state of a position source.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected" // connected, no fresh fix
	StateActive       State = "active"
)

// Client defines the interface for position sources.
type Client interface {
	// Latest returns the most recent fix, or ErrNoFix when none is fresh.
	Latest(ctx context.Context) (Fix, error)
	// State returns the current connection state.
	State() State
	// Run drives the source until ctx is cancelled.
	Run(ctx context.Context) error
	// Close cleans up resources associated with the client.
	Close() error
}

// MetersPerSecond converts knots to m/s.
func MetersPerSecond(knots float64) float64 {
	return knots / 1.94384
}
