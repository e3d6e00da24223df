// Package mockgps simulates an aircraft flying the planned route.
package mockgps

import (
	"context"
	"sync"
	"time"

	"rallynav/pkg/config"
	"rallynav/pkg/geo"
	"rallynav/pkg/gps"
	"rallynav/pkg/route"
)

// arrivalRadius is how close (nm) the aircraft gets before turning to the next fix.
const arrivalRadius = 0.05

// LegSource provides the legs to fly.
type LegSource interface {
	Legs() []route.Leg
}

// MockClient implements gps.Client.
type MockClient struct {
	mu     sync.Mutex
	cfg    config.MockConfig
	legs   LegSource
	sphere geo.Sphere
	now    func() time.Time

	pos     geo.Location
	track   float64
	speed   float64 // knots, 0 when holding
	target  int     // index into the leg table
	started bool
	closed  bool
}

// NewClient creates a simulated position source parked at the configured start.
func NewClient(cfg config.MockConfig, legs LegSource) *MockClient {
	if cfg.SpeedKts <= 0 {
		cfg.SpeedKts = 120
	}
	if cfg.Tick <= 0 {
		cfg.Tick = config.Duration(time.Second)
	}
	return &MockClient{
		cfg:    cfg,
		legs:   legs,
		sphere: geo.NauticalSphere(0), // true tracks
		now:    time.Now,
		pos:    geo.Location{Lat: cfg.StartLat, Lon: cfg.StartLon},
	}
}

// Run moves the aircraft every tick until ctx is cancelled.
func (m *MockClient) Run(ctx context.Context) error {
	tick := m.cfg.Tick.Std()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	m.mu.Lock()
	m.started = true
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.step(tick)
		}
	}
}

// step advances the aircraft by dt along the route.
func (m *MockClient) step(dt time.Duration) {
	legs := m.legs.Legs()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	remaining := m.cfg.SpeedKts * dt.Hours()
	m.speed = 0
	for remaining > 0 {
		for m.target < len(legs) && !legs[m.target].HasLocation {
			m.target++
		}
		if m.target >= len(legs) {
			m.speed = 0 // end of route, hold position
			return
		}
		dest := legs[m.target].Location
		dist := m.sphere.Distance(m.pos, dest)
		if dist <= arrivalRadius {
			m.target++
			continue
		}
		m.speed = m.cfg.SpeedKts
		m.track = m.sphere.BearingTo(m.pos, dest)
		if dist <= remaining {
			m.pos = dest
			remaining -= dist
			m.target++
			continue
		}
		m.pos = m.sphere.LocationFrom(m.pos, m.track, remaining)
		remaining = 0
	}
}

// Latest returns the simulated position.
func (m *MockClient) Latest(_ context.Context) (gps.Fix, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return gps.Fix{}, gps.ErrNoFix
	}
	return gps.Fix{
		Time:  m.now(),
		Lat:   m.pos.Lat,
		Lon:   m.pos.Lon,
		Speed: gps.MetersPerSecond(m.speed),
		Track: m.track,
	}, nil
}

// State reports active once Run has started.
func (m *MockClient) State() gps.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.closed:
		return gps.StateDisconnected
	case m.started:
		return gps.StateActive
	default:
		return gps.StateConnected
	}
}

// Close stops position updates.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
