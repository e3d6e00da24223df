// Package flightlog keeps the event log of the flight in progress and
// stores a record of every completed flight.
package flightlog

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"rallynav/pkg/logging"
	"rallynav/pkg/model"
	"rallynav/pkg/route"
	"rallynav/pkg/status"
	"rallynav/pkg/store"
)

const (
	sessionStateKey = "flight_session"
	lastLogStateKey = "last_flight_log"
	maxEvents       = 2000
	saveTimeout     = 10 * time.Second
)

// ErrNoFlightLog is returned when there is no completed flight to update.
var ErrNoFlightLog = errors.New("no flight log recorded yet")

// RouteSource provides the final plan and actuals, and the run in progress
// for checkpoints.
type RouteSource interface {
	Snapshot() route.Snapshot
	Progress() (route.Progress, bool)
}

// ScoreSource provides time and fuel points.
type ScoreSource interface {
	Snapshot() status.Snapshot
}

// Manager collects flight events and persists completed flights.
// It implements route.EventSink.
type Manager struct {
	mu       sync.RWMutex
	logs     store.FlightLogStore
	state    store.StateStore
	route    RouteSource
	scores   ScoreSource
	aircraft string
	name     string
	events   []model.FlightEvent
	started  time.Time
	resume   *route.Progress
}

// NewManager creates a manager. Attach must be called before the first
// flight completes.
func NewManager(logs store.FlightLogStore, state store.StateStore, aircraft string) *Manager {
	return &Manager{logs: logs, state: state, aircraft: aircraft}
}

// Attach connects the sources read when a flight completes. The engine
// takes the manager as its event sink, so the two are wired in two steps.
func (m *Manager) Attach(r RouteSource, s ScoreSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.route, m.scores = r, s
}

// SetName names the next stored flight (usually the loaded plan's name).
func (m *Manager) SetName(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
}

// FlightEvent implements route.EventSink.
func (m *Manager) FlightEvent(ev model.FlightEvent) {
	logging.LogEvent(&ev)

	m.mu.Lock()
	if ev.Type == model.FlightEventStart {
		m.events = nil
		m.started = ev.Timestamp
	}
	m.events = append(m.events, ev)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
	m.mu.Unlock()

	if ev.Type == model.FlightEventComplete {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if _, err := m.Complete(ctx); err != nil {
			slog.Error("Failed to store flight log", "error", err)
		}
	}
}

// Events returns the events of the current (or last) flight.
func (m *Manager) Events() []model.FlightEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.FlightEvent(nil), m.events...)
}

// Reset clears the event log.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	m.started = time.Time{}
	m.resume = nil
}

// Complete stores the record of the flight that just ended.
func (m *Manager) Complete(ctx context.Context) (*model.FlightLog, error) {
	m.mu.RLock()
	src, scores := m.route, m.scores
	events := append([]model.FlightEvent(nil), m.events...)
	name, started := m.name, m.started
	m.mu.RUnlock()

	if src == nil || scores == nil {
		return nil, errors.New("flight log manager not attached")
	}

	snap := src.Snapshot()
	st := scores.Snapshot()

	if started.IsZero() {
		started = time.Now()
	}
	if name == "" {
		name = defaultName(snap.Legs, started)
	}

	l := &model.FlightLog{
		ID:         uuid.NewString(),
		Name:       name,
		DateFlown:  started,
		Aircraft:   m.aircraft,
		Route:      snap.Route,
		TimePoints: st.TimePoints,
	}
	if snap.DeltaTime != nil {
		l.DeltaTime = snap.DeltaTime.Seconds()
	}
	if st.Fuel.Points != nil {
		l.FuelPoints = *st.Fuel.Points
	}

	var err error
	if l.Legs, err = EncodeLegs(snap.Legs); err != nil {
		return nil, fmt.Errorf("failed to encode legs: %w", err)
	}
	if l.Events, err = EncodeEvents(events); err != nil {
		return nil, fmt.Errorf("failed to encode events: %w", err)
	}

	if err := m.logs.SaveFlightLog(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to save flight log: %w", err)
	}
	if err := m.state.SetState(ctx, lastLogStateKey, l.ID); err != nil {
		slog.Warn("Failed to remember last flight log", "error", err)
	}
	_ = m.state.DeleteState(ctx, sessionStateKey)
	m.mu.Lock()
	m.resume = nil
	m.mu.Unlock()

	slog.Info("Flight log stored", "id", l.ID, "name", l.Name, "delta_sec", l.DeltaTime)
	return l, nil
}

// UpdateFuelPoints re-scores the last stored flight once the post-flight
// fuel meter reading has been entered.
func (m *Manager) UpdateFuelPoints(ctx context.Context) (*model.FlightLog, error) {
	m.mu.RLock()
	scores := m.scores
	m.mu.RUnlock()
	if scores == nil {
		return nil, errors.New("flight log manager not attached")
	}

	id, ok := m.state.GetState(ctx, lastLogStateKey)
	if !ok {
		return nil, ErrNoFlightLog
	}
	l, err := m.logs.GetFlightLog(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load flight log: %w", err)
	}
	if l == nil {
		return nil, ErrNoFlightLog
	}

	fuel := scores.Snapshot().Fuel
	if fuel.Points == nil || fuel.Estimate {
		return l, nil
	}
	l.FuelPoints = *fuel.Points
	if err := m.logs.SaveFlightLog(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to save flight log: %w", err)
	}
	return l, nil
}

func defaultName(legs []route.Leg, flown time.Time) string {
	var fixes []string
	for _, l := range legs {
		if l.HasLocation && l.Fix != "" {
			fixes = append(fixes, l.Fix)
		}
	}
	date := flown.Format("2006-01-02")
	switch len(fixes) {
	case 0:
		return "Flight " + date
	case 1:
		return fixes[0] + " " + date
	default:
		return fmt.Sprintf("%s-%s %s", fixes[0], fixes[len(fixes)-1], date)
	}
}

// persistentState is the in-progress flight saved across restarts.
type persistentState struct {
	Name     string              `msgpack:"n"`
	Started  time.Time           `msgpack:"s"`
	Events   []model.FlightEvent `msgpack:"e"`
	Progress route.Progress      `msgpack:"p"`
}

// Checkpoint saves the run in progress: its events, route text and the
// legs flown so far. Nothing is saved while stopped.
func (m *Manager) Checkpoint(ctx context.Context) error {
	m.mu.RLock()
	src := m.route
	ps := persistentState{Name: m.name, Started: m.started, Events: m.events}
	m.mu.RUnlock()

	if src == nil {
		return nil
	}
	p, running := src.Progress()
	if !running {
		return nil
	}
	ps.Progress = p

	data, err := msgpack.Marshal(&ps)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return m.state.SetState(ctx, sessionStateKey, base64.StdEncoding.EncodeToString(data))
}

// Restore reloads a checkpointed session. It reports whether one was found;
// the saved run is then available from PendingResume.
func (m *Manager) Restore(ctx context.Context) bool {
	val, found := m.state.GetState(ctx, sessionStateKey)
	if !found || strings.TrimSpace(val) == "" {
		return false
	}
	data, err := base64.StdEncoding.DecodeString(val)
	if err != nil {
		slog.Error("Failed to decode persisted flight session", "error", err)
		return false
	}
	var ps persistentState
	if err := msgpack.Unmarshal(data, &ps); err != nil {
		slog.Error("Failed to decode persisted flight session", "error", err)
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.name, m.started, m.events = ps.Name, ps.Started, ps.Events
	m.resume = nil
	if ps.Progress.Route != "" {
		p := ps.Progress
		m.resume = &p
	}
	slog.Info("Restored flight session", "events", len(ps.Events), "leg", ps.Progress.CurrentLeg)
	return true
}

// PendingResume hands out the restored run once.
func (m *Manager) PendingResume() (route.Progress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resume == nil {
		return route.Progress{}, false
	}
	p := *m.resume
	m.resume = nil
	return p, true
}
