package flightlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rallynav/pkg/db"
	"rallynav/pkg/flighttime"
	"rallynav/pkg/geo"
	"rallynav/pkg/model"
	"rallynav/pkg/route"
	"rallynav/pkg/status"
	"rallynav/pkg/store"
)

type fakeRoute struct {
	snap     route.Snapshot
	progress *route.Progress
}

func (f *fakeRoute) Snapshot() route.Snapshot { return f.snap }

func (f *fakeRoute) Progress() (route.Progress, bool) {
	if f.progress == nil {
		return route.Progress{}, false
	}
	return *f.progress, true
}

type fakeScores struct{ snap status.Snapshot }

func (f *fakeScores) Snapshot() status.Snapshot { return f.snap }

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return store.NewSQLiteStore(d)
}

func sampleRoute() *fakeRoute {
	delta := flighttime.Duration(-7)
	return &fakeRoute{snap: route.Snapshot{
		Route:     "OILCAMP|Start PXN",
		DeltaTime: &delta,
		Legs: []route.Leg{
			{Index: 0, Kind: route.KindStart, Fix: "OILCAMP", HasLocation: true, Location: geo.Location{Lat: 36.68, Lon: -120.5}},
			{Index: 1, Kind: route.KindFix, Fix: "PXN", HasLocation: true, Location: geo.Location{Lat: 36.71, Lon: -120.77},
				ETE: 300, ATE: 293, EstGS: 120, ActGS: 122.9, EstFuel: 1.2, ActFuel: 1.18},
		},
	}}
}

func TestManager_CompleteStoresFlight(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	points := 42.0
	scores := &fakeScores{snap: status.Snapshot{TimePoints: 10.5, Fuel: status.FuelReport{Points: &points, Estimate: true}}}
	m := NewManager(st, st, "N7346R")
	m.Attach(sampleRoute(), scores)

	t0 := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	m.FlightEvent(model.FlightEvent{Timestamp: t0.Add(-time.Hour), Type: model.FlightEventWarning, Title: "stale"})
	m.FlightEvent(model.FlightEvent{Timestamp: t0, Type: model.FlightEventStart, Title: "Started Running"})
	m.FlightEvent(model.FlightEvent{Timestamp: t0.Add(5 * time.Minute), Type: model.FlightEventMark, Title: "Marked PXN", LegIndex: 1})
	m.FlightEvent(model.FlightEvent{Timestamp: t0.Add(5 * time.Minute), Type: model.FlightEventComplete, Title: "Route complete", LegIndex: 1})

	assert.Len(t, m.Events(), 3, "a start event begins a new log")

	logs, err := st.ListFlightLogs(ctx, t0.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	l, err := st.GetFlightLog(ctx, logs[0].ID)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, "OILCAMP-PXN 2026-05-02", l.Name)
	assert.Equal(t, int64(-7), l.DeltaTime)
	assert.Equal(t, 10.5, l.TimePoints)
	assert.Equal(t, 42.0, l.FuelPoints)
	assert.Equal(t, "N7346R", l.Aircraft)
	assert.True(t, l.DateFlown.Equal(t0))

	rec, err := Decode(l)
	require.NoError(t, err)
	require.Len(t, rec.LegTable, 2)
	assert.Equal(t, "OILCAMP|Start", rec.LegTable[0].Fix)
	assert.Equal(t, int64(293), rec.LegTable[1].ATE)
	require.Len(t, rec.EventLog, 3)
	assert.Equal(t, model.FlightEventComplete, rec.EventLog[2].Type)
}

func TestManager_UpdateFuelPoints(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	scores := &fakeScores{}
	m := NewManager(st, st, "N80377")
	m.Attach(sampleRoute(), scores)
	m.SetName("Practice")

	_, err := m.UpdateFuelPoints(ctx)
	assert.ErrorIs(t, err, ErrNoFlightLog)

	l, err := m.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Practice", l.Name)
	assert.Zero(t, l.FuelPoints)

	points := 12.5
	scores.snap.Fuel = status.FuelReport{Points: &points}
	updated, err := m.UpdateFuelPoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, l.ID, updated.ID)

	got, err := st.GetFlightLog(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 12.5, got.FuelPoints)
}

func TestManager_CheckpointRestore(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

	src := sampleRoute()
	m := NewManager(st, st, "N7346R")
	require.NoError(t, m.Checkpoint(ctx), "not attached")
	m.Attach(src, &fakeScores{})
	require.NoError(t, m.Checkpoint(ctx), "stopped")
	assert.False(t, m.Restore(ctx))

	src.progress = &route.Progress{
		Route:       "OILCAMP|Start PXN",
		CurrentLeg:  1,
		Timing:      true,
		Takeoff:     t0,
		OrigTakeoff: t0,
		ETAGate:     t0.Add(5 * time.Minute),
		Legs: []route.LegProgress{
			{Start: t0, End: t0, OAT: 72},
			{Start: t0, OAT: 65},
		},
	}
	m.SetName("Rally")
	m.FlightEvent(model.FlightEvent{Timestamp: t0, Type: model.FlightEventStart, Title: "Started Running"})
	m.FlightEvent(model.FlightEvent{Timestamp: t0, Type: model.FlightEventTiming, Title: "Started Timing", LegIndex: 2})
	require.NoError(t, m.Checkpoint(ctx))

	fresh := NewManager(st, st, "N7346R")
	require.True(t, fresh.Restore(ctx))
	events := fresh.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "Started Timing", events[1].Title)
	assert.Equal(t, 2, events[1].LegIndex)

	p, ok := fresh.PendingResume()
	require.True(t, ok)
	assert.Equal(t, "OILCAMP|Start PXN", p.Route)
	assert.Equal(t, 1, p.CurrentLeg)
	assert.True(t, p.Timing)
	assert.True(t, p.ETAGate.Equal(t0.Add(5*time.Minute)))
	require.Len(t, p.Legs, 2)
	assert.True(t, p.Legs[1].Start.Equal(t0))
	assert.Equal(t, 65.0, p.Legs[1].OAT)
	_, ok = fresh.PendingResume()
	assert.False(t, ok, "handed out once")

	fresh.Reset()
	assert.Empty(t, fresh.Events())
}

func TestManager_CompletedFlightIsNotCheckpointed(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

	src := sampleRoute()
	src.progress = &route.Progress{Route: "OILCAMP|Start PXN", CurrentLeg: 1, Legs: make([]route.LegProgress, 2)}
	m := NewManager(st, st, "N7346R")
	m.Attach(src, &fakeScores{})

	m.FlightEvent(model.FlightEvent{Timestamp: t0, Type: model.FlightEventStart, Title: "Started Running"})
	require.NoError(t, m.Checkpoint(ctx))
	_, found := st.GetState(ctx, sessionStateKey)
	require.True(t, found)

	src.progress = nil
	m.FlightEvent(model.FlightEvent{Timestamp: t0.Add(5 * time.Minute), Type: model.FlightEventComplete, Title: "Route complete", LegIndex: 1})
	_, found = st.GetState(ctx, sessionStateKey)
	assert.False(t, found, "completion drops the session")

	// Shutdown after the flight must not bring it back.
	require.NoError(t, m.Checkpoint(ctx))
	_, found = st.GetState(ctx, sessionStateKey)
	assert.False(t, found)
	assert.False(t, NewManager(st, st, "N7346R").Restore(ctx))
}

func TestManager_NotAttached(t *testing.T) {
	st := newStore(t)
	m := NewManager(st, st, "N7346R")
	_, err := m.Complete(context.Background())
	assert.Error(t, err)
}

func TestDefaultName(t *testing.T) {
	day := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		legs []route.Leg
		want string
	}{
		{"no fixes", []route.Leg{{Kind: route.KindTaxi}}, "Flight 2026-05-02"},
		{"single fix", []route.Leg{{Fix: "A", HasLocation: true}}, "A 2026-05-02"},
		{"first and last", []route.Leg{{Fix: "A", HasLocation: true}, {Kind: route.KindTaxi}, {Fix: "C", HasLocation: true}}, "A-C 2026-05-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, defaultName(tt.legs, day))
		})
	}
}
