package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rallynav/pkg/config"
	"rallynav/pkg/db"
	"rallynav/pkg/flightlog"
	"rallynav/pkg/geo"
	"rallynav/pkg/gps"
	"rallynav/pkg/model"
	"rallynav/pkg/power"
	"rallynav/pkg/route"
	"rallynav/pkg/status"
	"rallynav/pkg/store"
	"rallynav/pkg/waypoint"
)

// snapshotView is the part of route.Snapshot the tests read back.
type snapshotView struct {
	State      string `json:"state"`
	Running    bool   `json:"running"`
	CurrentLeg int    `json:"current_leg"`
	Legs       []struct {
		Fix string `json:"fix"`
	} `json:"legs"`
}

type testEnv struct {
	srv    *httptest.Server
	engine *route.Engine
	fs     *status.FlightStatus
	st     *store.SQLiteStore
	stream *Stream
	pos    *PositionHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	cfg := config.DefaultConfig()

	d, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	st := store.NewSQLiteStore(d)

	reg, err := power.FromConfig(&cfg.Aircraft)
	require.NoError(t, err)
	sphere := geo.NauticalSphere(0)
	fs := status.New(status.Settings{
		TimePointsPerSecond:  cfg.Scoring.TimePointsPerSecond,
		FuelPointsPerPercent: cfg.Scoring.FuelPointsPerPercent,
		StartFuel:            74,
		FillOAT:              72,
		PumpFactor:           1,
	})

	logs := flightlog.NewManager(st, st, reg.Name())
	stream := NewStream()
	engine := route.NewEngine(reg, sphere, fs, route.Options{Notifier: stream, Events: logs})
	logs.Attach(engine, fs)
	stream.Attach(engine)

	res, err := waypoint.NewResolver(st, 16)
	require.NoError(t, err)
	a := geo.Location{Lat: 36.5, Lon: -120.5}
	b := sphere.LocationFrom(a, 90, 20)
	for name, loc := range map[string]geo.Location{"ALPHA": a, "BRAVO": b} {
		_, err := res.SaveUserWaypoint(ctx, model.Waypoint{Name: name, Lat: loc.Lat, Lon: loc.Lon})
		require.NoError(t, err)
	}
	interp := waypoint.NewInterpreter(engine, res)

	pos := NewPositionHandler(fs, stream)
	server := NewServer("",
		NewRouteHandler(engine, interp),
		NewFuelHandler(engine, fs, logs),
		pos,
		NewWaypointHandler(res, st),
		NewPlanHandler(st, interp, reg.Name()),
		NewFlightLogHandler(st, logs),
		NewAircraftHandler(reg),
		stream,
		func() {},
	)
	srv := httptest.NewServer(server.Handler)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, engine: engine, fs: fs, st: st, stream: stream, pos: pos}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestRoute_SubmitAndQuery(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPut, "/api/route", map[string]string{"route": "alpha 270@10 bravo"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var snap snapshotView
	require.NoError(t, json.Unmarshal(body, &snap))
	require.Len(t, snap.Legs, 2)
	assert.Equal(t, "BRAVO", snap.Legs[1].Fix)
	assert.Equal(t, "Stopped", snap.State)

	resp, body = env.do(t, http.MethodGet, "/api/route/text", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"route":"ALPHA 270@10 BRAVO"}`, string(body))

	resp, body = env.do(t, http.MethodGet, "/api/route/geojson", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))
	var fc struct {
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(body, &fc))
	assert.Len(t, fc.Features, 3, "one line plus one point per leg")
}

func TestRoute_SubmitErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"empty route", map[string]string{"route": "  "}, http.StatusBadRequest},
		{"unknown field", map[string]string{"text": "ALPHA"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.do(t, http.MethodPut, "/api/route", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestRoute_StartMarkAndComplete(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/api/route/start", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "start needs two legs")

	resp, _ = env.do(t, http.MethodPut, "/api/route", map[string]string{"route": "ALPHA BRAVO"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/api/route/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var snap snapshotView
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.True(t, snap.Running)
	assert.Equal(t, 1, snap.CurrentLeg)

	resp, _ = env.do(t, http.MethodPut, "/api/route", map[string]string{"route": "BRAVO ALPHA"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no rebuild while running")

	resp, _ = env.do(t, http.MethodPatch, "/api/route/legs/1", map[string]any{"tas": 120})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no plan edits while running")

	resp, _ = env.do(t, http.MethodPost, "/api/route/mark", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/route/mark", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "route is complete")

	resp, body = env.do(t, http.MethodGet, "/api/flightlogs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logs []model.FlightLog
	require.NoError(t, json.Unmarshal(body, &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "ALPHA BRAVO", logs[0].Route)

	resp, body = env.do(t, http.MethodGet, "/api/flightlogs/"+logs[0].ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec flightlog.Record
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Len(t, rec.LegTable, 2)
	assert.NotEmpty(t, rec.EventLog)

	resp, body = env.do(t, http.MethodGet, "/api/flight/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events []model.FlightEvent
	require.NoError(t, json.Unmarshal(body, &events))
	assert.Equal(t, model.FlightEventStart, events[0].Type)

	resp, _ = env.do(t, http.MethodDelete, "/api/flightlogs/"+logs[0].ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/api/flightlogs/"+logs[0].ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoute_EditLeg(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodPut, "/api/route", map[string]string{"route": "ALPHA BRAVO"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"tas", "/api/route/legs/1", map[string]any{"tas": 120}, http.StatusOK},
		{"wind", "/api/route/legs/1", map[string]any{"wind": map[string]int{"direction": 0, "speed": 15}}, http.StatusOK},
		{"oat", "/api/route/legs/1", map[string]any{"oat": 60}, http.StatusOK},
		{"bad oat", "/api/route/legs/1", map[string]any{"oat": 200}, http.StatusBadRequest},
		{"no such leg", "/api/route/legs/9", map[string]any{"tas": 120}, http.StatusNotFound},
		{"bad index", "/api/route/legs/x", map[string]any{"tas": 120}, http.StatusBadRequest},
		{"empty edit", "/api/route/legs/1", map[string]any{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPatch, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode, string(body))
		})
	}

	leg, ok := env.engine.Leg(1)
	require.True(t, ok)
	assert.Equal(t, 120.0, leg.EstTAS)
	assert.Equal(t, route.Wind{Direction: 360, Speed: 15}, leg.Wind)

	resp, _ = env.do(t, http.MethodPost, "/api/route/groundspeed", map[string]any{"ground_speed": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/route/groundspeed", map[string]any{"ground_speed": 100})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/route/takeoff", map[string]any{"seconds": 15})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "takeoff adjust needs a running flight")

	resp, _ = env.do(t, http.MethodDelete, "/api/route", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, env.engine.Legs())
}

func TestWaypoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPut, "/api/waypoints/oilcamp", map[string]any{
		"description": "Oil camp", "latitude": 36.68471, "longitude": -120.50277,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var wp model.Waypoint
	require.NoError(t, json.Unmarshal(body, &wp))
	assert.Equal(t, "OILCAMP", wp.Name)
	assert.Equal(t, model.WaypointTypeUser, wp.Type)

	resp, _ = env.do(t, http.MethodPut, "/api/waypoints/bad-name", map[string]any{"latitude": 1, "longitude": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/waypoints/OILCAMP", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Oil camp")

	resp, body = env.do(t, http.MethodGet, "/api/waypoints", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []model.Waypoint
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 3)

	resp, _ = env.do(t, http.MethodDelete, "/api/waypoints/OILCAMP", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/waypoints/OILCAMP", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/api/waypoints/OILCAMP", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPlans(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/plans/LEG1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/plans/LEG1", map[string]string{"route": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := env.do(t, http.MethodPut, "/api/plans/LEG1", map[string]string{
		"description": "Day one", "route": "ALPHA BRAVO",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = env.do(t, http.MethodGet, "/api/plans", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var plans []model.FlightPlan
	require.NoError(t, json.Unmarshal(body, &plans))
	require.Len(t, plans, 1)
	assert.Equal(t, "N7346R", plans[0].Aircraft)

	resp, _ = env.do(t, http.MethodPost, "/api/plans/LEG1/load", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, env.engine.Legs(), 2)

	resp, _ = env.do(t, http.MethodDelete, "/api/plans/LEG1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/api/plans/LEG1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFuel(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/fuel", map[string]any{"submitted": 20, "pump_factor": 1.02})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var rep status.FuelReport
	require.NoError(t, json.Unmarshal(body, &rep))
	assert.Equal(t, 20.0, rep.Submitted)
	assert.Equal(t, 1.02, rep.PumpFactor)

	resp, _ = env.do(t, http.MethodPost, "/api/fuel", map[string]any{"pump_factor": 1.5})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/fuel", map[string]any{"meter": 21})
	assert.Equal(t, http.StatusOK, resp.StatusCode, "meter entry without a stored flight is fine")

	resp, body = env.do(t, http.MethodGet, "/api/fuel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &rep))
	require.NotNil(t, rep.Meter)
	assert.Equal(t, 21.0, *rep.Meter)
}

func TestPosition(t *testing.T) {
	env := newTestEnv(t)
	env.pos.UpdateState(gps.StateActive)
	env.pos.Update(&gps.Fix{Lat: 36.5, Lon: -120.5, Speed: 50})

	resp, body := env.do(t, http.MethodGet, "/api/position", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Fix   *gps.Fix  `json:"fix"`
		State gps.State `json:"state"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, gps.StateActive, got.State)
	require.NotNil(t, got.Fix)
	assert.Equal(t, 36.5, got.Fix.Lat)
}

func TestStream(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() StreamMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg StreamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	assert.Equal(t, "route", read().Type)
	assert.Eventually(t, func() bool { return env.stream.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	resp, _ := env.do(t, http.MethodPut, "/api/route", map[string]string{"route": "ALPHA BRAVO"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	msg := read()
	assert.Equal(t, "legs", msg.Type)
	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2.0, data["count"])

	env.pos.Update(&gps.Fix{Lat: 1, Lon: 2})
	assert.Equal(t, "position", read().Type)

	conn.Close()
	assert.Eventually(t, func() bool { return env.stream.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHealthAndVersion(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, body = env.do(t, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "version")
}

func TestWaypoints_TextCoordinates(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		body     map[string]any
		wantCode int
		wantLat  float64
		wantLon  float64
	}{
		{"decimal minutes", map[string]any{"latitude": "N36 41.083", "longitude": "W120 30.166"}, http.StatusOK, 36.684717, -120.502767},
		{"mixed", map[string]any{"latitude": 36.5, "longitude": "W120.25"}, http.StatusOK, 36.5, -120.25},
		{"missing longitude", map[string]any{"latitude": 36.5}, http.StatusBadRequest, 0, 0},
		{"garbage", map[string]any{"latitude": "north", "longitude": 1}, http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPut, "/api/waypoints/TXT", tt.body)
			require.Equal(t, tt.wantCode, resp.StatusCode, string(body))
			if tt.wantCode != http.StatusOK {
				return
			}
			var wp model.Waypoint
			require.NoError(t, json.Unmarshal(body, &wp))
			assert.InDelta(t, tt.wantLat, wp.Lat, 1e-5)
			assert.InDelta(t, tt.wantLon, wp.Lon, 1e-5)
		})
	}
}

func TestAircraft(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/aircraft", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ac AircraftResponse
	require.NoError(t, json.Unmarshal(body, &ac))
	assert.Equal(t, "N7346R", ac.Name)
	assert.Equal(t, "MP", ac.PowerUnits)
	assert.Equal(t, "Taxi", ac.Current)
	assert.Len(t, ac.Settings, 7)

	tests := []struct {
		query    string
		wantCode int
		wantRPM  int
	}{
		{"altitude=6000&oat=37.616&percent=65", http.StatusOK, 2500},
		{"altitude=6000&oat=37.616&percent=0", http.StatusBadRequest, 0},
		{"oat=40&percent=65", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, body := env.do(t, http.MethodGet, "/api/aircraft/rpm?"+tt.query, nil)
			require.Equal(t, tt.wantCode, resp.StatusCode, string(body))
			if tt.wantCode != http.StatusOK {
				return
			}
			var out map[string]int
			require.NoError(t, json.Unmarshal(body, &out))
			assert.Equal(t, tt.wantRPM, out["rpm"])
		})
	}
}
