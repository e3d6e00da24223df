package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rallynav/pkg/geo"
	"rallynav/pkg/route"
)

// RouteSubmitter replaces the plan with parsed route text.
type RouteSubmitter interface {
	Submit(ctx context.Context, text string) error
}

// RouteHandler serves the plan and the progress commands.
type RouteHandler struct {
	engine *route.Engine
	interp RouteSubmitter
	now    func() time.Time
}

// NewRouteHandler creates a RouteHandler.
func NewRouteHandler(e *route.Engine, in RouteSubmitter) *RouteHandler {
	return &RouteHandler{engine: e, interp: in, now: time.Now}
}

// HandleGet returns the route snapshot.
// GET /api/route
func (h *RouteHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

type submitRequest struct {
	Route string `json:"route"`
}

// HandleSubmit parses route text into a new plan.
// PUT /api/route
func (h *RouteHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Route) == "" {
		writeError(w, fmt.Errorf("%w: empty route", errBadRequest))
		return
	}
	if err := h.interp.Submit(r.Context(), req.Route); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

// HandleClear removes every leg.
// DELETE /api/route
func (h *RouteHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.RemoveAll(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleText returns the route text rebuilt from the legs.
// GET /api/route/text
func (h *RouteHandler) HandleText(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, submitRequest{Route: h.engine.CurrentRoute()})
}

// HandleStart starts the flight.
// POST /api/route/start
func (h *RouteHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.command(w, func() error { return h.engine.Start(h.now()) })
}

// HandleMark completes the current leg.
// POST /api/route/mark
func (h *RouteHandler) HandleMark(w http.ResponseWriter, r *http.Request) {
	h.command(w, func() error { return h.engine.MarkCurrentLeg(h.now()) })
}

func (h *RouteHandler) command(w http.ResponseWriter, fn func() error) {
	if err := fn(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

// HandleWarnings returns the retained route warnings.
// GET /api/route/warnings
func (h *RouteHandler) HandleWarnings(w http.ResponseWriter, r *http.Request) {
	warnings := h.engine.Warnings()
	if warnings == nil {
		warnings = []route.Warning{}
	}
	writeJSON(w, http.StatusOK, warnings)
}

type windEdit struct {
	Direction int `json:"direction"`
	Speed     int `json:"speed"`
}

type legEdit struct {
	TAS  *float64  `json:"tas,omitempty"`
	Wind *windEdit `json:"wind,omitempty"`
	OAT  *float64  `json:"oat,omitempty"`
}

// HandleEditLeg changes a leg's TAS, wind or OAT.
// PATCH /api/route/legs/{index}
func (h *RouteHandler) HandleEditLeg(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: leg index %q", errBadRequest, r.PathValue("index")))
		return
	}
	var req legEdit
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.TAS == nil && req.Wind == nil && req.OAT == nil {
		writeError(w, fmt.Errorf("%w: nothing to change", errBadRequest))
		return
	}

	var errs []error
	if req.TAS != nil {
		errs = append(errs, h.engine.SetLegTAS(i, *req.TAS))
	}
	if req.Wind != nil {
		errs = append(errs, h.engine.SetLegWind(i, req.Wind.Direction, req.Wind.Speed))
	}
	if req.OAT != nil {
		errs = append(errs, h.engine.SetLegOAT(i, *req.OAT))
	}
	if err := errors.Join(errs...); err != nil {
		writeError(w, err)
		return
	}

	leg, ok := h.engine.Leg(i)
	if !ok {
		writeError(w, route.ErrNoSuchLeg)
		return
	}
	writeJSON(w, http.StatusOK, leg)
}

type groundSpeedRequest struct {
	GroundSpeed float64 `json:"ground_speed"`
}

// HandleGroundSpeed plans every leg at a fixed ground speed.
// POST /api/route/groundspeed
func (h *RouteHandler) HandleGroundSpeed(w http.ResponseWriter, r *http.Request) {
	var req groundSpeedRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.command(w, func() error { return h.engine.SetGroundSpeed(req.GroundSpeed) })
}

type takeoffRequest struct {
	Seconds *int `json:"seconds,omitempty"`
	Restore bool `json:"restore,omitempty"`
}

// HandleTakeoff adjusts or restores the takeoff time.
// POST /api/route/takeoff
func (h *RouteHandler) HandleTakeoff(w http.ResponseWriter, r *http.Request) {
	var req takeoffRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.command(w, func() error {
		switch {
		case req.Restore:
			return h.engine.RestoreTakeoffTime()
		case req.Seconds != nil:
			return h.engine.AdjustTakeoffSeconds(*req.Seconds)
		}
		return fmt.Errorf("%w: seconds or restore required", errBadRequest)
	})
}

// HandleGeoJSON exports the legs with a position as GeoJSON.
// GET /api/route/geojson
func (h *RouteHandler) HandleGeoJSON(w http.ResponseWriter, r *http.Request) {
	legs := h.engine.Legs()
	points := make([]geo.RoutePoint, 0, len(legs))
	for i := range legs {
		l := &legs[i]
		if !l.HasLocation {
			continue
		}
		points = append(points, geo.RoutePoint{
			Location: l.Location,
			Properties: map[string]any{
				"index":    l.Index,
				"fix":      l.FixName(),
				"leg_kind": l.Kind.String(),
				"state":    string(l.State),
				"course":   l.Course,
				"distance": l.Distance,
				"ete":      l.ETE.String(),
			},
		})
	}

	data, err := geo.RouteFeatureCollection(points).MarshalJSON()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}
