package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"rallynav/pkg/geo"
	"rallynav/pkg/model"
	"rallynav/pkg/store"
	"rallynav/pkg/waypoint"
)

// WaypointHandler administers user waypoints and looks up any waypoint.
type WaypointHandler struct {
	resolver *waypoint.Resolver
	st       store.WaypointStore
}

// NewWaypointHandler creates a WaypointHandler.
func NewWaypointHandler(res *waypoint.Resolver, st store.WaypointStore) *WaypointHandler {
	return &WaypointHandler{resolver: res, st: st}
}

// HandleList returns every user waypoint.
// GET /api/waypoints
func (h *WaypointHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ws, err := h.st.ListUserWaypoints(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if ws == nil {
		ws = []*model.Waypoint{}
	}
	writeJSON(w, http.StatusOK, ws)
}

// HandleGet resolves a name against the user table, then the reference table.
// GET /api/waypoints/{name}
func (h *WaypointHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	wp, err := h.resolver.Lookup(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wp)
}

// waypointRequest takes coordinates as decimal degrees or as text
// ("N36 41.083", "W120.50277").
type waypointRequest struct {
	Description string          `json:"description"`
	Latitude    json.RawMessage `json:"latitude"`
	Longitude   json.RawMessage `json:"longitude"`
}

func parseCoordinate(raw json.RawMessage, field string, parse func(string) (float64, bool)) (float64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%w: %s is required", errBadRequest, field)
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, fmt.Errorf("%w: %s must be a number or text", errBadRequest, field)
	}
	v, ok := parse(text)
	if !ok {
		return 0, fmt.Errorf("%w: cannot parse %s %q", errBadRequest, field, text)
	}
	return v, nil
}

// HandlePut creates or replaces a user waypoint.
// PUT /api/waypoints/{name}
func (h *WaypointHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var req waypointRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	lat, err := parseCoordinate(req.Latitude, "latitude", geo.ParseLatitude)
	if err != nil {
		writeError(w, err)
		return
	}
	lon, err := parseCoordinate(req.Longitude, "longitude", geo.ParseLongitude)
	if err != nil {
		writeError(w, err)
		return
	}
	wp := model.Waypoint{
		Name:        strings.TrimSpace(r.PathValue("name")),
		Description: req.Description,
		Lat:         lat,
		Lon:         lon,
	}

	saved, err := h.resolver.SaveUserWaypoint(r.Context(), wp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// HandleDelete removes a user waypoint.
// DELETE /api/waypoints/{name}
func (h *WaypointHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.resolver.DeleteUserWaypoint(r.Context(), r.PathValue("name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
