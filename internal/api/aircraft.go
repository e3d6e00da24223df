package api

import (
	"fmt"
	"net/http"
	"strconv"

	"rallynav/pkg/power"
)

// AircraftHandler serves the active aircraft profile.
type AircraftHandler struct {
	reg *power.Registry
}

func NewAircraftHandler(reg *power.Registry) *AircraftHandler {
	return &AircraftHandler{reg: reg}
}

type AircraftResponse struct {
	Name       string          `json:"name"`
	PowerUnits string          `json:"power_units"`
	Current    string          `json:"current"`
	CurrentTAS float64         `json:"current_tas"`
	Settings   []power.Setting `json:"settings"`
}

// HandleGet returns the power settings and the one in use.
// GET /api/aircraft
func (h *AircraftHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AircraftResponse{
		Name:       h.reg.Name(),
		PowerUnits: h.reg.PowerUnits(),
		Current:    h.reg.Current().String(),
		CurrentTAS: h.reg.CurrentTAS(),
		Settings:   h.reg.Settings(),
	})
}

// HandleRPM estimates the RPM for a percent power.
// GET /api/aircraft/rpm?altitude=6000&oat=40&percent=65
func (h *AircraftHandler) HandleRPM(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	alt, err := strconv.ParseFloat(q.Get("altitude"), 64)
	if err != nil {
		writeError(w, fmt.Errorf("%w: altitude must be a number", errBadRequest))
		return
	}
	oat, err := strconv.ParseFloat(q.Get("oat"), 64)
	if err != nil {
		writeError(w, fmt.Errorf("%w: oat must be a number", errBadRequest))
		return
	}
	pct, err := strconv.Atoi(q.Get("percent"))
	if err != nil || pct <= 0 || pct > 100 {
		writeError(w, fmt.Errorf("%w: percent must be 1-100", errBadRequest))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"rpm": power.RPMForPercentPower(alt, oat, pct)})
}
