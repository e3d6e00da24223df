package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"rallynav/pkg/flightlog"
	"rallynav/pkg/model"
	"rallynav/pkg/route"
	"rallynav/pkg/status"
)

// FuelScorer re-scores the last stored flight after post-flight fuel entries.
type FuelScorer interface {
	UpdateFuelPoints(ctx context.Context) (*model.FlightLog, error)
}

// FuelHandler serves the fuel scoring inputs.
type FuelHandler struct {
	engine *route.Engine
	fs     *status.FlightStatus
	scorer FuelScorer
}

// NewFuelHandler creates a FuelHandler. scorer may be nil.
func NewFuelHandler(e *route.Engine, fs *status.FlightStatus, scorer FuelScorer) *FuelHandler {
	return &FuelHandler{engine: e, fs: fs, scorer: scorer}
}

type fuelRequest struct {
	StartFuel  *float64 `json:"start_fuel,omitempty"`
	FillOAT    *float64 `json:"fill_oat,omitempty"`
	Submitted  *float64 `json:"submitted,omitempty"`
	PumpFactor *float64 `json:"pump_factor,omitempty"`
	Meter      *float64 `json:"meter,omitempty"`
	Vector     *float64 `json:"vector,omitempty"`
}

// HandleGet returns the fuel report.
// GET /api/fuel
func (h *FuelHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.fs.Fuel())
}

// HandleUpdate applies the supplied fuel values.
// POST /api/fuel
func (h *FuelHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req fuelRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	steps := []struct {
		v   *float64
		set func(float64) error
	}{
		{req.StartFuel, h.engine.SetStartFuel},
		{req.FillOAT, h.engine.SetFillOAT},
		{req.Submitted, h.fs.SetSubmittedFuel},
		{req.PumpFactor, h.fs.SetPumpFactor},
		{req.Meter, h.fs.SetFuelMeter},
		{req.Vector, h.fs.SetFuelVector},
	}
	for _, s := range steps {
		if s.v == nil {
			continue
		}
		if err := s.set(*s.v); err != nil {
			writeError(w, err)
			return
		}
	}

	if (req.Meter != nil || req.Vector != nil) && h.scorer != nil {
		if _, err := h.scorer.UpdateFuelPoints(r.Context()); err != nil && !errors.Is(err, flightlog.ErrNoFlightLog) {
			slog.Error("Failed to update flight log fuel points", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, h.fs.Fuel())
}
