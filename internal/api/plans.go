package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"rallynav/pkg/model"
	"rallynav/pkg/store"
)

const maxPlanNameLength = 35

// PlanHandler stores named route texts and loads them into the engine.
type PlanHandler struct {
	st       store.FlightPlanStore
	interp   RouteSubmitter
	aircraft string
}

// NewPlanHandler creates a PlanHandler.
func NewPlanHandler(st store.FlightPlanStore, in RouteSubmitter, aircraft string) *PlanHandler {
	return &PlanHandler{st: st, interp: in, aircraft: aircraft}
}

func planName(r *http.Request) (string, error) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" || len(name) > maxPlanNameLength {
		return "", fmt.Errorf("%w: plan name must be 1-%d characters", errBadRequest, maxPlanNameLength)
	}
	return name, nil
}

// HandleList returns every saved plan.
// GET /api/plans
func (h *PlanHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	plans, err := h.st.ListFlightPlans(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if plans == nil {
		plans = []*model.FlightPlan{}
	}
	writeJSON(w, http.StatusOK, plans)
}

// HandleGet returns one plan.
// GET /api/plans/{name}
func (h *PlanHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.load(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PlanHandler) load(r *http.Request) (*model.FlightPlan, error) {
	name, err := planName(r)
	if err != nil {
		return nil, err
	}
	p, err := h.st.GetFlightPlan(r.Context(), name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: plan %s", errNotFound, name)
	}
	return p, nil
}

type planRequest struct {
	Description string `json:"description"`
	Route       string `json:"route"`
	Aircraft    string `json:"aircraft,omitempty"`
}

// HandlePut saves a plan.
// PUT /api/plans/{name}
func (h *PlanHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	name, err := planName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req planRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Route) == "" {
		writeError(w, fmt.Errorf("%w: empty route", errBadRequest))
		return
	}
	if req.Aircraft == "" {
		req.Aircraft = h.aircraft
	}

	p := &model.FlightPlan{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Route:       strings.TrimSpace(req.Route),
		Aircraft:    req.Aircraft,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := h.st.SaveFlightPlan(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDelete removes a plan.
// DELETE /api/plans/{name}
func (h *PlanHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	p, err := h.load(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.st.DeleteFlightPlan(r.Context(), p.Name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLoad submits a saved plan's route text.
// POST /api/plans/{name}/load
func (h *PlanHandler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	p, err := h.load(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.interp.Submit(r.Context(), p.Route); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
