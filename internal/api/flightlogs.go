package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rallynav/pkg/flightlog"
	"rallynav/pkg/model"
	"rallynav/pkg/store"
)

// FlightSession exposes the flight in progress.
type FlightSession interface {
	Events() []model.FlightEvent
	SetName(name string)
}

// FlightLogHandler serves stored flight records and the live event log.
type FlightLogHandler struct {
	st      store.FlightLogStore
	session FlightSession
}

// NewFlightLogHandler creates a FlightLogHandler.
func NewFlightLogHandler(st store.FlightLogStore, session FlightSession) *FlightLogHandler {
	return &FlightLogHandler{st: st, session: session}
}

// parseSince accepts a date (2006-01-02) or an RFC 3339 timestamp.
func parseSince(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: since %q", errBadRequest, s)
	}
	return t, nil
}

// HandleList returns flight log headers, newest first.
// GET /api/flightlogs?since=2024-05-01&limit=20
func (h *FlightLogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	since, err := parseSince(q.Get("since"))
	if err != nil {
		writeError(w, err)
		return
	}
	limit := 0
	if s := q.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			writeError(w, fmt.Errorf("%w: limit %q", errBadRequest, s))
			return
		}
	}

	logs, err := h.st.ListFlightLogs(r.Context(), since, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if logs == nil {
		logs = []*model.FlightLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *FlightLogHandler) load(r *http.Request) (*model.FlightLog, error) {
	id := r.PathValue("id")
	l, err := h.st.GetFlightLog(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("%w: flight log %s", errNotFound, id)
	}
	return l, nil
}

// HandleGet returns a flight log with its legs and events.
// GET /api/flightlogs/{id}
func (h *FlightLogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	l, err := h.load(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := flightlog.Decode(l)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleDelete removes a flight log.
// DELETE /api/flightlogs/{id}
func (h *FlightLogHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	l, err := h.load(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.st.DeleteFlightLog(r.Context(), l.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEvents returns the event log of the current flight.
// GET /api/flight/events
func (h *FlightLogHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	events := h.session.Events()
	if events == nil {
		events = []model.FlightEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

type nameRequest struct {
	Name string `json:"name"`
}

// HandleSetName names the flight in progress.
// PUT /api/flight/name
func (h *FlightLogHandler) HandleSetName(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.session.SetName(strings.TrimSpace(req.Name))
	w.WriteHeader(http.StatusNoContent)
}
