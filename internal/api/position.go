package api

import (
	"net/http"
	"sync"

	"rallynav/pkg/gps"
	"rallynav/pkg/status"
)

// PositionResponse is the API response structure.
type PositionResponse struct {
	Fix   *gps.Fix        `json:"fix,omitempty"`
	State gps.State       `json:"state"`
	Live  status.Snapshot `json:"status"`
}

// PositionPublisher receives every position update.
type PositionPublisher interface {
	PublishPosition(p PositionResponse)
}

// PositionHandler keeps the latest fix. It implements core.PositionSink.
type PositionHandler struct {
	mu    sync.RWMutex
	fix   *gps.Fix
	state gps.State
	fs    *status.FlightStatus
	pub   PositionPublisher
}

// NewPositionHandler creates a PositionHandler. pub may be nil.
func NewPositionHandler(fs *status.FlightStatus, pub PositionPublisher) *PositionHandler {
	return &PositionHandler{state: gps.StateDisconnected, fs: fs, pub: pub}
}

// Update implements core.PositionSink.
func (h *PositionHandler) Update(f *gps.Fix) {
	fix := *f
	h.mu.Lock()
	h.fix = &fix
	h.mu.Unlock()

	if h.pub != nil {
		h.pub.PublishPosition(h.current())
	}
}

// UpdateState updates the position source state.
func (h *PositionHandler) UpdateState(s gps.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = s
}

func (h *PositionHandler) current() PositionResponse {
	h.mu.RLock()
	resp := PositionResponse{Fix: h.fix, State: h.state}
	h.mu.RUnlock()
	resp.Live = h.fs.Snapshot()
	return resp
}

// HandlePosition returns the last fix and the live flight status.
// GET /api/position
func (h *PositionHandler) HandlePosition(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.current())
}
