package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"rallynav/pkg/flightlog"
	"rallynav/pkg/route"
	"rallynav/pkg/status"
	"rallynav/pkg/waypoint"
)

const maxBodyBytes = 1 << 20

var (
	errNotFound   = errors.New("not found")
	errBadRequest = errors.New("bad request")
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// statusFor maps command errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, route.ErrRunning),
		errors.Is(err, route.ErrNotRunning),
		errors.Is(err, route.ErrRebuilding),
		errors.Is(err, route.ErrNotRebuilding),
		errors.Is(err, route.ErrNotEnoughLegs),
		errors.Is(err, route.ErrDuplicateLeg),
		errors.Is(err, status.ErrRunning):
		return http.StatusConflict
	case errors.Is(err, route.ErrNoSuchLeg),
		errors.Is(err, waypoint.ErrNotFound),
		errors.Is(err, flightlog.ErrNoFlightLog),
		errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, route.ErrInvalidValue),
		errors.Is(err, status.ErrOutOfRange),
		errors.Is(err, waypoint.ErrInvalidWaypoint),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
