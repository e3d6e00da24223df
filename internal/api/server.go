package api

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"rallynav/pkg/logging"
	"rallynav/pkg/version"
)

// NewServer creates and configures the HTTP server.
// It accepts handlers for all API endpoints and a shutdownFunc for graceful shutdown.
func NewServer(addr string, routeH *RouteHandler, fuelH *FuelHandler, posH *PositionHandler, wpH *WaypointHandler, planH *PlanHandler, logH *FlightLogHandler, acH *AircraftHandler, stream *Stream, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health and version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	// 2. Route
	mux.HandleFunc("GET /api/route", routeH.HandleGet)
	mux.HandleFunc("PUT /api/route", routeH.HandleSubmit)
	mux.HandleFunc("DELETE /api/route", routeH.HandleClear)
	mux.HandleFunc("GET /api/route/text", routeH.HandleText)
	mux.HandleFunc("GET /api/route/warnings", routeH.HandleWarnings)
	mux.HandleFunc("GET /api/route/geojson", routeH.HandleGeoJSON)
	mux.HandleFunc("POST /api/route/start", routeH.HandleStart)
	mux.HandleFunc("POST /api/route/mark", routeH.HandleMark)
	mux.HandleFunc("POST /api/route/groundspeed", routeH.HandleGroundSpeed)
	mux.HandleFunc("POST /api/route/takeoff", routeH.HandleTakeoff)
	mux.HandleFunc("PATCH /api/route/legs/{index}", routeH.HandleEditLeg)

	// 3. Fuel, position and aircraft
	mux.HandleFunc("GET /api/fuel", fuelH.HandleGet)
	mux.HandleFunc("POST /api/fuel", fuelH.HandleUpdate)
	mux.HandleFunc("GET /api/position", posH.HandlePosition)
	mux.HandleFunc("GET /api/aircraft", acH.HandleGet)
	mux.HandleFunc("GET /api/aircraft/rpm", acH.HandleRPM)

	// 4. Waypoints
	mux.HandleFunc("GET /api/waypoints", wpH.HandleList)
	mux.HandleFunc("GET /api/waypoints/{name}", wpH.HandleGet)
	mux.HandleFunc("PUT /api/waypoints/{name}", wpH.HandlePut)
	mux.HandleFunc("DELETE /api/waypoints/{name}", wpH.HandleDelete)

	// 5. Flight plans
	mux.HandleFunc("GET /api/plans", planH.HandleList)
	mux.HandleFunc("GET /api/plans/{name}", planH.HandleGet)
	mux.HandleFunc("PUT /api/plans/{name}", planH.HandlePut)
	mux.HandleFunc("DELETE /api/plans/{name}", planH.HandleDelete)
	mux.HandleFunc("POST /api/plans/{name}/load", planH.HandleLoad)

	// 6. Flight logs
	mux.HandleFunc("GET /api/flightlogs", logH.HandleList)
	mux.HandleFunc("GET /api/flightlogs/{id}", logH.HandleGet)
	mux.HandleFunc("DELETE /api/flightlogs/{id}", logH.HandleDelete)
	mux.HandleFunc("GET /api/flight/events", logH.HandleEvents)
	mux.HandleFunc("PUT /api/flight/name", logH.HandleSetName)

	// 7. Operator status
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	mux.HandleFunc("GET /api/log/status", handleStatusLog)

	// 8. Live stream
	mux.HandleFunc("GET /api/ws", stream.HandleWS)

	// 9. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      logRequests(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.code = http.StatusSwitchingProtocols
	return h.Hijack()
}

// logRequests writes one line per request to the request log.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		if logging.RequestLogger == nil {
			return
		}
		logging.RequestLogger.Info("Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.code,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}
