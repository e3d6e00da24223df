package logging

import "log/slog"

// EnableTrace turns on per-tick debug logs.
var EnableTrace = false

// Trace logs at DEBUG level when EnableTrace is set.
func Trace(msg string, args ...any) {
	if EnableTrace {
		slog.Debug(msg, args...)
	}
}
