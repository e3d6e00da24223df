package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rallynav/pkg/config"
	"rallynav/pkg/model"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	requestLog := filepath.Join(tempDir, "requests.log")
	eventLog := filepath.Join(tempDir, "events.log")

	cfg := &config.LogConfig{
		Server:   config.LogSettings{Path: serverLog, Level: "DEBUG", MaxSizeMB: 1},
		Requests: config.LogSettings{Path: requestLog, Level: "INFO", MaxSizeMB: 1},
		Events:   config.LogSettings{Path: eventLog, Level: "INFO", MaxSizeMB: 1},
	}

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cleanup, err := Init(cfg)
	require.NoError(t, err)

	slog.Warn("Wind too strong to fly", "leg", 3)
	RequestLogger.Info("GET /api/route")
	LogEvent(&model.FlightEvent{
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Type:      model.FlightEventTiming,
		Title:     "Started Timing",
		LegIndex:  2,
	})
	cleanup()

	content, err := os.ReadFile(serverLog)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Wind too strong to fly")

	content, err = os.ReadFile(requestLog)
	require.NoError(t, err)
	assert.Contains(t, string(content), "GET /api/route")

	content, err = os.ReadFile(eventLog)
	require.NoError(t, err)
	assert.Equal(t, "[2024-05-01 12:00:00] [timing] #2 Started Timing\n", string(content))

	assert.Contains(t, StatusLog.Last(), "Wind too strong to fly")
	assert.NotContains(t, StatusLog.Last(), "time=")
	assert.Equal(t, "[2024-05-01 12:00:00] [timing] #2 Started Timing", EventLog.Last())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestRing(t *testing.T) {
	r := NewRing(3)
	assert.Equal(t, "", r.Last())
	assert.Empty(t, r.Lines())

	for i := 1; i <= 4; i++ {
		_, err := fmt.Fprintf(r, "line %d\n", i)
		require.NoError(t, err)
	}

	assert.Equal(t, "line 4", r.Last())
	assert.Equal(t, []string{"line 2", "line 3", "line 4"}, r.Lines())
	assert.False(t, strings.HasSuffix(r.Last(), "\n"))
}
