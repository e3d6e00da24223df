package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"rallynav/pkg/config"
	"rallynav/pkg/model"
)

// RequestLogger is the logger instance for HTTP requests.
var RequestLogger *slog.Logger

var (
	eventMu     sync.Mutex
	eventWriter io.Writer
)

// Init initializes the logging system based on configuration.
// It returns a cleanup function to close log files.
func Init(cfg *config.LogConfig) (func(), error) {
	for _, p := range []string{cfg.Server.Path, cfg.Requests.Path, cfg.Events.Path} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	var closers []io.Closer

	serverOut := newRotatingWriter(cfg.Server)
	closers = append(closers, serverOut)
	slog.SetDefault(slog.New(newHandler(serverOut, cfg.Server.Level, true)))

	requestOut := newRotatingWriter(cfg.Requests)
	closers = append(closers, requestOut)
	RequestLogger = slog.New(newHandler(requestOut, cfg.Requests.Level, false))

	if cfg.Events.Path != "" {
		eventOut := newRotatingWriter(cfg.Events)
		closers = append(closers, eventOut)
		setEventWriter(eventOut)
	}

	return func() {
		setEventWriter(nil)
		for _, c := range closers {
			c.Close()
		}
	}, nil
}

// newRotatingWriter opens a size-rotated log file. Each process start begins
// a fresh file; the previous run becomes the newest backup.
func newRotatingWriter(s config.LogSettings) *lumberjack.Logger {
	l := &lumberjack.Logger{
		Filename:   s.Path,
		MaxSize:    s.MaxSizeMB,
		MaxBackups: s.MaxBackups,
	}
	if fi, err := os.Stat(s.Path); err == nil && fi.Size() > 0 {
		_ = l.Rotate()
	}
	return l
}

// ParseLevel maps a config level string to a slog level. Unknown values mean INFO.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(out io.Writer, levelStr string, console bool) slog.Handler {
	level := ParseLevel(levelStr)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	fileHandler := slog.NewTextHandler(out, opts)
	if !console {
		return fileHandler
	}

	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: max(level, slog.LevelInfo),
	})
	// Operator status line: INFO and up, without timestamps.
	captureHandler := slog.NewTextHandler(StatusLog, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})

	return &multiHandler{handlers: []slog.Handler{fileHandler, consoleHandler, captureHandler}}
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler
// nolint:gocritic // r must be passed by value to implement slog.Handler
func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: hs}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: hs}
}

func setEventWriter(w io.Writer) {
	eventMu.Lock()
	defer eventMu.Unlock()
	eventWriter = w
}

// LogEvent appends a flight event to the event log and the event capture.
func LogEvent(event *model.FlightEvent) {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	// Format: [2006-01-02 15:04:05] [type] #leg Title - Summary
	line := fmt.Sprintf("[%s] [%s] #%d %s", ts.Format("2006-01-02 15:04:05"), event.Type, event.LegIndex, event.Title)
	if event.Summary != "" {
		line += " - " + event.Summary
	}

	EventLog.Add(line)

	eventMu.Lock()
	defer eventMu.Unlock()
	if eventWriter == nil {
		return
	}
	if _, err := io.WriteString(eventWriter, line+"\n"); err != nil {
		slog.Error("Failed to write event log", "error", err)
	}
}
