// Package route owns the flight plan: the leg table, its forward and backward
// recompute passes, and the progress state machine that marks legs as the
// aircraft flies them.
package route

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"rallynav/pkg/flighttime"
	"rallynav/pkg/geo"
	"rallynav/pkg/model"
	"rallynav/pkg/power"
	"rallynav/pkg/status"
)

// Notifier receives the legs whose displayed values changed since the last
// notification. count is the current number of legs, so a shrinking route
// can be detected.
type Notifier interface {
	LegsUpdated(changed []Leg, count int)
}

// EventSink receives flight log events.
type EventSink interface {
	FlightEvent(ev model.FlightEvent)
}

// Options configures an Engine.
type Options struct {
	FuelCompPerDegreeF float64
	// MinUpdateInterval limits how often ticks without a position fix are
	// processed.
	MinUpdateInterval time.Duration
	Notifier          Notifier
	Events            EventSink
}

// Engine holds one route and its progress. All methods are safe for
// concurrent use. Notifications are delivered after the engine lock is
// released, in the order the changes were made, so receivers may call back
// into the engine.
type Engine struct {
	mu     sync.Mutex
	reg    *power.Registry
	sphere geo.Sphere
	fs     *status.FlightStatus
	opts   Options

	legs    []Leg
	flushed []Leg
	pending PendingLegDefaults
	rally   rallyState

	startLegIndex int
	current       int // 0 when no leg is active
	running       bool
	timing        bool
	rebuilding    bool

	etaGate            time.Time
	etaWaypoint        time.Time
	deltaTime          *flighttime.Duration
	distanceToWaypoint float64
	lastUpdate         time.Time

	warnings   []Warning
	windWarned map[int]struct{}
	outbox     []func()
	delivering bool
}

// NewEngine creates an empty route engine.
func NewEngine(reg *power.Registry, sphere geo.Sphere, fs *status.FlightStatus, opts Options) *Engine {
	return &Engine{
		reg:    reg,
		sphere: sphere,
		fs:     fs,
		opts:   opts,
	}
}

// locked runs fn under the engine lock and then delivers whatever fn queued.
// Only one goroutine drains the outbox at a time; a caller that finds a
// delivery in progress leaves its notifications to that goroutine.
func (e *Engine) locked(fn func()) {
	e.mu.Lock()
	fn()
	if e.delivering {
		e.mu.Unlock()
		return
	}
	e.delivering = true
	for len(e.outbox) > 0 {
		out := e.outbox
		e.outbox = nil
		e.mu.Unlock()
		for _, deliver := range out {
			deliver()
		}
		e.mu.Lock()
	}
	e.delivering = false
	e.mu.Unlock()
}

func (e *Engine) warn(code WarningCode, legIndex int, format string, args ...any) {
	w := Warning{
		Time:     time.Now(),
		Code:     code,
		LegIndex: legIndex,
		Message:  fmt.Sprintf(format, args...),
	}
	e.warnings = append(e.warnings, w)
	if len(e.warnings) > maxWarnings {
		e.warnings = e.warnings[len(e.warnings)-maxWarnings:]
	}
	slog.Warn(w.Message, "code", string(code), "leg", legIndex)
	e.emit(model.FlightEventWarning, w.Message, string(code), legIndex)
}

func (e *Engine) emit(typ model.FlightEventType, title, summary string, legIndex int) {
	if e.opts.Events == nil {
		return
	}
	ev := model.FlightEvent{
		Timestamp: time.Now(),
		Type:      typ,
		Title:     title,
		Summary:   summary,
		LegIndex:  legIndex,
	}
	if legIndex >= 0 && legIndex < len(e.legs) && e.legs[legIndex].HasLocation {
		ev.Lat = e.legs[legIndex].Location.Lat
		ev.Lon = e.legs[legIndex].Location.Lon
	}
	sink := e.opts.Events
	e.outbox = append(e.outbox, func() { sink.FlightEvent(ev) })
}

// flush queues a notification for every leg that differs from what was
// last delivered.
func (e *Engine) flush() {
	var changed []Leg
	for i := range e.legs {
		if i < len(e.flushed) && e.flushed[i] == e.legs[i] {
			continue
		}
		changed = append(changed, e.legs[i])
	}
	shrunk := len(e.flushed) > len(e.legs)
	e.flushed = append(e.flushed[:0], e.legs...)

	if e.opts.Notifier == nil || (len(changed) == 0 && !shrunk) {
		return
	}
	n, count := e.opts.Notifier, len(e.legs)
	e.outbox = append(e.outbox, func() { n.LegsUpdated(changed, count) })
}

func (e *Engine) lastLeg() *Leg {
	if len(e.legs) == 0 {
		return nil
	}
	return &e.legs[len(e.legs)-1]
}

func (e *Engine) setRunning(on bool) {
	if e.running == on {
		return
	}
	e.running = on
	e.fs.SetRunning(on)
	if on {
		slog.Info("Started Running")
		e.emit(model.FlightEventStart, "Started Running", "", e.current)
		return
	}
	if e.timing {
		e.setTiming(false)
	}
	slog.Info("Stopped Running")
}

func (e *Engine) setTiming(on bool) {
	if e.timing == on {
		return
	}
	e.timing = on
	if on {
		slog.Info("Started Timing", "leg", e.current)
		e.emit(model.FlightEventTiming, "Started Timing", "", e.current)
		return
	}
	slog.Info("Stopped Timing", "leg", e.current)
	e.emit(model.FlightEventTiming, "Stopped Timing", "", e.current)
}

// BeginRebuild clears the route so the interpreter can append legs. Ticks
// are ignored until FinishRebuild.
func (e *Engine) BeginRebuild() error {
	var err error
	e.locked(func() {
		if e.running {
			err = ErrRunning
			return
		}
		e.clear()
		e.rebuilding = true
		e.flush()
	})
	return err
}

// RemoveAll deletes every leg and resets the pending modifiers.
func (e *Engine) RemoveAll() error {
	var err error
	e.locked(func() {
		if e.running {
			err = ErrRunning
			return
		}
		e.clear()
		e.fs.SetSubmittedTime(0)
		e.flush()
	})
	return err
}

func (e *Engine) clear() {
	e.legs = nil
	e.pending.Reset()
	e.rally.reset()
	e.startLegIndex = 0
	e.current = 0
	e.etaGate, e.etaWaypoint = time.Time{}, time.Time{}
	e.deltaTime = nil
	e.distanceToWaypoint = 0
}

// ApplyModifier applies a wind, TAS or cruise class token to the legs
// appended after it.
func (e *Engine) ApplyModifier(token string) bool {
	var ok bool
	e.locked(func() { ok = e.pending.Apply(token) })
	return ok
}

// newLeg fills the fields every leg takes from the pending modifiers.
func (e *Engine) newLeg(kind LegKind, fix string) Leg {
	return Leg{
		Index:  len(e.legs),
		Kind:   kind,
		Fix:    fix,
		State:  LegPlanned,
		Power:  e.pending.cruiseSlot(),
		EstTAS: e.pending.takeTAS(),
		Wind:   e.pending.Wind,
		OAT:    e.fs.FillOAT(),
	}
}

// AppendNoFixLeg appends a maneuver leg (TAXI, RUNUP, TAKEOFF, CLIMB, PATTERN,
// LEFT, RIGHT). Malformed parameters fall back to defaults and are reported
// in the outcome.
func (e *Engine) AppendNoFixLeg(token string) (ParseOutcome, error) {
	var (
		out ParseOutcome
		err error
	)
	e.locked(func() {
		if !e.rebuilding {
			err = ErrNotRebuilding
			return
		}
		kind := maneuverKind(token)
		if kind < 0 {
			err = fmt.Errorf("%w: %s", ErrUnknownToken, token)
			return
		}
		if kind == KindTakeoff && !e.rally.haveStart {
			e.warn(WarnNoStartLeg, len(e.legs), "Trying to create a Takeoff leg without start leg")
			err = ErrNoStartLeg
			return
		}

		l := e.newLeg(kind, "")
		defaulted, berr := e.buildManeuver(kind, token, &l)
		if berr != nil {
			err = berr
			return
		}
		if defaulted {
			e.warn(WarnDefaultedToken, l.Index, "Malformed %s, using defaults", token)
		}
		if kind == KindTaxi {
			e.rally.totalTaxiTime += l.ETE
			e.rally.taxiSegments = append(e.rally.taxiSegments, l.Index)
		}
		e.legs = append(e.legs, l)
		out = ParseOutcome{Kind: kind, FixName: l.FixName(), Defaulted: defaulted}
	})
	return out, err
}

// AppendFixLeg appends a leg to a resolved waypoint.
func (e *Engine) AppendFixLeg(name string, loc geo.Location) error {
	var err error
	e.locked(func() {
		if !e.rebuilding {
			err = ErrNotRebuilding
			return
		}
		l := e.newLeg(KindFix, name)
		l.Location, l.HasLocation = loc, true
		e.legs = append(e.legs, l)
	})
	return err
}

// AppendRallyFixLeg appends a FIX|START or FIX|TIMING leg anchored at the
// resolved location of fix.
func (e *Engine) AppendRallyFixLeg(token, fix string, loc geo.Location) error {
	var err error
	e.locked(func() {
		if !e.rebuilding {
			err = ErrNotRebuilding
			return
		}
		m := rallyFixRE.FindStringSubmatch(token)
		if m == nil {
			err = fmt.Errorf("%w: %s", ErrUnknownToken, token)
			return
		}

		var l Leg
		switch kindWord := m[2]; {
		case strings.EqualFold(kindWord, "START"):
			if e.rally.haveStart {
				e.warn(WarnSecondStart, len(e.legs), "Trying to create second start leg")
				err = ErrDuplicateLeg
				return
			}
			e.rally.reset()
			e.rally.startLocation, e.rally.haveStart, e.rally.startFix = loc, true, fix
			l = e.newLeg(KindStart, fix)
			l.Power = power.Taxi
		default:
			l = e.newLeg(KindTiming, fix)
			l.Power = power.LowCruise
			l.StopFlightTiming = true
		}
		l.Location, l.HasLocation = loc, true
		e.legs = append(e.legs, l)
	})
	return err
}

// ReportMissingWaypoint records a route name that could not be resolved.
func (e *Engine) ReportMissingWaypoint(name string) {
	e.locked(func() {
		e.warn(WarnNotFound, len(e.legs), "Couldn't find waypoint: %s", name)
	})
}

// FinishRebuild recomputes the new route and resumes tick processing.
func (e *Engine) FinishRebuild() {
	e.locked(func() {
		e.rebuilding = false
		e.updateRows()
		slog.Info("Route rebuilt", "legs", len(e.legs))
		e.emit(model.FlightEventRouteSet, "Route set", e.currentRoute(), -1)
	})
}

// UpdateRows recomputes every derived leg value.
func (e *Engine) UpdateRows() {
	e.locked(e.updateRows)
}

// Rebuilding reports whether a route rebuild is in progress.
func (e *Engine) Rebuilding() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rebuilding
}
