package route

import (
	"fmt"
	"log/slog"
	"time"

	"rallynav/pkg/flighttime"
	"rallynav/pkg/geo"
	"rallynav/pkg/gps"
	"rallynav/pkg/logging"
	"rallynav/pkg/model"
	"rallynav/pkg/power"
	"rallynav/pkg/status"
)

// Route states as shown to the operator.
const (
	StateStopped       = "Stopped"
	StateRunning       = "Running"
	StateRunningTiming = "Running and Timing"
)

// State returns the route state string.
func (e *Engine) State() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state()
}

func (e *Engine) state() string {
	switch {
	case e.running && e.timing:
		return StateRunningTiming
	case e.running:
		return StateRunning
	default:
		return StateStopped
	}
}

// Start begins the run at now: leg 1 becomes active and, when the route
// starts timing immediately, the gate ETA is set.
func (e *Engine) Start(now time.Time) error {
	var err error
	e.locked(func() { err = e.start(now.Truncate(time.Second)) })
	return err
}

func (e *Engine) start(now time.Time) error {
	switch {
	case e.rebuilding:
		return ErrRebuilding
	case e.running:
		return ErrRunning
	case len(e.legs) < 2:
		return ErrNotEnoughLegs
	}

	e.fs.ResetActualFuelForFlight()
	e.fs.ResetAverageGS()
	e.fs.ResetTakeoffTime()
	for i := range e.legs {
		e.legs[i].resetActuals()
	}
	e.deltaTime = nil
	e.etaGate = time.Time{}
	e.setRunning(true)

	first := &e.legs[0]
	first.StartTime, first.EndTime = now, now
	first.State = LegCompleted
	e.updateFuelCompensation(0)

	e.current = 1
	cur := &e.legs[1]
	cur.StartTime = now
	cur.State = LegActive
	if first.StartFlightTiming || cur.StartFlightTiming {
		e.setTiming(true)
		e.fs.SetTakeoffTime(now)
		e.etaGate = cur.EstTimeRemaining.AddTo(now)
	}
	e.reg.Select(cur.Power)
	e.etaWaypoint = cur.ETE.AddTo(now)

	e.flush()
	return nil
}

// MarkCurrentLeg completes the active leg at now and activates the next one.
// Marking the last leg ends the run.
func (e *Engine) MarkCurrentLeg(now time.Time) error {
	var err error
	e.locked(func() { err = e.markCurrentLeg(now.Truncate(time.Second)) })
	return err
}

func (e *Engine) markCurrentLeg(now time.Time) error {
	if !e.running || e.current == 0 || e.current >= len(e.legs) {
		return ErrNotRunning
	}

	idx := e.current
	cur := &e.legs[idx]
	cur.EndTime = now
	e.updateActuals(idx, now)
	cur.State = LegCompleted
	e.emit(model.FlightEventMark, "Marked "+cur.FixName(), "ATE "+cur.ATE.String(), idx)

	if e.timing && (cur.StopFlightTiming || idx == len(e.legs)-1) {
		d := flighttime.Between(e.etaGate, now)
		e.deltaTime = &d
		e.emit(model.FlightEventGate, "Timing leg "+cur.FixName(), "Delta "+d.String(), idx)
		e.setTiming(false)
	}

	e.current++
	if e.current < len(e.legs) {
		next := &e.legs[e.current]
		next.StartTime = now
		next.State = LegActive
		if !e.timing && next.StartFlightTiming {
			e.setTiming(true)
			e.fs.SetTakeoffTime(now)
			e.etaGate = next.EstTimeRemaining.AddTo(now)
		}
		e.reg.Select(next.Power)
		e.etaWaypoint = next.ETE.AddTo(now)
	} else {
		e.current = 0
		e.etaWaypoint = time.Time{}
		e.reg.Select(power.Taxi)
		e.setRunning(false)
		summary := ""
		if e.deltaTime != nil {
			summary = "Delta " + e.deltaTime.String()
		}
		e.emit(model.FlightEventComplete, "Route complete", summary, idx)
	}

	e.flush()
	return nil
}

// Tick advances the engine clock. fix is nil for timer ticks. It reports
// whether the tick was processed; ticks during a rebuild, and fix-less ticks
// closer together than the minimum update interval, are skipped.
func (e *Engine) Tick(now time.Time, fix *gps.Fix) bool {
	var processed bool
	e.locked(func() {
		if e.rebuilding {
			return
		}
		if fix == nil && !e.lastUpdate.IsZero() && now.Sub(e.lastUpdate) < e.opts.MinUpdateInterval {
			return
		}
		e.lastUpdate = now
		processed = true

		if e.timing {
			d := flighttime.Between(e.etaGate, now)
			e.deltaTime = &d
		}

		p := status.Progress{
			ETAWaypoint: e.etaWaypoint,
			ETAGate:     e.etaGate,
		}
		if fix != nil {
			legDist, gateDist := e.updatePositionToActiveLeg(fix.Location())
			p.HaveRequired = true
			p.Gate = status.Required(gateDist, flighttime.Between(e.etaGate, now))
			p.Leg = status.Required(legDist, flighttime.Between(e.etaWaypoint, now))
		}
		p.DistanceToWaypoint = e.distanceToWaypoint
		p.DeltaTime = e.deltaTime
		e.fs.Update(now, fix, p)

		if e.current > 0 {
			e.updateActuals(e.current, now)
		}
		e.flush()
		logging.Trace("Route tick", "fix", fix != nil, "leg", e.current)
	})
	return processed
}

// UpdatePositionToActiveLeg re-measures the active leg from loc and returns
// the distances to its fix and to the gate.
func (e *Engine) UpdatePositionToActiveLeg(loc geo.Location) (leg, gate float64) {
	e.locked(func() {
		leg, gate = e.updatePositionToActiveLeg(loc)
		e.flush()
	})
	return leg, gate
}

func (e *Engine) updatePositionToActiveLeg(loc geo.Location) (leg, gate float64) {
	if e.current == 0 || e.current >= len(e.legs) {
		return 0, 0
	}
	cur := &e.legs[e.current]
	e.measure(cur, loc)
	e.memoizeETE(cur)
	e.distanceToWaypoint = cur.Distance
	return cur.Distance, cur.Distance + cur.DistanceRemainingNext
}

// AdjustTakeoffSeconds moves the takeoff time to the given second of its
// minute (0, 15, 30 or 45) while the start timing leg is active.
func (e *Engine) AdjustTakeoffSeconds(sec int) error {
	if sec%15 != 0 || sec < 0 || sec > 45 {
		return fmt.Errorf("%w: takeoff seconds %d", ErrInvalidValue, sec)
	}
	var err error
	e.locked(func() {
		t := e.fs.TakeoffTime()
		if !e.running || t.IsZero() {
			err = ErrNotRunning
			return
		}
		err = e.updateStartLegTakeoffTime(withSecond(t, sec))
	})
	return err
}

// RestoreTakeoffTime undoes AdjustTakeoffSeconds.
func (e *Engine) RestoreTakeoffTime() error {
	var err error
	e.locked(func() {
		t, orig := e.fs.TakeoffTime(), e.fs.OriginalTakeoffTime()
		if !e.running || t.IsZero() {
			err = ErrNotRunning
			return
		}
		err = e.updateStartLegTakeoffTime(withSecond(t, orig.Second()))
	})
	return err
}

func withSecond(t time.Time, sec int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), sec, 0, t.Location())
}

// updateStartLegTakeoffTime resets the start of the timed span to t. Only
// allowed while the leg that began timing is still the active one.
func (e *Engine) updateStartLegTakeoffTime(t time.Time) error {
	active := e.startLegIndex
	if active == 0 {
		active = 1
	}
	if active != e.current || active >= len(e.legs) {
		return fmt.Errorf("%w: start timing leg is not active", ErrInvalidValue)
	}
	leg := &e.legs[active]
	if !leg.StartFlightTiming && !e.legs[e.startLegIndex].StartFlightTiming {
		return fmt.Errorf("%w: leg %d does not start timing", ErrInvalidValue, active)
	}
	e.fs.SetTakeoffTime(t)
	leg.StartTime = t
	e.etaGate = leg.EstTimeRemaining.AddTo(t)
	e.etaWaypoint = leg.ETE.AddTo(t)
	slog.Info("Takeoff time adjusted", "takeoff", t.Format(time.TimeOnly))
	e.flush()
	return nil
}
