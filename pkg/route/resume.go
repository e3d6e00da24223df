package route

import (
	"fmt"
	"log/slog"
	"time"
)

// Progress is the part of a run that is kept across a restart: the route
// text to rebuild the plan from, plus the times flown so far.
type Progress struct {
	Route       string
	CurrentLeg  int
	Timing      bool
	Takeoff     time.Time
	OrigTakeoff time.Time
	ETAGate     time.Time
	Legs        []LegProgress
}

// LegProgress holds the recorded values of one leg.
type LegProgress struct {
	Start time.Time
	End   time.Time
	OAT   float64
	ActGS float64
}

// Progress returns the run in progress. ok is false when stopped.
func (e *Engine) Progress() (p Progress, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.current == 0 {
		return Progress{}, false
	}

	p = Progress{
		Route:       e.currentRoute(),
		CurrentLeg:  e.current,
		Timing:      e.timing,
		Takeoff:     e.fs.TakeoffTime(),
		OrigTakeoff: e.fs.OriginalTakeoffTime(),
		ETAGate:     e.etaGate,
		Legs:        make([]LegProgress, len(e.legs)),
	}
	for i, l := range e.legs {
		p.Legs[i] = LegProgress{Start: l.StartTime, End: l.EndTime, OAT: l.OAT, ActGS: l.ActGS}
	}
	return p, true
}

// Resume puts a freshly submitted route back into the run described by p.
// No start or timing events are emitted; the run already has them.
func (e *Engine) Resume(p Progress) error {
	var err error
	e.locked(func() { err = e.resume(p) })
	return err
}

func (e *Engine) resume(p Progress) error {
	switch {
	case e.rebuilding:
		return ErrRebuilding
	case e.running:
		return ErrRunning
	case len(p.Legs) != len(e.legs) || p.CurrentLeg < 1 || p.CurrentLeg >= len(e.legs):
		return fmt.Errorf("%w: saved progress does not match the route", ErrInvalidValue)
	}

	e.fs.ResetActualFuelForFlight()
	e.fs.ResetAverageGS()
	e.fs.ResetTakeoffTime()
	e.fs.SetTakeoffTime(p.OrigTakeoff)
	e.fs.SetTakeoffTime(p.Takeoff)

	for i := range e.legs {
		l := &e.legs[i]
		l.resetActuals()
		saved := p.Legs[i]
		l.StartTime, l.EndTime, l.OAT = saved.Start, saved.End, saved.OAT
		if i >= p.CurrentLeg {
			continue
		}
		l.State = LegCompleted
		if i == 0 {
			e.updateFuelCompensation(0)
			continue
		}
		e.updateActuals(i, l.EndTime)
		l.ActGS = saved.ActGS
	}

	e.current = p.CurrentLeg
	cur := &e.legs[e.current]
	cur.State = LegActive
	e.running = true
	e.fs.SetRunning(true)
	e.timing = p.Timing
	e.etaGate = p.ETAGate
	e.etaWaypoint = cur.ETE.AddTo(cur.StartTime)
	e.deltaTime = nil
	e.reg.Select(cur.Power)

	slog.Info("Resumed run", "leg", e.current, "timing", e.timing)
	e.flush()
	return nil
}
