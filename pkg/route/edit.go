package route

import (
	"fmt"

	"rallynav/pkg/status"
)

// editable checks the preconditions shared by the plan edits.
func (e *Engine) editable(i int) error {
	switch {
	case e.running:
		return ErrRunning
	case e.rebuilding:
		return ErrRebuilding
	case i < 0 || i >= len(e.legs):
		return fmt.Errorf("%w: %d", ErrNoSuchLeg, i)
	}
	return nil
}

// SetLegTAS overrides a leg's planned true airspeed.
func (e *Engine) SetLegTAS(i int, tas float64) error {
	if tas <= 0 {
		return fmt.Errorf("%w: tas %.0f", ErrInvalidValue, tas)
	}
	var err error
	e.locked(func() {
		if err = e.editable(i); err != nil {
			return
		}
		e.legs[i].EstTAS = tas
		e.legs[i].invalidate()
		e.updateRows()
	})
	return err
}

// SetLegWind sets the wind on leg i and every following leg through the
// stop timing leg.
func (e *Engine) SetLegWind(i, direction, speed int) error {
	if direction < 0 || direction > 360 || speed < 0 {
		return fmt.Errorf("%w: wind %d@%d", ErrInvalidValue, direction, speed)
	}
	direction %= 360
	if direction == 0 {
		direction = 360
	}
	var err error
	e.locked(func() {
		if err = e.editable(i); err != nil {
			return
		}
		for j := i; j < len(e.legs); j++ {
			l := &e.legs[j]
			l.Wind = Wind{Direction: direction, Speed: speed}
			l.invalidate()
			if l.StopFlightTiming {
				break
			}
		}
		e.updateRows()
	})
	return err
}

// SetLegOAT records the outside air temperature (°F) flown on leg i and
// recomputes fuel compensation. Allowed while running.
func (e *Engine) SetLegOAT(i int, oat float64) error {
	if err := status.CheckOAT(oat); err != nil {
		return err
	}
	var err error
	e.locked(func() {
		if i < 0 || i >= len(e.legs) {
			err = fmt.Errorf("%w: %d", ErrNoSuchLeg, i)
			return
		}
		e.legs[i].OAT = oat
		e.updateAllFuelCompensation()
	})
	return err
}

// SetGroundSpeed plans every leg at a fixed ground speed, ignoring wind.
func (e *Engine) SetGroundSpeed(gs float64) error {
	if gs <= 0 {
		return fmt.Errorf("%w: ground speed %.0f", ErrInvalidValue, gs)
	}
	var err error
	e.locked(func() {
		if e.running {
			err = ErrRunning
			return
		}
		if e.rebuilding {
			err = ErrRebuilding
			return
		}
		for i := range e.legs {
			e.legs[i].gsOverride = gs
			e.legs[i].invalidate()
		}
		e.updateRows()
	})
	return err
}

// SetFillOAT sets the temperature at fill time and recomputes fuel compensation.
func (e *Engine) SetFillOAT(v float64) error {
	if err := e.fs.SetFillOAT(v); err != nil {
		return err
	}
	e.locked(e.updateAllFuelCompensation)
	return nil
}

// SetStartFuel sets the fuel on board at start and recomputes fuel compensation.
func (e *Engine) SetStartFuel(v float64) error {
	if err := e.fs.SetStartFuel(v); err != nil {
		return err
	}
	e.locked(e.updateAllFuelCompensation)
	return nil
}
