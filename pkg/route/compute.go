package route

import (
	"math"
	"time"

	"rallynav/pkg/flighttime"
	"rallynav/pkg/geo"
)

const twoPi = 2 * math.Pi

// updateRows runs the full recompute: timing flag check, forward pass,
// backward pass, then a flush of the changed legs.
func (e *Engine) updateRows() {
	clear(e.windWarned)
	if len(e.legs) == 0 {
		e.flush()
		return
	}

	haveStart, haveStop := false, false
	for i := range e.legs {
		l := &e.legs[i]
		l.Index = i
		e.calculateRow(l)
		if l.StartFlightTiming {
			if haveStart {
				e.warn(WarnDuplicateStart, i, "Have duplicate Start timing leg in row %s", l.FixName())
			}
			haveStart = true
			e.startLegIndex = i
		}
		if l.StopFlightTiming {
			if haveStop {
				e.warn(WarnDuplicateStop, i, "Have duplicate Timing leg in row %s", l.FixName())
			}
			haveStop = true
		}
	}
	if !haveStart {
		e.legs[0].StartFlightTiming = true
		e.startLegIndex = 0
	}
	if !haveStop {
		e.lastLeg().StopFlightTiming = true
	}

	for i := range e.legs {
		e.updateForward(i)
	}
	e.updateBackward()

	e.fs.SetSubmittedTime(e.legs[e.startLegIndex].EstTimeRemaining)
	e.flush()
}

// calculateRow resolves the leg's airspeed and fuel flow from its power setting.
func (e *Engine) calculateRow(l *Leg) {
	s, _ := e.reg.Get(l.Power)
	if l.EstTAS == 0 {
		l.EstTAS = s.TrueAirspeed
	}
	e.resolveGS(l)
	l.FuelFlow = s.FuelFlow
}

// resolveGS applies the wind triangle, then any ground speed override.
func (e *Engine) resolveGS(l *Leg) {
	e.updateForWind(l)
	if l.gsOverride > 0 {
		l.EstGS = l.gsOverride
	}
}

// updateForWind computes heading and ground speed from course, airspeed and
// wind. When the wind cannot be flown the previous values are kept.
func (e *Engine) updateForWind(l *Leg) {
	if l.Wind.Speed == 0 || l.EstTAS == 0 {
		l.Heading = l.Course
		l.EstGS = l.EstTAS
		return
	}

	windRad := float64(l.Wind.Direction) * math.Pi / 180
	courseRad := l.Course * math.Pi / 180
	windSpeed := float64(l.Wind.Speed)

	swc := (windSpeed / l.EstTAS) * math.Sin(windRad-courseRad)
	if math.Abs(swc) > 1 {
		e.warnWindTooStrong(l)
		return
	}

	headingRad := courseRad + math.Asin(swc)
	if headingRad < 0 {
		headingRad += twoPi
	}
	if headingRad > twoPi {
		headingRad -= twoPi
	}
	gs := l.EstTAS*math.Sqrt(1-swc*swc) - windSpeed*math.Cos(windRad-courseRad)
	if gs < 0 {
		e.warnWindTooStrong(l)
		return
	}

	l.EstGS = gs
	l.Heading = math.Round(headingRad * 180 / math.Pi)
}

// warnWindTooStrong warns at most once per leg per recompute; a leg's wind
// is resolved more than once in a pass.
func (e *Engine) warnWindTooStrong(l *Leg) {
	if _, ok := e.windWarned[l.Index]; ok {
		return
	}
	if e.windWarned == nil {
		e.windWarned = make(map[int]struct{})
	}
	e.windWarned[l.Index] = struct{}{}
	e.warn(WarnWindTooStrong, l.Index, "Wind too strong to fly")
}

// measure sets the leg's distance and rounded course from `from` to the leg's location.
func (e *Engine) measure(l *Leg, from geo.Location) {
	l.Distance = e.sphere.Distance(from, l.Location)
	l.Course = math.Round(e.sphere.BearingFrom(l.Location, from))
}

// memoizeETE derives ete from distance and ground speed once, then the
// estimated fuel from ete.
func (e *Engine) memoizeETE(l *Leg) {
	if !l.ETESet && l.EstGS != 0 {
		l.setETE(flighttime.Seconds(l.Distance * 3600 / l.EstGS))
	}
	if l.ETE != 0 {
		l.EstFuel = l.FuelFlow * l.ETE.Hours()
	}
}

// fly measures a leg from `from` and derives its timing.
func (e *Engine) fly(l *Leg, from geo.Location) {
	e.measure(l, from)
	e.resolveGS(l)
	e.memoizeETE(l)
	l.LegDistance = l.Distance
}

func (e *Engine) updateForward(i int) {
	l := &e.legs[i]
	if i == 0 {
		if !l.ETESet {
			l.setETE(0)
		}
		e.fly(l, l.Location)
		l.EstCumulativeFuel = l.EstFuel
		return
	}

	prev := &e.legs[i-1]
	switch {
	case l.Kind == KindClimb:
		// A climb starts where the previous leg ends; the following leg
		// moves its endpoint.
		l.Location, l.HasLocation = prev.Location, prev.HasLocation
		l.Distance, l.LegDistance = 0, 0
		l.EstFuel = l.FuelFlow * l.ETE.Hours()
	case l.Kind.IsTurn():
		e.updateTurn(i)
	default:
		e.fly(l, prev.Location)
		if prev.Kind == KindClimb {
			e.completeClimb(i)
		}
	}
	l.EstCumulativeFuel = prev.EstCumulativeFuel + l.EstFuel
}

// completeClimb places the end of the climb preceding leg i along leg i's
// course, at the distance covered in the climb time, and re-measures leg i
// from there.
func (e *Engine) completeClimb(i int) {
	l, climb := &e.legs[i], &e.legs[i-1]

	climb.Course = l.Course
	e.resolveGS(climb)
	p, _ := climb.Payload.(ClimbPayload)
	climbDist := distanceFromSpeedAndTime(climb.EstGS, p.ClimbTime)
	if climbDist >= l.Distance {
		e.warn(WarnClimbTooShort, climb.Index, "Not enough distance to climb in leg #%d", climb.Index)
		return
	}

	start := climb.Location
	end := e.sphere.LocationFrom(start, l.Course, climbDist)
	climb.Location = end
	e.measure(climb, start)
	e.memoizeETE(climb)
	climb.LegDistance = climb.Distance
	if i >= 2 {
		climb.EstCumulativeFuel = e.legs[i-2].EstCumulativeFuel + climb.EstFuel
	}

	l.invalidate()
	e.fly(l, end)
}

// updateTurn lays out a standard-rate turn at the previous leg's fix: the
// previous leg now ends at the inbound tangent point and the turn ends at
// the outbound tangent point toward the next leg.
func (e *Engine) updateTurn(i int) {
	l, prev := &e.legs[i], &e.legs[i-1]
	extra := 0
	if p, ok := l.Payload.(TurnPayload); ok {
		extra = p.ExtraTurns
	}

	var next *Leg
	if i+1 < len(e.legs) && e.legs[i+1].HasLocation {
		next = &e.legs[i+1]
	}
	if next == nil || prev.Kind == KindClimb {
		// Orbit in place.
		l.Location, l.HasLocation = prev.Location, prev.HasLocation
		l.Distance, l.LegDistance = 0, 0
		l.Course = prev.Course
		e.resolveGS(l)
		l.setETE(flighttime.Seconds(float64(360*extra) / 3))
		l.EstFuel = l.FuelFlow * l.ETE.Hours()
		return
	}

	left := l.Kind == KindLeft
	radius := l.EstTAS / 30 / twoPi

	// The turn circle is centered on the previous fix. The tangent points lie
	// abeam the center, on the side away from the turn.
	offset := -90.0
	if left {
		offset = 90
	}

	if !prev.hasOriginalLocation {
		prev.originalLocation, prev.hasOriginalLocation = prev.Location, true
	}
	pivot := prev.originalLocation

	inbound := e.sphere.LocationFrom(pivot, roundBearing(prev.Course+offset), radius)
	bearingToNext := math.Round(e.sphere.BearingFrom(next.Location, pivot))
	outbound := e.sphere.LocationFrom(pivot, roundBearing(bearingToNext+offset), radius)

	turnAngle := bearingToNext - prev.Course
	if left {
		turnAngle = prev.Course - bearingToNext
	}
	turnAngle = math.Mod(turnAngle+720, 360)

	l.setETE(flighttime.Seconds((turnAngle + float64(360*extra)) / 3))
	l.EstFuel = l.FuelFlow * l.ETE.Hours()
	l.Location, l.HasLocation = outbound, true
	l.Distance = distanceFromSpeedAndTime(l.EstTAS, l.ETE)
	l.LegDistance = l.Distance
	l.Course = bearingToNext
	e.resolveGS(l)

	prev.Location = inbound
	if i >= 2 && e.legs[i-2].HasLocation {
		pp := &e.legs[i-2]
		prev.invalidate()
		e.fly(prev, pp.Location)
		prev.EstCumulativeFuel = pp.EstCumulativeFuel + prev.EstFuel
	}
}

// updateBackward accumulates remaining distance and time from the stop
// timing leg back to the first leg. Legs after the stop leg remain zero.
func (e *Engine) updateBackward() {
	var (
		dist   float64
		ete    flighttime.Duration
		inSpan bool
	)
	for i := len(e.legs) - 1; i >= 0; i-- {
		l := &e.legs[i]
		if l.StopFlightTiming {
			inSpan = true
		}
		if !inSpan {
			l.DistanceRemaining, l.DistanceRemainingNext = 0, 0
			l.EstTimeRemaining, l.EstTimeRemainingNext = 0, 0
			continue
		}
		l.DistanceRemainingNext = dist
		l.EstTimeRemainingNext = ete
		dist += l.Distance
		ete = ete.Add(l.ETE)
		l.DistanceRemaining = dist
		l.EstTimeRemaining = ete
	}
}

// updateFuelCompensation corrects leg i's fuel used for the change in fuel
// volume with temperature since the previous leg.
func (e *Engine) updateFuelCompensation(i int) {
	l := &e.legs[i]
	prevOAT, priorUsed := e.fs.FillOAT(), 0.0
	if i > 0 {
		prevOAT, priorUsed = e.legs[i-1].OAT, e.legs[i-1].FuelUsed
	}
	l.CompFuel = (prevOAT - l.OAT) * e.opts.FuelCompPerDegreeF * (e.fs.StartFuel() - l.ActCumulativeFuel)
	l.FuelUsed = priorUsed + l.ActFuel + l.CompFuel
	e.fs.SetFuelUsed(l.FuelUsed)
}

func (e *Engine) updateAllFuelCompensation() {
	for i := range e.legs {
		e.updateFuelCompensation(i)
	}
	e.flush()
}

// updateActuals records elapsed time, fuel and ground speed for leg i at now.
func (e *Engine) updateActuals(i int, now time.Time) {
	l := &e.legs[i]
	l.ATE = flighttime.Between(now, l.StartTime)
	l.ActFuel = l.FuelFlow * l.ATE.Hours()
	prevCum := 0.0
	if i > 0 {
		prevCum = e.legs[i-1].ActCumulativeFuel
	}
	l.ActCumulativeFuel = prevCum + l.ActFuel

	covered := l.LegDistance - l.Distance
	if l.ATE.Seconds() < 10 || covered < 2 {
		l.ActGS = e.fs.AverageGS()
	} else {
		l.ActGS = covered / l.ATE.Hours()
	}
	l.ActTimeRemaining = 0
	if l.ActGS != 0 {
		l.ActTimeRemaining = flighttime.Seconds(l.Distance * 3600 / l.ActGS)
	}

	e.updateFuelCompensation(i)
}
