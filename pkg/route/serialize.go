package route

import (
	"fmt"
	"math"
	"strings"

	"rallynav/pkg/power"
)

// CurrentRoute rebuilds route text from the legs. Submitting the result
// produces the same plan.
func (e *Engine) CurrentRoute() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentRoute()
}

func (e *Engine) currentRoute() string {
	var (
		b         strings.Builder
		lastWind  Wind
		lastPower = power.Cruise
	)
	for i := range e.legs {
		l := &e.legs[i]
		if i > 0 {
			b.WriteByte(' ')
		}
		if !sameWind(l.Wind, lastWind) {
			fmt.Fprintf(&b, "%s ", windToken(l.Wind))
			lastWind = l.Wind
		}
		if !e.isStandardTAS(l) {
			fmt.Fprintf(&b, "%dkts ", int(math.Round(l.EstTAS)))
		}
		if l.Power != lastPower {
			switch l.Power {
			case power.LowCruise:
				b.WriteString(":LOW-CRUISE ")
			case power.Cruise:
				b.WriteString(":CRUISE ")
			}
			lastPower = l.Power
		}
		b.WriteString(l.FixName())
	}
	return b.String()
}

func (e *Engine) isStandardTAS(l *Leg) bool {
	s, ok := e.reg.Get(l.Power)
	return !ok || l.EstTAS == 0 || l.EstTAS == s.TrueAirspeed
}

// sameWind treats 0 and 360 as the same direction.
func sameWind(a, b Wind) bool {
	return a.Speed == b.Speed && a.Direction%360 == b.Direction%360
}

func windToken(w Wind) string {
	dir := w.Direction % 360
	if dir == 0 {
		dir = 360
	}
	return fmt.Sprintf("%d@%d", dir, w.Speed)
}
