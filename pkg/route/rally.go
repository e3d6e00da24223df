package route

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"rallynav/pkg/flighttime"
	"rallynav/pkg/geo"
	"rallynav/pkg/power"
)

const tp = flighttime.Pattern

var (
	taxiRE    = regexp.MustCompile(`(?i)^TAXI(?:\|(COLD|WARM))?(?:\|(` + tp + `))?$`)
	runupRE   = regexp.MustCompile(`(?i)^RUNUP(?:\|(` + tp + `))?$`)
	takeoffRE = regexp.MustCompile(`(?i)^TAKEOFF(?:\|(` + tp + `))?(?:\|(360|3[0-5][0-9]|[0-2][0-9]{2}|[0-9]{1,2})@(\d{1,2}(?:\.\d{1,4})?))?$`)
	climbRE   = regexp.MustCompile(`(?i)^CLIMB\|(\d{3,5})\|(` + tp + `)$`)
	patternRE = regexp.MustCompile(`(?i)^PATTERN\|(` + tp + `)$`)
	turnRE    = regexp.MustCompile(`(?i)^(LEFT|RIGHT)(?:\|\+(\d))?$`)
)

// Maneuver defaults.
const (
	defaultTaxiTime     = flighttime.Duration(300)
	defaultRunupTime    = flighttime.Duration(30)
	defaultTakeoffTime  = flighttime.Duration(120)
	defaultClimbTime    = flighttime.Duration(480)
	defaultClimbAlt     = 5500
	defaultPatternTime  = flighttime.Duration(120)
	regexTimeGroupCount = 4 // a time capture and the three groups inside it
)

// ParseOutcome describes how a maneuver token was read.
type ParseOutcome struct {
	Kind    LegKind `json:"kind"`
	FixName string  `json:"fix_name"`
	// Defaulted is set when the token was malformed and documented defaults
	// replaced its parameters.
	Defaulted bool `json:"defaulted"`
}

// rallyState is the route-wide state of the rally maneuvers.
type rallyState struct {
	startLocation geo.Location
	haveStart     bool
	startFix      string
	totalTaxiTime flighttime.Duration
	taxiSegments  []int
}

func (r *rallyState) reset() {
	*r = rallyState{}
}

// timeGroup parses the leading time capture of a match slice starting at i.
func timeGroup(m []string, i int, def flighttime.Duration) flighttime.Duration {
	if i >= len(m) || m[i] == "" {
		return def
	}
	d, ok := flighttime.Parse(m[i])
	if !ok {
		return def
	}
	return d
}

// buildManeuver fills the kind-specific fields of a maneuver leg. The caller
// has already filled the common fields and checked for a start leg.
func (e *Engine) buildManeuver(kind LegKind, token string, l *Leg) (defaulted bool, err error) {
	prev := e.lastLeg()
	atPrevious := func() {
		if prev != nil {
			l.Location, l.HasLocation = prev.Location, prev.HasLocation
		}
	}

	switch kind {
	case KindTaxi:
		m := taxiRE.FindStringSubmatch(token)
		defaulted = m == nil
		l.Power = power.Taxi
		mode := ""
		if m != nil {
			mode = strings.ToUpper(m[1])
			l.setETE(timeGroup(m, 2, defaultTaxiTime))
		} else {
			l.setETE(defaultTaxiTime)
		}
		if mode == "WARM" {
			l.Power = power.WarmTaxi
		}
		l.Payload = TaxiPayload{Mode: mode}
		atPrevious()

	case KindRunup:
		m := runupRE.FindStringSubmatch(token)
		defaulted = m == nil
		l.Power = power.Runup
		l.setETE(defaultRunupTime)
		if m != nil {
			l.setETE(timeGroup(m, 1, defaultRunupTime))
		}
		atPrevious()

	case KindTakeoff:
		m := takeoffRE.FindStringSubmatch(token)
		defaulted = m == nil
		l.Power = power.Takeoff
		l.StartFlightTiming = true
		l.setETE(defaultTakeoffTime)
		l.Location, l.HasLocation = e.rally.startLocation, true
		var p TakeoffPayload
		if m != nil {
			l.setETE(timeGroup(m, 1, defaultTakeoffTime))
			brgIdx := 1 + regexTimeGroupCount
			if m[brgIdx] != "" && m[brgIdx+1] != "" {
				brg, _ := strconv.Atoi(m[brgIdx])
				dist, _ := strconv.ParseFloat(m[brgIdx+1], 64)
				p = TakeoffPayload{Bearing: brg % 360, Distance: dist}
				l.Location = e.sphere.LocationFrom(e.rally.startLocation, float64(p.Bearing), p.Distance)
			}
		}
		l.Payload = p

	case KindClimb:
		m := climbRE.FindStringSubmatch(token)
		defaulted = m == nil
		l.Power = power.Climb
		p := ClimbPayload{Altitude: defaultClimbAlt, ClimbTime: defaultClimbTime}
		if m != nil {
			p.Altitude, _ = strconv.Atoi(m[1])
			p.ClimbTime = timeGroup(m, 2, defaultClimbTime)
		}
		l.Fix = fmt.Sprintf("%d\"", p.Altitude)
		l.Payload = p
		l.setETE(p.ClimbTime)
		atPrevious()

	case KindPattern:
		m := patternRE.FindStringSubmatch(token)
		defaulted = m == nil
		l.Power = power.Pattern
		l.setETE(defaultPatternTime)
		if m != nil {
			l.setETE(timeGroup(m, 1, defaultPatternTime))
		}
		atPrevious()

	case KindLeft, KindRight:
		m := turnRE.FindStringSubmatch(token)
		defaulted = m == nil
		l.Power = power.Cruise
		if prev != nil {
			l.Power = prev.Power
		}
		var p TurnPayload
		if m != nil && m[2] != "" {
			p.ExtraTurns, _ = strconv.Atoi(m[2])
		}
		l.Payload = p

	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	return defaulted, nil
}

func formatBearingDistance(brg int, dist float64) string {
	return itoa(brg) + "@" + strconv.FormatFloat(dist, 'f', -1, 64)
}

func itoa(n int) string { return strconv.Itoa(n) }

// distanceFromSpeedAndTime is the distance flown at speed for d.
func distanceFromSpeedAndTime(speed float64, d flighttime.Duration) float64 {
	return speed * d.Hours()
}

// roundBearing rounds and normalizes a bearing to [0, 360).
func roundBearing(b float64) float64 {
	return math.Mod(math.Round(math.Mod(b, 360))+360, 360)
}
