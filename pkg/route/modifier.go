package route

import (
	"regexp"
	"strconv"
	"strings"

	"rallynav/pkg/power"
)

// modifierRE matches a whole wind (DIR@SPD), one-shot TAS (Nkts) or cruise
// class (:CRUISE, :LOW-CRUISE) token.
var modifierRE = regexp.MustCompile(`(?i)^(?:(360|3[0-5][0-9]|[0-2][0-9]{2}|[0-9]{1,2})@([0-9]{1,3})|([1-9][0-9]{1,2})kts|(:(?:LOW-)?CRUISE))$`)

// PendingLegDefaults is the modifier state applied to legs as they are
// constructed. Wind and cruise class persist until superseded; the TAS
// override is consumed by the next leg.
type PendingLegDefaults struct {
	Wind        Wind
	TASOverride float64
	LowCruise   bool
}

// IsLegModifier reports whether token is a wind, TAS or cruise modifier.
func IsLegModifier(token string) bool {
	return modifierRE.MatchString(strings.TrimSpace(token))
}

// Apply parses a modifier token into the pending defaults.
func (p *PendingLegDefaults) Apply(token string) bool {
	m := modifierRE.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return false
	}
	switch {
	case m[1] != "" && m[2] != "":
		dir, _ := strconv.Atoi(m[1])
		spd, _ := strconv.Atoi(m[2])
		p.Wind = Wind{Direction: dir % 360, Speed: spd}
	case m[3] != "":
		tas, _ := strconv.Atoi(m[3])
		p.TASOverride = float64(tas)
	case m[4] != "":
		p.LowCruise = strings.EqualFold(m[4], ":LOW-CRUISE")
	}
	return true
}

// Reset clears all pending modifiers.
func (p *PendingLegDefaults) Reset() {
	*p = PendingLegDefaults{}
}

// takeTAS returns and clears the one-shot TAS override.
func (p *PendingLegDefaults) takeTAS() float64 {
	tas := p.TASOverride
	p.TASOverride = 0
	return tas
}

func (p *PendingLegDefaults) cruiseSlot() power.Index {
	if p.LowCruise {
		return power.LowCruise
	}
	return power.Cruise
}

// TokenClass is how the route text interpreter treats a token.
type TokenClass int

const (
	TokenFix TokenClass = iota
	TokenModifier
	TokenManeuver
	TokenRallyFix
)

var maneuverKeywords = map[string]LegKind{
	"TAXI":    KindTaxi,
	"RUNUP":   KindRunup,
	"TAKEOFF": KindTakeoff,
	"CLIMB":   KindClimb,
	"PATTERN": KindPattern,
	"LEFT":    KindLeft,
	"RIGHT":   KindRight,
}

var rallyFixRE = regexp.MustCompile(`(?i)^([0-9a-z.]{1,15})\|(START|TIMING)$`)

// Classify sorts a route text token.
func Classify(token string) TokenClass {
	switch {
	case IsLegModifier(token):
		return TokenModifier
	case maneuverKind(token) >= 0:
		return TokenManeuver
	case rallyFixRE.MatchString(token):
		return TokenRallyFix
	default:
		return TokenFix
	}
}

// RallyFixName returns the waypoint a FIX|START or FIX|TIMING token is anchored to.
func RallyFixName(token string) (string, bool) {
	m := rallyFixRE.FindStringSubmatch(token)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

// maneuverKind returns the kind named by the token's first |-separated
// field, or -1.
func maneuverKind(token string) LegKind {
	head, _, _ := strings.Cut(token, "|")
	if k, ok := maneuverKeywords[strings.ToUpper(head)]; ok {
		return k
	}
	return -1
}
