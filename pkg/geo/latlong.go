package geo

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Accepted forms: N37 42.874 (degrees decimal-minutes), N37.30697 (decimal),
// N37 18" 27' (degrees minutes seconds). A leading '-' means south/west.
var (
	latRE = regexp.MustCompile(`(?i)^([NS\-])?(90|[0-8]?\d)(?:( [0-5]?\d\.\d{0,3})'?|(\.\d{0,6})|( ([0-5]?\d)" ?([0-5]?\d)'?))?`)
	lonRE = regexp.MustCompile(`(?i)^([EW\-]?)(180|(?:1[0-7]|\d)?\d)(?:( [0-5]?\d\.\d{0,3})|(\.\d{0,6})|( ([0-5]?\d)" ?([0-5]?\d)'?)?)`)
)

// ParseLatitude parses latitude text into decimal degrees.
// The bool is false when the text did not match and zero was returned.
func ParseLatitude(s string) (float64, bool) {
	return parseCoordinate(latRE, s, "S", 90)
}

// ParseLongitude parses longitude text into decimal degrees.
// The bool is false when the text did not match and zero was returned.
func ParseLongitude(s string) (float64, bool) {
	return parseCoordinate(lonRE, s, "W", 180)
}

func parseCoordinate(re *regexp.Regexp, s, negHemisphere string, limit float64) (float64, bool) {
	m := re.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}

	sign := 1.0
	if strings.EqualFold(m[1], negHemisphere) || m[1] == "-" {
		sign = -1
	}

	result, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, false
	}

	if result != limit {
		switch {
		case m[3] != "":
			minutes, _ := strconv.ParseFloat(strings.TrimSpace(m[3]), 64)
			result += minutes / 60
		case m[4] != "":
			frac, _ := strconv.ParseFloat("0"+m[4], 64)
			result += frac
		case m[5] != "":
			minutes, _ := strconv.ParseFloat(m[6], 64)
			seconds, _ := strconv.ParseFloat(m[7], 64)
			result += (minutes + seconds/60) / 60
		}
	}

	return result * sign, true
}

// LatitudeString formats the latitude as hemisphere, degrees and decimal minutes, e.g. N37°42.874'.
func (l Location) LatitudeString() string {
	return formatCoordinate(l.Lat, "N", "S")
}

// LongitudeString formats the longitude as hemisphere, degrees and decimal minutes, e.g. W121°53.254'.
func (l Location) LongitudeString() string {
	return formatCoordinate(l.Lon, "E", "W")
}

func (l Location) String() string {
	return l.LatitudeString() + " " + l.LongitudeString()
}

func formatCoordinate(v float64, pos, neg string) string {
	prefix := pos
	if v < 0 {
		v = -v
		prefix = neg
	}
	deg := math.Floor(v)
	minutes := (v - deg) * 60
	filler := ""
	if minutes < 10 {
		filler = " "
	}
	return fmt.Sprintf("%s%d°%s%.3f'", prefix, int(deg), filler, minutes)
}
