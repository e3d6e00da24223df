package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values read as "250ms", "15s" or "1d".
type Duration time.Duration

// Day is not a time.ParseDuration unit.
const Day = 24 * time.Hour

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

var durationTermRE = regexp.MustCompile(`([0-9.]+)([a-zµ]+)`)

var durationUnits = map[string]time.Duration{
	"ns": time.Nanosecond,
	"us": time.Microsecond,
	"µs": time.Microsecond,
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  Day,
	"w":  7 * Day,
}

// ParseDuration parses a Go duration string, also accepting d and w.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if !strings.ContainsAny(s, "dw") {
		return time.ParseDuration(s)
	}

	terms := durationTermRE.FindAllStringSubmatch(s, -1)
	if len(terms) == 0 {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}

	var total time.Duration
	for _, term := range terms {
		val, err := strconv.ParseFloat(term[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in duration: %s", term[1])
		}
		base, ok := durationUnits[term[2]]
		if !ok {
			return 0, fmt.Errorf("unknown unit: %s", term[2])
		}
		total += time.Duration(val * float64(base))
	}
	return total, nil
}

// Distance is a length in meters. YAML values accept m, km, nm and ft.
type Distance float64

// Meters returns the value as a float.
func (d Distance) Meters() float64 { return float64(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Distance) UnmarshalYAML(value *yaml.Node) error {
	var f float64
	if err := value.Decode(&f); err == nil {
		*d = Distance(f)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dist, err := ParseDistance(s)
	if err != nil {
		return err
	}
	*d = Distance(dist)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Distance) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("%.1fm", float64(d)), nil
}

var distanceUnits = []struct {
	suffix string
	meters float64
}{
	{"km", 1000},
	{"nm", 1852},
	{"ft", 0.3048},
	{"m", 1},
}

// ParseDistance parses a distance string into meters. A bare number is meters.
func ParseDistance(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	mult, num := 1.0, s
	for _, u := range distanceUnits {
		if strings.HasSuffix(s, u.suffix) {
			mult, num = u.meters, strings.TrimSuffix(s, u.suffix)
			break
		}
	}

	val, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid distance number: %w", err)
	}
	return val * mult, nil
}
