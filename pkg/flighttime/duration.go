// Package flighttime provides the signed whole-second duration used for
// enroute times, remaining times and ETA deltas.
package flighttime

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// Duration is a signed number of whole seconds.
type Duration int64

// Pattern is the accepted text form: S, M:SS or H:MM:SS.
const Pattern = `([0-9][0-9]?)(?::([0-5][0-9]))?(?::([0-5][0-9]))?`

var timeRE = regexp.MustCompile(`^` + Pattern + `$`)

// Seconds returns a Duration of n seconds, rounded to the nearest whole second.
func Seconds(n float64) Duration {
	return Duration(math.Round(n))
}

// Parse reads "S", "M:SS" or "H:MM:SS". Text that does not match yields zero
// and false so callers can tell a real zero from a fallback.
func Parse(s string) (Duration, bool) {
	m := timeRE.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	first, _ := strconv.Atoi(m[1])
	switch {
	case m[3] != "":
		minutes, _ := strconv.Atoi(m[2])
		seconds, _ := strconv.Atoi(m[3])
		return Duration((first*60+minutes)*60 + seconds), true
	case m[2] != "":
		seconds, _ := strconv.Atoi(m[2])
		return Duration(first*60 + seconds), true
	default:
		return Duration(first), true
	}
}

// MustParse is Parse for compile-time constants; it panics on bad input.
func MustParse(s string) Duration {
	d, ok := Parse(s)
	if !ok {
		panic(fmt.Sprintf("flighttime: invalid duration %q", s))
	}
	return d
}

// Between returns t2 - t1 with each instant rounded to the nearest whole second first.
func Between(t2, t1 time.Time) Duration {
	return Duration(roundedUnix(t2) - roundedUnix(t1))
}

func roundedUnix(t time.Time) int64 {
	ms := t.UnixMilli()
	return int64(math.Floor(float64(ms+500) / 1000))
}

// Add returns d + o.
func (d Duration) Add(o Duration) Duration {
	return d + o
}

// AddTo returns the instant d after t.
func (d Duration) AddTo(t time.Time) time.Time {
	return t.Add(time.Duration(d) * time.Second)
}

// Seconds returns the whole-second count.
func (d Duration) Seconds() int64 {
	return int64(d)
}

// Minutes returns the fractional minute count.
func (d Duration) Minutes() float64 {
	return float64(d) / 60
}

// Hours returns the fractional hour count.
func (d Duration) Hours() float64 {
	return float64(d) / 3600
}

// Abs returns the magnitude of d.
func (d Duration) Abs() Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Std converts to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d) * time.Second
}

// String formats as [-][H:]M:SS; minutes are zero-padded only when hours are shown.
func (d Duration) String() string {
	sign := ""
	v := int64(d)
	if v < 0 {
		sign = "-"
		v = -v
	}
	hours := v / 3600
	minutes := (v / 60) % 60
	seconds := v % 60

	if hours > 0 {
		return fmt.Sprintf("%s%d:%02d:%02d", sign, hours, minutes, seconds)
	}
	return fmt.Sprintf("%s%d:%02d", sign, minutes, seconds)
}

// MarshalJSON encodes the duration as its display string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts either a display string or a number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Seconds(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	v, ok := Parse(s)
	if !ok {
		return fmt.Errorf("invalid duration %q", s)
	}
	if neg {
		v = -v
	}
	*d = v
	return nil
}
