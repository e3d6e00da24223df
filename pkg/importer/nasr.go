// Package importer reads reference waypoints from FAA NASR fixed-column
// files and ESRI point shapefiles.
package importer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"rallynav/pkg/model"
)

// NASR file names inside an unzipped subscription.
const (
	AirportFile = "APT.txt"
	NavaidFile  = "NAV.txt"
	FixFile     = "FIX.txt"
)

// Only VORs; NDB idents collide with VOR idents.
var navaidsToInclude = map[string]bool{"VOR": true}

var latLongRE = regexp.MustCompile(`^\s*(\d+)-(\d{2})-(\d{2}\.\d{3,8})([NS])\s*(\d+)-(\d{2})-(\d{2}\.\d{3,8})([EW])`)

var titleCase = cases.Title(language.English)

// Filter selects the states whose records are imported.
type Filter struct {
	abbrevs map[string]bool
	names   map[string]bool
}

// NewFilter builds a filter from two-letter state abbreviations.
// FIX records carry full state names, so each abbreviation is expanded.
func NewFilter(states []string) (Filter, error) {
	f := Filter{abbrevs: map[string]bool{}, names: map[string]bool{}}
	for _, s := range states {
		abbr := strings.ToUpper(strings.TrimSpace(s))
		name, ok := stateNames[abbr]
		if !ok {
			return Filter{}, fmt.Errorf("unknown state %q", s)
		}
		f.abbrevs[abbr] = true
		f.names[name] = true
	}
	return f, nil
}

// field returns the trimmed [from:to) column range, clamped to the line.
func field(line string, from, to int) string {
	if from >= len(line) {
		return ""
	}
	if to > len(line) {
		to = len(line)
	}
	return strings.TrimSpace(line[from:to])
}

// raw is field without trimming, for columns whose padding matters.
func raw(line string, from, to int) string {
	if from >= len(line) {
		return ""
	}
	if to > len(line) {
		to = len(line)
	}
	return line[from:to]
}

// ParseLatLongDMS parses a NASR "DD-MM-SS.ssssN DDD-MM-SS.ssssW" pair.
func ParseLatLongDMS(s string) (lat, lon float64, err error) {
	m := latLongRE.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("malformed coordinates %q", strings.TrimSpace(s))
	}
	dms := func(d, mm, ss string) float64 {
		deg, _ := strconv.ParseFloat(d, 64)
		mins, _ := strconv.ParseFloat(mm, 64)
		secs, _ := strconv.ParseFloat(ss, 64)
		return deg + (mins*60+secs)/3600
	}
	lat = dms(m[1], m[2], m[3])
	if m[4] == "S" {
		lat = -lat
	}
	lon = dms(m[5], m[6], m[7])
	if m[8] == "W" {
		lon = -lon
	}
	return lat, lon, nil
}

// ParseAirports reads APT records. The name is the ICAO id, falling back to the FAA LID.
func ParseAirports(r io.Reader, f Filter) ([]model.Waypoint, error) {
	return scan(r, func(line string) (model.Waypoint, bool, error) {
		if raw(line, 0, 3) != "APT" {
			return model.Waypoint{}, false, nil
		}
		state := raw(line, 48, 50)
		if !f.abbrevs[state] {
			return model.Waypoint{}, false, nil
		}

		lat, lon, err := ParseLatLongDMS(raw(line, 523, 538) + raw(line, 550, 565))
		if err != nil {
			return model.Waypoint{}, false, err
		}
		facilityType := titleCase.String(field(line, 14, 27))
		name := field(line, 1210, 1217)
		if name == "" {
			name = field(line, 27, 31)
		}
		desc := titleCase.String(field(line, 133, 183)) + " " + facilityType + ", " +
			titleCase.String(field(line, 93, 133)) + ", " + state

		return model.Waypoint{
			Name:        name,
			Type:        facilityType,
			Description: desc,
			State:       state,
			Lat:         lat,
			Lon:         lon,
			Source:      "faa",
		}, true, nil
	})
}

// ParseNavaids reads NAV1 records for VOR class facilities.
func ParseNavaids(r io.Reader, f Filter) ([]model.Waypoint, error) {
	return scan(r, func(line string) (model.Waypoint, bool, error) {
		if raw(line, 0, 4) != "NAV1" {
			return model.Waypoint{}, false, nil
		}
		state := raw(line, 142, 144)
		if !f.abbrevs[state] || !navaidsToInclude[raw(line, 8, 11)] {
			return model.Waypoint{}, false, nil
		}

		lat, lon, err := ParseLatLongDMS(raw(line, 371, 385) + raw(line, 396, 410))
		if err != nil {
			return model.Waypoint{}, false, err
		}
		facilityType := field(line, 8, 28)

		return model.Waypoint{
			Name:        field(line, 4, 8),
			Type:        facilityType,
			Description: titleCase.String(field(line, 42, 72)) + " " + facilityType,
			State:       state,
			Lat:         lat,
			Lon:         lon,
			Source:      "faa",
		}, true, nil
	})
}

// ParseFixes reads FIX1 records with alphabetic names.
func ParseFixes(r io.Reader, f Filter) ([]model.Waypoint, error) {
	return scan(r, func(line string) (model.Waypoint, bool, error) {
		if raw(line, 0, 4) != "FIX1" {
			return model.Waypoint{}, false, nil
		}
		state := field(line, 34, 64)
		if !f.names[state] {
			return model.Waypoint{}, false, nil
		}
		if len(line) <= 4 || line[4] < 'A' || line[4] > 'Z' {
			return model.Waypoint{}, false, nil
		}

		lat, lon, err := ParseLatLongDMS(raw(line, 66, 80) + raw(line, 80, 94))
		if err != nil {
			return model.Waypoint{}, false, err
		}
		name := field(line, 4, 34)

		return model.Waypoint{
			Name:        name,
			Type:        model.WaypointTypeIntersection,
			Description: name + " Intersection",
			State:       state,
			Lat:         lat,
			Lon:         lon,
			Source:      "faa",
		}, true, nil
	})
}

func scan(r io.Reader, parse func(line string) (model.Waypoint, bool, error)) ([]model.Waypoint, error) {
	var out []model.Waypoint
	sc := bufio.NewScanner(r)
	// APT records are 1529 columns wide
	sc.Buffer(make([]byte, 0, 4096), 1<<20)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		w, ok, err := parse(sc.Text())
		if err != nil {
			return out, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if ok {
			out = append(out, w)
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("failed to read line %d: %w", lineNo+1, err)
	}
	return out, nil
}

// ParseDir reads APT.txt, NAV.txt and FIX.txt from an unzipped subscription.
// Missing files are skipped.
func ParseDir(dir string, f Filter) ([]model.Waypoint, error) {
	parsers := []struct {
		file  string
		parse func(io.Reader, Filter) ([]model.Waypoint, error)
	}{
		{AirportFile, ParseAirports},
		{NavaidFile, ParseNavaids},
		{FixFile, ParseFixes},
	}

	var all []model.Waypoint
	for _, p := range parsers {
		path := filepath.Join(dir, p.file)
		fh, err := os.Open(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", p.file, err)
		}
		ws, err := p.parse(fh, f)
		fh.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", p.file, err)
		}
		all = append(all, ws...)
	}
	return all, nil
}

// LatestModTime returns the newest modification time of the NASR files in dir
// as an RFC3339 string, or "" when none exist.
func LatestModTime(dir string) string {
	var latest string
	for _, name := range []string{AirportFile, NavaidFile, FixFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		mt := info.ModTime().UTC().Format("2006-01-02T15:04:05Z07:00")
		if mt > latest {
			latest = mt
		}
	}
	return latest
}

var stateNames = map[string]string{
	"AL": "ALABAMA", "AK": "ALASKA", "AZ": "ARIZONA", "AR": "ARKANSAS", "CA": "CALIFORNIA",
	"CO": "COLORADO", "CT": "CONNECTICUT", "DE": "DELAWARE", "DC": "DISTRICT OF COLUMBIA",
	"FL": "FLORIDA", "GA": "GEORGIA", "HI": "HAWAII", "ID": "IDAHO", "IL": "ILLINOIS",
	"IN": "INDIANA", "IA": "IOWA", "KS": "KANSAS", "KY": "KENTUCKY", "LA": "LOUISIANA",
	"ME": "MAINE", "MD": "MARYLAND", "MA": "MASSACHUSETTS", "MI": "MICHIGAN", "MN": "MINNESOTA",
	"MS": "MISSISSIPPI", "MO": "MISSOURI", "MT": "MONTANA", "NE": "NEBRASKA", "NV": "NEVADA",
	"NH": "NEW HAMPSHIRE", "NJ": "NEW JERSEY", "NM": "NEW MEXICO", "NY": "NEW YORK",
	"NC": "NORTH CAROLINA", "ND": "NORTH DAKOTA", "OH": "OHIO", "OK": "OKLAHOMA", "OR": "OREGON",
	"PA": "PENNSYLVANIA", "RI": "RHODE ISLAND", "SC": "SOUTH CAROLINA", "SD": "SOUTH DAKOTA",
	"TN": "TENNESSEE", "TX": "TEXAS", "UT": "UTAH", "VT": "VERMONT", "VA": "VIRGINIA",
	"WA": "WASHINGTON", "WV": "WEST VIRGINIA", "WI": "WISCONSIN", "WY": "WYOMING",
	"PR": "PUERTO RICO",
}
