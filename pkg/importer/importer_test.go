package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// record lays out fixed-column values on a blank line of the given width.
func record(width int, cols map[int]string) string {
	b := []byte(strings.Repeat(" ", width))
	for at, v := range cols {
		copy(b[at:], v)
	}
	return string(b)
}

func aptLine(state, lid, icao string) string {
	return record(1529, map[int]string{
		0:    "APT",
		14:   "AIRPORT",
		27:   lid,
		48:   state,
		93:   "MERCED",
		133:  "MERCED RGNL/MACREADY FLD",
		523:  "37-17-05.1000N",
		550:  "120-30-50.4000W",
		1210: icao,
	})
}

func navLine(state, ident, class string) string {
	return record(500, map[int]string{
		0:   "NAV1",
		4:   ident,
		8:   class,
		42:  "PANOCHE",
		142: state,
		371: "36-42-55.000N",
		396: "120-46-41.000W",
	})
}

func fixLine(name, state string) string {
	return record(100, map[int]string{
		0:  "FIX1",
		4:  name,
		34: state,
		66: "37-42-00.000N",
		80: "121-36-00.000W",
	})
}

func TestParseLatLongDMS(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		lat     float64
		lon     float64
		wantErr bool
	}{
		{"north west", "37-17-05.1000N120-30-50.4000W", 37.28475, -120.514, false},
		{"south east spaced", " 33-30-00.000S 151-15-00.000E", -33.5, 151.25, false},
		{"garbage", "not a coordinate", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon, err := ParseLatLongDMS(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.lat, lat, 1e-6)
			assert.InDelta(t, tt.lon, lon, 1e-6)
		})
	}
}

func TestParseAirports(t *testing.T) {
	f, err := NewFilter([]string{"ca", "NV"})
	require.NoError(t, err)

	in := strings.Join([]string{
		aptLine("CA", "MCE", "KMCE"),
		aptLine("CA", "O27", ""),
		aptLine("TX", "DFW", "KDFW"),
		"ATT   not an airport record",
	}, "\n")

	ws, err := ParseAirports(strings.NewReader(in), f)
	require.NoError(t, err)
	require.Len(t, ws, 2)

	assert.Equal(t, "KMCE", ws[0].Name)
	assert.Equal(t, "Airport", ws[0].Type)
	assert.Equal(t, "Merced Rgnl/Macready Fld Airport, Merced, CA", ws[0].Description)
	assert.InDelta(t, 37.28475, ws[0].Lat, 1e-6)
	assert.Equal(t, "O27", ws[1].Name, "falls back to the LID without an ICAO id")
}

func TestParseNavaids(t *testing.T) {
	f, err := NewFilter([]string{"CA"})
	require.NoError(t, err)

	in := strings.Join([]string{
		navLine("CA", "PXN", "VORTAC"),
		navLine("CA", "XX", "NDB"),
		navLine("OR", "EUG", "VOR/DME"),
	}, "\n")

	ws, err := ParseNavaids(strings.NewReader(in), f)
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, "PXN", ws[0].Name)
	assert.Equal(t, "VORTAC", ws[0].Type)
	assert.Equal(t, "Panoche VORTAC", ws[0].Description)
}

func TestParseFixes(t *testing.T) {
	f, err := NewFilter([]string{"CA"})
	require.NoError(t, err)

	in := strings.Join([]string{
		fixLine("ALTAM", "CALIFORNIA"),
		fixLine("12345", "CALIFORNIA"),
		fixLine("BOBBY", "NEVADA"),
	}, "\n")

	ws, err := ParseFixes(strings.NewReader(in), f)
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, "ALTAM", ws[0].Name)
	assert.Equal(t, "ALTAM Intersection", ws[0].Description)
	assert.Equal(t, "CALIFORNIA", ws[0].State)
}

func TestParse_BadCoordinates(t *testing.T) {
	f, _ := NewFilter([]string{"CA"})
	line := record(100, map[int]string{0: "FIX1", 4: "ALTAM", 34: "CALIFORNIA", 66: "garbage"})
	_, err := ParseFixes(strings.NewReader(line), f)
	assert.ErrorContains(t, err, "line 1")
}

func TestNewFilter_UnknownState(t *testing.T) {
	_, err := NewFilter([]string{"CA", "XX"})
	assert.Error(t, err)
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, LatestModTime(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, AirportFile), []byte(aptLine("CA", "MCE", "KMCE")+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FixFile), []byte(fixLine("ALTAM", "CALIFORNIA")+"\n"), 0o644))

	f, _ := NewFilter([]string{"CA"})
	ws, err := ParseDir(dir, f)
	require.NoError(t, err)
	require.Len(t, ws, 2, "missing NAV.txt is skipped")
	assert.NotEmpty(t, LatestModTime(dir))
}

func TestParseShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "landmarks.shp")

	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("NAME", 20),
		shp.StringField("DESC", 40),
	}))
	points := []struct {
		x, y       float64
		name, desc string
	}{
		{-120.5, 36.7, "oil tank", "White tank"},
		{-120.9, 37.0, "", "unnamed"},
	}
	for _, p := range points {
		n := w.Write(&shp.Point{X: p.x, Y: p.y})
		require.NoError(t, w.WriteAttribute(int(n), 0, p.name))
		require.NoError(t, w.WriteAttribute(int(n), 1, p.desc))
	}
	w.Close()
	// The writer names the table "landmarksdbf"; readers expect "landmarks.dbf".
	base := strings.TrimSuffix(path, ".shp")
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))

	ws, err := ParseShapefile(path, "name")
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, "OIL TANK", ws[0].Name)
	assert.Equal(t, "White tank", ws[0].Description)
	assert.InDelta(t, 36.7, ws[0].Lat, 1e-9)

	_, err = ParseShapefile(path, "IDENT")
	assert.Error(t, err)
}

func TestDBFText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"NAME\x00\x00\x00\x00\x00\x00\x00", "NAME"},
		{"oil tank   ", "oil tank"},
		{"\x00\x00\x00", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dbfText(tt.in))
	}
}
