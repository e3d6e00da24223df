package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	s := NauticalSphere(0)

	tests := []struct {
		name string
		p1   Location
		p2   Location
		want float64
	}{
		{
			name: "Same Point",
			p1:   Location{Lat: 37.3, Lon: -121.8},
			p2:   Location{Lat: 37.3, Lon: -121.8},
			want: 0,
		},
		{
			name: "Equator 1 degree",
			p1:   Location{Lat: 0, Lon: 0},
			p2:   Location{Lat: 0, Lon: 1},
			want: 60.04, // 3440 * pi / 180
		},
		{
			name: "One degree of latitude",
			p1:   Location{Lat: 36, Lon: -120},
			p2:   Location{Lat: 37, Lon: -120},
			want: 60.04,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Distance(tt.p1, tt.p2)
			assert.InDelta(t, tt.want, got, 0.01)
			assert.False(t, math.IsNaN(got))
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	s := StatuteSphere(DefaultMagneticVariation)
	pts := []Location{
		{Lat: 36.68471, Lon: -120.50277},
		{Lat: 36.77774, Lon: -120.72426},
		{Lat: 37.05665, Lon: -120.96990},
		{Lat: -33.9, Lon: 151.2},
	}
	for i := range pts {
		for j := range pts {
			ab := s.Distance(pts[i], pts[j])
			ba := s.Distance(pts[j], pts[i])
			assert.InDelta(t, ab, ba, 1e-9)
			if i == j {
				assert.Zero(t, ab)
			} else {
				assert.Greater(t, ab, 0.0)
			}
		}
	}
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name   string
		magVar float64
		from   Location
		to     Location
		want   float64
	}{
		{"North true", 0, Location{Lat: 0, Lon: 0}, Location{Lat: 1, Lon: 0}, 0},
		{"East true", 0, Location{Lat: 0, Lon: 0}, Location{Lat: 0, Lon: 1}, 90},
		{"South true", 0, Location{Lat: 1, Lon: 0}, Location{Lat: 0, Lon: 0}, 180},
		{"West true", 0, Location{Lat: 0, Lon: 1}, Location{Lat: 0, Lon: 0}, 270},
		{"North with variation", -14, Location{Lat: 0, Lon: 0}, Location{Lat: 1, Lon: 0}, 346},
		{"East with variation", -14, Location{Lat: 0, Lon: 0}, Location{Lat: 0, Lon: 1}, 76},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NauticalSphere(tt.magVar)
			got := s.BearingFrom(tt.to, tt.from)
			assert.InDelta(t, tt.want, got, 1e-6)
			assert.InDelta(t, tt.want, s.BearingTo(tt.from, tt.to), 1e-6)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 360.0)
		})
	}
}

func TestLocationFrom_RoundTrip(t *testing.T) {
	s := NauticalSphere(DefaultMagneticVariation)
	pairs := [][2]Location{
		{{Lat: 36.68471, Lon: -120.50277}, {Lat: 37.05665, Lon: -120.96990}},
		{{Lat: 37.01419, Lon: -120.92878}, {Lat: 36.77774, Lon: -120.72426}},
		{{Lat: 45, Lon: 10}, {Lat: 45.5, Lon: 11}},
	}

	for _, p := range pairs {
		a, b := p[0], p[1]
		// Bearing of the course from B to A, projected from B, lands on A.
		brg := s.BearingFrom(a, b)
		dist := s.Distance(a, b)
		got := s.LocationFrom(b, brg, dist)
		assert.InDelta(t, a.Lat, got.Lat, 1e-4)
		assert.InDelta(t, a.Lon, got.Lon, 1e-4)
	}
}

func TestLocationFrom_ZeroDistance(t *testing.T) {
	s := NauticalSphere(DefaultMagneticVariation)
	start := Location{Lat: 36.5, Lon: -120.5}
	got := s.LocationFrom(start, 123, 0)
	assert.InDelta(t, start.Lat, got.Lat, 1e-9)
	assert.InDelta(t, start.Lon, got.Lon, 1e-9)
}

func TestNormalizeBearing(t *testing.T) {
	assert.InDelta(t, 350.0, NormalizeBearing(-10), 1e-9)
	assert.InDelta(t, 0.0, NormalizeBearing(360), 1e-9)
	assert.InDelta(t, 10.0, NormalizeBearing(730), 1e-9)
}
