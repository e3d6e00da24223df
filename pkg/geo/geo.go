package geo

import (
	"math"
)

// Earth radii in the two supported distance units.
const (
	EarthRadiusNM    = 3440.0
	EarthRadiusMiles = 3959.0
)

// DefaultMagneticVariation is the fixed variation applied to every bearing.
// It is a constant for the local flying area, not a model.
const DefaultMagneticVariation = -14.0

// Location represents a geographic coordinate in decimal degrees.
type Location struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Sphere holds the earth model used for all navigation math: the radius
// selects the distance unit and MagVar converts true bearings to magnetic.
type Sphere struct {
	Radius float64
	MagVar float64
}

// NauticalSphere returns a sphere measuring distances in nautical miles.
func NauticalSphere(magVar float64) Sphere {
	return Sphere{Radius: EarthRadiusNM, MagVar: magVar}
}

// StatuteSphere returns a sphere measuring distances in statute miles.
func StatuteSphere(magVar float64) Sphere {
	return Sphere{Radius: EarthRadiusMiles, MagVar: magVar}
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180.0 }
func toDegrees(rad float64) float64 { return rad * 180.0 / math.Pi }

// Distance calculates the haversine distance between two points in the sphere's unit.
func (s Sphere) Distance(a, b Location) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h a hair outside [0,1] for identical or antipodal points
	h = math.Max(0, math.Min(1, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return s.Radius * c
}

// BearingFrom returns the magnetic bearing of the course from `from` to `to`, in [0,360).
func (s Sphere) BearingFrom(to, from Location) float64 {
	lat1 := toRadians(from.Lat)
	lat2 := toRadians(to.Lat)
	dLon := toRadians(to.Lon - from.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return NormalizeBearing(toDegrees(math.Atan2(y, x)) + s.MagVar)
}

// BearingTo returns the magnetic bearing of the course from `from` to `to`.
// It is BearingFrom with the arguments in travel order.
func (s Sphere) BearingTo(from, to Location) float64 {
	return s.BearingFrom(to, from)
}

// LocationFrom projects a destination from start along a magnetic bearing for dist units.
func (s Sphere) LocationFrom(start Location, bearing, dist float64) Location {
	lat1 := toRadians(start.Lat)
	lon1 := toRadians(start.Lon)
	brng := toRadians(bearing - s.MagVar)
	ang := dist / s.Radius

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(ang) + math.Cos(lat1)*math.Sin(ang)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(math.Sin(brng)*math.Sin(ang)*math.Cos(lat1),
		math.Cos(ang)-math.Sin(lat1)*math.Sin(lat2))

	return Location{
		Lat: toDegrees(lat2),
		Lon: NormalizeAngle(toDegrees(lon2)),
	}
}

// NormalizeBearing reduces a bearing to [0,360).
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// NormalizeAngle normalizes an angle difference to the range [-180, 180].
func NormalizeAngle(angleDeg float64) float64 {
	for angleDeg > 180 {
		angleDeg -= 360
	}
	for angleDeg < -180 {
		angleDeg += 360
	}
	return angleDeg
}
