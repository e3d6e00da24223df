package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RoutePoint is one resolved leg endpoint for map export.
type RoutePoint struct {
	Location   Location
	Properties map[string]any
}

// RouteFeatureCollection builds a GeoJSON collection with a LineString through every
// point in order followed by one Point feature per leg carrying its properties.
// The collection's bbox covers every point.
func RouteFeatureCollection(points []RoutePoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if len(points) == 0 {
		return fc
	}

	line := make(orb.LineString, 0, len(points))
	locs := make([]Location, 0, len(points))
	for _, p := range points {
		line = append(line, orb.Point{p.Location.Lon, p.Location.Lat})
		locs = append(locs, p.Location)
	}
	if b, ok := Bounds(locs); ok {
		fc.BBox = geojson.NewBBox(b)
	}
	track := geojson.NewFeature(line)
	track.Properties["kind"] = "route"
	fc.Append(track)

	for _, p := range points {
		f := geojson.NewFeature(orb.Point{p.Location.Lon, p.Location.Lat})
		f.Properties["kind"] = "leg"
		for k, v := range p.Properties {
			f.Properties[k] = v
		}
		fc.Append(f)
	}

	return fc
}

// Bounds returns the bounding box of the points, or false when there are none.
func Bounds(points []Location) (orb.Bound, bool) {
	if len(points) == 0 {
		return orb.Bound{}, false
	}
	mp := make(orb.MultiPoint, 0, len(points))
	for _, p := range points {
		mp = append(mp, orb.Point{p.Lon, p.Lat})
	}
	return mp.Bound(), true
}
