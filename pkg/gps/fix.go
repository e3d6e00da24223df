package gps

import (
	"time"

	"rallynav/pkg/geo"
)

// Fix is one position report.
type Fix struct {
	Time     time.Time `json:"time"`
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Speed    float64   `json:"speed"`    // m/s
	Track    float64   `json:"track"`    // degrees true, 0 when unknown
	Altitude float64   `json:"altitude"` // meters, 0 when unknown
	Accuracy float64   `json:"accuracy"` // meters, 0 when unknown
}

// Location returns the fix position.
func (f *Fix) Location() geo.Location {
	return geo.Location{Lat: f.Lat, Lon: f.Lon}
}
