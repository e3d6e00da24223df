package flightlog

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"rallynav/pkg/model"
	"rallynav/pkg/route"
)

// LegRecord is the stored form of one completed leg.
type LegRecord struct {
	Index    int       `json:"index" msgpack:"i"`
	Kind     string    `json:"kind" msgpack:"k"`
	Fix      string    `json:"fix" msgpack:"f"`
	Lat      float64   `json:"lat,omitempty" msgpack:"la,omitempty"`
	Lon      float64   `json:"lon,omitempty" msgpack:"lo,omitempty"`
	Course   float64   `json:"course" msgpack:"c"`
	Heading  float64   `json:"heading" msgpack:"h"`
	Distance float64   `json:"distance" msgpack:"d"`
	EstGS    float64   `json:"est_gs" msgpack:"eg"`
	ETE      int64     `json:"ete_sec" msgpack:"ee"`
	ActGS    float64   `json:"act_gs" msgpack:"ag"`
	ATE      int64     `json:"ate_sec" msgpack:"ae"`
	EstFuel  float64   `json:"est_fuel" msgpack:"ef"`
	ActFuel  float64   `json:"act_fuel" msgpack:"af"`
	CompFuel float64   `json:"comp_fuel" msgpack:"cf"`
	Start    time.Time `json:"start_time,omitempty" msgpack:"st,omitempty"`
	End      time.Time `json:"end_time,omitempty" msgpack:"et,omitempty"`
}

// Record is a flight log with its blobs decoded.
type Record struct {
	model.FlightLog
	LegTable []LegRecord         `json:"legs"`
	EventLog []model.FlightEvent `json:"events"`
}

func legRecords(legs []route.Leg) []LegRecord {
	out := make([]LegRecord, len(legs))
	for i := range legs {
		l := &legs[i]
		out[i] = LegRecord{
			Index:    l.Index,
			Kind:     l.Kind.String(),
			Fix:      l.FixName(),
			Course:   l.Course,
			Heading:  l.Heading,
			Distance: l.Distance,
			EstGS:    l.EstGS,
			ETE:      l.ETE.Seconds(),
			ActGS:    l.ActGS,
			ATE:      l.ATE.Seconds(),
			EstFuel:  l.EstFuel,
			ActFuel:  l.ActFuel,
			CompFuel: l.CompFuel,
			Start:    l.StartTime,
			End:      l.EndTime,
		}
		if l.HasLocation {
			out[i].Lat, out[i].Lon = l.Location.Lat, l.Location.Lon
		}
	}
	return out
}

// EncodeLegs packs the leg table for storage.
func EncodeLegs(legs []route.Leg) ([]byte, error) {
	return msgpack.Marshal(legRecords(legs))
}

// EncodeEvents packs an event log for storage.
func EncodeEvents(events []model.FlightEvent) ([]byte, error) {
	return msgpack.Marshal(events)
}

// Decode unpacks the blobs of a stored flight log.
func Decode(l *model.FlightLog) (*Record, error) {
	r := &Record{FlightLog: *l}
	if len(l.Legs) > 0 {
		if err := msgpack.Unmarshal(l.Legs, &r.LegTable); err != nil {
			return nil, fmt.Errorf("failed to decode legs: %w", err)
		}
	}
	if len(l.Events) > 0 {
		if err := msgpack.Unmarshal(l.Events, &r.EventLog); err != nil {
			return nil, fmt.Errorf("failed to decode events: %w", err)
		}
	}
	return r, nil
}
