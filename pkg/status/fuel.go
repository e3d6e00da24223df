package status

import (
	"fmt"
	"math"
)

// FuelReport is the fuel scoring view. While running the meter, pumped, vector,
// total and points values are estimates derived from the fuel used so far.
type FuelReport struct {
	StartFuel  float64  `json:"start_fuel"`
	FillOAT    float64  `json:"fill_oat"`
	Submitted  float64  `json:"submitted"`
	Used       float64  `json:"used"`
	PumpFactor float64  `json:"pump_factor"`
	Vector     float64  `json:"vector"`
	Meter      *float64 `json:"meter,omitempty"`
	Pumped     *float64 `json:"pumped,omitempty"`
	Total      *float64 `json:"total,omitempty"`
	Points     *float64 `json:"points,omitempty"`
	Estimate   bool     `json:"estimate"`
}

// Fuel returns the current fuel report.
func (fs *FlightStatus) Fuel() FuelReport {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.fuelReport()
}

func (fs *FlightStatus) fuelReport() FuelReport {
	r := FuelReport{
		StartFuel:  fs.startFuel,
		FillOAT:    fs.fillOAT,
		Submitted:  fs.submittedFuel,
		Used:       fs.fuelUsed,
		PumpFactor: fs.pumpFactor,
		Vector:     fs.fuelVector,
		Meter:      fs.fuelMeter,
	}
	sub := fs.submittedFuel

	switch {
	case fs.running:
		meter := fs.fuelUsed
		pumped := meter * fs.pumpFactor
		vector := 0.0
		if pumped > sub {
			vector = pumped - sub
		}
		total := pumped - vector
		points := 0.0
		if sub > 0 {
			points = math.Abs(total-sub) / sub * 100 * fs.cfg.FuelPointsPerPercent
		}
		r.Meter, r.Pumped, r.Total, r.Points = &meter, &pumped, &total, &points
		r.Vector = vector
		r.Estimate = true
	case fs.fuelMeter != nil && sub > 0:
		pumped := *fs.fuelMeter * fs.pumpFactor
		total := pumped - fs.fuelVector
		points := math.Abs(total-sub) / sub * 100 * fs.cfg.FuelPointsPerPercent
		r.Pumped, r.Total, r.Points = &pumped, &total, &points
	}
	return r
}

// ResetActualFuelForFlight clears post-flight fuel entries before a new run.
func (fs *FlightStatus) ResetActualFuelForFlight() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.fuelUsed = 0
	fs.fuelMeter = nil
	fs.fuelVector = 0
}

// SetFuelUsed records the compensated fuel used so far.
func (fs *FlightStatus) SetFuelUsed(v float64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.fuelUsed = v
}

// StartFuel returns the fuel on board at start, in gallons.
func (fs *FlightStatus) StartFuel() float64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.startFuel
}

// FillOAT returns the temperature at fill time, in °F.
func (fs *FlightStatus) FillOAT() float64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.fillOAT
}

// SetStartFuel sets the fuel on board at start, 0-2000 gallons.
func (fs *FlightStatus) SetStartFuel(v float64) error {
	if err := checkFuel(v); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.startFuel = v
	return nil
}

// SetFillOAT sets the temperature at fill time, 0-130 °F.
func (fs *FlightStatus) SetFillOAT(v float64) error {
	if err := CheckOAT(v); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.fillOAT = v
	return nil
}

// SetSubmittedFuel sets the fuel estimate submitted before the flight.
func (fs *FlightStatus) SetSubmittedFuel(v float64) error {
	if err := checkFuel(v); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.submittedFuel = v
	return nil
}

// SetFuelMeter records the pump meter reading after the flight.
func (fs *FlightStatus) SetFuelMeter(v float64) error {
	if err := checkFuel(v); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.running {
		return ErrRunning
	}
	fs.fuelMeter = &v
	return nil
}

// SetFuelVector records fuel pumped beyond the tanks' rally fill after the flight.
func (fs *FlightStatus) SetFuelVector(v float64) error {
	if err := checkFuel(v); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.running {
		return ErrRunning
	}
	fs.fuelVector = v
	return nil
}

// SetPumpFactor sets the pump calibration factor, 0.90-1.10.
func (fs *FlightStatus) SetPumpFactor(v float64) error {
	if v < 0.90 || v > 1.10 {
		return fmt.Errorf("%w: pump factor %.4f", ErrOutOfRange, v)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.pumpFactor = v
	return nil
}

func checkFuel(v float64) error {
	if v < 0 || v > 2000 {
		return fmt.Errorf("%w: fuel %.2f", ErrOutOfRange, v)
	}
	return nil
}

// CheckOAT validates an outside air temperature in °F.
func CheckOAT(v float64) error {
	if v < 0 || v > 130 {
		return fmt.Errorf("%w: temperature %.0f", ErrOutOfRange, v)
	}
	return nil
}
