package probe

import (
	"context"
	"errors"
	"fmt"
	"net"

	"rallynav/pkg/config"
	"rallynav/pkg/power"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ReferenceCounter reports how many reference waypoints are loaded.
type ReferenceCounter interface {
	CountFAAWaypoints(ctx context.Context) (int, error)
}

// Database checks the database answers.
func Database(p Pinger) Probe {
	return Probe{
		Name:     "Database",
		Critical: true,
		Check:    p.PingContext,
	}
}

// ReferenceWaypoints warns when no FAA waypoints have been imported.
func ReferenceWaypoints(c ReferenceCounter) Probe {
	return Probe{
		Name: "Reference waypoints",
		Check: func(ctx context.Context) error {
			n, err := c.CountFAAWaypoints(ctx)
			if err != nil {
				return err
			}
			if n == 0 {
				return errors.New("no reference waypoints imported, only user waypoints will resolve")
			}
			return nil
		},
	}
}

// AircraftProfile checks the active profile defines every power slot.
func AircraftProfile(cfg *config.AircraftConfig) Probe {
	return Probe{
		Name:     "Aircraft profile",
		Critical: true,
		Check: func(context.Context) error {
			_, err := power.FromConfig(cfg)
			return err
		},
	}
}

// GPSD checks the gpsd socket accepts connections. Skipped for the mock provider.
func GPSD(cfg *config.PositionConfig) Probe {
	return Probe{
		Name: "gpsd",
		Check: func(ctx context.Context) error {
			if cfg.Provider != "gpsd" {
				return nil
			}
			var d net.Dialer
			conn, err := d.DialContext(ctx, "tcp", cfg.GPSD.Address)
			if err != nil {
				return fmt.Errorf("gpsd not reachable at %s: %w", cfg.GPSD.Address, err)
			}
			return conn.Close()
		},
	}
}
