package probe

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rallynav/pkg/config"
)

func TestRun(t *testing.T) {
	probes := []Probe{
		{Name: "Success Probe", Check: func(context.Context) error { return nil }, Critical: true},
		{Name: "Failure Probe (Non-Critical)", Check: func(context.Context) error { return errors.New("minor issue") }},
		{Name: "Slow Probe", Check: func(ctx context.Context) error {
			time.Sleep(20 * time.Millisecond)
			return ctx.Err()
		}},
	}

	results := Run(context.Background(), probes)

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Error)
	assert.Error(t, results[1].Error)
	assert.NoError(t, results[2].Error)
	assert.Equal(t, "Slow Probe", results[2].Probe.Name, "results keep input order")
	assert.GreaterOrEqual(t, results[2].Duration, 20*time.Millisecond)
}

func TestAnalyzeResults(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		wantErr bool
	}{
		{
			name:    "All Pass",
			results: []Result{{Probe: Probe{Name: "P1", Critical: true}}},
		},
		{
			name:    "Critical Failure",
			results: []Result{{Probe: Probe{Name: "P1", Critical: true}, Error: errors.New("fail")}},
			wantErr: true,
		},
		{
			name:    "Non-Critical Failure",
			results: []Result{{Probe: Probe{Name: "P1"}, Error: errors.New("fail")}},
		},
		{
			name: "Mixed Failure",
			results: []Result{
				{Probe: Probe{Name: "P1"}, Error: errors.New("fail")},
				{Probe: Probe{Name: "P2", Critical: true}, Error: errors.New("fail")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AnalyzeResults(tt.results)
			assert.Equal(t, tt.wantErr, err != nil, "error = %v", err)
		})
	}
}

type countFunc func() (int, error)

func (f countFunc) CountFAAWaypoints(context.Context) (int, error) { return f() }

func TestReferenceWaypoints(t *testing.T) {
	tests := []struct {
		name    string
		count   countFunc
		wantErr bool
	}{
		{"loaded", func() (int, error) { return 1200, nil }, false},
		{"empty", func() (int, error) { return 0, nil }, true},
		{"store error", func() (int, error) { return 0, errors.New("locked") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ReferenceWaypoints(tt.count)
			assert.False(t, p.Critical)
			assert.Equal(t, tt.wantErr, p.Check(context.Background()) != nil)
		})
	}
}

func TestAircraftProfile(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.NoError(t, AircraftProfile(&cfg.Aircraft).Check(context.Background()))

	cfg.Aircraft.Active = "N00000"
	assert.Error(t, AircraftProfile(&cfg.Aircraft).Check(context.Background()))
}

func TestGPSD(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		if c, err := ln.Accept(); err == nil {
			c.Close()
		}
	}()

	cfg := config.DefaultConfig().Position
	cfg.Provider = "gpsd"
	cfg.GPSD.Address = ln.Addr().String()
	assert.NoError(t, GPSD(&cfg).Check(context.Background()))

	cfg.Provider = "mock"
	cfg.GPSD.Address = "127.0.0.1:1"
	assert.NoError(t, GPSD(&cfg).Check(context.Background()), "mock provider skips the check")
}
