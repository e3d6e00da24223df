package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 5 * time.Second

// CheckFunc is a function that performs a health check.
// It returns nil if the check passes, or an error if it fails.
type CheckFunc func(ctx context.Context) error

// Probe represents a single startup check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool // If true, a failure here should prevent application startup.
}

// Result holds the outcome of a single probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Run executes the probes concurrently, each under its own timeout, and
// returns their results in input order.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))

	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			start := time.Now()
			checkCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
			defer cancel()

			err := p.Check(checkCtx)
			results[i] = Result{Probe: p, Error: err, Duration: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// AnalyzeResults logs every result and returns the joined errors of failed critical probes.
func AnalyzeResults(results []Result) error {
	var criticalErrors []error

	slog.Info("Startup Checks Summary")

	for _, r := range results {
		status := "PASS"
		if r.Error != nil {
			status = "FAIL"
		}

		msg := fmt.Sprintf("[%s] %-20s (%v)", status, r.Probe.Name, r.Duration.Round(time.Millisecond))

		if r.Error != nil {
			slog.Error(msg, "error", r.Error)
			if r.Probe.Critical {
				criticalErrors = append(criticalErrors, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
			}
		} else {
			slog.Info(msg)
		}
	}

	if len(criticalErrors) > 0 {
		return errors.Join(criticalErrors...)
	}

	return nil
}
