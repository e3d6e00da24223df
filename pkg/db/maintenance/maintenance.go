package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"rallynav/pkg/config"
	"rallynav/pkg/db"
	"rallynav/pkg/importer"
	"rallynav/pkg/model"
	"rallynav/pkg/store"
	"rallynav/pkg/waypoint"
)

const (
	seededStateKey    = "user_waypoints_seeded"
	nasrStateKey      = "nasr_mtime"
	shapefileStateKey = "shapefile_mtime"
)

// Run executes all maintenance tasks: seeding, reference imports and pruning.
// Failures are logged and never stop startup. It blocks until completion.
func Run(ctx context.Context, s store.Store, d *db.DB, cfg *config.Config) error {
	slog.Info("Starting database maintenance...")

	if n, err := seedUserWaypoints(ctx, s, cfg.Waypoints.UserSeed); err != nil {
		slog.Error("User waypoint seeding failed", "error", err)
	} else if n > 0 {
		slog.Info("Seeded user waypoints", "count", n)
	}

	if err := importNASR(ctx, s, cfg.Import.NASRDir, cfg.Import.States, false); err != nil {
		slog.Error("NASR import failed", "error", err)
	}

	if err := importShapefile(ctx, s, cfg.Import.Shapefile, cfg.Import.NameField); err != nil {
		slog.Error("Shapefile import failed", "error", err)
	}

	if n, err := d.PruneFlightLogs(cfg.DB.FlightLogRetention.Std()); err != nil {
		slog.Error("Flight log pruning failed", "error", err)
	} else {
		slog.Info("Flight log pruning completed", "removed", n)
	}

	return nil
}

// ImportNASR forces a NASR import regardless of the recorded modification time.
func ImportNASR(ctx context.Context, s store.Store, dir string, states []string) error {
	return importNASR(ctx, s, dir, states, true)
}

// seedUserWaypoints inserts the configured user waypoints once per database.
func seedUserWaypoints(ctx context.Context, s store.Store, seed []config.SeedWaypoint) (int, error) {
	if _, done := s.GetState(ctx, seededStateKey); done {
		return 0, nil
	}

	count := 0
	for _, sw := range seed {
		w, err := waypoint.Normalize(model.Waypoint{
			Name:        sw.Name,
			Description: sw.Description,
			Lat:         sw.Latitude,
			Lon:         sw.Longitude,
		})
		if err != nil {
			slog.Warn("Skipping seed waypoint", "name", sw.Name, "error", err)
			continue
		}
		existing, err := s.GetUserWaypoint(ctx, w.Name)
		if err != nil {
			return count, fmt.Errorf("failed to check %s: %w", w.Name, err)
		}
		if existing != nil {
			continue
		}
		if err := s.SaveUserWaypoint(ctx, &w); err != nil {
			return count, fmt.Errorf("failed to save %s: %w", w.Name, err)
		}
		count++
	}

	if err := s.SetState(ctx, seededStateKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return count, fmt.Errorf("failed to update state: %w", err)
	}
	return count, nil
}

// importNASR loads the NASR directory conditional on the files' modification time.
func importNASR(ctx context.Context, s store.Store, dir string, states []string, force bool) error {
	if dir == "" {
		return nil
	}
	mtime := importer.LatestModTime(dir)
	if mtime == "" {
		if force {
			return fmt.Errorf("no NASR files in %s", dir)
		}
		return nil
	}

	if !force {
		if stored, found := s.GetState(ctx, nasrStateKey); found && stored == mtime {
			return nil // Up to date
		}
	}

	filter, err := importer.NewFilter(states)
	if err != nil {
		return err
	}

	slog.Info("Importing FAA NASR waypoints...", "dir", dir, "states", states)
	ws, err := importer.ParseDir(dir, filter)
	if err != nil {
		return err
	}
	n, err := s.SaveFAAWaypoints(ctx, ws)
	if err != nil {
		return fmt.Errorf("failed to save waypoints: %w", err)
	}
	slog.Info("Imported FAA NASR waypoints", "count", n)

	if err := s.SetState(ctx, nasrStateKey, mtime); err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}
	return nil
}

func importShapefile(ctx context.Context, s store.Store, path, nameField string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat shapefile: %w", err)
	}

	fileMTime := info.ModTime().UTC().Format(time.RFC3339)
	if stored, found := s.GetState(ctx, shapefileStateKey); found && stored == fileMTime {
		return nil
	}

	ws, err := importer.ParseShapefile(path, nameField)
	if err != nil {
		return err
	}
	n, err := s.SaveFAAWaypoints(ctx, ws)
	if err != nil {
		return fmt.Errorf("failed to save waypoints: %w", err)
	}
	slog.Info("Imported shapefile waypoints", "path", path, "count", n)

	return s.SetState(ctx, shapefileStateKey, fileMTime)
}
