package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

// Init opens the database and runs migrations.
func Init(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// WAL keeps readers (API) off the writer's back during imports
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &DB{db}
	// Single connection avoids SQLITE_BUSY during concurrent writes
	db.SetMaxOpenConns(1)

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

// PruneFlightLogs removes flight logs flown before now-olderThan.
// It returns the number of removed rows.
func (d *DB) PruneFlightLogs(olderThan time.Duration) (int64, error) {
	deadline := time.Now().Add(-olderThan).UTC()
	res, err := d.Exec("DELETE FROM flight_logs WHERE date_flown < ?", deadline)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS user_waypoints (
			name TEXT PRIMARY KEY,
			type TEXT,
			description TEXT,
			lat REAL,
			lon REAL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS faa_waypoints (
			name TEXT PRIMARY KEY,
			type TEXT,
			description TEXT,
			state TEXT,
			lat REAL,
			lon REAL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_faa_waypoints_state ON faa_waypoints(state);`,
		`CREATE TABLE IF NOT EXISTS persistent_state (
			key TEXT PRIMARY KEY,
			value TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS flight_plans (
			name TEXT PRIMARY KEY,
			description TEXT,
			route TEXT,
			aircraft TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS flight_logs (
			id TEXT PRIMARY KEY,
			name TEXT,
			date_flown DATETIME,
			aircraft TEXT,
			route TEXT,
			delta_time INTEGER,
			time_points REAL,
			fuel_points REAL,
			legs BLOB,
			events BLOB
		);`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("exec error: %w query: %s", err, q)
		}
	}

	// Migration: older databases lack the per-log aircraft column
	var colCount int
	err := d.QueryRow("SELECT count(*) FROM pragma_table_info('flight_logs') WHERE name='aircraft'").Scan(&colCount)
	if err == nil && colCount == 0 {
		if _, err := d.Exec("ALTER TABLE flight_logs ADD COLUMN aircraft TEXT"); err != nil {
			return fmt.Errorf("failed to add aircraft column: %w", err)
		}
	}

	return nil
}
