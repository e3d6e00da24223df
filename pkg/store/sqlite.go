package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"rallynav/pkg/db"
	"rallynav/pkg/model"
)

// Store defines the repository interface.
// It composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	WaypointStore
	StateStore
	FlightPlanStore
	FlightLogStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Waypoints ---

func (s *SQLiteStore) GetUserWaypoint(ctx context.Context, name string) (*model.Waypoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, type, description, lat, lon, created_at FROM user_waypoints WHERE name = ?`, name)

	w := model.Waypoint{Source: "user"}
	err := row.Scan(&w.Name, &w.Type, &w.Description, &w.Lat, &w.Lon, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func (s *SQLiteStore) SaveUserWaypoint(ctx context.Context, w *model.Waypoint) error {
	createdAt := w.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	query := `INSERT OR REPLACE INTO user_waypoints (name, type, description, lat, lon, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, w.Name, w.Type, w.Description, w.Lat, w.Lon, createdAt)
	return err
}

func (s *SQLiteStore) DeleteUserWaypoint(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM user_waypoints WHERE name = ?", name)
	return err
}

func (s *SQLiteStore) ListUserWaypoints(ctx context.Context) ([]*model.Waypoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, type, description, lat, lon, created_at FROM user_waypoints ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.Waypoint
	for rows.Next() {
		w := model.Waypoint{Source: "user"}
		if err := rows.Scan(&w.Name, &w.Type, &w.Description, &w.Lat, &w.Lon, &w.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &w)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) GetFAAWaypoint(ctx context.Context, name string) (*model.Waypoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, type, description, state, lat, lon, created_at FROM faa_waypoints WHERE name = ?`, name)

	w := model.Waypoint{Source: "faa"}
	var state sql.NullString
	err := row.Scan(&w.Name, &w.Type, &w.Description, &state, &w.Lat, &w.Lon, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	w.State = state.String
	return &w, nil
}

// SaveFAAWaypoints upserts a batch of reference waypoints in one transaction.
func (s *SQLiteStore) SaveFAAWaypoints(ctx context.Context, ws []model.Waypoint) (int, error) {
	if len(ws) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO faa_waypoints (name, type, description, state, lat, lon, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for i := range ws {
		w := &ws[i]
		if _, err := stmt.ExecContext(ctx, strings.ToUpper(w.Name), w.Type, w.Description, w.State, w.Lat, w.Lon, now); err != nil {
			return 0, fmt.Errorf("failed to insert %s: %w", w.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return len(ws), nil
}

func (s *SQLiteStore) CountFAAWaypoints(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM faa_waypoints").Scan(&n)
	return n, err
}

// --- Flight Plans ---

func (s *SQLiteStore) GetFlightPlan(ctx context.Context, name string) (*model.FlightPlan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, description, route, aircraft, updated_at FROM flight_plans WHERE name = ?`, name)

	var p model.FlightPlan
	var aircraft sql.NullString
	err := row.Scan(&p.Name, &p.Description, &p.Route, &aircraft, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.Aircraft = aircraft.String
	return &p, nil
}

func (s *SQLiteStore) SaveFlightPlan(ctx context.Context, p *model.FlightPlan) error {
	p.UpdatedAt = time.Now()
	query := `INSERT OR REPLACE INTO flight_plans (name, description, route, aircraft, updated_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, p.Name, p.Description, p.Route, p.Aircraft, p.UpdatedAt)
	return err
}

func (s *SQLiteStore) DeleteFlightPlan(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM flight_plans WHERE name = ?", name)
	return err
}

func (s *SQLiteStore) ListFlightPlans(ctx context.Context) ([]*model.FlightPlan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, description, route, aircraft, updated_at FROM flight_plans ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.FlightPlan
	for rows.Next() {
		var p model.FlightPlan
		var aircraft sql.NullString
		if err := rows.Scan(&p.Name, &p.Description, &p.Route, &aircraft, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Aircraft = aircraft.String
		results = append(results, &p)
	}
	return results, rows.Err()
}

// --- Flight Logs ---

func (s *SQLiteStore) GetFlightLog(ctx context.Context, id string) (*model.FlightLog, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, date_flown, aircraft, route, delta_time, time_points, fuel_points, legs, events
		 FROM flight_logs WHERE id = ?`, id)

	var l model.FlightLog
	var aircraft sql.NullString
	var legs, events []byte
	err := row.Scan(&l.ID, &l.Name, &l.DateFlown, &aircraft, &l.Route,
		&l.DeltaTime, &l.TimePoints, &l.FuelPoints, &legs, &events)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	l.Aircraft = aircraft.String
	l.Legs = inflate(legs)
	l.Events = inflate(events)
	return &l, nil
}

func (s *SQLiteStore) SaveFlightLog(ctx context.Context, l *model.FlightLog) error {
	legs, err := compress(l.Legs)
	if err != nil {
		legs = l.Legs
	}
	events, err := compress(l.Events)
	if err != nil {
		events = l.Events
	}

	query := `INSERT OR REPLACE INTO flight_logs (
		id, name, date_flown, aircraft, route, delta_time, time_points, fuel_points, legs, events
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		l.ID, l.Name, l.DateFlown.UTC(), l.Aircraft, l.Route,
		l.DeltaTime, l.TimePoints, l.FuelPoints, legs, events,
	)
	return err
}

func (s *SQLiteStore) DeleteFlightLog(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM flight_logs WHERE id = ?", id)
	return err
}

func (s *SQLiteStore) ListFlightLogs(ctx context.Context, since time.Time, limit int) ([]*model.FlightLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, name, date_flown, aircraft, route, delta_time, time_points, fuel_points
			  FROM flight_logs WHERE date_flown >= ? ORDER BY date_flown DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.FlightLog
	for rows.Next() {
		var l model.FlightLog
		var aircraft sql.NullString
		if err := rows.Scan(&l.ID, &l.Name, &l.DateFlown, &aircraft, &l.Route,
			&l.DeltaTime, &l.TimePoints, &l.FuelPoints); err != nil {
			return nil, err
		}
		l.Aircraft = aircraft.String
		results = append(results, &l)
	}
	return results, rows.Err()
}

// inflate undoes compress. Blobs written before compression was added are returned as is.
func inflate(val []byte) []byte {
	if len(val) > 2 && val[0] == 0x1f && val[1] == 0x8b {
		if out, err := decompress(val); err == nil {
			return out
		}
	}
	return val
}

// --- Compression Pooling ---

var (
	gzipWriterPool = sync.Pool{
		New: func() interface{} {
			return gzip.NewWriter(io.Discard)
		},
	}
	bufferPool = sync.Pool{
		New: func() interface{} {
			return new(bytes.Buffer)
		},
	}
)

func compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)
	w.Reset(buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	// Must copy because buf is returned to pool
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
