// Package kpi persists per-vehicle daily energy figures.
package kpi

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/evgrid/core/metrics/energy"
)

const dayLayout = "2006-01-02"

// SQLiteStore implements energy.Store with one row per vehicle and day.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens path and creates the energy_daily table.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// ":memory:" databases live per connection
	db.SetMaxOpenConns(1)
	const schema = `CREATE TABLE IF NOT EXISTS energy_daily (
		vehicle_id  TEXT NOT NULL,
		day         TEXT NOT NULL,
		driven_kwh  REAL NOT NULL DEFAULT 0,
		charged_kwh REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (vehicle_id, day)
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Add accumulates r into the row of its vehicle and day.
func (s *SQLiteStore) Add(r energy.Record) error {
	_, err := s.db.Exec(`INSERT INTO energy_daily (vehicle_id, day, driven_kwh, charged_kwh)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (vehicle_id, day) DO UPDATE SET
			driven_kwh = driven_kwh + excluded.driven_kwh,
			charged_kwh = charged_kwh + excluded.charged_kwh`,
		r.VehicleID, energy.Day(r.Date).Format(dayLayout), r.DrivenKWh, r.ChargedKWh)
	return err
}

// Query returns the days of vehicleID within [start, end], oldest first.
func (s *SQLiteStore) Query(vehicleID string, start, end time.Time) ([]energy.Record, error) {
	rows, err := s.db.Query(`SELECT day, driven_kwh, charged_kwh FROM energy_daily
		WHERE vehicle_id = ? AND day BETWEEN ? AND ? ORDER BY day`,
		vehicleID, energy.Day(start).Format(dayLayout), energy.Day(end).Format(dayLayout))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []energy.Record
	for rows.Next() {
		var day string
		r := energy.Record{VehicleID: vehicleID}
		if err := rows.Scan(&day, &r.DrivenKWh, &r.ChargedKWh); err != nil {
			return nil, err
		}
		if r.Date, err = time.Parse(dayLayout, day); err != nil {
			return nil, fmt.Errorf("bad day %q: %w", day, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
