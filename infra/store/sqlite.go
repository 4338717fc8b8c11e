package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/evgrid/core/history"
)

// SQLiteStore persists history records to a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	closed atomic.Bool
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	schema := `CREATE TABLE IF NOT EXISTS history (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT,
        kind TEXT,
        step INTEGER,
        ts INTEGER,
        payload TEXT
    );
    CREATE INDEX IF NOT EXISTS history_run_ts ON history(run_id, ts);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record to the database.
func (s *SQLiteStore) Append(ctx context.Context, rec history.Record) error {
	if s.closed.Load() {
		return history.ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (run_id, kind, step, ts, payload) VALUES (?, ?, ?, ?, ?)`,
		rec.RunID, string(rec.Kind), rec.Step, rec.Timestamp.UnixNano(), string(rec.Payload))
	return err
}

// Query returns records matching q in chronological order.
func (s *SQLiteStore) Query(ctx context.Context, q history.Query) ([]history.Record, error) {
	if s.closed.Load() {
		return nil, history.ErrClosed
	}
	var args []any
	query := `SELECT run_id, kind, step, ts, payload FROM history WHERE 1=1`
	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	if q.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(q.Kind))
	}
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	query += ` ORDER BY ts DESC, id DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []history.Record
	for rows.Next() {
		var (
			r       history.Record
			kind    string
			ts      int64
			payload string
		)
		if err := rows.Scan(&r.RunID, &kind, &r.Step, &ts, &payload); err != nil {
			return nil, err
		}
		r.Kind = history.Kind(kind)
		r.Timestamp = time.Unix(0, ts).UTC()
		r.Payload = json.RawMessage(payload)
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(res)
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
