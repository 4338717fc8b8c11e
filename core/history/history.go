// Package history keeps a queryable record of simulation steps so runs can
// be inspected after the fact. Stores live in infra/store; MemoryStore is
// provided here for tests and ephemeral runs.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/evgrid/core/factory"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("history: store closed")

// Kind classifies a record.
type Kind string

const (
	KindCityStep Kind = "city_step"
	KindGridStep Kind = "grid_step"
	KindCharging Kind = "charging"
	KindStranded Kind = "stranded"
)

// Record is one persisted entry.
type Record struct {
	RunID     string          `json:"run_id"`
	Kind      Kind            `json:"kind"`
	Step      int             `json:"step"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewRecord encodes payload as JSON.
func NewRecord(runID string, kind Kind, step int, ts time.Time, payload any) (Record, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Record{RunID: runID, Kind: kind, Step: step, Timestamp: ts, Payload: b}, nil
}

// Decode unmarshals the payload into out.
func (r Record) Decode(out any) error {
	return json.Unmarshal(r.Payload, out)
}

// Query filters records. Zero fields match everything. Limit keeps the most
// recent matches.
type Query struct {
	RunID string
	Kind  Kind
	Start time.Time
	End   time.Time
	Limit int
}

// Match reports whether r passes the run, kind and time filters.
func (q Query) Match(r Record) bool {
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	return true
}

// Tail applies Limit to records already in chronological order.
func (q Query) Tail(recs []Record) []Record {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Config selects the store implementation.
type Config struct {
	Enabled bool                 `json:"enabled"`
	Store   factory.ModuleConfig `json:"store"`
	// Token protects the HTTP endpoint when set.
	Token string `json:"token"`
}

var storeRegistry = factory.NewRegistry[Store]()

func init() {
	storeRegistry.MustRegister("memory", func(map[string]any) (Store, error) {
		return NewMemoryStore(), nil
	})
}

// RegisterStore adds a store factory.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// NewStore builds the configured store, defaulting to memory.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	return storeRegistry.Create(cfg)
}
