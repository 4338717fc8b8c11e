package store

import (
	"fmt"

	"github.com/kilianp07/evgrid/core/factory"
	"github.com/kilianp07/evgrid/core/history"
)

type sqliteConf struct {
	Path string `json:"path"`
}

type jsonlConf struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

func init() {
	_ = history.RegisterStore("sqlite", func(conf map[string]any) (history.Store, error) {
		c := sqliteConf{Path: "evgrid_history.db"}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	})
	_ = history.RegisterStore("jsonl", func(conf map[string]any) (history.Store, error) {
		c := jsonlConf{Path: "logs/history.jsonl", MaxSizeMB: 50, MaxBackups: 5, MaxAgeDays: 14}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, fmt.Errorf("jsonl store: path required")
		}
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})
}
