package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evgrid/core/history"
	"github.com/kilianp07/evgrid/infra/kpi"
	"github.com/kilianp07/evgrid/jobs/backfill"

	_ "github.com/kilianp07/evgrid/infra/store"
)

var backfillOpts struct {
	runID string
	since time.Duration
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Rebuild the daily energy KPIs from the step history",
	RunE:  runBackfill,
}

func init() {
	f := backfillCmd.Flags()
	f.StringVar(&backfillOpts.runID, "run", "", "only replay this run")
	f.DurationVar(&backfillOpts.since, "since", 0, "only replay steps younger than this (0 replays everything)")
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.KPI.Path == "" {
		return fmt.Errorf("kpi.path must point to a SQLite file")
	}
	hist, err := history.NewStore(cfg.History.Store)
	if err != nil {
		return fmt.Errorf("history store: %w", err)
	}
	defer hist.Close()
	store, err := kpi.NewSQLiteStore(cfg.KPI.Path)
	if err != nil {
		return fmt.Errorf("kpi store: %w", err)
	}
	defer store.Close()

	q := history.Query{RunID: backfillOpts.runID}
	if backfillOpts.since > 0 {
		q.Start = time.Now().Add(-backfillOpts.since)
	}
	n, err := backfill.Energy(cmd.Context(), hist, q, store)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "replayed %d steps into %s\n", n, cfg.KPI.Path)
	return nil
}
