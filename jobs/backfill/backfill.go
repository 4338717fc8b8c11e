// Package backfill rebuilds derived data from the step history.
package backfill

import (
	"context"
	"fmt"

	"github.com/kilianp07/evgrid/core/history"
	coremetrics "github.com/kilianp07/evgrid/core/metrics"
	"github.com/kilianp07/evgrid/core/metrics/energy"
)

// Energy replays the city steps matching q into the energy store and
// returns how many steps were processed. Steps whose payload cannot be
// decoded abort the backfill.
func Energy(ctx context.Context, hist history.Store, q history.Query, store energy.Store) (int, error) {
	q.Kind = history.KindCityStep
	recs, err := hist.Query(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("query history: %w", err)
	}
	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		var cs coremetrics.CityStep
		if err := rec.Decode(&cs); err != nil {
			return i, fmt.Errorf("decode step %d of run %s: %w", rec.Step, rec.RunID, err)
		}
		if err := energy.Accumulate(store, rec.Timestamp, cs.DrivenKWh, cs.ChargedKWh); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}
