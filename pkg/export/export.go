// Package export writes simulation step series as JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/evgrid/core/events"
	coremetrics "github.com/kilianp07/evgrid/core/metrics"
)

// WriteJSON writes v to w as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// WriteCityCSV writes one row per city step.
func WriteCityCSV(w io.Writer, steps []coremetrics.CityStep) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"run_id", "step", "time", "moving", "charging", "stranded",
		"occupied_stations", "mean_soc", "solar_kw", "plant_kw", "demand_kw", "unserved_kw"}); err != nil {
		return err
	}
	for _, s := range steps {
		rec := []string{
			s.RunID,
			strconv.Itoa(s.Step),
			s.Time.Format(time.RFC3339),
			strconv.Itoa(s.Moving),
			strconv.Itoa(s.Charging),
			strconv.Itoa(s.Stranded),
			strconv.Itoa(s.OccupiedStations),
			ftoa(s.MeanSoC),
			ftoa(s.SolarKW),
			ftoa(s.PlantKW),
			ftoa(s.DemandKW),
			ftoa(s.UnservedKW),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteGridCSV writes one row per grid-edge step. Rates are joined with ';'.
func WriteGridCSV(w io.Writer, steps []events.GridStepEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"run_id", "step", "hour", "price", "renewable",
		"load_kw", "capacity_kw", "mean_soc", "reward", "rates"}); err != nil {
		return err
	}
	for _, s := range steps {
		rates := make([]string, len(s.Rates))
		for i, r := range s.Rates {
			rates[i] = ftoa(r)
		}
		rec := []string{
			s.RunID,
			strconv.Itoa(s.Step),
			ftoa(s.Hour),
			ftoa(s.Price),
			ftoa(s.Renewable),
			ftoa(s.LoadKW),
			ftoa(s.CapacityKW),
			ftoa(s.MeanSoC),
			ftoa(s.Reward),
			strings.Join(rates, ";"),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Format returns "json" or "csv" from the extension of path.
func Format(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return "json", nil
	case ".csv":
		return "csv", nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", ext)
	}
}
