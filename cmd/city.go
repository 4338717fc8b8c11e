package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	apicity "github.com/kilianp07/evgrid/api/city"
	"github.com/kilianp07/evgrid/core/city"
	"github.com/kilianp07/evgrid/core/events"
	coremetrics "github.com/kilianp07/evgrid/core/metrics"
	"github.com/kilianp07/evgrid/core/roadnet"
	"github.com/kilianp07/evgrid/infra/chart"
	"github.com/kilianp07/evgrid/infra/logger"
	"github.com/kilianp07/evgrid/internal/ptr"
	"github.com/kilianp07/evgrid/pkg/export"
)

var cityOpts struct {
	steps    int
	vehicles int
	out      string
	chart    string
	export   string
}

var cityCmd = &cobra.Command{
	Use:   "city",
	Short: "Run the city simulation offline and export snapshots",
	RunE:  runCity,
}

func init() {
	f := cityCmd.Flags()
	f.IntVar(&cityOpts.steps, "steps", 100, "number of steps to simulate")
	f.IntVar(&cityOpts.vehicles, "vehicles", city.DefaultVehicles, "fleet size (unset keeps city.vehicles)")
	f.StringVar(&cityOpts.out, "out", "", "directory receiving one HTML map and one GeoJSON file per step")
	f.StringVar(&cityOpts.chart, "chart", "", "write an HTML chart of the run to this file")
	f.StringVar(&cityOpts.export, "export", "", "write the per-step summary to this .csv or .json file")
	rootCmd.AddCommand(cityCmd)
}

func runCity(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("vehicles") {
		cfg.City.Vehicles = ptr.To(cityOpts.vehicles)
	}
	var graph *roadnet.Graph
	if cfg.City.NetworkFile != "" {
		graph, err = roadnet.LoadFile(cfg.City.NetworkFile)
	} else {
		graph, err = roadnet.Grid(cfg.City.Center, cfg.City.RadiusM, cfg.City.GridSpacingM)
	}
	if err != nil {
		return fmt.Errorf("road network: %w", err)
	}
	sim, err := city.New(cfg.City, graph, city.WithLogger(logger.New("city")))
	if err != nil {
		return err
	}
	sim.AddVehicles(cfg.City.FleetSize())

	if cityOpts.out != "" {
		if err := os.MkdirAll(cityOpts.out, 0o755); err != nil {
			return err
		}
	}

	steps := make([]coremetrics.CityStep, 0, cityOpts.steps)
	for i := 0; i < cityOpts.steps; i++ {
		if _, err := sim.Step(ctx); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		snap := sim.Snapshot()
		steps = append(steps, coremetrics.NewCityStep(events.CityStepEvent{
			RunID:    snap.RunID,
			Step:     snap.Step,
			Time:     snap.Time,
			Vehicles: snap.Vehicles,
			Stations: snap.Stations,
			Balance:  snap.Balance,
		}))
		if cityOpts.out != "" {
			if err := writeSnapshot(cityOpts.out, snap, graph); err != nil {
				return err
			}
		}
	}

	snap := sim.Snapshot()
	printFleet(cmd.OutOrStdout(), snap)
	if cityOpts.export != "" {
		err := writeExport(cityOpts.export, steps, func(w io.Writer) error {
			return export.WriteCityCSV(w, steps)
		})
		if err != nil {
			return err
		}
	}
	if cityOpts.chart != "" && len(steps) > 0 {
		err := writeFile(cityOpts.chart, func(w io.Writer) error {
			return chart.RenderCity(w, steps, snap.Vehicles)
		})
		if err != nil {
			return fmt.Errorf("chart: %w", err)
		}
	}
	return nil
}

func writeSnapshot(dir string, snap city.Snapshot, graph *roadnet.Graph) error {
	base := filepath.Join(dir, fmt.Sprintf("step_%04d", snap.Step))
	page, err := os.Create(base + ".html")
	if err != nil {
		return err
	}
	if err := apicity.RenderPage(page, snap, graph); err != nil {
		page.Close()
		return fmt.Errorf("render step %d: %w", snap.Step, err)
	}
	if err := page.Close(); err != nil {
		return err
	}
	data, err := json.Marshal(city.GeoJSON(snap, graph))
	if err != nil {
		return err
	}
	return os.WriteFile(base+".geojson", data, 0o644)
}

func printFleet(w io.Writer, snap city.Snapshot) {
	moving, charging, stranded := snap.Counts()
	fmt.Fprintf(w, "run %s step %d: %d moving, %d charging, %d stranded\n",
		snap.RunID, snap.Step, moving, charging, stranded)
	fmt.Fprintf(w, "solar %.1f kW, plant %.1f kW, demand %.1f kW, unserved %.1f kW\n",
		snap.Balance.SolarKW, snap.Balance.PlantKW, snap.Balance.DemandKW, snap.Balance.UnservedKW)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Vehicle", "Status", "SoC", "Battery kWh"})
	for _, v := range snap.Vehicles {
		table.Append([]string{
			v.ID,
			string(v.Status()),
			fmt.Sprintf("%.0f%%", v.SoC()*100),
			fmt.Sprintf("%.2f", v.BatteryKWh),
		})
	}
	table.Render()
}
