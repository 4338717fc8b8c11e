package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kilianp07/evgrid/core/events"
	"github.com/kilianp07/evgrid/core/gridedge"
	"github.com/kilianp07/evgrid/core/policy"
	"github.com/kilianp07/evgrid/infra/chart"
	"github.com/kilianp07/evgrid/infra/logger"
	"github.com/kilianp07/evgrid/pkg/export"
)

var gridOpts struct {
	steps  int
	policy string
	chart  string
	seed   uint64
	quiet  bool
	export string
}

var gridEdgeCmd = &cobra.Command{
	Use:   "gridedge",
	Short: "Roll out a charging policy in the grid-edge environment",
	RunE:  runGridEdge,
}

func init() {
	f := gridEdgeCmd.Flags()
	f.IntVar(&gridOpts.steps, "steps", 96, "maximum number of steps")
	f.StringVar(&gridOpts.policy, "policy", "", "policy type: "+fmt.Sprint(policy.Registry.Names())+" (empty keeps policy.type)")
	f.StringVar(&gridOpts.chart, "chart", "", "write an HTML chart of the episode to this file")
	f.Uint64Var(&gridOpts.seed, "seed", 0, "reset seed (0 keeps gridedge.seed)")
	f.StringVar(&gridOpts.export, "export", "", "write the steps to this .csv or .json file")
	f.BoolVarP(&gridOpts.quiet, "quiet", "q", false, "only print the summary")
	rootCmd.AddCommand(gridEdgeCmd)
}

func runGridEdge(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if gridOpts.seed != 0 {
		cfg.GridEdge.Seed = gridOpts.seed
	}
	polCfg := cfg.Policy
	if gridOpts.policy != "" && gridOpts.policy != polCfg.Type {
		polCfg.Type = gridOpts.policy
		polCfg.Conf = nil
	}
	env, err := gridedge.New(cfg.GridEdge, gridedge.WithLogger(logger.New("gridedge")))
	if err != nil {
		return err
	}
	pol, err := policy.New(polCfg, env.Config())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var steps []events.GridStepEvent
	sum, err := env.Rollout(ctx, pol, gridOpts.steps, func(res gridedge.StepResult) {
		ev := stepEvent(env, res)
		steps = append(steps, ev)
		if !gridOpts.quiet {
			printStep(out, ev)
		}
	})
	if err != nil {
		return err
	}
	printSummary(out, pol.Name(), env.RunID(), sum)
	if gridOpts.export != "" {
		err := writeExport(gridOpts.export, steps, func(w io.Writer) error {
			return export.WriteGridCSV(w, steps)
		})
		if err != nil {
			return err
		}
	}

	if gridOpts.chart != "" && len(steps) > 0 {
		title := fmt.Sprintf("%s policy, %d EVs", pol.Name(), cfg.GridEdge.EVs)
		err := writeFile(gridOpts.chart, func(w io.Writer) error {
			return chart.RenderEpisode(w, title, steps)
		})
		if err != nil {
			return fmt.Errorf("chart: %w", err)
		}
	}
	return nil
}

func stepEvent(env *gridedge.Env, res gridedge.StepResult) events.GridStepEvent {
	snap := env.Snapshot()
	mean := 0.0
	for _, ev := range snap.EVs {
		mean += ev.SoC
	}
	if len(snap.EVs) > 0 {
		mean /= float64(len(snap.EVs))
	}
	return events.GridStepEvent{
		RunID:      snap.RunID,
		Step:       res.Info.Step,
		Hour:       res.Info.Hour,
		Price:      res.Info.Price,
		Renewable:  res.Info.Renewable,
		LoadKW:     res.Info.TotalLoadKW,
		CapacityKW: snap.CapacityKW,
		Reward:     res.Reward,
		MeanSoC:    mean,
		Rates:      res.Info.Rates,
	}
}

func printStep(w io.Writer, ev events.GridStepEvent) {
	flag := ""
	if ev.Overloaded() {
		flag = " OVERLOAD"
	}
	fmt.Fprintf(w, "step %3d hour %5.2f price %.3f renewable %.2f load %6.1f/%.0f kW soc %.2f reward %7.3f%s\n",
		ev.Step, ev.Hour, ev.Price, ev.Renewable, ev.LoadKW, ev.CapacityKW, ev.MeanSoC, ev.Reward, flag)
}

func printSummary(w io.Writer, name, runID string, sum gridedge.Summary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Policy", "Run", "Steps", "Reward", "Mean kW", "Peak kW", "Overloads", "Energy kWh", "Cost"})
	table.Append([]string{
		name,
		runID,
		fmt.Sprint(sum.Steps),
		fmt.Sprintf("%.3f", sum.TotalReward),
		fmt.Sprintf("%.1f", sum.MeanLoadKW),
		fmt.Sprintf("%.1f", sum.PeakLoadKW),
		fmt.Sprint(sum.OverloadSteps),
		fmt.Sprintf("%.2f", sum.EnergyKWh),
		fmt.Sprintf("%.2f", sum.Cost),
	})
	table.Render()
}
