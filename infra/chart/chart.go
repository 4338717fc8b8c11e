// Package chart renders simulation runs as standalone HTML pages.
package chart

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/evgrid/core/events"
	coremetrics "github.com/kilianp07/evgrid/core/metrics"
	"github.com/kilianp07/evgrid/core/model"
)

func newLine(title, yName string, x []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Step"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)
	line.SetXAxis(x)
	return line
}

func series(n int, f func(i int) float64) []opts.LineData {
	data := make([]opts.LineData, n)
	for i := range data {
		data[i] = opts.LineData{Value: f(i)}
	}
	return data
}

// RenderEpisode writes a page describing a grid-edge episode: load against
// transformer capacity, price and renewable availability, fleet SoC and
// reward.
func RenderEpisode(w io.Writer, title string, steps []events.GridStepEvent) error {
	if len(steps) == 0 {
		return fmt.Errorf("chart: no steps to render")
	}
	x := make([]string, len(steps))
	for i, s := range steps {
		x[i] = strconv.Itoa(s.Step)
	}
	n := len(steps)

	load := newLine(title+": load", "kW", x)
	load.AddSeries("Load", series(n, func(i int) float64 { return steps[i].LoadKW })).
		AddSeries("Capacity", series(n, func(i int) float64 { return steps[i].CapacityKW }))

	market := newLine("Price and renewables", "", x)
	market.AddSeries("Price", series(n, func(i int) float64 { return steps[i].Price })).
		AddSeries("Renewable", series(n, func(i int) float64 { return steps[i].Renewable }))

	fleet := newLine("Fleet", "", x)
	fleet.AddSeries("Mean SoC", series(n, func(i int) float64 { return steps[i].MeanSoC })).
		AddSeries("Reward", series(n, func(i int) float64 { return steps[i].Reward }))

	page := components.NewPage()
	page.AddCharts(load, market, fleet)
	return page.Render(w)
}

// RenderCity writes a page with the power balance and mean SoC of a city
// run followed by the battery level of every vehicle at the end of the run.
func RenderCity(w io.Writer, steps []coremetrics.CityStep, vehicles []model.Vehicle) error {
	if len(steps) == 0 {
		return fmt.Errorf("chart: no steps to render")
	}
	x := make([]string, len(steps))
	for i, s := range steps {
		x[i] = strconv.Itoa(s.Step)
	}
	n := len(steps)

	power := newLine("City power balance", "kW", x)
	power.AddSeries("Demand", series(n, func(i int) float64 { return steps[i].DemandKW })).
		AddSeries("Solar", series(n, func(i int) float64 { return steps[i].SolarKW })).
		AddSeries("Plant", series(n, func(i int) float64 { return steps[i].PlantKW })).
		AddSeries("Unserved", series(n, func(i int) float64 { return steps[i].UnservedKW }))

	soc := newLine("Mean state of charge", "SoC", x)
	soc.AddSeries("Mean SoC", series(n, func(i int) float64 { return steps[i].MeanSoC }))

	page := components.NewPage()
	page.AddCharts(power, soc, batteryBar(vehicles))
	return page.Render(w)
}

func batteryBar(vehicles []model.Vehicle) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Battery levels"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "%", Max: 100}),
	)
	ids := make([]string, len(vehicles))
	data := make([]opts.BarData, len(vehicles))
	for i, v := range vehicles {
		ids[i] = v.ID
		data[i] = opts.BarData{Value: v.SoC() * 100, ItemStyle: &opts.ItemStyle{Color: v.Color}}
	}
	bar.SetXAxis(ids).AddSeries("Battery", data)
	return bar
}
