package monitor

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/swarm.map/internal/mapping"
)

// RenderCoverageChart writes an HTML line chart of cell counts per state
// and frontier size across samples. The x axis is seconds since the first
// sample.
func RenderCoverageChart(w io.Writer, samples []mapping.CoverageSample) error {
	xs := make([]string, len(samples))
	free := make([]opts.LineData, len(samples))
	occupied := make([]opts.LineData, len(samples))
	unexplored := make([]opts.LineData, len(samples))
	restricted := make([]opts.LineData, len(samples))
	frontier := make([]opts.LineData, len(samples))
	for i, s := range samples {
		xs[i] = fmt.Sprintf("%.0f", s.Taken.Sub(samples[0].Taken).Seconds())
		free[i] = opts.LineData{Value: s.Stats.Free}
		occupied[i] = opts.LineData{Value: s.Stats.Occupied}
		unexplored[i] = opts.LineData{Value: s.Stats.Unexplored}
		restricted[i] = opts.LineData{Value: s.Stats.Restricted}
		frontier[i] = opts.LineData{Value: s.Frontier}
	}

	subtitle := "no samples yet"
	if n := len(samples); n > 0 {
		last := samples[n-1].Stats
		subtitle = fmt.Sprintf("samples=%d cells=%d explored=%.1f%%", n, last.Cells, explored(last.Cells, last.Unexplored))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Exploration coverage", Width: "1100px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Coverage", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "cells"}),
	)
	line.SetXAxis(xs).
		AddSeries("free", free).
		AddSeries("occupied", occupied).
		AddSeries("unexplored", unexplored).
		AddSeries("restricted", restricted).
		AddSeries("frontier", frontier)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func explored(cells, unexplored int) float64 {
	if cells == 0 {
		return 0
	}
	return 100 * float64(cells-unexplored) / float64(cells)
}
