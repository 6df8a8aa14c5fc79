package monitor

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/swarm.map/internal/grid"
	"github.com/banshee-data/swarm.map/internal/mapping"
)

func testGrid(t *testing.T) *grid.Grid {
	t.Helper()
	cfg := grid.DefaultConfig()
	cfg.Width, cfg.Height = 60, 60
	g, err := grid.New(cfg)
	require.NoError(t, err)
	for row := 0; row < 10; row++ {
		for col := 0; col < 30; col++ {
			g.AddMeasurement(grid.Loc(row, col), false)
		}
	}
	g.AddMeasurement(grid.Loc(5, 29), true)
	return g
}

func TestRenderMapPNG(t *testing.T) {
	g := testGrid(t)
	var buf bytes.Buffer
	err := RenderMapPNG(&buf, MapScene{
		Grid:    g,
		Robots:  map[string]grid.Position{"a": {X: 11, Y: 11}, "b": {X: 31, Y: 11}},
		Targets: map[string]grid.MapLocation{"a": grid.Loc(9, 5)},
	}, 4*vg.Inch)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg.Width, cfg.Height)
	assert.Positive(t, cfg.Width)
}

func TestRenderMapPNG_EmptyGrid(t *testing.T) {
	cfg := grid.DefaultConfig()
	g, err := grid.New(cfg)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderMapPNG(&buf, MapScene{Grid: g}, 2*vg.Inch))
	_, err = png.DecodeConfig(&buf)
	assert.NoError(t, err)
}

func TestRenderCoverageChart(t *testing.T) {
	start := time.Unix(1000, 0)
	samples := []mapping.CoverageSample{
		{Taken: start, Stats: grid.Stats{Cells: 100, Unexplored: 90, Free: 8, Occupied: 2}, Frontier: 4},
		{Taken: start.Add(time.Second), Stats: grid.Stats{Cells: 100, Unexplored: 60, Free: 35, Occupied: 5}, Frontier: 9},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderCoverageChart(&buf, samples))
	html := buf.String()
	for _, want := range []string{"Coverage", "free", "occupied", "unexplored", "frontier", "explored=40.0%"} {
		assert.True(t, strings.Contains(html, want), "chart missing %q", want)
	}
}

func TestRenderCoverageChart_NoSamples(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderCoverageChart(&buf, nil))
	assert.Contains(t, buf.String(), "no samples yet")
}

func TestExplored(t *testing.T) {
	assert.Zero(t, explored(0, 0))
	assert.InDelta(t, 25.0, explored(8, 6), 1e-9)
}
