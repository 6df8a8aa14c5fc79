// Package monitor renders debug views of a mapping run: a snapshot image of
// the grid and a coverage chart over time.
package monitor

import (
	"fmt"
	"image/color"
	"io"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/swarm.map/internal/grid"
)

// MapScene is what RenderMapPNG draws.
type MapScene struct {
	Grid    *grid.Grid
	Robots  map[string]grid.Position
	Targets map[string]grid.MapLocation
}

var (
	freeColor       = color.RGBA{R: 210, G: 210, B: 210, A: 255}
	restrictedColor = color.RGBA{R: 250, G: 200, B: 140, A: 255}
	occupiedColor   = color.RGBA{A: 255}
	frontierColor   = color.RGBA{R: 40, G: 110, B: 220, A: 255}
	robotColor      = color.RGBA{R: 220, G: 30, B: 30, A: 255}
	targetColor     = color.RGBA{R: 30, G: 160, B: 60, A: 255}
)

// RenderMapPNG draws the scene as a square PNG of the given side length.
// Coordinates are world centimetres. Unexplored cells are left blank.
func RenderMapPNG(w io.Writer, s MapScene, side vg.Length) error {
	g := s.Grid
	bounds, cells := g.Snapshot()

	var free, restricted, occupied plotter.XYs
	for _, c := range cells {
		p := g.CenterOf(c.Location)
		xy := plotter.XY{X: p.X, Y: p.Y}
		switch {
		case c.State == grid.Occupied:
			occupied = append(occupied, xy)
		case c.State == grid.Free && c.Restricted:
			restricted = append(restricted, xy)
		case c.State == grid.Free:
			free = append(free, xy)
		}
	}
	var frontier plotter.XYs
	for _, l := range g.FrontierLocations() {
		p := g.CenterOf(l)
		frontier = append(frontier, plotter.XY{X: p.X, Y: p.Y})
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Map %s", bounds)
	p.X.Label.Text = "X (cm)"
	p.Y.Label.Text = "Y (cm)"
	p.Add(plotter.NewGrid())

	cellRadius := vg.Points(1.5)
	layers := []struct {
		name  string
		xys   plotter.XYs
		color color.Color
		shape draw.GlyphDrawer
		size  vg.Length
	}{
		{"free", free, freeColor, draw.BoxGlyph{}, cellRadius},
		{"restricted", restricted, restrictedColor, draw.BoxGlyph{}, cellRadius},
		{"occupied", occupied, occupiedColor, draw.BoxGlyph{}, cellRadius},
		{"frontier", frontier, frontierColor, draw.CircleGlyph{}, cellRadius},
		{"robots", positions(s.Robots), robotColor, draw.TriangleGlyph{}, vg.Points(5)},
		{"targets", locations(g, s.Targets), targetColor, draw.CrossGlyph{}, vg.Points(5)},
	}
	for _, l := range layers {
		if len(l.xys) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(l.xys)
		if err != nil {
			return fmt.Errorf("failed to build %s layer: %w", l.name, err)
		}
		sc.GlyphStyle.Color = l.color
		sc.GlyphStyle.Shape = l.shape
		sc.GlyphStyle.Radius = l.size
		p.Add(sc)
		p.Legend.Add(l.name, sc)
	}

	wt, err := p.WriterTo(side, side, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

// positions flattens a robot map in id order so renders are repeatable.
func positions(m map[string]grid.Position) plotter.XYs {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make(plotter.XYs, len(ids))
	for i, id := range ids {
		out[i] = plotter.XY{X: m[id].X, Y: m[id].Y}
	}
	return out
}

func locations(g *grid.Grid, m map[string]grid.MapLocation) plotter.XYs {
	ps := make(map[string]grid.Position, len(m))
	for id, l := range m {
		ps[id] = g.CenterOf(l)
	}
	return positions(ps)
}
