// Package pathplan finds routes across the occupancy grid and reduces them
// to the sparse waypoint lists navigation consumes.
package pathplan

import (
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/banshee-data/swarm.map/internal/grid"
)

// AStar plans 8-connected routes over targetable cells. Diagonal steps may
// not cut past an untraversable corner.
type AStar struct {
	// MaxExpansions bounds the search. Zero means unlimited.
	MaxExpansions int
}

// FindPath returns the cells from one location to another, both included.
// The start cell is always traversable so a robot standing in a restricted
// cell can still plan its way out.
func (a AStar) FindPath(g *grid.Grid, from, to grid.MapLocation) ([]grid.MapLocation, bool) {
	if from == to {
		return []grid.MapLocation{from}, true
	}
	gg := &gridGraph{g: g, start: from, budget: a.MaxExpansions}
	if !gg.traversable(to) {
		return nil, false
	}
	tree, expanded := path.AStar(cellNode(from), cellNode(to), gg, octile)
	nodes, _ := tree.To(nodeID(to))
	if len(nodes) == 0 {
		tracef("no path %v -> %v after %d expansions", from, to, expanded)
		return nil, false
	}
	out := make([]grid.MapLocation, len(nodes))
	for i, n := range nodes {
		out[i] = locOf(n.ID())
	}
	tracef("path %v -> %v: %d cells, %d expansions", from, to, len(out), expanded)
	return out, true
}

// nodeID packs a location into a graph node id. Rows and columns may be
// negative once the grid has grown.
func nodeID(l grid.MapLocation) int64 {
	return int64(l.Row)<<32 | int64(uint32(l.Column))
}

func locOf(id int64) grid.MapLocation {
	return grid.Loc(int(int32(id>>32)), int(int32(id)))
}

func cellNode(l grid.MapLocation) graph.Node { return simple.Node(nodeID(l)) }

// octile is the exact step cost on an obstacle-free 8-connected grid.
func octile(x, y graph.Node) float64 {
	a, b := locOf(x.ID()), locOf(y.ID())
	dr := math.Abs(float64(a.Row - b.Row))
	dc := math.Abs(float64(a.Column - b.Column))
	return math.Max(dr, dc) + (math.Sqrt2-1)*math.Min(dr, dc)
}

var steps = [...]grid.MapLocation{
	{Row: 1, Column: 0}, {Row: 0, Column: 1}, {Row: -1, Column: 0}, {Row: 0, Column: -1},
	{Row: 1, Column: 1}, {Row: 1, Column: -1}, {Row: -1, Column: 1}, {Row: -1, Column: -1},
}

// gridGraph exposes the grid to gonum's search as an implicit graph.
type gridGraph struct {
	g        *grid.Grid
	start    grid.MapLocation
	budget   int
	expanded int
}

func (gg *gridGraph) traversable(l grid.MapLocation) bool {
	if l == gg.start {
		return true
	}
	c := gg.g.FindCell(l)
	return c != nil && c.IsTargetable()
}

// From lists the neighbours reachable in one step. Once the expansion
// budget is spent it reports none, which ends the search.
func (gg *gridGraph) From(id int64) graph.Nodes {
	if gg.budget > 0 {
		if gg.expanded >= gg.budget {
			return graph.Empty
		}
		gg.expanded++
	}
	l := locOf(id)
	var out []graph.Node
	for _, s := range steps {
		n := l.Add(s)
		if !gg.traversable(n) {
			continue
		}
		if s.Row != 0 && s.Column != 0 {
			if !gg.traversable(l.Add(grid.Loc(s.Row, 0))) || !gg.traversable(l.Add(grid.Loc(0, s.Column))) {
				continue
			}
		}
		out = append(out, cellNode(n))
	}
	return iterator.NewOrderedNodes(out)
}

func (gg *gridGraph) Edge(uid, vid int64) graph.Edge {
	w, ok := gg.Weight(uid, vid)
	if !ok {
		return nil
	}
	return simple.WeightedEdge{F: simple.Node(uid), T: simple.Node(vid), W: w}
}

// Weight is the Euclidean length of a single step.
func (gg *gridGraph) Weight(xid, yid int64) (float64, bool) {
	if xid == yid {
		return 0, true
	}
	d := locOf(xid).Sub(locOf(yid))
	switch {
	case d.Row == 0 && (d.Column == 1 || d.Column == -1),
		d.Column == 0 && (d.Row == 1 || d.Row == -1):
		return 1, true
	case (d.Row == 1 || d.Row == -1) && (d.Column == 1 || d.Column == -1):
		return math.Sqrt2, true
	}
	return 0, false
}
