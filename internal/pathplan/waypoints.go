package pathplan

import "github.com/banshee-data/swarm.map/internal/grid"

// LineOfSightWaypoints thins a cell path to the corners a robot must turn
// at. A waypoint is kept whenever the straight line from the previous one
// would leave traversable space.
type LineOfSightWaypoints struct{}

// GenerateWaypoints returns cell centres along path, excluding the start
// and always ending at the goal. Paths of one cell or fewer yield nothing.
func (LineOfSightWaypoints) GenerateWaypoints(g *grid.Grid, path []grid.MapLocation) []grid.Position {
	if len(path) <= 1 {
		return nil
	}
	var kept []grid.MapLocation
	anchor := path[0]
	for i := 2; i < len(path); i++ {
		if !clearLine(g, anchor, path[i], path[0]) {
			anchor = path[i-1]
			kept = append(kept, anchor)
		}
	}
	kept = append(kept, path[len(path)-1])

	out := make([]grid.Position, len(kept))
	for i, l := range kept {
		out[i] = g.CenterOf(l)
	}
	return out
}

// clearLine reports whether every cell between from and to, both ends
// included, is targetable. start is exempt.
func clearLine(g *grid.Grid, from, to, start grid.MapLocation) bool {
	for _, l := range append(grid.Line(from, to), to) {
		if l == start {
			continue
		}
		if c := g.FindCell(l); c == nil || !c.IsTargetable() {
			return false
		}
	}
	return true
}
