package grid

// CreateCircle returns every in-bounds location within radiusCm of loc,
// boundary inclusive, in row-major order.
func (g *Grid) CreateCircle(loc MapLocation, radiusCm int) []MapLocation {
	var out []MapLocation
	g.forCircle(loc, radiusCm/g.cfg.CellSize, g.Bounds(), func(l MapLocation, _ int) {
		out = append(out, l)
	})
	return out
}

// CountUnknownAround counts never-observed cells within radiusCm of loc.
func (g *Grid) CountUnknownAround(loc MapLocation, radiusCm int) int {
	return g.countUnknown(loc, radiusCm, g.Bounds())
}

func (g *Grid) countUnknown(loc MapLocation, radiusCm int, b Bounds) int {
	n := 0
	g.forCircle(loc, radiusCm/g.cfg.CellSize, b, func(l MapLocation, _ int) {
		if !g.mustCell(l).IsPreviouslyObserved() {
			n++
		}
	})
	return n
}

// DirectNeighbors returns the in-bounds 4-neighbours of loc: above, right,
// below, left.
func (g *Grid) DirectNeighbors(loc MapLocation) []MapLocation {
	return directNeighbors(loc, g.Bounds())
}

// DiagonalNeighbors returns the in-bounds diagonal neighbours of loc.
func (g *Grid) DiagonalNeighbors(loc MapLocation) []MapLocation {
	return diagonalNeighbors(loc, g.Bounds())
}

var (
	directOffsets   = []MapLocation{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}
	diagonalOffsets = []MapLocation{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

func directNeighbors(loc MapLocation, b Bounds) []MapLocation {
	return offsetsWithin(loc, directOffsets, b)
}

func diagonalNeighbors(loc MapLocation, b Bounds) []MapLocation {
	return offsetsWithin(loc, diagonalOffsets, b)
}

func offsetsWithin(loc MapLocation, offsets []MapLocation, b Bounds) []MapLocation {
	out := make([]MapLocation, 0, len(offsets))
	for _, o := range offsets {
		if n := loc.Add(o); b.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}

// FrontierLocations scans the grid for weakly targetable cells with at
// least one never-observed 4-neighbour.
func (g *Grid) FrontierLocations() []MapLocation {
	b := g.Bounds()
	var out []MapLocation
	for row := b.BottomRow; row <= b.TopRow; row++ {
		for col := b.LeftColumn; col <= b.RightColumn; col++ {
			loc := Loc(row, col)
			if !g.mustCell(loc).IsWeaklyTargetable() {
				continue
			}
			for _, n := range directNeighbors(loc, b) {
				if !g.mustCell(n).IsPreviouslyObserved() {
					out = append(out, loc)
					break
				}
			}
		}
	}
	return out
}

// HasWeakLineOfSight reports whether every cell on the ray from one
// location towards another (start included, end excluded) is weakly
// targetable.
func (g *Grid) HasWeakLineOfSight(from, to MapLocation) bool {
	for _, loc := range Line(from, to) {
		c := g.FindCell(loc)
		if c == nil || !c.IsWeaklyTargetable() {
			return false
		}
	}
	return true
}

// CleanUp forces small pockets of unexplored cells to free. A cell
// qualifies when it borders an observed cell and the unexplored area within
// the cleanup radius is below the area threshold. It returns the number of
// cells changed.
func (g *Grid) CleanUp() int {
	b := g.Bounds()
	area := g.cfg.CellSize * g.cfg.CellSize
	changed := 0
	for row := b.BottomRow; row <= b.TopRow; row++ {
		for col := b.LeftColumn; col <= b.RightColumn; col++ {
			loc := Loc(row, col)
			c := g.mustCell(loc)
			if c.IsPreviouslyObserved() {
				continue
			}
			for _, n := range directNeighbors(loc, b) {
				if !g.mustCell(n).IsPreviouslyObserved() {
					continue
				}
				if g.countUnknown(loc, g.cfg.CleanupRadius, b)*area < g.cfg.CleanupAreaThreshold && c.freeIfUnexplored() {
					changed++
				}
				break
			}
		}
	}
	if changed > 0 {
		diagf("cleanup freed %d cells", changed)
	}
	return changed
}

// Stats summarises the cell population within the current bounds.
type Stats struct {
	Bounds           Bounds `json:"bounds"`
	Cells            int    `json:"cells"`
	Unexplored       int    `json:"unexplored"`
	Free             int    `json:"free"`
	Occupied         int    `json:"occupied"`
	Restricted       int    `json:"restricted"`
	WeaklyRestricted int    `json:"weakly_restricted"`
}

// Stats walks the grid once and counts states.
func (g *Grid) Stats() Stats {
	st := Stats{Bounds: g.Bounds()}
	g.walk(st.Bounds, func(v CellView) {
		st.Cells++
		switch v.State {
		case Free:
			st.Free++
		case Occupied:
			st.Occupied++
		default:
			st.Unexplored++
		}
		if v.Restricted {
			st.Restricted++
		}
		if v.WeaklyRestricted {
			st.WeaklyRestricted++
		}
	})
	return st
}

// Snapshot copies the flags of every cell within the current bounds in
// row-major order, bottom row first.
func (g *Grid) Snapshot() (Bounds, []CellView) {
	b := g.Bounds()
	out := make([]CellView, 0, b.Rows()*b.Columns())
	g.walk(b, func(v CellView) { out = append(out, v) })
	return b, out
}

func (g *Grid) walk(b Bounds, fn func(CellView)) {
	for row := b.BottomRow; row <= b.TopRow; row++ {
		for col := b.LeftColumn; col <= b.RightColumn; col++ {
			loc := Loc(row, col)
			fn(g.mustCell(loc).view(loc))
		}
	}
}
