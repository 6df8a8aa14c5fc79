// Package grid implements the shared occupancy grid: a growable map of
// MapLocation to Cell with restriction propagation around occupied cells.
package grid

import (
	"fmt"
	"sync"
	"sync/atomic"
)

const shardCount = 64

// Config holds the grid geometry and the footprint-derived radii. All
// distances are in centimetres.
type Config struct {
	CellSize int
	Width    int
	Height   int

	// RestrictRadius forbids targeting cells this close to an obstacle.
	RestrictRadius int
	// WeakRestrictRadius marks cells this close to an obstacle as near a wall.
	WeakRestrictRadius int

	CleanupRadius        int
	CleanupAreaThreshold int
}

// DefaultConfig returns the geometry tuned for the reference robot footprint.
func DefaultConfig() Config {
	return Config{
		CellSize:             2,
		Width:                100,
		Height:               100,
		RestrictRadius:       15,
		WeakRestrictRadius:   25,
		CleanupRadius:        5,
		CleanupAreaThreshold: 23,
	}
}

// Validate checks the sizes are positive and consistent.
func (c Config) Validate() error {
	if c.CellSize <= 0 || c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("cell size, width and height must be positive, got %d, %d, %d", c.CellSize, c.Width, c.Height)
	}
	if c.Width%c.CellSize != 0 || c.Height%c.CellSize != 0 {
		return fmt.Errorf("width %d and height %d must be multiples of cell size %d", c.Width, c.Height, c.CellSize)
	}
	if c.RestrictRadius < 0 || c.WeakRestrictRadius < c.RestrictRadius {
		return fmt.Errorf("restrict radius %d must be non-negative and not exceed weak radius %d", c.RestrictRadius, c.WeakRestrictRadius)
	}
	if c.CleanupRadius < 0 || c.CleanupAreaThreshold < 0 {
		return fmt.Errorf("cleanup radius %d and area threshold %d must be non-negative", c.CleanupRadius, c.CleanupAreaThreshold)
	}
	return nil
}

// Bounds is the inclusive rectangle of rows and columns backed by cells.
// BottomRow <= TopRow and LeftColumn <= RightColumn.
type Bounds struct {
	TopRow      int `json:"top_row"`
	BottomRow   int `json:"bottom_row"`
	LeftColumn  int `json:"left_column"`
	RightColumn int `json:"right_column"`
}

// Contains reports whether loc lies within b.
func (b Bounds) Contains(loc MapLocation) bool {
	return loc.Row >= b.BottomRow && loc.Row <= b.TopRow &&
		loc.Column >= b.LeftColumn && loc.Column <= b.RightColumn
}

func (b Bounds) Rows() int    { return b.TopRow - b.BottomRow + 1 }
func (b Bounds) Columns() int { return b.RightColumn - b.LeftColumn + 1 }

func (b Bounds) String() string {
	return fmt.Sprintf("rows [%d,%d] columns [%d,%d]", b.BottomRow, b.TopRow, b.LeftColumn, b.RightColumn)
}

type shard struct {
	mu    sync.RWMutex
	cells map[MapLocation]*Cell
}

// Grid is safe for concurrent use. Readers never block on growth: cells are
// inserted into their shard first and the enlarged bounds are published
// afterwards, so every location inside a loaded Bounds has a cell.
// Structural writes (growth and restriction propagation) are serialised by
// writeMu, which readers never take.
type Grid struct {
	cfg     Config
	shards  [shardCount]shard
	bounds  atomic.Pointer[Bounds]
	writeMu sync.Mutex
	count   atomic.Int64
}

// New creates a grid covering [0,Width) x [0,Height) cm.
func New(cfg Config) (*Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid config: %w", err)
	}
	g := &Grid{cfg: cfg}
	for i := range g.shards {
		g.shards[i].cells = make(map[MapLocation]*Cell)
	}
	b := Bounds{
		TopRow:      cfg.Height/cfg.CellSize - 1,
		BottomRow:   0,
		LeftColumn:  0,
		RightColumn: cfg.Width/cfg.CellSize - 1,
	}
	for row := b.BottomRow; row <= b.TopRow; row++ {
		for col := b.LeftColumn; col <= b.RightColumn; col++ {
			g.insert(Loc(row, col))
		}
	}
	g.publish(b)
	return g, nil
}

// Config returns the configuration the grid was built with.
func (g *Grid) Config() Config { return g.cfg }

// CellSize is the side length of a cell in cm.
func (g *Grid) CellSize() int { return g.cfg.CellSize }

// Bounds returns a consistent snapshot of the current extent.
func (g *Grid) Bounds() Bounds { return *g.bounds.Load() }

// NumCells is the number of cells allocated so far.
func (g *Grid) NumCells() int { return int(g.count.Load()) }

func shardIndex(loc MapLocation) uint32 {
	h := uint32(loc.Row)*73856093 ^ uint32(loc.Column)*19349663
	return h % shardCount
}

func (g *Grid) lookup(loc MapLocation) *Cell {
	s := &g.shards[shardIndex(loc)]
	s.mu.RLock()
	c := s.cells[loc]
	s.mu.RUnlock()
	return c
}

func (g *Grid) insert(loc MapLocation) *Cell {
	s := &g.shards[shardIndex(loc)]
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cells[loc]; ok {
		return c
	}
	c := newCell()
	s.cells[loc] = c
	g.count.Add(1)
	return c
}

// mustCell resolves a location that the caller's bounds snapshot says
// exists. A miss means a query skipped the resize contract.
func (g *Grid) mustCell(loc MapLocation) *Cell {
	c := g.lookup(loc)
	if c == nil {
		msg := fmt.Sprintf("grid: no cell at %v within %v; resize before access", loc, g.Bounds())
		opsf("%s", msg)
		panic(msg)
	}
	return c
}

// FindCell returns the cell at loc, or nil when loc is outside the grid.
func (g *Grid) FindCell(loc MapLocation) *Cell {
	if !g.Bounds().Contains(loc) {
		return nil
	}
	return g.lookup(loc)
}

// LocationOf maps a world position to its cell using floor division.
func (g *Grid) LocationOf(p Position) MapLocation {
	return MapLocation{
		Row:    floorDiv(p.Y, g.cfg.CellSize),
		Column: floorDiv(p.X, g.cfg.CellSize),
	}
}

// CenterOf returns the world position at the centre of loc.
func (g *Grid) CenterOf(loc MapLocation) Position {
	cs := float64(g.cfg.CellSize)
	return Position{
		X: float64(loc.Column)*cs + cs/2,
		Y: float64(loc.Row)*cs + cs/2,
	}
}

// AddMeasurement records an occupied or free observation at loc. When the
// cell's occupied flag flips, every cell within the restriction radii gains
// or loses loc as a restrictor. It panics if loc is outside the grid.
func (g *Grid) AddMeasurement(loc MapLocation, occupied bool) {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	b := g.Bounds()
	if !b.Contains(loc) {
		msg := fmt.Sprintf("grid: measurement at %v outside %v; resize before access", loc, b)
		opsf("%s", msg)
		panic(msg)
	}
	if !g.mustCell(loc).update(occupied) {
		return
	}

	strict := g.cfg.RestrictRadius / g.cfg.CellSize
	weak := g.cfg.WeakRestrictRadius / g.cfg.CellSize
	g.forCircle(loc, weak, b, func(other MapLocation, d2 int) {
		c := g.mustCell(other)
		c.setRestrictor(loc, true, occupied)
		if d2 <= strict*strict {
			c.setRestrictor(loc, false, occupied)
		}
	})
	if occupied {
		tracef("occupied %v", loc)
	}
}

// Resize grows the grid so that p falls inside it. Rows are added first,
// then columns, each across the full extent of the other axis.
func (g *Grid) Resize(p Position) {
	loc := g.LocationOf(p)
	if g.Bounds().Contains(loc) {
		return
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	b := g.Bounds()
	before := b
	switch {
	case loc.Row > b.TopRow:
		g.grow(b, b.TopRow+1, loc.Row, b.LeftColumn, b.RightColumn)
		b.TopRow = loc.Row
		g.publish(b)
	case loc.Row < b.BottomRow:
		g.grow(b, loc.Row, b.BottomRow-1, b.LeftColumn, b.RightColumn)
		b.BottomRow = loc.Row
		g.publish(b)
	}
	switch {
	case loc.Column > b.RightColumn:
		g.grow(b, b.BottomRow, b.TopRow, b.RightColumn+1, loc.Column)
		b.RightColumn = loc.Column
		g.publish(b)
	case loc.Column < b.LeftColumn:
		g.grow(b, b.BottomRow, b.TopRow, loc.Column, b.LeftColumn-1)
		b.LeftColumn = loc.Column
		g.publish(b)
	}
	if b != before {
		diagf("resized for %v: %v -> %v (%d cells)", loc, before, b, g.NumCells())
	}
}

// publish stores a private copy of b; a loaded Bounds is never mutated.
func (g *Grid) publish(b Bounds) {
	g.bounds.Store(&b)
}

// grow inserts the rectangle of new cells and back-fills their restriction
// sets from every occupied cell of the existing extent within range.
func (g *Grid) grow(existing Bounds, rowLo, rowHi, colLo, colHi int) {
	strict := g.cfg.RestrictRadius / g.cfg.CellSize
	weak := g.cfg.WeakRestrictRadius / g.cfg.CellSize
	for row := rowLo; row <= rowHi; row++ {
		for col := colLo; col <= colHi; col++ {
			loc := Loc(row, col)
			c := g.insert(loc)
			g.forCircle(loc, weak, existing, func(other MapLocation, d2 int) {
				if !g.mustCell(other).IsOccupied() {
					return
				}
				c.setRestrictor(other, true, true)
				if d2 <= strict*strict {
					c.setRestrictor(other, false, true)
				}
			})
		}
	}
}

// forCircle visits every location of b within radius grid units of
// center, passing the squared distance.
func (g *Grid) forCircle(center MapLocation, radius int, b Bounds, fn func(MapLocation, int)) {
	top := min(center.Row+radius, b.TopRow)
	bottom := max(center.Row-radius, b.BottomRow)
	right := min(center.Column+radius, b.RightColumn)
	left := max(center.Column-radius, b.LeftColumn)
	r2 := radius * radius
	for row := bottom; row <= top; row++ {
		dr := row - center.Row
		for col := left; col <= right; col++ {
			dc := col - center.Column
			if d2 := dr*dr + dc*dc; d2 <= r2 {
				fn(Loc(row, col), d2)
			}
		}
	}
}
