package grid

import (
	"sort"
	"sync"
)

// State is the ternary occupancy of a cell.
type State uint8

const (
	Unexplored State = iota
	Free
	Occupied
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Occupied:
		return "occupied"
	default:
		return "unexplored"
	}
}

// Cell is the occupancy record owned by the grid at one MapLocation.
//
// Restriction sets hold the locations of occupied cells close enough to
// forbid (strict) or discourage (weak) targeting this cell. They are only
// mutated by the grid.
type Cell struct {
	mu                sync.RWMutex
	state             State
	observed          bool
	restricting       map[MapLocation]struct{}
	weaklyRestricting map[MapLocation]struct{}
}

func newCell() *Cell {
	return &Cell{}
}

// State returns the current occupancy.
func (c *Cell) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Cell) IsOccupied() bool { return c.State() == Occupied }
func (c *Cell) IsFree() bool     { return c.State() == Free }

// IsPreviouslyObserved reports whether any measurement has touched the cell.
func (c *Cell) IsPreviouslyObserved() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.observed
}

func (c *Cell) IsRestricted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.restricting) > 0
}

func (c *Cell) IsWeaklyRestricted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.weaklyRestricting) > 0
}

// IsTargetable reports a free cell with no strict restrictors.
func (c *Cell) IsTargetable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == Free && len(c.restricting) == 0
}

// IsWeaklyTargetable reports a free cell with no weak restrictors.
func (c *Cell) IsWeaklyTargetable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == Free && len(c.weaklyRestricting) == 0
}

// Restrictors returns the strict restrictor locations in row-major order.
func (c *Cell) Restrictors() []MapLocation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.restricting)
}

// WeakRestrictors returns the weak restrictor locations in row-major order.
func (c *Cell) WeakRestrictors() []MapLocation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.weaklyRestricting)
}

// CellView is an immutable copy of a cell's flags.
type CellView struct {
	Location         MapLocation `json:"location"`
	State            State       `json:"-"`
	StateName        string      `json:"state"`
	Observed         bool        `json:"observed"`
	Restricted       bool        `json:"restricted"`
	WeaklyRestricted bool        `json:"weakly_restricted"`
}

func (c *Cell) view(loc MapLocation) CellView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CellView{
		Location:         loc,
		State:            c.state,
		StateName:        c.state.String(),
		Observed:         c.observed,
		Restricted:       len(c.restricting) > 0,
		WeaklyRestricted: len(c.weaklyRestricting) > 0,
	}
}

// update applies a measurement and reports whether the occupied flag
// flipped. Unexplored counts as not occupied.
func (c *Cell) update(occupied bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.state == Occupied
	if occupied {
		c.state = Occupied
	} else {
		c.state = Free
	}
	c.observed = true
	return was != occupied
}

// freeIfUnexplored forces an unexplored cell to free.
func (c *Cell) freeIfUnexplored() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Unexplored {
		return false
	}
	c.state = Free
	c.observed = true
	return true
}

func (c *Cell) setRestrictor(from MapLocation, weak, add bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := &c.restricting
	if weak {
		set = &c.weaklyRestricting
	}
	if !add {
		delete(*set, from)
		return
	}
	if *set == nil {
		*set = make(map[MapLocation]struct{})
	}
	(*set)[from] = struct{}{}
}

func sortedKeys(m map[MapLocation]struct{}) []MapLocation {
	out := make([]MapLocation, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Column < out[j].Column
	})
	return out
}
