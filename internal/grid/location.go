package grid

import (
	"fmt"
	"math"
)

// MapLocation is an integer (row, column) index into the grid. Rows grow
// with the world Y axis and columns with the world X axis.
type MapLocation struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Loc is shorthand for MapLocation{Row: row, Column: column}.
func Loc(row, column int) MapLocation {
	return MapLocation{Row: row, Column: column}
}

// Add returns the component-wise sum of l and o.
func (l MapLocation) Add(o MapLocation) MapLocation {
	return MapLocation{Row: l.Row + o.Row, Column: l.Column + o.Column}
}

// Sub returns l - o.
func (l MapLocation) Sub(o MapLocation) MapLocation {
	return MapLocation{Row: l.Row - o.Row, Column: l.Column - o.Column}
}

func (l MapLocation) String() string {
	return fmt.Sprintf("(%d,%d)", l.Row, l.Column)
}

// Distance is the Euclidean distance between a and b in grid units.
func Distance(a, b MapLocation) float64 {
	return math.Hypot(float64(a.Row-b.Row), float64(a.Column-b.Column))
}

// AngleBetween returns the bearing from one location to another in degrees,
// measured counter-clockwise from the column axis, in [0,360).
func AngleBetween(from, to MapLocation) float64 {
	d := to.Sub(from)
	return NormalizeDegrees(math.Atan2(float64(d.Row), float64(d.Column)) * 180 / math.Pi)
}

// floorDiv divides rounding towards negative infinity.
func floorDiv(v float64, size int) int {
	return int(math.Floor(v / float64(size)))
}
