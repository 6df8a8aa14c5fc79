package grid

import "math"

// Octant is one of the eight 45 degree sectors, counted counter-clockwise
// from the positive column axis.
type Octant int

// OctantForAngle classifies an angle in degrees into [k*45, (k+1)*45).
func OctantForAngle(deg float64) Octant {
	return Octant(int(math.Floor(NormalizeDegrees(deg)/45)) % 8)
}

// octantOf classifies a delta exactly, agreeing with OctantForAngle on the
// delta's bearing. A zero delta is octant zero.
func octantOf(d MapLocation) Octant {
	x, y := d.Column, d.Row
	switch {
	case x > 0 && y >= 0 && y < x:
		return 0
	case x > 0 && y >= x:
		return 1
	case x <= 0 && y > -x:
		return 2
	case x < 0 && y > 0:
		return 3
	case x < 0 && y <= 0 && y > x:
		return 4
	case y < 0 && x < 0:
		return 5
	case y < 0 && x >= 0 && x < -y:
		return 6
	case x > 0 && y < 0:
		return 7
	default:
		return 0
	}
}

// toOctantZero reflects d into the sector 0 <= row <= column.
func toOctantZero(o Octant, d MapLocation) MapLocation {
	x, y := d.Column, d.Row
	switch o {
	case 1:
		x, y = y, x
	case 2:
		x, y = y, -x
	case 3:
		x = -x
	case 4:
		x, y = -x, -y
	case 5:
		x, y = -y, -x
	case 6:
		x, y = -y, x
	case 7:
		y = -y
	}
	return MapLocation{Row: y, Column: x}
}

// fromOctantZero inverts toOctantZero.
func fromOctantZero(o Octant, d MapLocation) MapLocation {
	x, y := d.Column, d.Row
	switch o {
	case 1:
		x, y = y, x
	case 2:
		x, y = -y, x
	case 3:
		x = -x
	case 4:
		x, y = -x, -y
	case 5:
		x, y = -y, -x
	case 6:
		x, y = y, -x
	case 7:
		y = -y
	}
	return MapLocation{Row: y, Column: x}
}

// Line walks the grid from a towards b with Bresenham's algorithm. The
// result starts with a and stops before b. Line(a, a) is [a].
func Line(a, b MapLocation) []MapLocation {
	delta := b.Sub(a)
	if delta == (MapLocation{}) {
		return []MapLocation{a}
	}
	oct := octantOf(delta)
	end := toOctantZero(oct, delta)
	dx, dy := end.Column, end.Row

	out := make([]MapLocation, 0, dx)
	d := 2*dy - dx
	y := 0
	for x := 0; x < dx; x++ {
		out = append(out, a.Add(fromOctantZero(oct, Loc(y, x))))
		if d > 0 {
			y++
			d -= 2 * dx
		}
		d += 2 * dy
	}
	return out
}
