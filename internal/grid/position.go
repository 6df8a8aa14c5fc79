package grid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Position is a point in the world frame, in centimetres.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec returns p as a gonum vector.
func (p Position) Vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// PositionFromVec converts a gonum vector to a Position.
func PositionFromVec(v r2.Vec) Position {
	return Position{X: v.X, Y: v.Y}
}

// DistanceBetween is the Euclidean distance between two positions in cm.
func DistanceBetween(a, b Position) float64 {
	return r2.Norm(r2.Sub(a.Vec(), b.Vec()))
}

// Offset returns the point distance cm away from p along headingDeg.
func (p Position) Offset(distance, headingDeg float64) Position {
	rad := headingDeg * math.Pi / 180
	dir := r2.Vec{X: math.Cos(rad), Y: math.Sin(rad)}
	return PositionFromVec(r2.Add(p.Vec(), r2.Scale(distance, dir)))
}

// Pose is a position plus a heading in degrees, normalised to [0,360).
type Pose struct {
	Position
	Heading float64 `json:"heading"`
}

// NewPose builds a pose with a normalised heading.
func NewPose(x, y, heading float64) Pose {
	return Pose{Position: Position{X: x, Y: y}, Heading: NormalizeDegrees(heading)}
}

// Transform maps a pose expressed in the frame whose origin is origin into
// the world frame.
func (p Pose) Transform(origin Pose) Pose {
	rad := origin.Heading * math.Pi / 180
	rotated := r2.Rotate(p.Vec(), rad, r2.Vec{})
	return Pose{
		Position: PositionFromVec(r2.Add(rotated, origin.Vec())),
		Heading:  NormalizeDegrees(p.Heading + origin.Heading),
	}
}

// NormalizeDegrees folds an angle into [0,360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}
