package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDegrees(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{359.5, 359.5},
		{360, 0},
		{725, 5},
		{-90, 270},
		{-720, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalizeDegrees(tt.in), 1e-9, "NormalizeDegrees(%v)", tt.in)
	}
}

func TestPose_Transform(t *testing.T) {
	origin := NewPose(10, 0, 90)
	got := NewPose(5, 0, 0).Transform(origin)
	assert.InDelta(t, 10, got.X, 1e-9)
	assert.InDelta(t, 5, got.Y, 1e-9)
	assert.InDelta(t, 90, got.Heading, 1e-9)

	got = NewPose(0, 0, 300).Transform(NewPose(-3, 4, 120))
	assert.InDelta(t, -3, got.X, 1e-9)
	assert.InDelta(t, 4, got.Y, 1e-9)
	assert.InDelta(t, 60, got.Heading, 1e-9)
}

func TestPosition_Offset(t *testing.T) {
	p := Position{X: 1, Y: 1}.Offset(10, 90)
	assert.InDelta(t, 1, p.X, 1e-9)
	assert.InDelta(t, 11, p.Y, 1e-9)
	assert.InDelta(t, 10, DistanceBetween(Position{X: 1, Y: 1}, p), 1e-9)
}

func TestMapLocationGeometry(t *testing.T) {
	assert.Equal(t, 5.0, Distance(Loc(0, 0), Loc(3, 4)))
	assert.InDelta(t, 90, AngleBetween(Loc(0, 0), Loc(2, 0)), 1e-9)
	assert.InDelta(t, 225, AngleBetween(Loc(1, 1), Loc(0, 0)), 1e-9)
	assert.Equal(t, "(1,-2)", Loc(1, -2).String())
}
