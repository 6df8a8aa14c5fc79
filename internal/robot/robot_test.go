package robot

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swarm.map/internal/grid"
)

func newTestRobot(t *testing.T, id string) *Robot {
	t.Helper()
	r, err := New(id, grid.NewPose(10, 20, 90), []float64{0, 90, 180, 270})
	require.NoError(t, err)
	return r
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", grid.Pose{}, []float64{0})
	assert.ErrorIs(t, err, ErrInvalidRobotID)

	_, err = New("r1", grid.Pose{}, nil)
	assert.ErrorIs(t, err, ErrNoSensorsOnBody)

	r, err := New("r1", grid.NewPose(1, 2, -90), []float64{0})
	require.NoError(t, err)
	assert.Equal(t, 270.0, r.InitialPose().Heading)
	assert.Equal(t, r.InitialPose(), r.Pose())
	assert.Equal(t, grid.Position{X: 1, Y: 2}, r.Destination())
}

func TestEnqueue_ResolvesSensorHeadings(t *testing.T) {
	r := newTestRobot(t, "r1")
	require.NoError(t, r.Enqueue(Update{X: 1, Y: 2, Heading: 370, TowerHeading: 100, Distances: []int{10, 0, 45, 12}}))

	m, ok := r.NextMeasurement()
	require.True(t, ok)
	want := Measurement{
		Pose:           grid.NewPose(1, 2, 10),
		SensorHeadings: []float64{100, 190, 280, 10},
		Distances:      []int{10, 0, 45, 12},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("measurement mismatch (-want +got):\n%s", diff)
	}

	_, ok = r.NextMeasurement()
	assert.False(t, ok, "queue should be drained")
}

func TestEnqueue_SensorMismatch(t *testing.T) {
	r := newTestRobot(t, "r1")
	err := r.Enqueue(Update{Distances: []int{1, 2}})
	assert.True(t, errors.Is(err, ErrSensorMismatch))
	assert.Zero(t, r.Pending())
}

func TestEnqueue_FIFOAndOverflow(t *testing.T) {
	r := newTestRobot(t, "r1")
	r.limit = 3
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Enqueue(Update{X: float64(i), Distances: []int{0, 0, 0, 0}}))
	}
	assert.Equal(t, 3, r.Pending())
	assert.Equal(t, uint64(2), r.Dropped())

	for _, want := range []float64{2, 3, 4} {
		m, ok := r.NextMeasurement()
		require.True(t, ok)
		assert.Equal(t, want, m.Pose.X)
	}
}

func TestRobotStatus(t *testing.T) {
	r := newTestRobot(t, "r1")
	r.SetBusy(true)
	r.SetPose(grid.NewPose(5, 6, 45))
	r.SetDestination(grid.Position{X: 50, Y: 60})

	st := r.Status()
	assert.Equal(t, "r1", st.ID)
	assert.True(t, st.Busy)
	assert.True(t, r.IsBusy())
	assert.Equal(t, grid.Position{X: 5, Y: 6}, r.Position())
	assert.Equal(t, 45.0, r.Heading())
	assert.Equal(t, grid.Position{X: 50, Y: 60}, st.Destination)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(newTestRobot(t, "b")))
	require.NoError(t, reg.Add(newTestRobot(t, "a")))
	assert.ErrorIs(t, reg.Add(newTestRobot(t, "a")), ErrRobotExists)
	assert.Equal(t, 2, reg.Len())

	var ids []string
	for _, r := range reg.List() {
		ids = append(ids, r.ID())
	}
	assert.Equal(t, []string{"a", "b"}, ids)

	_, err := reg.Lookup("missing")
	assert.ErrorIs(t, err, ErrRobotNotFound)

	assert.True(t, reg.Remove("a"))
	assert.False(t, reg.Remove("a"))
	_, ok := reg.Get("a")
	assert.False(t, ok)
}
