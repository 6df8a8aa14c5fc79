package mapping

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swarm.map/internal/grid"
	"github.com/banshee-data/swarm.map/internal/timeutil"
)

type recorderStub struct {
	mu      sync.Mutex
	samples []CoverageSample
	err     error
}

func (r *recorderStub) RecordCoverage(_ context.Context, s CoverageSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
	return r.err
}

func (r *recorderStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

func pocketGrid(t *testing.T) *grid.Grid {
	t.Helper()
	cfg := grid.DefaultConfig()
	cfg.Width, cfg.Height = 20, 20
	g, err := grid.New(cfg)
	require.NoError(t, err)
	for row := 0; row <= 7; row++ {
		for col := 0; col < 10; col++ {
			if row == 3 && col == 3 {
				continue
			}
			g.AddMeasurement(grid.Loc(row, col), false)
		}
	}
	return g
}

func TestMaintainer_RunOnce(t *testing.T) {
	g := pocketGrid(t)
	rec := &recorderStub{}
	clock := timeutil.NewMockClock(time.Unix(100, 0))
	m := NewMaintainer(g, MaintainerConfig{Interval: time.Second, Recorder: rec, Clock: clock})

	s := m.RunOnce(context.Background())
	assert.GreaterOrEqual(t, s.Cleaned, 1)
	assert.Equal(t, time.Unix(100, 0), s.Taken)
	assert.Equal(t, grid.Free, g.FindCell(grid.Loc(3, 3)).State())
	assert.Equal(t, g.Stats(), s.Stats)
	assert.Equal(t, len(g.FrontierLocations()), s.Frontier)
	assert.Equal(t, 1, rec.count())
	assert.Len(t, m.History(), 1)
}

func TestMaintainer_RecorderErrorIsNotFatal(t *testing.T) {
	g := pocketGrid(t)
	rec := &recorderStub{err: errors.New("disk full")}
	m := NewMaintainer(g, MaintainerConfig{Interval: time.Second, Recorder: rec})
	assert.NotPanics(t, func() { m.RunOnce(context.Background()) })
	assert.Len(t, m.History(), 1)
}

func TestMaintainer_HistoryLimit(t *testing.T) {
	g := pocketGrid(t)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	m := NewMaintainer(g, MaintainerConfig{Interval: time.Second, HistoryLimit: 3, Clock: clock})
	for i := 0; i < 5; i++ {
		m.RunOnce(context.Background())
		clock.Advance(time.Second)
	}
	h := m.History()
	require.Len(t, h, 3)
	assert.True(t, h[0].Taken.Equal(time.Unix(2, 0)), "oldest retained sample is the third pass, got %v", h[0].Taken)
	assert.True(t, h[2].Taken.Equal(time.Unix(4, 0)))
}

func TestMaintainer_RunAndStop(t *testing.T) {
	g := pocketGrid(t)
	rec := &recorderStub{}
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	m := NewMaintainer(g, MaintainerConfig{Interval: time.Second, Recorder: rec, Clock: clock})

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()
	require.Eventually(t, func() bool { return clock.Tickers() == 1 }, time.Second, time.Millisecond)
	assert.True(t, m.IsRunning())

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)

	m.Stop()
	assert.NoError(t, <-done)
	assert.False(t, m.IsRunning())
	m.Stop()
}

func TestMaintainer_ZeroIntervalReturns(t *testing.T) {
	m := NewMaintainer(pocketGrid(t), MaintainerConfig{})
	assert.NoError(t, m.Run(context.Background()))
	assert.False(t, m.IsRunning())
}
