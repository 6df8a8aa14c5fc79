// Package mapping fuses robot range readings into the shared occupancy grid.
package mapping

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/swarm.map/internal/grid"
	"github.com/banshee-data/swarm.map/internal/monitoring"
	"github.com/banshee-data/swarm.map/internal/timeutil"
)

// Robot is what the mapping loop needs from a tracked robot.
type Robot interface {
	MeasurementSource
	ID() string
	InitialPose() grid.Pose
	Position() grid.Position
	SetPose(grid.Pose)
	SetDestination(grid.Position)
}

// Config controls the fusion loop.
type Config struct {
	// TickInterval is the period of the fusion loop.
	TickInterval time.Duration
	// SensorRange is the maximum usable ranging distance in cm. Readings of
	// zero or at or beyond this range count as no hit.
	SensorRange int
	// TeammateExclusion drops readings ending this close (cm) to another
	// tracked robot.
	TeammateExclusion float64
	Clock             timeutil.Clock
}

// DefaultConfig returns the standard loop settings.
func DefaultConfig() Config {
	return Config{
		TickInterval:      10 * time.Millisecond,
		SensorRange:       40,
		TeammateExclusion: 10,
		Clock:             timeutil.RealClock{},
	}
}

type tracked struct {
	robot   Robot
	handler *MeasurementHandler
}

// Engine runs one fusion pass per tick over every tracked robot, in the
// order they were added.
type Engine struct {
	grid *grid.Grid
	cfg  Config

	mu     sync.Mutex
	robots []*tracked

	paused atomic.Bool
	ticks  atomic.Uint64
}

// NewEngine creates an engine writing into g.
func NewEngine(g *grid.Grid, cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.SensorRange <= 0 {
		cfg.SensorRange = DefaultConfig().SensorRange
	}
	return &Engine{grid: g, cfg: cfg}
}

// AddRobot starts tracking r. The robot is placed at its initial pose, told
// to stay there and the grid is grown to contain it.
func (e *Engine) AddRobot(r Robot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.robots {
		if t.robot.ID() == r.ID() {
			return fmt.Errorf("robot %s is already tracked", r.ID())
		}
	}
	initial := r.InitialPose()
	r.SetPose(initial)
	r.SetDestination(initial.Position)
	e.grid.Resize(initial.Position)
	e.robots = append(e.robots, &tracked{
		robot:   r,
		handler: NewMeasurementHandler(r, initial, e.cfg.SensorRange),
	})
	diagf("tracking robot %s from %+v", r.ID(), initial)
	return nil
}

// RemoveRobot stops tracking the robot with the given id.
func (e *Engine) RemoveRobot(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, t := range e.robots {
		if t.robot.ID() == id {
			e.robots = append(e.robots[:i:i], e.robots[i+1:]...)
			opsf("stopped tracking robot %s", id)
			return true
		}
	}
	return false
}

// Robots lists tracked robot ids in fusion order.
func (e *Engine) Robots() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, len(e.robots))
	for i, t := range e.robots {
		ids[i] = t.robot.ID()
	}
	return ids
}

func (e *Engine) Pause()         { e.paused.Store(true) }
func (e *Engine) Resume()        { e.paused.Store(false) }
func (e *Engine) IsPaused() bool { return e.paused.Load() }

// Ticks is the number of fusion passes completed.
func (e *Engine) Ticks() uint64 { return e.ticks.Load() }

// Tick runs one fusion pass.
func (e *Engine) Tick() {
	e.mu.Lock()
	robots := append([]*tracked(nil), e.robots...)
	e.mu.Unlock()

	for _, t := range robots {
		e.fuse(t, robots)
	}
	e.ticks.Add(1)
}

// fuse applies the next buffered record of t, if any.
func (e *Engine) fuse(t *tracked, all []*tracked) {
	if !t.handler.Update() {
		return
	}
	pose := t.handler.Pose()
	t.robot.SetPose(pose)
	e.grid.Resize(pose.Position)
	robotLoc := e.grid.LocationOf(pose.Position)

	var hits, misses, skipped int
	for _, s := range t.handler.Sensors() {
		if e.nearTeammate(t, s.Position, all) {
			skipped++
			continue
		}
		e.grid.Resize(s.Position)
		end := e.grid.LocationOf(s.Position)
		if s.Hit {
			hits++
			e.grid.AddMeasurement(end, true)
		} else {
			misses++
		}
		for _, loc := range grid.Line(robotLoc, end) {
			if s.Hit && loc == end {
				continue
			}
			e.grid.AddMeasurement(loc, false)
		}
		if !s.Hit && end != robotLoc {
			e.grid.AddMeasurement(end, false)
		}
	}

	monitoring.MeasurementsFused.Inc()
	monitoring.SensorReadings.WithLabelValues("hit").Add(float64(hits))
	monitoring.SensorReadings.WithLabelValues("miss").Add(float64(misses))
	monitoring.SensorReadings.WithLabelValues("teammate").Add(float64(skipped))
	tracef("robot %s at %v: %d hits, %d misses, %d near teammates", t.robot.ID(), robotLoc, hits, misses, skipped)
}

func (e *Engine) nearTeammate(self *tracked, p grid.Position, all []*tracked) bool {
	for _, other := range all {
		if other == self {
			continue
		}
		if grid.DistanceBetween(other.robot.Position(), p) < e.cfg.TeammateExclusion {
			return true
		}
	}
	return false
}

// Run ticks until ctx is cancelled. Ticks are skipped while paused.
func (e *Engine) Run(ctx context.Context) error {
	ticker := e.cfg.Clock.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	opsf("fusion loop started: interval=%v", e.cfg.TickInterval)

	for {
		select {
		case <-ctx.Done():
			opsf("fusion loop stopping after %d ticks", e.Ticks())
			return nil
		case <-ticker.C():
			if e.paused.Load() {
				continue
			}
			start := time.Now()
			e.Tick()
			monitoring.FusionDuration.Observe(time.Since(start).Seconds())
		}
	}
}
