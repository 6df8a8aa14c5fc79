package navigation

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/swarm.map/internal/explore"
	"github.com/banshee-data/swarm.map/internal/grid"
	"github.com/banshee-data/swarm.map/internal/monitoring"
	"github.com/banshee-data/swarm.map/internal/robot"
	"github.com/banshee-data/swarm.map/internal/timeutil"
)

// Driver turns a waypoint into motion for one robot. The robot reports
// itself idle again once it arrives.
type Driver interface {
	Drive(robotID string, target grid.Position)
}

// Tasker is the allocator surface the controller needs.
type Tasker interface {
	CreateNewTask(ctx context.Context, r explore.Robot, nav explore.WaypointSink) bool
	IsWorkingOnTask(robotID string) bool
	RemoveRobot(robotID string)
}

// LogDriver writes each drive command to w. It stands in for a real robot
// link in simulations and on the bench.
type LogDriver struct {
	logger *log.Logger
}

// NewLogDriver creates a LogDriver writing to w.
func NewLogDriver(w io.Writer) *LogDriver {
	return &LogDriver{logger: log.New(w, "[drive] ", log.LstdFlags|log.Lmicroseconds)}
}

func (d *LogDriver) Drive(robotID string, target grid.Position) {
	d.logger.Printf("robot %s -> (%.1f, %.1f)", robotID, target.X, target.Y)
}

// Config contains configuration for Controller.
type Config struct {
	// Interval between dispatch passes (default 100ms).
	Interval time.Duration
	// StartDelay lets the map fill in before the first task is created.
	StartDelay time.Duration
	Clock      timeutil.Clock
}

// DefaultConfig returns the dispatch timing used by the service.
func DefaultConfig() Config {
	return Config{
		Interval:   100 * time.Millisecond,
		StartDelay: 5 * time.Second,
		Clock:      timeutil.RealClock{},
	}
}

// Controller dispatches waypoints to idle robots and requests new tasks
// for robots with nothing queued.
type Controller struct {
	robots *robot.Registry
	tasks  Tasker
	driver Driver
	cfg    Config

	mu     sync.Mutex
	queues map[string]*Waypoints
}

// NewController creates a Controller over the registered robots.
func NewController(robots *robot.Registry, tasks Tasker, driver Driver, cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	return &Controller{
		robots: robots,
		tasks:  tasks,
		driver: driver,
		cfg:    cfg,
		queues: make(map[string]*Waypoints),
	}
}

// Queue returns the waypoint queue for a robot, creating it on first use.
func (c *Controller) Queue(robotID string) *Waypoints {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.queues[robotID]
	if !ok {
		q = &Waypoints{}
		c.queues[robotID] = q
	}
	return q
}

// RemoveRobot drops the robot's queue and its allocator state.
func (c *Controller) RemoveRobot(robotID string) {
	c.mu.Lock()
	delete(c.queues, robotID)
	c.mu.Unlock()
	c.tasks.RemoveRobot(robotID)
	diagf("robot %s removed from dispatch", robotID)
}

// Step runs one dispatch pass and returns the number of waypoints sent.
func (c *Controller) Step(ctx context.Context) int {
	sent := 0
	for _, r := range c.robots.List() {
		if r.IsBusy() {
			continue
		}
		q := c.Queue(r.ID())
		if wp, ok := q.Next(); ok {
			r.SetBusy(true)
			c.driver.Drive(r.ID(), wp)
			monitoring.WaypointsDispatched.Inc()
			tracef("robot %s driving to (%.1f, %.1f), %d left", r.ID(), wp.X, wp.Y, q.Len())
			sent++
			continue
		}
		if !c.tasks.IsWorkingOnTask(r.ID()) && c.tasks.CreateNewTask(ctx, r, q) {
			tracef("robot %s idle, task requested", r.ID())
		}
	}
	return sent
}

// Run waits StartDelay and then dispatches every Interval until ctx is
// cancelled.
func (c *Controller) Run(ctx context.Context) error {
	if c.cfg.StartDelay > 0 {
		diagf("dispatch starts in %v", c.cfg.StartDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-c.cfg.Clock.After(c.cfg.StartDelay):
		}
	}

	ticker := c.cfg.Clock.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	opsf("dispatch loop started: interval=%v", c.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			opsf("dispatch loop stopping")
			return nil
		case <-ticker.C():
			c.Step(ctx)
		}
	}
}
