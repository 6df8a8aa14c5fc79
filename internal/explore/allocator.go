// Package explore assigns exploration targets to idle robots. Each idle
// robot gets a short-lived worker that ranks frontier cells with a utility
// function, asks a path finder for a route and hands the resulting
// waypoints to navigation.
package explore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/swarm.map/internal/grid"
	"github.com/banshee-data/swarm.map/internal/monitoring"
	"github.com/banshee-data/swarm.map/internal/timeutil"
)

// Robot is the allocator's view of a robot.
type Robot interface {
	ID() string
	Position() grid.Position
	Heading() float64
	SetDestination(grid.Position)
}

// WaypointSink receives a committed waypoint sequence for one robot.
type WaypointSink interface {
	AddWaypoints(wps []grid.Position)
}

// PathFinder returns a cell path from one location to another over g,
// both ends included, or false when none exists.
type PathFinder interface {
	FindPath(g *grid.Grid, from, to grid.MapLocation) ([]grid.MapLocation, bool)
}

// WaypointGenerator reduces a cell path to a sparse list of world
// positions. It may return none.
type WaypointGenerator interface {
	GenerateWaypoints(g *grid.Grid, path []grid.MapLocation) []grid.Position
}

// Outcome classifies how a worker finished.
type Outcome string

const (
	OutcomeAssigned    Outcome = "assigned"
	OutcomeNoTarget    Outcome = "no_target"
	OutcomeUnreachable Outcome = "unreachable"
	OutcomeRestricted  Outcome = "restricted"
	OutcomeNoWaypoints Outcome = "no_waypoints"
	OutcomeRobotGone   Outcome = "robot_gone"
)

// TaskResult describes one finished worker.
type TaskResult struct {
	TaskID     string
	RobotID    string
	Outcome    Outcome
	Target     grid.MapLocation
	HasTarget  bool
	Utility    float64
	Waypoints  int
	Candidates int
	Rejected   int
	Started    time.Time
	Finished   time.Time
}

// TaskRecorder persists worker results.
type TaskRecorder interface {
	RecordTask(ctx context.Context, r TaskResult) error
}

// Config tunes target selection. Distances are in cm.
type Config struct {
	TargetSpacing     float64
	ExplorationRadius int
	CrowdingRadius    float64
	MinTargetDistance float64
	Weights           Weights

	// Recorder is optional.
	Recorder TaskRecorder
	Clock    timeutil.Clock
}

// DefaultConfig returns the tuned allocator settings.
func DefaultConfig() Config {
	return Config{
		TargetSpacing:     5,
		ExplorationRadius: 30,
		CrowdingRadius:    50,
		MinTargetDistance: 5,
		Weights:           DefaultWeights(),
		Clock:             timeutil.RealClock{},
	}
}

type task struct {
	id      string
	robotID string
	retired atomic.Bool
}

// Allocator owns the target bookkeeping shared by all workers.
type Allocator struct {
	grid      *grid.Grid
	paths     PathFinder
	waypoints WaypointGenerator
	cfg       Config
	weights   atomic.Pointer[Weights]

	targetsMu sync.RWMutex
	current   map[string]grid.MapLocation
	temporary map[string]grid.MapLocation

	tasksMu sync.Mutex
	tasks   map[string]*task
	wg      sync.WaitGroup
}

// NewAllocator creates an allocator over g.
func NewAllocator(g *grid.Grid, paths PathFinder, waypoints WaypointGenerator, cfg Config) *Allocator {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	a := &Allocator{
		grid:      g,
		paths:     paths,
		waypoints: waypoints,
		cfg:       cfg,
		current:   make(map[string]grid.MapLocation),
		temporary: make(map[string]grid.MapLocation),
		tasks:     make(map[string]*task),
	}
	w := cfg.Weights
	a.weights.Store(&w)
	return a
}

// Weights returns the weights in effect.
func (a *Allocator) Weights() Weights { return *a.weights.Load() }

// SetWeights swaps the utility weights. Running workers pick the new set up
// on their next scoring pass.
func (a *Allocator) SetWeights(w Weights) {
	a.weights.Store(&w)
	diagf("utility weights now %+v", w)
}

// UpdateCurrentTarget records loc as the robot's committed target.
func (a *Allocator) UpdateCurrentTarget(robotID string, loc grid.MapLocation) {
	a.targetsMu.Lock()
	defer a.targetsMu.Unlock()
	a.current[robotID] = loc
}

// CurrentTargets returns a copy of the committed targets.
func (a *Allocator) CurrentTargets() map[string]grid.MapLocation {
	a.targetsMu.RLock()
	defer a.targetsMu.RUnlock()
	return copyTargets(a.current)
}

// TemporaryTargets returns a copy of the in-flight candidates.
func (a *Allocator) TemporaryTargets() map[string]grid.MapLocation {
	a.targetsMu.RLock()
	defer a.targetsMu.RUnlock()
	return copyTargets(a.temporary)
}

func (a *Allocator) snapshot() targetSnapshot {
	a.targetsMu.RLock()
	defer a.targetsMu.RUnlock()
	return targetSnapshot{current: copyTargets(a.current), temporary: copyTargets(a.temporary)}
}

func copyTargets(m map[string]grid.MapLocation) map[string]grid.MapLocation {
	out := make(map[string]grid.MapLocation, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IsWorkingOnTask reports whether a worker is running for the robot.
func (a *Allocator) IsWorkingOnTask(robotID string) bool {
	a.tasksMu.Lock()
	defer a.tasksMu.Unlock()
	_, ok := a.tasks[robotID]
	return ok
}

// ActiveTasks returns the number of running workers.
func (a *Allocator) ActiveTasks() int {
	a.tasksMu.Lock()
	defer a.tasksMu.Unlock()
	return len(a.tasks)
}

// RemoveRobot forgets the robot's targets. A worker still running for it
// finishes but its result is discarded.
func (a *Allocator) RemoveRobot(robotID string) {
	a.tasksMu.Lock()
	if t, ok := a.tasks[robotID]; ok {
		t.retired.Store(true)
	}
	a.tasksMu.Unlock()

	a.targetsMu.Lock()
	delete(a.current, robotID)
	delete(a.temporary, robotID)
	a.targetsMu.Unlock()
}

// Wait blocks until every running worker has exited.
func (a *Allocator) Wait() { a.wg.Wait() }

// CreateNewTask starts a worker for r unless one is already running. The
// robot's current cell is recorded as its committed target straight away
// so teammates keep clear while it decides. ctx is only used to record the
// result; workers are not cancelled.
func (a *Allocator) CreateNewTask(ctx context.Context, r Robot, nav WaypointSink) bool {
	a.tasksMu.Lock()
	if _, ok := a.tasks[r.ID()]; ok {
		a.tasksMu.Unlock()
		return false
	}
	t := &task{id: uuid.NewString(), robotID: r.ID()}
	a.tasks[r.ID()] = t
	a.wg.Add(1)
	a.tasksMu.Unlock()

	a.UpdateCurrentTarget(r.ID(), a.grid.LocationOf(r.Position()))
	monitoring.ActiveWorkers.Inc()
	go a.work(context.WithoutCancel(ctx), t, r, nav)
	return true
}

func (a *Allocator) work(ctx context.Context, t *task, r Robot, nav WaypointSink) {
	res := TaskResult{TaskID: t.id, RobotID: t.robotID, Started: a.cfg.Clock.Now()}
	defer func() {
		a.targetsMu.Lock()
		delete(a.temporary, t.robotID)
		a.targetsMu.Unlock()

		a.tasksMu.Lock()
		if a.tasks[t.robotID] == t {
			delete(a.tasks, t.robotID)
		}
		a.tasksMu.Unlock()

		res.Finished = a.cfg.Clock.Now()
		a.finish(ctx, res)
		monitoring.ActiveWorkers.Dec()
		a.wg.Done()
	}()

	res.Outcome = a.assign(t, r, nav, &res)
}

// assign runs the selection loop and returns how it ended.
func (a *Allocator) assign(t *task, r Robot, nav WaypointSink, res *TaskResult) Outcome {
	candidates := a.SelectSpreadLocations(a.grid.FrontierLocations())
	res.Candidates = len(candidates)

	for {
		if t.retired.Load() {
			return OutcomeRobotGone
		}
		robotLoc := a.grid.LocationOf(r.Position())
		best, utility, ok := a.FindBestTarget(t.robotID, robotLoc, r.Heading(), candidates)
		if !ok {
			return OutcomeNoTarget
		}
		if !a.setTemporary(t, best) {
			return OutcomeRobotGone
		}
		res.Target, res.Utility, res.HasTarget = best, utility, true

		robotLoc = a.grid.LocationOf(r.Position())
		if c := a.grid.FindCell(robotLoc); c == nil || c.IsRestricted() {
			return OutcomeRestricted
		}

		path, found := a.paths.FindPath(a.grid, robotLoc, best)
		if !found {
			candidates = without(candidates, best)
			res.Rejected++
			if len(candidates) == 0 {
				return OutcomeUnreachable
			}
			continue
		}

		wps := a.waypoints.GenerateWaypoints(a.grid, path)
		if len(wps) == 0 {
			return OutcomeNoWaypoints
		}
		if !a.commit(t, best) {
			return OutcomeRobotGone
		}
		res.Waypoints = len(wps)
		nav.AddWaypoints(wps)
		r.SetDestination(wps[len(wps)-1])
		return OutcomeAssigned
	}
}

func (a *Allocator) setTemporary(t *task, loc grid.MapLocation) bool {
	a.targetsMu.Lock()
	defer a.targetsMu.Unlock()
	if t.retired.Load() {
		return false
	}
	a.temporary[t.robotID] = loc
	return true
}

func (a *Allocator) commit(t *task, loc grid.MapLocation) bool {
	a.targetsMu.Lock()
	defer a.targetsMu.Unlock()
	if t.retired.Load() {
		return false
	}
	a.current[t.robotID] = loc
	delete(a.temporary, t.robotID)
	return true
}

func (a *Allocator) finish(ctx context.Context, res TaskResult) {
	monitoring.TaskOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	monitoring.TaskDuration.Observe(res.Finished.Sub(res.Started).Seconds())
	if res.Outcome == OutcomeAssigned {
		diagf("robot %s assigned %v (utility %.1f, %d waypoints)", res.RobotID, res.Target, res.Utility, res.Waypoints)
	} else {
		diagf("robot %s: %s after %d of %d candidates", res.RobotID, res.Outcome, res.Rejected, res.Candidates)
	}
	if res.Outcome == OutcomeRobotGone {
		opsf("robot %s left during task %s; result discarded", res.RobotID, res.TaskID)
	}
	if a.cfg.Recorder == nil {
		return
	}
	if err := a.cfg.Recorder.RecordTask(ctx, res); err != nil {
		opsf("recording task %s for robot %s: %v", res.TaskID, res.RobotID, err)
	}
}

func without(locs []grid.MapLocation, drop grid.MapLocation) []grid.MapLocation {
	for i, l := range locs {
		if l == drop {
			return append(locs[:i:i], locs[i+1:]...)
		}
	}
	return locs
}
