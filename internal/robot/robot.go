// Package robot tracks the robots taking part in an exploration run: their
// pose, busy flag, destination and the queue of update records they report.
package robot

import (
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/swarm.map/internal/grid"
)

// DefaultQueueLimit bounds the number of unprocessed update records held per
// robot. The oldest record is dropped when the limit is reached.
const DefaultQueueLimit = 256

var (
	ErrRobotNotFound   = errors.New("robot not found")
	ErrRobotExists     = errors.New("robot already registered")
	ErrSensorMismatch  = errors.New("distance count does not match sensor count")
	ErrInvalidRobotID  = errors.New("robot id must not be empty")
	ErrNoSensorsOnBody = errors.New("robot needs at least one ranging sensor")
)

// Update is one raw record as reported by a robot: its pose in its own start
// frame, the sensor tower heading and one distance per ranging sensor (cm).
type Update struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Heading      float64 `json:"heading"`
	TowerHeading float64 `json:"tower_heading"`
	Distances    []int   `json:"distances"`
}

// Measurement is a queued update with per-sensor headings resolved relative
// to the robot body.
type Measurement struct {
	Pose           grid.Pose
	SensorHeadings []float64
	Distances      []int
}

// Robot is safe for concurrent use.
type Robot struct {
	id        string
	initial   grid.Pose
	spreading []float64
	limit     int

	mu          sync.RWMutex
	queue       []Measurement
	dropped     uint64
	pose        grid.Pose
	busy        bool
	destination grid.Position
}

// New creates a robot that started at initial (world frame). spreading
// gives each ranging sensor's mounting angle relative to the tower.
func New(id string, initial grid.Pose, spreading []float64) (*Robot, error) {
	if id == "" {
		return nil, ErrInvalidRobotID
	}
	if len(spreading) == 0 {
		return nil, ErrNoSensorsOnBody
	}
	initial.Heading = grid.NormalizeDegrees(initial.Heading)
	return &Robot{
		id:          id,
		initial:     initial,
		spreading:   append([]float64(nil), spreading...),
		limit:       DefaultQueueLimit,
		pose:        initial,
		destination: initial.Position,
	}, nil
}

func (r *Robot) ID() string             { return r.id }
func (r *Robot) InitialPose() grid.Pose { return r.initial }
func (r *Robot) SensorCount() int       { return len(r.spreading) }

// Enqueue buffers an update for the mapping loop.
func (r *Robot) Enqueue(u Update) error {
	if len(u.Distances) != len(r.spreading) {
		return fmt.Errorf("robot %s: got %d distances for %d sensors: %w", r.id, len(u.Distances), len(r.spreading), ErrSensorMismatch)
	}
	m := Measurement{
		Pose:           grid.NewPose(u.X, u.Y, u.Heading),
		SensorHeadings: make([]float64, len(r.spreading)),
		Distances:      append([]int(nil), u.Distances...),
	}
	for i, s := range r.spreading {
		m.SensorHeadings[i] = grid.NormalizeDegrees(u.TowerHeading + s)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) >= r.limit {
		r.queue = r.queue[1:]
		r.dropped++
	}
	r.queue = append(r.queue, m)
	return nil
}

// NextMeasurement pops the oldest buffered record.
func (r *Robot) NextMeasurement() (Measurement, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return Measurement{}, false
	}
	m := r.queue[0]
	r.queue[0] = Measurement{}
	r.queue = r.queue[1:]
	return m, true
}

// Pending is the number of buffered records; Dropped counts overflow.
func (r *Robot) Pending() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queue)
}

func (r *Robot) Dropped() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

// SetPose records the latest world pose derived by the mapping loop.
func (r *Robot) SetPose(p grid.Pose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pose = p
}

func (r *Robot) Pose() grid.Pose {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pose
}

func (r *Robot) Position() grid.Position { return r.Pose().Position }
func (r *Robot) Heading() float64        { return r.Pose().Heading }

// SetBusy is driven by the robot while it executes a movement.
func (r *Robot) SetBusy(busy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busy = busy
}

func (r *Robot) IsBusy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.busy
}

// SetDestination records where the robot has been told to go.
func (r *Robot) SetDestination(p grid.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destination = p
}

func (r *Robot) Destination() grid.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.destination
}

// Status is a point-in-time copy of a robot for reporting.
type Status struct {
	ID          string        `json:"id"`
	Pose        grid.Pose     `json:"pose"`
	Destination grid.Position `json:"destination"`
	Busy        bool          `json:"busy"`
	Pending     int           `json:"pending"`
	Dropped     uint64        `json:"dropped"`
}

func (r *Robot) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Status{
		ID:          r.id,
		Pose:        r.pose,
		Destination: r.destination,
		Busy:        r.busy,
		Pending:     len(r.queue),
		Dropped:     r.dropped,
	}
}
