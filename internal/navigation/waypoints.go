// Package navigation hands committed waypoints to robot drivers and asks
// the allocator for new work when a robot runs out.
package navigation

import (
	"sync"

	"github.com/banshee-data/swarm.map/internal/grid"
)

// Waypoints is a goroutine-safe FIFO of positions for one robot.
type Waypoints struct {
	mu    sync.Mutex
	items []grid.Position
}

// AddWaypoints appends wps to the queue.
func (w *Waypoints) AddWaypoints(wps []grid.Position) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = append(w.items, wps...)
}

// Next pops the oldest waypoint.
func (w *Waypoints) Next() (grid.Position, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.items) == 0 {
		return grid.Position{}, false
	}
	p := w.items[0]
	w.items = w.items[1:]
	return p, true
}

func (w *Waypoints) HasMore() bool { return w.Len() > 0 }

func (w *Waypoints) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

// Pending returns a copy of the queued waypoints, next first.
func (w *Waypoints) Pending() []grid.Position {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]grid.Position(nil), w.items...)
}

// Clear drops every queued waypoint.
func (w *Waypoints) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = nil
}
