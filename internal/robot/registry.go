package robot

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps robot ids to robots.
type Registry struct {
	mu     sync.RWMutex
	robots map[string]*Robot
}

func NewRegistry() *Registry {
	return &Registry{robots: make(map[string]*Robot)}
}

// Add registers r, failing if its id is taken.
func (reg *Registry) Add(r *Robot) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.robots[r.ID()]; ok {
		return fmt.Errorf("add %s: %w", r.ID(), ErrRobotExists)
	}
	reg.robots[r.ID()] = r
	return nil
}

func (reg *Registry) Get(id string) (*Robot, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.robots[id]
	return r, ok
}

// Lookup is Get returning ErrRobotNotFound.
func (reg *Registry) Lookup(id string) (*Robot, error) {
	r, ok := reg.Get(id)
	if !ok {
		return nil, fmt.Errorf("lookup %s: %w", id, ErrRobotNotFound)
	}
	return r, nil
}

// Remove deletes the robot and reports whether it was present.
func (reg *Registry) Remove(id string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	_, ok := reg.robots[id]
	delete(reg.robots, id)
	return ok
}

// List returns the registered robots ordered by id.
func (reg *Registry) List() []*Robot {
	reg.mu.RLock()
	out := make([]*Robot, 0, len(reg.robots))
	for _, r := range reg.robots {
		out = append(out, r)
	}
	reg.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.robots)
}
