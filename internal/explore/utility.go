package explore

import (
	"math"

	"github.com/banshee-data/swarm.map/internal/grid"
)

// Weights scale the terms of the utility function. Their magnitudes encode
// priority: crowding dominates, then wall proximity, then line of sight.
// Distance and turning break ties.
type Weights struct {
	Exploration float64 `json:"exploration"`
	Distance    float64 `json:"distance"`
	Crowding    float64 `json:"crowding"`
	LineOfSight float64 `json:"line_of_sight"`
	NearWall    float64 `json:"near_wall"`
	Turn        float64 `json:"turn"`
}

// DefaultWeights returns the tuned weight set.
func DefaultWeights() Weights {
	return Weights{
		Exploration: 0.2,
		Distance:    3,
		Crowding:    40000,
		LineOfSight: 300,
		NearWall:    2000,
		Turn:        1,
	}
}

// Terms are the unweighted components of one candidate's utility.
type Terms struct {
	Exploration float64 `json:"exploration"` // unexplored area around the target, cm²
	Distance    float64 `json:"distance"`    // cm
	Crowding    float64 `json:"crowding"`
	LineOfSight float64 `json:"line_of_sight"` // 1 or 0
	NearWall    float64 `json:"near_wall"`     // 1 or 0
	TooNear     float64 `json:"too_near"`      // 0 or +Inf
	Turn        float64 `json:"turn"`          // degrees in [0,180]
}

// Utility combines the terms under w.
func (t Terms) Utility(w Weights) float64 {
	return weighted(w.Exploration, t.Exploration) -
		weighted(w.Distance, t.Distance) -
		weighted(w.Crowding, t.Crowding) +
		weighted(w.LineOfSight, t.LineOfSight) -
		weighted(w.NearWall, t.NearWall) -
		t.TooNear -
		weighted(w.Turn, t.Turn)
}

// weighted avoids 0 * Inf when a term is switched off.
func weighted(w, v float64) float64 {
	if w == 0 {
		return 0
	}
	return w * v
}

// targetSnapshot is a point-in-time copy of both target maps.
type targetSnapshot struct {
	current   map[string]grid.MapLocation
	temporary map[string]grid.MapLocation
}

// terms evaluates every utility component for a robot at robotLoc facing
// heading, considering target.
func (a *Allocator) terms(target, robotLoc grid.MapLocation, heading float64, robotID string, snap targetSnapshot) Terms {
	cs := float64(a.grid.CellSize())
	t := Terms{
		Exploration: float64(a.grid.CountUnknownAround(target, a.cfg.ExplorationRadius)) * cs * cs,
		Distance:    grid.Distance(target, robotLoc) * cs,
		Crowding:    a.crowding(target, robotID, snap),
		Turn:        turnCost(grid.AngleBetween(robotLoc, target), heading),
	}
	if t.Distance < a.cfg.MinTargetDistance {
		t.TooNear = math.Inf(1)
	}
	if a.grid.HasWeakLineOfSight(robotLoc, target) {
		t.LineOfSight = 1
	}
	if c := a.grid.FindCell(target); c != nil && c.IsWeaklyRestricted() {
		t.NearWall = 1
	}
	return t
}

// crowding penalises targets near other robots' targets. Anything within
// the crowding radius is excluded outright.
func (a *Allocator) crowding(target grid.MapLocation, robotID string, snap targetSnapshot) float64 {
	cs := float64(a.grid.CellSize())
	sum := 0.0
	for _, m := range []map[string]grid.MapLocation{snap.temporary, snap.current} {
		for id, loc := range m {
			if id == robotID {
				continue
			}
			d := grid.Distance(target, loc) * cs
			if d <= a.cfg.CrowdingRadius {
				return math.Inf(1)
			}
			sum += 1 / d
		}
	}
	return sum / float64(len(snap.current)+len(snap.temporary)+1)
}

// turnCost is the absolute difference between two headings in [0,180].
func turnCost(bearing, heading float64) float64 {
	d := math.Mod(bearing-heading+180, 360)
	if d < 0 {
		d += 360
	}
	return math.Abs(d - 180)
}

// SelectSpreadLocations keeps a candidate only when it is at least the
// target spacing away from every candidate kept before it.
func (a *Allocator) SelectSpreadLocations(candidates []grid.MapLocation) []grid.MapLocation {
	cs := float64(a.grid.CellSize())
	var kept []grid.MapLocation
	for _, c := range candidates {
		ok := true
		for _, k := range kept {
			if grid.Distance(c, k)*cs < a.cfg.TargetSpacing {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, c)
		}
	}
	return kept
}

// FindBestTarget scores candidates for a robot and returns the first strict
// maximum. It reports false when no candidate scores above -Inf.
func (a *Allocator) FindBestTarget(robotID string, robotLoc grid.MapLocation, heading float64, candidates []grid.MapLocation) (grid.MapLocation, float64, bool) {
	snap := a.snapshot()
	w := a.Weights()
	best := grid.MapLocation{}
	bestUtility := math.Inf(-1)
	found := false
	for _, c := range candidates {
		u := a.terms(c, robotLoc, heading, robotID, snap).Utility(w)
		if u > bestUtility {
			best, bestUtility, found = c, u, true
		}
	}
	if found {
		tracef("robot %s: best of %d candidates is %v (utility %.1f)", robotID, len(candidates), best, bestUtility)
	}
	return best, bestUtility, found
}

// Explain returns the utility terms for one candidate as the robot's
// worker would see them now.
func (a *Allocator) Explain(robotID string, robotLoc grid.MapLocation, heading float64, target grid.MapLocation) (Terms, float64) {
	t := a.terms(target, robotLoc, heading, robotID, a.snapshot())
	return t, t.Utility(a.Weights())
}
