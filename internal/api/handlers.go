package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/banshee-data/swarm.map/internal/explore"
	"github.com/banshee-data/swarm.map/internal/grid"
	"github.com/banshee-data/swarm.map/internal/httputil"
	"github.com/banshee-data/swarm.map/internal/robot"
	"github.com/banshee-data/swarm.map/internal/version"
)

type registerRequest struct {
	ID              string    `json:"id"`
	X               float64   `json:"x"`
	Y               float64   `json:"y"`
	Heading         float64   `json:"heading"`
	SensorSpreading []float64 `json:"sensor_spreading"`
}

// robotView is a robot's status plus its dispatch state.
type robotView struct {
	robot.Status
	QueuedWaypoints int  `json:"queued_waypoints"`
	Working         bool `json:"working"`
}

func (s *Server) view(r *robot.Robot) robotView {
	return robotView{
		Status:          r.Status(),
		QueuedWaypoints: s.Navigation.Queue(r.ID()).Len(),
		Working:         s.Allocator.IsWorkingOnTask(r.ID()),
	}
}

func (s *Server) registerRobot(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid robot: %v", err))
		return
	}
	rb, err := robot.New(req.ID, grid.NewPose(req.X, req.Y, req.Heading), req.SensorSpreading)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := s.Robots.Add(rb); err != nil {
		if errors.Is(err, robot.ErrRobotExists) {
			httputil.Conflict(w, err.Error())
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}
	if err := s.Engine.AddRobot(rb); err != nil {
		s.Robots.Remove(rb.ID())
		httputil.Conflict(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, s.view(rb))
}

func (s *Server) listRobots(w http.ResponseWriter, r *http.Request) {
	robots := s.Robots.List()
	out := make([]robotView, 0, len(robots))
	for _, rb := range robots {
		out = append(out, s.view(rb))
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*robot.Robot, bool) {
	rb, err := s.Robots.Lookup(r.PathValue("id"))
	if err != nil {
		httputil.NotFound(w, err.Error())
		return nil, false
	}
	return rb, true
}

func (s *Server) removeRobot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.Robots.Remove(id) {
		httputil.NotFound(w, fmt.Sprintf("robot %s: %v", id, robot.ErrRobotNotFound))
		return
	}
	s.Engine.RemoveRobot(id)
	s.Navigation.RemoveRobot(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) enqueueUpdate(w http.ResponseWriter, r *http.Request) {
	rb, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var u robot.Update
	if err := httputil.DecodeJSON(w, r, &u); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid update: %v", err))
		return
	}
	if err := rb.Enqueue(u); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]int{"pending": rb.Pending()})
}

func (s *Server) setBusy(w http.ResponseWriter, r *http.Request) {
	rb, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Busy bool `json:"busy"`
	}
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid busy flag: %v", err))
		return
	}
	rb.SetBusy(req.Busy)
	w.WriteHeader(http.StatusNoContent)
}

type explainResponse struct {
	Target  grid.MapLocation `json:"target"`
	Terms   termsView        `json:"terms"`
	Utility jsonFloat        `json:"utility"`
}

type termsView struct {
	Exploration jsonFloat `json:"exploration"`
	Distance    jsonFloat `json:"distance"`
	Crowding    jsonFloat `json:"crowding"`
	LineOfSight jsonFloat `json:"line_of_sight"`
	NearWall    jsonFloat `json:"near_wall"`
	TooNear     jsonFloat `json:"too_near"`
	Turn        jsonFloat `json:"turn"`
}

func newTermsView(t explore.Terms) termsView {
	return termsView{
		Exploration: jsonFloat(t.Exploration),
		Distance:    jsonFloat(t.Distance),
		Crowding:    jsonFloat(t.Crowding),
		LineOfSight: jsonFloat(t.LineOfSight),
		NearWall:    jsonFloat(t.NearWall),
		TooNear:     jsonFloat(t.TooNear),
		Turn:        jsonFloat(t.Turn),
	}
}

// jsonFloat encodes infinities as strings, which encoding/json rejects.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	switch v := float64(f); {
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	default:
		return json.Marshal(v)
	}
}

func (s *Server) explainTarget(w http.ResponseWriter, r *http.Request) {
	rb, ok := s.lookup(w, r)
	if !ok {
		return
	}
	row, errRow := strconv.Atoi(r.URL.Query().Get("row"))
	col, errCol := strconv.Atoi(r.URL.Query().Get("col"))
	if errRow != nil || errCol != nil {
		httputil.BadRequest(w, "row and col query parameters are required integers")
		return
	}
	target := grid.Loc(row, col)
	if s.Grid.FindCell(target) == nil {
		httputil.NotFound(w, fmt.Sprintf("cell %v is outside the grid", target))
		return
	}
	terms, utility := s.Allocator.Explain(rb.ID(), s.Grid.LocationOf(rb.Position()), rb.Heading(), target)
	httputil.WriteJSONOK(w, explainResponse{Target: target, Terms: newTermsView(terms), Utility: jsonFloat(utility)})
}

type mapResponse struct {
	Stats grid.Stats      `json:"stats"`
	Cells []grid.CellView `json:"cells,omitempty"`
}

func (s *Server) showMap(w http.ResponseWriter, r *http.Request) {
	resp := mapResponse{Stats: s.Grid.Stats()}
	if v, _ := strconv.ParseBool(r.URL.Query().Get("cells")); v {
		_, resp.Cells = s.Grid.Snapshot()
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showFrontier(w http.ResponseWriter, r *http.Request) {
	frontier := s.Grid.FrontierLocations()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"frontier": frontier,
		"spread":   s.Allocator.SelectSpreadLocations(frontier),
	})
}

func (s *Server) showTargets(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]map[string]grid.MapLocation{
		"current":   s.Allocator.CurrentTargets(),
		"temporary": s.Allocator.TemporaryTargets(),
	})
}

func (s *Server) showWeights(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.Allocator.Weights())
}

func (s *Server) updateWeights(w http.ResponseWriter, r *http.Request) {
	wts := s.Allocator.Weights()
	if err := httputil.DecodeJSON(w, r, &wts); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid weights: %v", err))
		return
	}
	for _, v := range []float64{wts.Exploration, wts.Distance, wts.Crowding, wts.LineOfSight, wts.NearWall, wts.Turn} {
		if v < 0 {
			httputil.BadRequest(w, "weights must be non-negative")
			return
		}
	}
	s.Allocator.SetWeights(wts)
	httputil.WriteJSONOK(w, wts)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	if s.Tasks == nil {
		httputil.NotFound(w, "task log is not enabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			httputil.BadRequest(w, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	tasks, err := s.Tasks.ListRecent(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, tasks)
}

func (s *Server) showCoverage(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.Maintainer.History())
}

func (s *Server) pauseEngine(w http.ResponseWriter, r *http.Request) {
	s.Engine.Pause()
	httputil.WriteJSONOK(w, map[string]bool{"paused": true})
}

func (s *Server) resumeEngine(w http.ResponseWriter, r *http.Request) {
	s.Engine.Resume()
	httputil.WriteJSONOK(w, map[string]bool{"paused": false})
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Get())
}
