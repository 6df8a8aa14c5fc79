package api

import (
	"bytes"
	"net/http"

	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/swarm.map/internal/grid"
	"github.com/banshee-data/swarm.map/internal/monitor"
)

func (s *Server) mapPNG(w http.ResponseWriter, r *http.Request) {
	scene := monitor.MapScene{
		Grid:    s.Grid,
		Robots:  make(map[string]grid.Position),
		Targets: s.Allocator.CurrentTargets(),
	}
	for _, rb := range s.Robots.List() {
		scene.Robots[rb.ID()] = rb.Position()
	}
	// Render into a buffer so a plotting error can still be reported.
	var buf bytes.Buffer
	if err := monitor.RenderMapPNG(&buf, scene, 6*vg.Inch); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *Server) coverageChart(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := monitor.RenderCoverageChart(&buf, s.Maintainer.History()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
