// Package api exposes the exploration service over HTTP: robot registration
// and update intake, map and target inspection, and debug views.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tailscale.com/tsweb"

	"github.com/banshee-data/swarm.map/internal/db"
	"github.com/banshee-data/swarm.map/internal/explore"
	"github.com/banshee-data/swarm.map/internal/grid"
	"github.com/banshee-data/swarm.map/internal/mapping"
	"github.com/banshee-data/swarm.map/internal/monitoring"
	"github.com/banshee-data/swarm.map/internal/navigation"
	"github.com/banshee-data/swarm.map/internal/robot"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// TaskLister reads back recorded allocator results.
type TaskLister interface {
	ListRecent(ctx context.Context, limit int) ([]db.TaskRecord, error)
}

// Deps are the running components the API serves. Tasks is optional.
type Deps struct {
	Grid       *grid.Grid
	Robots     *robot.Registry
	Engine     *mapping.Engine
	Allocator  *explore.Allocator
	Navigation *navigation.Controller
	Maintainer *mapping.Maintainer
	Tasks      TaskLister
}

type Server struct {
	Deps
}

func NewServer(d Deps) *Server {
	return &Server{Deps: d}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration. Update
// intake is skipped; robots post several records a second.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		if lrw.statusCode < 400 && r.Pattern == "POST /api/robots/{id}/measurements" {
			return
		}
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes, /metrics and the /debug/ pages.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/robots", s.registerRobot)
	mux.HandleFunc("GET /api/robots", s.listRobots)
	mux.HandleFunc("DELETE /api/robots/{id}", s.removeRobot)
	mux.HandleFunc("POST /api/robots/{id}/measurements", s.enqueueUpdate)
	mux.HandleFunc("POST /api/robots/{id}/busy", s.setBusy)
	mux.HandleFunc("GET /api/robots/{id}/explain", s.explainTarget)
	mux.HandleFunc("GET /api/map", s.showMap)
	mux.HandleFunc("GET /api/map/frontier", s.showFrontier)
	mux.HandleFunc("GET /api/targets", s.showTargets)
	mux.HandleFunc("GET /api/weights", s.showWeights)
	mux.HandleFunc("PUT /api/weights", s.updateWeights)
	mux.HandleFunc("GET /api/tasks", s.listTasks)
	mux.HandleFunc("GET /api/coverage", s.showCoverage)
	mux.HandleFunc("POST /api/engine/pause", s.pauseEngine)
	mux.HandleFunc("POST /api/engine/resume", s.resumeEngine)
	mux.HandleFunc("GET /api/version", s.showVersion)
	mux.Handle("GET /metrics", promhttp.Handler())

	debug := tsweb.Debugger(mux)
	debug.Handle("map.png", "Snapshot of the occupancy grid", http.HandlerFunc(s.mapPNG))
	debug.Handle("coverage", "Coverage over time", http.HandlerFunc(s.coverageChart))
	return mux
}
