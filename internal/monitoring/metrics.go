package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MeasurementsFused counts update records folded into the grid.
	MeasurementsFused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swarm_measurements_fused_total",
		Help: "Robot update records fused into the occupancy grid",
	})

	// SensorReadings counts per-sensor readings by outcome (hit, miss, teammate).
	SensorReadings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarm_sensor_readings_total",
		Help: "Ranging sensor readings by outcome",
	}, []string{"outcome"})

	// FusionDuration tracks the wall time of one mapping tick.
	FusionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swarm_fusion_tick_duration_seconds",
		Help:    "Duration of one mapping loop tick",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12), // 50us to ~100ms
	})

	// GridCells reports the grid population by state.
	GridCells = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "swarm_grid_cells",
		Help: "Occupancy grid cells by state",
	}, []string{"state"})

	// FrontierSize reports the number of frontier cells at the last sample.
	FrontierSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swarm_frontier_cells",
		Help: "Frontier cells at the last maintenance pass",
	})

	// CellsCleaned counts unexplored specks forced free by maintenance.
	CellsCleaned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swarm_cells_cleaned_total",
		Help: "Unexplored cells forced free by the maintenance pass",
	})

	// TaskOutcomes counts allocator worker results by outcome.
	TaskOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarm_task_outcomes_total",
		Help: "Exploration worker results by outcome",
	}, []string{"outcome"})

	// TaskDuration tracks how long a worker takes to settle on a target.
	TaskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swarm_task_duration_seconds",
		Help:    "Exploration worker run time",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	})

	// ActiveWorkers is the number of allocator workers currently running.
	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swarm_active_workers",
		Help: "Exploration workers currently running",
	})

	// WaypointsDispatched counts waypoints handed to robot drivers.
	WaypointsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swarm_waypoints_dispatched_total",
		Help: "Waypoints sent to robot drivers",
	})
)
