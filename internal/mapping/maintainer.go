package mapping

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/swarm.map/internal/grid"
	"github.com/banshee-data/swarm.map/internal/monitoring"
	"github.com/banshee-data/swarm.map/internal/timeutil"
)

// CoverageSample summarises the grid after one maintenance pass.
type CoverageSample struct {
	Taken    time.Time  `json:"taken"`
	Stats    grid.Stats `json:"stats"`
	Frontier int        `json:"frontier"`
	Cleaned  int        `json:"cleaned"`
}

// CoverageRecorder persists coverage samples.
type CoverageRecorder interface {
	RecordCoverage(ctx context.Context, s CoverageSample) error
}

// MaintainerConfig contains configuration for Maintainer.
type MaintainerConfig struct {
	// Interval is how often to run CleanUp (e.g. time.Second).
	Interval time.Duration
	// Recorder is optional; samples are kept in memory regardless.
	Recorder CoverageRecorder
	// HistoryLimit caps the in-memory sample history (default 600).
	HistoryLimit int
	Clock        timeutil.Clock
}

// Maintainer periodically removes small unexplored pockets from the grid
// and samples coverage.
type Maintainer struct {
	grid     *grid.Grid
	interval time.Duration
	recorder CoverageRecorder
	limit    int
	clock    timeutil.Clock

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	history []CoverageSample
}

// NewMaintainer creates a Maintainer for g.
func NewMaintainer(g *grid.Grid, cfg MaintainerConfig) *Maintainer {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = 600
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Maintainer{
		grid:     g,
		interval: cfg.Interval,
		recorder: cfg.Recorder,
		limit:    limit,
		clock:    clock,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Run starts the maintenance loop. It blocks until the context is
// cancelled or Stop() is called. Returns nil on clean shutdown.
func (m *Maintainer) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	defer func() {
		close(m.doneCh)
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	if m.interval <= 0 {
		opsf("maintenance interval is zero or negative, not starting")
		return nil
	}

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()
	diagf("maintenance started: interval=%v", m.interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.stopCh:
			return nil
		case <-ticker.C():
			m.RunOnce(ctx)
		}
	}
}

// Stop requests the loop to stop and waits for it. Safe to call repeatedly.
func (m *Maintainer) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
	done := m.doneCh
	m.mu.Unlock()
	<-done
}

// IsRunning returns whether the loop is active.
func (m *Maintainer) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// RunOnce performs a single clean-up pass and records the resulting sample.
func (m *Maintainer) RunOnce(ctx context.Context) CoverageSample {
	cleaned := m.grid.CleanUp()
	s := CoverageSample{
		Taken:    m.clock.Now(),
		Stats:    m.grid.Stats(),
		Frontier: len(m.grid.FrontierLocations()),
		Cleaned:  cleaned,
	}

	monitoring.CellsCleaned.Add(float64(cleaned))
	monitoring.FrontierSize.Set(float64(s.Frontier))
	monitoring.GridCells.WithLabelValues("unexplored").Set(float64(s.Stats.Unexplored))
	monitoring.GridCells.WithLabelValues("free").Set(float64(s.Stats.Free))
	monitoring.GridCells.WithLabelValues("occupied").Set(float64(s.Stats.Occupied))
	monitoring.GridCells.WithLabelValues("restricted").Set(float64(s.Stats.Restricted))

	m.mu.Lock()
	m.history = append(m.history, s)
	if over := len(m.history) - m.limit; over > 0 {
		m.history = append(m.history[:0:0], m.history[over:]...)
	}
	m.mu.Unlock()

	if m.recorder != nil {
		if err := m.recorder.RecordCoverage(ctx, s); err != nil {
			opsf("recording coverage sample: %v", err)
		}
	}
	return s
}

// History returns the retained samples, oldest first.
func (m *Maintainer) History() []CoverageSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CoverageSample(nil), m.history...)
}
