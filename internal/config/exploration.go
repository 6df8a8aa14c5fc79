package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/swarm.map/internal/explore"
	"github.com/banshee-data/swarm.map/internal/grid"
	"github.com/banshee-data/swarm.map/internal/mapping"
	"github.com/banshee-data/swarm.map/internal/navigation"
	"github.com/banshee-data/swarm.map/internal/pathplan"
)

// DefaultConfigPath is the path to the canonical exploration defaults file.
const DefaultConfigPath = "config/exploration.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// ExplorationConfig is the root configuration for a mapping run. Fields left
// out of a file fall back to the defaults returned by the Get* accessors, so
// partial configs are safe. Distances are in centimetres.
type ExplorationConfig struct {
	// Grid geometry
	CellSize             *int `json:"cell_size,omitempty" yaml:"cell_size,omitempty"`
	Width                *int `json:"width,omitempty" yaml:"width,omitempty"`
	Height               *int `json:"height,omitempty" yaml:"height,omitempty"`
	RestrictRadius       *int `json:"restrict_radius,omitempty" yaml:"restrict_radius,omitempty"`
	WeakRestrictRadius   *int `json:"weak_restrict_radius,omitempty" yaml:"weak_restrict_radius,omitempty"`
	CleanupRadius        *int `json:"cleanup_radius,omitempty" yaml:"cleanup_radius,omitempty"`
	CleanupAreaThreshold *int `json:"cleanup_area_threshold,omitempty" yaml:"cleanup_area_threshold,omitempty"`

	// Fusion loop
	TickInterval      *string `json:"tick_interval,omitempty" yaml:"tick_interval,omitempty"` // duration string like "10ms"
	SensorRange       *int    `json:"sensor_range,omitempty" yaml:"sensor_range,omitempty"`
	TeammateExclusion *int    `json:"teammate_exclusion,omitempty" yaml:"teammate_exclusion,omitempty"`
	CleanupInterval   *string `json:"cleanup_interval,omitempty" yaml:"cleanup_interval,omitempty"`

	// Target selection
	TargetSpacing     *float64 `json:"target_spacing,omitempty" yaml:"target_spacing,omitempty"`
	ExplorationRadius *int     `json:"exploration_radius,omitempty" yaml:"exploration_radius,omitempty"`
	CrowdingRadius    *float64 `json:"crowding_radius,omitempty" yaml:"crowding_radius,omitempty"`
	MinTargetDistance *float64 `json:"min_target_distance,omitempty" yaml:"min_target_distance,omitempty"`

	// Utility weights, hot-reloadable
	WeightExploration *float64 `json:"weight_exploration,omitempty" yaml:"weight_exploration,omitempty"`
	WeightDistance    *float64 `json:"weight_distance,omitempty" yaml:"weight_distance,omitempty"`
	WeightCrowding    *float64 `json:"weight_crowding,omitempty" yaml:"weight_crowding,omitempty"`
	WeightLineOfSight *float64 `json:"weight_line_of_sight,omitempty" yaml:"weight_line_of_sight,omitempty"`
	WeightNearWall    *float64 `json:"weight_near_wall,omitempty" yaml:"weight_near_wall,omitempty"`
	WeightTurn        *float64 `json:"weight_turn,omitempty" yaml:"weight_turn,omitempty"`

	// Planning and dispatch
	MaxExpansions    *int    `json:"max_expansions,omitempty" yaml:"max_expansions,omitempty"`
	DispatchInterval *string `json:"dispatch_interval,omitempty" yaml:"dispatch_interval,omitempty"`
	StartDelay       *string `json:"start_delay,omitempty" yaml:"start_delay,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyExplorationConfig returns a config with every field unset.
func EmptyExplorationConfig() *ExplorationConfig {
	return &ExplorationConfig{}
}

// DefaultExplorationConfig returns a config with every field set to its
// default, as written to the defaults file.
func DefaultExplorationConfig() *ExplorationConfig {
	gc := grid.DefaultConfig()
	w := explore.DefaultWeights()
	ac := explore.DefaultConfig()
	return &ExplorationConfig{
		CellSize:             ptrInt(gc.CellSize),
		Width:                ptrInt(gc.Width),
		Height:               ptrInt(gc.Height),
		RestrictRadius:       ptrInt(gc.RestrictRadius),
		WeakRestrictRadius:   ptrInt(gc.WeakRestrictRadius),
		CleanupRadius:        ptrInt(gc.CleanupRadius),
		CleanupAreaThreshold: ptrInt(gc.CleanupAreaThreshold),
		TickInterval:         ptrString("10ms"),
		SensorRange:          ptrInt(40),
		TeammateExclusion:    ptrInt(10),
		CleanupInterval:      ptrString("1s"),
		TargetSpacing:        ptrFloat64(ac.TargetSpacing),
		ExplorationRadius:    ptrInt(ac.ExplorationRadius),
		CrowdingRadius:       ptrFloat64(ac.CrowdingRadius),
		MinTargetDistance:    ptrFloat64(ac.MinTargetDistance),
		WeightExploration:    ptrFloat64(w.Exploration),
		WeightDistance:       ptrFloat64(w.Distance),
		WeightCrowding:       ptrFloat64(w.Crowding),
		WeightLineOfSight:    ptrFloat64(w.LineOfSight),
		WeightNearWall:       ptrFloat64(w.NearWall),
		WeightTurn:           ptrFloat64(w.Turn),
		MaxExpansions:        ptrInt(0),
		DispatchInterval:     ptrString("100ms"),
		StartDelay:           ptrString("5s"),
	}
}

// LoadExplorationConfig loads a config from a JSON or YAML file. The format
// follows the extension (.json, .yaml or .yml) and the file must be under
// 1MB.
func LoadExplorationConfig(path string) (*ExplorationConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyExplorationConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *ExplorationConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadExplorationConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *ExplorationConfig) Validate() error {
	if err := c.GridConfig().Validate(); err != nil {
		return err
	}

	durations := []struct {
		name string
		v    *string
	}{
		{"tick_interval", c.TickInterval},
		{"cleanup_interval", c.CleanupInterval},
		{"dispatch_interval", c.DispatchInterval},
		{"start_delay", c.StartDelay},
	}
	for _, d := range durations {
		if d.v == nil || *d.v == "" {
			continue
		}
		v, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", d.name, v)
		}
	}

	if c.SensorRange != nil && *c.SensorRange <= 0 {
		return fmt.Errorf("sensor_range must be positive, got %d", *c.SensorRange)
	}
	if c.TeammateExclusion != nil && *c.TeammateExclusion < 0 {
		return fmt.Errorf("teammate_exclusion must be non-negative, got %d", *c.TeammateExclusion)
	}
	if c.ExplorationRadius != nil && *c.ExplorationRadius < 0 {
		return fmt.Errorf("exploration_radius must be non-negative, got %d", *c.ExplorationRadius)
	}
	if c.MaxExpansions != nil && *c.MaxExpansions < 0 {
		return fmt.Errorf("max_expansions must be non-negative, got %d", *c.MaxExpansions)
	}
	nonNegative := []struct {
		name string
		v    *float64
	}{
		{"target_spacing", c.TargetSpacing},
		{"crowding_radius", c.CrowdingRadius},
		{"min_target_distance", c.MinTargetDistance},
		{"weight_exploration", c.WeightExploration},
		{"weight_distance", c.WeightDistance},
		{"weight_crowding", c.WeightCrowding},
		{"weight_line_of_sight", c.WeightLineOfSight},
		{"weight_near_wall", c.WeightNearWall},
		{"weight_turn", c.WeightTurn},
	}
	for _, f := range nonNegative {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", f.name, *f.v)
		}
	}
	return nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// durationOr parses p, falling back to def when unset or unparsable.
func durationOr(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil {
		return def
	}
	return d
}

// GridConfig returns the grid geometry.
func (c *ExplorationConfig) GridConfig() grid.Config {
	d := grid.DefaultConfig()
	return grid.Config{
		CellSize:             intOr(c.CellSize, d.CellSize),
		Width:                intOr(c.Width, d.Width),
		Height:               intOr(c.Height, d.Height),
		RestrictRadius:       intOr(c.RestrictRadius, d.RestrictRadius),
		WeakRestrictRadius:   intOr(c.WeakRestrictRadius, d.WeakRestrictRadius),
		CleanupRadius:        intOr(c.CleanupRadius, d.CleanupRadius),
		CleanupAreaThreshold: intOr(c.CleanupAreaThreshold, d.CleanupAreaThreshold),
	}
}

// GetTickInterval returns the fusion tick period.
func (c *ExplorationConfig) GetTickInterval() time.Duration {
	return durationOr(c.TickInterval, 10*time.Millisecond)
}

// GetCleanupInterval returns the maintenance period.
func (c *ExplorationConfig) GetCleanupInterval() time.Duration {
	return durationOr(c.CleanupInterval, time.Second)
}

// EngineConfig returns the fusion loop settings with the real clock.
func (c *ExplorationConfig) EngineConfig() mapping.Config {
	d := mapping.DefaultConfig()
	d.TickInterval = c.GetTickInterval()
	d.SensorRange = intOr(c.SensorRange, d.SensorRange)
	d.TeammateExclusion = float64(intOr(c.TeammateExclusion, int(d.TeammateExclusion)))
	return d
}

// Weights returns the utility weights.
func (c *ExplorationConfig) Weights() explore.Weights {
	d := explore.DefaultWeights()
	return explore.Weights{
		Exploration: floatOr(c.WeightExploration, d.Exploration),
		Distance:    floatOr(c.WeightDistance, d.Distance),
		Crowding:    floatOr(c.WeightCrowding, d.Crowding),
		LineOfSight: floatOr(c.WeightLineOfSight, d.LineOfSight),
		NearWall:    floatOr(c.WeightNearWall, d.NearWall),
		Turn:        floatOr(c.WeightTurn, d.Turn),
	}
}

// AllocatorConfig returns the target selection settings. The recorder is
// left for the caller to attach.
func (c *ExplorationConfig) AllocatorConfig() explore.Config {
	d := explore.DefaultConfig()
	d.TargetSpacing = floatOr(c.TargetSpacing, d.TargetSpacing)
	d.ExplorationRadius = intOr(c.ExplorationRadius, d.ExplorationRadius)
	d.CrowdingRadius = floatOr(c.CrowdingRadius, d.CrowdingRadius)
	d.MinTargetDistance = floatOr(c.MinTargetDistance, d.MinTargetDistance)
	d.Weights = c.Weights()
	return d
}

// PathFinder returns the configured planner.
func (c *ExplorationConfig) PathFinder() pathplan.AStar {
	return pathplan.AStar{MaxExpansions: intOr(c.MaxExpansions, 0)}
}

// NavigationConfig returns the dispatch timing.
func (c *ExplorationConfig) NavigationConfig() navigation.Config {
	d := navigation.DefaultConfig()
	d.Interval = durationOr(c.DispatchInterval, d.Interval)
	d.StartDelay = durationOr(c.StartDelay, d.StartDelay)
	return d
}
