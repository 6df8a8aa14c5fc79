package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/swarm.map/internal/explore"
	"github.com/banshee-data/swarm.map/internal/grid"
)

func TestDefaultsFileMatchesCode(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultExplorationConfig(), fromFile); diff != "" {
		t.Errorf("defaults file differs from DefaultExplorationConfig (-code +file):\n%s", diff)
	}
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	cfg := EmptyExplorationConfig()

	if diff := cmp.Diff(grid.DefaultConfig(), cfg.GridConfig()); diff != "" {
		t.Errorf("GridConfig() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(explore.DefaultWeights(), cfg.Weights()); diff != "" {
		t.Errorf("Weights() mismatch (-want +got):\n%s", diff)
	}
	if got := cfg.GetTickInterval(); got != 10*time.Millisecond {
		t.Errorf("GetTickInterval() = %v, want 10ms", got)
	}
	if got := cfg.GetCleanupInterval(); got != time.Second {
		t.Errorf("GetCleanupInterval() = %v, want 1s", got)
	}
	if got := cfg.EngineConfig().SensorRange; got != 40 {
		t.Errorf("EngineConfig().SensorRange = %d, want 40", got)
	}
	if got := cfg.PathFinder().MaxExpansions; got != 0 {
		t.Errorf("PathFinder().MaxExpansions = %d, want 0", got)
	}
	nav := cfg.NavigationConfig()
	if nav.Interval != 100*time.Millisecond || nav.StartDelay != 5*time.Second {
		t.Errorf("NavigationConfig() = %+v", nav)
	}
}

func TestLoadExplorationConfigJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "run.json")
	testJSON := `{
  "cell_size": 5,
  "width": 500,
  "height": 250,
  "tick_interval": "20ms",
  "weight_turn": 0,
  "start_delay": "0s"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadExplorationConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	gc := cfg.GridConfig()
	if gc.CellSize != 5 || gc.Width != 500 || gc.Height != 250 {
		t.Errorf("GridConfig() = %+v", gc)
	}
	if gc.RestrictRadius != 15 {
		t.Errorf("unset restrict_radius = %d, want default 15", gc.RestrictRadius)
	}
	if got := cfg.EngineConfig().TickInterval; got != 20*time.Millisecond {
		t.Errorf("TickInterval = %v, want 20ms", got)
	}
	if got := cfg.Weights().Turn; got != 0 {
		t.Errorf("Weights().Turn = %f, want 0", got)
	}
	if got := cfg.AllocatorConfig().Weights.Crowding; got != 40000 {
		t.Errorf("AllocatorConfig().Weights.Crowding = %f, want 40000", got)
	}
	if got := cfg.NavigationConfig().StartDelay; got != 0 {
		t.Errorf("StartDelay = %v, want 0", got)
	}
}

func TestLoadExplorationConfigYAML(t *testing.T) {
	for _, ext := range []string{".yaml", ".yml"} {
		configPath := filepath.Join(t.TempDir(), "run"+ext)
		testYAML := "cell_size: 4\nwidth: 200\nheight: 200\nweight_crowding: 1000\ndispatch_interval: 250ms\n"
		if err := os.WriteFile(configPath, []byte(testYAML), 0644); err != nil {
			t.Fatalf("Failed to write test config: %v", err)
		}
		cfg, err := LoadExplorationConfig(configPath)
		if err != nil {
			t.Fatalf("Failed to load %s config: %v", ext, err)
		}
		if got := cfg.GridConfig().CellSize; got != 4 {
			t.Errorf("%s: CellSize = %d, want 4", ext, got)
		}
		if got := cfg.Weights().Crowding; got != 1000 {
			t.Errorf("%s: Weights().Crowding = %f, want 1000", ext, got)
		}
		if got := cfg.NavigationConfig().Interval; got != 250*time.Millisecond {
			t.Errorf("%s: dispatch interval = %v, want 250ms", ext, got)
		}
	}
}

func TestLoadExplorationConfigErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing file", filepath.Join(dir, "missing.json"), "failed to stat"},
		{"wrong extension", write("run.txt", "{}"), "extension"},
		{"invalid json", write("bad.json", `{"cell_size": "two"`), "failed to parse"},
		{"invalid yaml", write("bad.yaml", "cell_size: [1,"), "failed to parse"},
		{"fails validation", write("neg.json", `{"sensor_range": -1}`), "invalid configuration"},
		{"too large", write("big.json", `{"pad": "`+strings.Repeat("x", maxFileSize)+`"}`), "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadExplorationConfig(tt.path)
			if err == nil {
				t.Fatalf("LoadExplorationConfig(%s) succeeded, want error", tt.path)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *ExplorationConfig
		wantErr bool
	}{
		{"defaults", DefaultExplorationConfig(), false},
		{"empty config is valid", &ExplorationConfig{}, false},
		{"zero cell size", &ExplorationConfig{CellSize: ptrInt(0)}, true},
		{"width not a multiple of cell size", &ExplorationConfig{Width: ptrInt(101)}, true},
		{"weak radius below strict", &ExplorationConfig{WeakRestrictRadius: ptrInt(10)}, true},
		{"invalid tick interval", &ExplorationConfig{TickInterval: ptrString("fast")}, true},
		{"negative start delay", &ExplorationConfig{StartDelay: ptrString("-1s")}, true},
		{"zero sensor range", &ExplorationConfig{SensorRange: ptrInt(0)}, true},
		{"negative teammate exclusion", &ExplorationConfig{TeammateExclusion: ptrInt(-1)}, true},
		{"negative max expansions", &ExplorationConfig{MaxExpansions: ptrInt(-5)}, true},
		{"negative weight", &ExplorationConfig{WeightLineOfSight: ptrFloat64(-300)}, true},
		{"negative spacing", &ExplorationConfig{TargetSpacing: ptrFloat64(-1)}, true},
		{"zero weights are allowed", &ExplorationConfig{WeightTurn: ptrFloat64(0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationFallbacks(t *testing.T) {
	tests := []struct {
		name string
		cfg  *ExplorationConfig
		want time.Duration
	}{
		{"set", &ExplorationConfig{CleanupInterval: ptrString("2s")}, 2 * time.Second},
		{"nil pointer returns default", &ExplorationConfig{}, time.Second},
		{"empty string returns default", &ExplorationConfig{CleanupInterval: ptrString("")}, time.Second},
		{"invalid duration returns default", &ExplorationConfig{CleanupInterval: ptrString("soon")}, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetCleanupInterval(); got != tt.want {
				t.Errorf("GetCleanupInterval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWatchReloadsValidChanges(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "run.json")
	if err := os.WriteFile(configPath, []byte(`{"weight_turn": 1}`), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan *ExplorationConfig, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, configPath, func(c *ExplorationConfig) { changes <- c })
	}()

	// The watcher starts asynchronously, so keep rewriting until it reports.
	// Invalid content in between must never reach the callback.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case c := <-changes:
			if got := c.Weights().Turn; got != 7 {
				t.Fatalf("reloaded weight_turn = %f, want 7", got)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch() returned %v", err)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(configPath, []byte(`{"sensor_range": -1}`), 0644); err != nil {
				t.Fatalf("rewrite: %v", err)
			}
			if err := os.WriteFile(configPath, []byte(`{"weight_turn": 7}`), 0644); err != nil {
				t.Fatalf("rewrite: %v", err)
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "run.json"), func(*ExplorationConfig) {})
	if err == nil {
		t.Error("Watch() on a missing directory succeeded")
	}
}
