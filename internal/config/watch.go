package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/banshee-data/swarm.map/internal/monitoring"
)

// Watch reloads the config at path whenever it changes on disk and passes
// each valid result to onChange. Files that fail to load are logged and
// skipped, leaving the previous config in effect. The directory is watched
// rather than the file so editors that replace the file are handled. Watch
// blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*ExplorationConfig)) error {
	cleanPath := filepath.Clean(path)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(cleanPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(cleanPath), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != cleanPath || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadExplorationConfig(cleanPath)
			if err != nil {
				monitoring.Logf("config reload of %s rejected: %v", cleanPath, err)
				continue
			}
			monitoring.Logf("config reloaded from %s", cleanPath)
			onChange(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			monitoring.Logf("config watcher error: %v", err)
		}
	}
}
