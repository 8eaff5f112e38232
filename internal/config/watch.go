package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"

	"vitalwave.dev/core/internal/logging"
)

// Watch reloads the config at path whenever it changes on disk and pushes
// the result down the returned channel. A bad reload is logged and
// skipped rather than torn down, since transient writes (an editor's
// save-via-rename) can briefly leave an unparsable file on disk.
//
// The reloaded struct carries every field, BLEConfig and model/scaler
// paths included. Watch only delivers it; it applies nothing to components
// that were built from an earlier Config.
func Watch(path string, done <-chan struct{}) (<-chan *Config, error) {
	log := logging.For("config")
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	out := make(chan *Config, 1)
	go func() {
		defer watcher.Close()
		defer close(out)
		for {
			select {
			case <-done:
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("config watcher error")
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					log.WithError(err).Warn("config reload failed, keeping previous config")
					continue
				}
				select {
				case out <- cfg:
				case <-done:
					return
				}
			}
		}
	}()
	return out, nil
}
