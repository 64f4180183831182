package daemon

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docpages/internal/config"
	ferrors "git.home.luguber.info/inful/docpages/internal/foundation/errors"
	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// reloadDebounce coalesces the burst of filesystem events an editor
// save tends to produce into a single reload.
const reloadDebounce = 2 * time.Second

// ConfigWatcher reloads the daemon configuration when the file changes
// on disk. Invalid configs are rejected and the previous one stays live.
type ConfigWatcher struct {
	path    string
	apply   func(*config.Config)
	watcher *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer

	stopChan chan struct{}
	doneChan chan struct{}
}

// NewConfigWatcher watches the directory containing path. Watching the
// parent directory keeps the watch alive across rename-based saves.
func NewConfigWatcher(path string, apply func(*config.Config)) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.ConfigError("failed to create filesystem watcher").
			WithCause(err).
			Build()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, ferrors.ConfigError("failed to resolve config path").
			WithContext("path", path).
			WithCause(err).
			Build()
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, ferrors.ConfigError("failed to watch config directory").
			WithContext("dir", filepath.Dir(abs)).
			WithCause(err).
			Build()
	}

	return &ConfigWatcher{
		path:     abs,
		apply:    apply,
		watcher:  watcher,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start begins processing filesystem events in the background.
func (cw *ConfigWatcher) Start() {
	slog.Info("Watching config file for changes", logfields.Path(cw.path))
	go cw.loop()
}

// Stop ends the watch and waits for the event loop to exit.
func (cw *ConfigWatcher) Stop() {
	close(cw.stopChan)
	cw.watcher.Close()
	<-cw.doneChan

	cw.mu.Lock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.mu.Unlock()
}

func (cw *ConfigWatcher) loop() {
	defer close(cw.doneChan)
	for {
		select {
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(cw.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cw.scheduleReload()
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) scheduleReload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(reloadDebounce, cw.reload)
}

func (cw *ConfigWatcher) reload() {
	cfg, err := config.Load(cw.path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Warn("Config reload failed, keeping previous config",
			logfields.Path(cw.path),
			logfields.Error(err))
		return
	}
	slog.Info("Config reloaded", logfields.Path(cw.path))
	cw.apply(cfg)
}
