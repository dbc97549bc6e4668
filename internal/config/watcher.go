package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vfbarros/zapflow/internal/logging"
)

// Watcher re-reads the config file when it changes and hands the fresh
// Config to the callback. Editors often replace files via rename, so the
// parent directory is watched rather than the file itself.
type Watcher struct {
	path     string
	onChange func(*Config)

	watcher *fsnotify.Watcher
	stopCh  chan struct{}

	mu           sync.Mutex
	pendingTimer *time.Timer
}

// NewWatcher starts watching the config file. Stop must be called on
// shutdown.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	if path == "" {
		path = DefaultPath()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		onChange: onChange,
		watcher:  fsWatcher,
		stopCh:   make(chan struct{}),
	}
	go w.loop()

	logging.L_debug("config: watching for changes", "path", path)
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.L_warn("config: watch error", "error", err)
		}
	}
}

// scheduleReload debounces bursts of events into one reload.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pendingTimer != nil {
		w.pendingTimer.Stop()
	}
	w.pendingTimer = time.AfterFunc(500*time.Millisecond, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logging.L_error("config: reload failed, keeping previous config", "error", err)
		return
	}
	logging.L_info("config: reloaded", "path", w.path)
	w.onChange(cfg)
}

// Stop ends the watch.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()

	w.mu.Lock()
	if w.pendingTimer != nil {
		w.pendingTimer.Stop()
	}
	w.mu.Unlock()
}
