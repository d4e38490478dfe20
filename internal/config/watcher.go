package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the config file on change and hands the new config to a
// callback. Editors and config-map mounts rewrite files with remove +
// rename sequences, so the watcher watches the parent directory and
// debounces bursts of events.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	onChange func(*Config)

	mu       sync.Mutex
	debounce *time.Timer
	done     chan struct{}
}

// NewWatcher starts watching the config file at path
func NewWatcher(path string, logger *zap.Logger, onChange func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		watcher:  fsw,
		logger:   logger,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher and cancels any pending debounced reload
func (w *Watcher) Close() error {
	close(w.done)
	w.mu.Lock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
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
			w.logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(200*time.Millisecond, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		// a timer that beat Close's Stop must not fire the callback
		return
	default:
	}
	cfg, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("Config reload failed, keeping previous config",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("Config reloaded", zap.String("path", w.path))
	w.onChange(cfg)
}
