package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce collapses bursts of editor writes into one reload.
const DefaultDebounce = 100 * time.Millisecond

// Watcher watches configuration files and calls onReload once a burst of
// changes has settled.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	debounce time.Duration
	onReload func(file string)
	logger   *logrus.Entry

	mu      sync.Mutex
	timer   *time.Timer
	pending string
	closed  bool
}

// NewWatcher watches the given files. Parent directories are watched so
// atomic replace-on-save is seen; events for other files are ignored.
func NewWatcher(files []string, debounce time.Duration, onReload func(file string), logger *logrus.Entry) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = discardLogger()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]bool),
		debounce: debounce,
		onReload: onReload,
		logger:   logger,
	}

	watchedDirs := make(map[string]bool)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			continue
		}
		w.files[abs] = true
		dir := filepath.Dir(abs)
		if watchedDirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			logger.WithError(err).Warnf("Failed to watch config directory %s", dir)
			continue
		}
		watchedDirs[dir] = true
		logger.Debugf("Watching config directory: %s", dir)
	}

	return w, nil
}

// Start processes events until the context is cancelled or the watcher is closed.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !w.files[name] {
				continue
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			w.handleChange(name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.Close()
			return
		}
	}
}

func (w *Watcher) handleChange(file string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending = file
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	file := w.pending
	closed := w.closed
	w.timer = nil
	w.mu.Unlock()

	if closed || w.onReload == nil {
		return
	}
	w.logger.Infof("Config changed: %s", filepath.Base(file))
	w.onReload(file)
}

// Close stops the watcher and drops any pending reload.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
