package appframe

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigChangeFunc is called after the debounce window with the paths
// that changed.
type ConfigChangeFunc func(paths []string)

// ConfigWatcher watches configuration files for changes and invokes a
// callback once per burst of filesystem events. Editors and atomic
// writers produce several events per save; the debounce window collapses
// them into one notification.
type ConfigWatcher struct {
	paths    []string
	debounce time.Duration
	onChange ConfigChangeFunc
	logger   Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// ConfigWatcherOption configures a ConfigWatcher.
type ConfigWatcherOption func(*ConfigWatcher)

// WithWatchDebounce sets the debounce window. Default is 500ms.
func WithWatchDebounce(d time.Duration) ConfigWatcherOption {
	return func(w *ConfigWatcher) {
		w.debounce = d
	}
}

// WithWatcherLogger sets the watcher logger. Default is a NoopLogger.
func WithWatcherLogger(logger Logger) ConfigWatcherOption {
	return func(w *ConfigWatcher) {
		w.logger = logger
	}
}

// NewConfigWatcher creates a watcher over the given file paths. The
// callback runs on the watcher goroutine.
func NewConfigWatcher(paths []string, onChange ConfigChangeFunc, opts ...ConfigWatcherOption) (*ConfigWatcher, error) {
	if len(paths) == 0 {
		return nil, ErrWatcherNoPaths
	}
	w := &ConfigWatcher{
		paths:    paths,
		debounce: 500 * time.Millisecond,
		onChange: onChange,
		logger:   NoopLogger{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. The parent directories of the configured paths
// are watched so files replaced by rename (the common atomic-save
// pattern) are still observed.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return ErrWatcherAlreadyStarted
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dirs := make(map[string]struct{})
	for _, path := range w.paths {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return err
		}
	}

	watchedFiles := make(map[string]struct{}, len(w.paths))
	for _, path := range w.paths {
		watchedFiles[filepath.Clean(path)] = struct{}{}
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.watcher = watcher
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.watch(runCtx, watcher, watchedFiles)
	w.logger.Debug("Config watcher started", "paths", w.paths)
	return nil
}

func (w *ConfigWatcher) watch(ctx context.Context, watcher *fsnotify.Watcher, watchedFiles map[string]struct{}) {
	defer close(w.done)

	var timer *time.Timer
	var timerC <-chan time.Time
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			path := filepath.Clean(event.Name)
			if _, watched := watchedFiles[path]; !watched {
				continue
			}
			pending[path] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case <-timerC:
			changed := make([]string, 0, len(pending))
			for path := range pending {
				changed = append(changed, path)
			}
			pending = make(map[string]struct{})
			timerC = nil
			w.logger.Info("Config change detected", "paths", changed)
			if w.onChange != nil {
				w.onChange(changed)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", "error", err)
		}
	}
}

// Stop stops watching and waits for the watcher goroutine to exit.
// Idempotent.
func (w *ConfigWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	w.watcher = nil
	w.cancel = nil
	w.done = nil
	w.logger.Debug("Config watcher stopped")
	return err
}
