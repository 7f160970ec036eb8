package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses the burst of events an editor save produces
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the configuration when a file in the loader's directory
// changes and hands the new value to registered callbacks.
type Watcher struct {
	loader    *Loader
	config    *Config
	callbacks []func(*Config)
	mu        sync.RWMutex
	logger    *zap.Logger
	watcher   *fsnotify.Watcher
	debounce  time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithDebounce overrides DefaultDebounce
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher starts watching the loader's directory
func NewWatcher(loader *Loader, initial *Config, logger *zap.Logger, opts ...WatcherOption) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		loader:   loader,
		config:   initial,
		logger:   logger.Named("config"),
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsWatcher.Add(loader.BasePath()); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", loader.BasePath(), err)
	}
	w.watcher = fsWatcher

	go w.watchLoop()
	w.logger.Info("Configuration hot reloading enabled", zap.String("dir", loader.BasePath()))
	return w, nil
}

func (w *Watcher) watchLoop() {
	defer close(w.doneCh)
	defer w.watcher.Close()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !isConfigFile(event.Name) {
				continue
			}
			w.logger.Debug("Configuration file changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()),
			)
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				if _, err := w.Reload(); err != nil {
					w.logger.Error("Invalid configuration after reload", zap.Error(err))
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))

		case <-w.stopCh:
			return
		}
	}
}

// Reload loads the configuration now. Callbacks run only when it changed.
// An invalid configuration is rejected and the previous one stays current.
func (w *Watcher) Reload() (bool, error) {
	next, err := w.loader.Load()
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	previous := w.config
	if configsEqual(previous, next) {
		w.mu.Unlock()
		w.logger.Debug("Configuration unchanged after reload")
		return false, nil
	}
	w.config = next
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("Configuration reloaded",
		zap.Strings("sources", next.LoadedFrom),
		zap.Int("callbacks", len(callbacks)),
	)
	for i, cb := range callbacks {
		w.runCallback(i, cb, next)
	}
	return true, nil
}

func (w *Watcher) runCallback(idx int, cb func(*Config), cfg *Config) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Callback panicked",
				zap.Int("callback_index", idx),
				zap.Any("panic", r),
			)
		}
	}()
	cb(cfg)
}

// OnChange registers a callback for configuration changes
func (w *Watcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Config returns the current configuration
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Stop stops watching and waits for the loop to exit
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
	})
}

func configsEqual(a, b *Config) bool {
	if a == nil || b == nil {
		return a == b
	}
	left, right := *a, *b
	left.LoadedFrom, right.LoadedFrom = nil, nil
	return reflect.DeepEqual(left, right)
}

func isConfigFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
