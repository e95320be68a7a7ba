package config

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/polisai/polis-pii/pkg/domain"
)

// ReplacementsWatcher watches a replacements file and hands every valid new
// version to a callback. A file that fails to parse keeps the previous pools.
type ReplacementsWatcher struct {
	path         string
	watcher      *fsnotify.Watcher
	onReload     func(map[domain.Kind][]string)
	onResult     func(err error)
	logger       *slog.Logger
	mu           sync.Mutex
	running      bool
	stopCh       chan struct{}
	done         chan struct{}
	debounceTime time.Duration
}

// WatcherOption configures a ReplacementsWatcher.
type WatcherOption func(*ReplacementsWatcher)

// WithDebounce sets how long the watcher waits for writes to settle.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *ReplacementsWatcher) {
		if d > 0 {
			w.debounceTime = d
		}
	}
}

// WithReloadResult registers a callback invoked after every reload attempt
// with its error, nil on success.
func WithReloadResult(fn func(err error)) WatcherOption {
	return func(w *ReplacementsWatcher) {
		w.onResult = fn
	}
}

// NewReplacementsWatcher creates a watcher for path.
func NewReplacementsWatcher(path string, onReload func(map[domain.Kind][]string), logger *slog.Logger, opts ...WatcherOption) (*ReplacementsWatcher, error) {
	if onReload == nil {
		return nil, errors.New("reload callback is required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	w := &ReplacementsWatcher{
		path:         path,
		watcher:      watcher,
		onReload:     onReload,
		logger:       logger,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
		debounceTime: DefaultReplacementsReload,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. The directory is watched rather than the file
// because editors often replace files by renaming a temporary copy.
func (w *ReplacementsWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.running = true

	w.logger.Info("Replacements watcher started", "path", w.path)

	go w.watchLoop(ctx)
	return nil
}

// Stop stops the watcher and waits for its loop to exit.
func (w *ReplacementsWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	err := w.watcher.Close()
	<-w.done
	return err
}

// IsRunning returns whether the watcher is currently running.
func (w *ReplacementsWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *ReplacementsWatcher) watchLoop(ctx context.Context) {
	defer close(w.done)

	var debounce *time.Timer
	var fire <-chan time.Time

	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isTargetEvent(event) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			w.logger.Debug("Replacements file event detected",
				"event", event.Op.String(),
				"file", event.Name)

			if debounce == nil {
				debounce = time.NewTimer(w.debounceTime)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(w.debounceTime)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Replacements watcher error", "error", err)

		case <-w.stopCh:
			w.logger.Info("Replacements watcher stopped")
			return

		case <-ctx.Done():
			w.logger.Info("Replacements watcher context cancelled")
			return
		}
	}
}

func (w *ReplacementsWatcher) isTargetEvent(event fsnotify.Event) bool {
	eventPath, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	target, err := filepath.Abs(w.path)
	if err != nil {
		return false
	}
	return eventPath == target
}

func (w *ReplacementsWatcher) reload() {
	start := time.Now()
	pools, err := LoadReplacements(w.path)
	if err != nil {
		w.logger.Error("Replacements reload failed",
			"error", err,
			"duration", time.Since(start))
	} else {
		w.onReload(pools)
		w.logger.Info("Replacements reload completed",
			"kinds", len(pools),
			"duration", time.Since(start))
	}
	if w.onResult != nil {
		w.onResult(err)
	}
}
