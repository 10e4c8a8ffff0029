package seed

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long the watcher waits after the last change
// before reseeding.
const DefaultDebounce = 250 * time.Millisecond

// WatcherConfig holds watcher configuration
type WatcherConfig struct {
	// Path is the seed file to watch.
	Path string

	// Target receives every reseed.
	Target Target

	// Notifier, if set, is told after each successful reseed.
	Notifier Notifier

	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// Watcher reseeds the store whenever the seed file changes.
//
// It watches the file's directory rather than the file itself, because
// editors commonly save by writing a temporary file and renaming it over
// the original, which would drop a watch on the old inode.
type Watcher struct {
	cfg     WatcherConfig
	path    string
	watcher *fsnotify.Watcher
	log     logrus.FieldLogger

	mu      sync.Mutex
	running bool
}

// NewWatcher creates a Watcher. It does nothing until Run is called.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Target == nil {
		return nil, fmt.Errorf("seed watcher needs a target store")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	path, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve seed file %s: %w", cfg.Path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		cfg:     cfg,
		path:    path,
		watcher: fw,
		log:     cfg.Logger.WithFields(logrus.Fields{"component": "seed", "file": path}),
	}, nil
}

// Run watches until ctx is done. Reseed failures are logged and the
// watcher keeps going; only a failure to start watching is returned.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		_ = w.watcher.Close()
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	w.log.Info("watching seed file")

	timer := time.NewTimer(w.cfg.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				timer.Reset(w.cfg.Debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("file watcher error")

		case <-timer.C:
			w.reseed(ctx)
		}
	}
}

// relevant reports whether event may have changed the seed file's contents.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != w.path {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)
}

func (w *Watcher) reseed(ctx context.Context) {
	start := time.Now()
	n, err := Run(ctx, w.cfg.Target, w.path)
	if err != nil {
		w.log.WithError(err).Error("failed to reseed")
		return
	}

	w.log.WithFields(logrus.Fields{
		"tasks":       n,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("reseeded tasks")
	if w.cfg.Notifier != nil {
		w.cfg.Notifier.NotifyReload(n)
	}
}

// isRunning reports whether Run is active.
func (w *Watcher) isRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
