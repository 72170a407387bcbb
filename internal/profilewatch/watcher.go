// Package profilewatch keeps the portfolio profile in sync with a file on
// disk.
package profilewatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/magiconsole/magi"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

// Watcher serves the most recently parsed profile. Readers never block;
// a rewrite that fails to parse leaves the previous profile in place.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger
	current  atomic.Pointer[magi.Profile]
	reloads  atomic.Int64

	mu    sync.Mutex
	timer *time.Timer
}

var _ magi.ProfileSource = (*Watcher)(nil)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New loads the profile at path. The initial load must succeed.
func New(path string, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "profilewatch"), zap.String("path", w.path))

	p, err := magi.LoadProfile(w.path)
	if err != nil {
		return nil, err
	}
	w.current.Store(p)
	return w, nil
}

// Profile returns the current profile.
func (w *Watcher) Profile() *magi.Profile {
	return w.current.Load()
}

// Reloads returns how many reloads have succeeded.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// Reload re-reads the file now.
func (w *Watcher) Reload() error {
	p, err := magi.LoadProfile(w.path)
	if err != nil {
		return err
	}
	w.current.Store(p)
	w.reloads.Add(1)
	return nil
}

// Watch blocks until ctx is cancelled, reloading on file changes. The
// parent directory is watched so atomic rename-on-save is picked up.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("profilewatch: create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("profilewatch: watch %s: %w", filepath.Dir(w.path), err)
	}

	w.logger.Info("profile watcher started", zap.Duration("debounce", w.debounce))
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("profile watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("profilewatch: events channel closed")
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.schedule()

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("profilewatch: errors channel closed")
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.Reload(); err != nil {
			w.logger.Warn("profile reload failed, keeping previous profile", zap.Error(err))
			return
		}
		w.logger.Info("profile reloaded", zap.String("owner", w.Profile().User.Name))
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
