package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nguyentantai21042004/afterthought/internal/logger"
	"golang.org/x/sync/errgroup"
)

type implWatcher struct {
	dir        string
	trigger    Trigger
	logger     logger.Logger
	watcher    *fsnotify.Watcher
	debounce   time.Duration
	runOnStart bool

	mu      sync.Mutex
	running bool
	pending bool
}

// Start runs the event loop and the debounced dispatcher until ctx ends.
func (w *implWatcher) Start(ctx context.Context) error {
	w.logger.Info(ctx, "Watching transcript cache: %s (debounce %s)", w.dir, w.debounce)

	g, gctx := errgroup.WithContext(ctx)
	changed := make(chan struct{}, 1)

	g.Go(func() error { return w.watch(gctx, changed) })
	g.Go(func() error { return w.dispatch(gctx, g, changed) })

	err := g.Wait()
	w.logger.Info(ctx, "Watcher stopped")
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (w *implWatcher) Stop() error {
	return w.watcher.Close()
}

// watch forwards relevant file events to changed, coalescing bursts.
func (w *implWatcher) watch(ctx context.Context, changed chan<- struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !w.relevant(ctx, event) {
				continue
			}
			w.logger.Debug(ctx, "Transcript cache changed: %s %s", event.Op, event.Name)
			select {
			case changed <- struct{}{}:
			default:
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error(ctx, "Watcher error: %v", err)
		}
	}
}

// relevant also starts watching directories created under the cache.
func (w *implWatcher) relevant(ctx context.Context, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn(ctx, "Could not watch %s: %v", event.Name, err)
			}
		}
	}
	return true
}

// dispatch starts a run once the cache has been quiet for the debounce period.
func (w *implWatcher) dispatch(ctx context.Context, g *errgroup.Group, changed <-chan struct{}) error {
	if w.runOnStart {
		w.spawn(ctx, g)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
			timer.Reset(w.debounce)
		case <-timer.C:
			w.spawn(ctx, g)
		}
	}
}

// spawn starts a run unless one is in flight. Requests that arrive during a
// run collapse into a single follow-up run.
func (w *implWatcher) spawn(ctx context.Context, g *errgroup.Group) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		w.pending = true
		return
	}
	w.running = true

	g.Go(func() error {
		for {
			if err := w.trigger(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error(ctx, "Run failed: %v", err)
			}

			w.mu.Lock()
			if !w.pending || ctx.Err() != nil {
				w.running, w.pending = false, false
				w.mu.Unlock()
				return nil
			}
			w.pending = false
			w.mu.Unlock()
		}
	})
}

func (w *implWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
