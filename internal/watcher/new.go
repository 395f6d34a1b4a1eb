package watcher

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nguyentantai21042004/afterthought/internal/logger"
)

const DefaultDebounce = 30 * time.Second

// Options configures the watcher.
type Options struct {
	// Debounce is the quiet period after the last change before a run starts.
	Debounce time.Duration
	// RunOnStart triggers one run as soon as Start is called.
	RunOnStart bool
}

// New watches dir and every directory below it. Runs never overlap.
func New(dir string, trigger Trigger, opts Options, log logger.Logger) (Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &implWatcher{
		dir:        dir,
		trigger:    trigger,
		logger:     log,
		watcher:    fsw,
		debounce:   opts.Debounce,
		runOnStart: opts.RunOnStart,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}

	if err := w.addTree(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}
	return w, nil
}
