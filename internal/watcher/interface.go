package watcher

import "context"

// Watcher monitors the transcript cache and triggers runs when it changes.
type Watcher interface {
	// Start blocks until ctx is canceled or the underlying watch fails.
	// In-flight runs are waited for before it returns.
	Start(ctx context.Context) error
	Stop() error
}

// Trigger is one discovery + pipeline run. Its error is logged, not fatal.
type Trigger func(ctx context.Context) error
