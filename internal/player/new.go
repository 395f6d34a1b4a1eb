package player

import (
	"context"
	"time"

	"github.com/nguyentantai21042004/afterthought/internal/logger"
	"github.com/nguyentantai21042004/afterthought/pkg/executor"
)

const (
	DefaultWait   = 10 * time.Second
	DefaultRegion = "us"
)

// Options configures playback automation.
type Options struct {
	// Wait is how long to give the app to download the transcript.
	Wait time.Duration
	// Region is the storefront segment of the podcasts:// URL.
	Region string
}

type implPlayer struct {
	exec   executor.Executor
	logger logger.Logger
	wait   time.Duration
	region string
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Player that drives the Podcasts app through osascript.
func New(exec executor.Executor, opts Options, log logger.Logger) Player {
	p := &implPlayer{
		exec:   exec,
		logger: log,
		wait:   opts.Wait,
		region: opts.Region,
		sleep:  sleepContext,
	}
	if p.wait <= 0 {
		p.wait = DefaultWait
	}
	if p.region == "" {
		p.region = DefaultRegion
	}
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
