package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nguyentantai21042004/afterthought/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type counter struct {
	runs      atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	hold      time.Duration
}

func (c *counter) trigger(ctx context.Context) error {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		m := c.maxActive.Load()
		if n <= m || c.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	c.runs.Add(1)
	if c.hold > 0 {
		select {
		case <-time.After(c.hold):
		case <-ctx.Done():
		}
	}
	return nil
}

func start(t *testing.T, dir string, trigger Trigger, opts Options) (context.CancelFunc, <-chan error) {
	t.Helper()
	w, err := New(dir, trigger, opts, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	return cancel, done
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	c := &counter{}
	cancel, done := start(t, dir, c.trigger, Options{Debounce: 200 * time.Millisecond})
	defer cancel()

	// Give the watcher a moment to start its loops.
	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "transcript_1.ttml"), []byte("<tt/>"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return c.runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(1), c.runs.Load(), "one run per burst")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	c := &counter{}
	cancel, _ := start(t, dir, c.trigger, Options{Debounce: 100 * time.Millisecond})
	defer cancel()

	time.Sleep(50 * time.Millisecond)
	sub := filepath.Join(dir, "PodcastContent221")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Eventually(t, func() bool { return c.runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "transcript_2.ttml"), []byte("<tt/>"), 0o644))
	require.Eventually(t, func() bool { return c.runs.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherIgnoresHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	c := &counter{}
	cancel, _ := start(t, dir, c.trigger, Options{Debounce: 50 * time.Millisecond})
	defer cancel()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".DS_Store"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, c.runs.Load())
}

func TestWatcherRunOnStartAndNoOverlap(t *testing.T) {
	dir := t.TempDir()
	c := &counter{hold: 300 * time.Millisecond}
	cancel, done := start(t, dir, c.trigger, Options{Debounce: 20 * time.Millisecond, RunOnStart: true})

	require.Eventually(t, func() bool { return c.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ttml"), []byte("<tt/>"), 0o644))

	require.Eventually(t, func() bool { return c.runs.Load() == 2 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), c.maxActive.Load(), "runs never overlap")

	cancel()
	<-done
	assert.Zero(t, c.active.Load(), "Start waits for the in-flight run")
}

func TestWatcherLogsTriggerErrors(t *testing.T) {
	dir := t.TempDir()
	var mu sync.Mutex
	calls := 0
	trigger := func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return assert.AnError
	}
	cancel, done := start(t, dir, trigger, Options{Debounce: 20 * time.Millisecond, RunOnStart: true})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.ttml"), []byte("<tt/>"), 0o644))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 2
	}, 2*time.Second, 5*time.Millisecond, "a failed run does not stop the watcher")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestNewMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent"), func(context.Context) error { return nil }, Options{}, logger.Discard())
	require.Error(t, err)
}

func TestSpawnCoalescesPendingRuns(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int32
	trigger := func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			<-release
		}
		return nil
	}
	w := &implWatcher{trigger: trigger, logger: logger.Discard()}

	g, ctx := errgroup.WithContext(context.Background())
	w.spawn(ctx, g)
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	for i := 0; i < 10; i++ {
		w.spawn(ctx, g)
	}
	close(release)

	require.NoError(t, g.Wait())
	assert.Equal(t, int32(2), runs.Load(), "requests during a run collapse into one follow-up")
	assert.False(t, w.running)
	assert.False(t, w.pending)
}
