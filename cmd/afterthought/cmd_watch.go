package main

import (
	"context"
	"errors"
	"time"

	"github.com/nguyentantai21042004/afterthought/internal/watcher"
	"github.com/spf13/cobra"
)

func newWatchCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Summarize new transcripts as the Podcasts app downloads them",
		Long: `Watch the transcript cache and start a run once it has been quiet for
the debounce period. One run happens at startup; runs never overlap.

Stop with Ctrl+C. The episode being processed finishes recording its
outcome before the command exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, root)
			if err != nil {
				return err
			}
			if debounce > 0 {
				a.cfg.Watch.Debounce = debounce
			}
			return watchE(cmd.Context(), a, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.channel, "channel", "c", "", "Only process episodes from the podcast best matching this name")
	cmd.Flags().IntVarP(&opts.days, "days", "d", 0, "Look back this many days (default from config, 7)")
	cmd.Flags().BoolVar(&opts.fetchMissing, "fetch-missing", false, "Play episodes without a cached transcript so the Podcasts app downloads one")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Quiet period before a run, e.g. 30s (default from config)")

	return cmd
}

func watchE(ctx context.Context, a *app, opts *runOptions) error {
	if err := a.cfg.ValidateRun(); err != nil {
		return err
	}

	l, err := a.openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	lib, err := a.openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	p, err := a.newPipeline(l, false)
	if err != nil {
		return err
	}

	r := &runner{app: a, lib: lib, pipeline: p, player: a.newPlayer(), opts: opts}
	trigger := func(ctx context.Context) error {
		summary, err := r.run(withRun(ctx))
		if summary != nil && len(summary.Items) > 0 {
			printRunSummary(a.out, summary, false)
		}
		return err
	}

	w, err := watcher.New(a.cfg.Paths.TranscriptCache, trigger, watcher.Options{
		Debounce:   a.cfg.Watch.Debounce,
		RunOnStart: true,
	}, a.log)
	if err != nil {
		return err
	}
	defer w.Stop()

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
