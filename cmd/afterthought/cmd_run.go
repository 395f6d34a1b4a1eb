package main

import (
	"context"
	"fmt"

	"github.com/nguyentantai21042004/afterthought/internal/library"
	"github.com/nguyentantai21042004/afterthought/internal/pipeline"
	"github.com/nguyentantai21042004/afterthought/internal/player"
	"github.com/spf13/cobra"
)

type runOptions struct {
	channel      string
	days         int
	force        bool
	dryRun       bool
	fetchMissing bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Summarize recently played episodes",
		Long: `Summarize every episode played within the discovery window that has a
cached transcript and no successful record yet.

Episodes are processed one at a time, oldest play first. A failure is
recorded and the run moves on to the next episode.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, root)
			if err != nil {
				return err
			}
			return runE(cmd.Context(), a, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.channel, "channel", "c", "", "Only process episodes from the podcast best matching this name")
	cmd.Flags().IntVarP(&opts.days, "days", "d", 0, "Look back this many days (default from config, 7)")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Reprocess episodes that already succeeded")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Show what would be processed without calling Gemini or writing anything")
	cmd.Flags().BoolVar(&opts.fetchMissing, "fetch-missing", false, "Play episodes without a cached transcript so the Podcasts app downloads one")

	return cmd
}

func runE(ctx context.Context, a *app, opts *runOptions) error {
	if opts.days < 0 || opts.days > 365 {
		return fmt.Errorf("--days must be between 1 and 365")
	}
	validate := a.cfg.ValidateRun
	if opts.dryRun {
		validate = a.cfg.ValidateLibrary
	}
	if err := validate(); err != nil {
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

	p, err := a.newPipeline(l, opts.dryRun)
	if err != nil {
		return err
	}

	r := &runner{app: a, lib: lib, pipeline: p, player: a.newPlayer(), opts: opts}
	summary, err := r.run(withRun(ctx))
	if summary != nil {
		printRunSummary(a.out, summary, opts.dryRun)
	}
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return &ItemsFailedError{Failed: summary.Failed}
	}
	return nil
}

// runner is one discover-then-process pass. watch reuses it per trigger.
type runner struct {
	app      *app
	lib      library.Library
	pipeline pipeline.Pipeline
	player   player.Player
	opts     *runOptions
}

func (r *runner) run(ctx context.Context) (*pipeline.RunSummary, error) {
	days := r.opts.days
	if days <= 0 {
		days = r.app.cfg.Discovery.Days
	}
	channel := r.opts.channel
	if channel == "" {
		channel = r.app.cfg.Discovery.Channel
	}

	items, err := r.lib.Discover(ctx, library.Query{Days: days, Channel: channel})
	if err != nil {
		return nil, fmt.Errorf("discover episodes: %w", err)
	}
	r.app.log.Info(ctx, "Found %d episodes played in the last %d days", len(items), days)
	if len(items) == 0 {
		return &pipeline.RunSummary{}, nil
	}

	fetch := r.opts.fetchMissing || r.app.cfg.Player.FetchMissing
	if fetch && !r.opts.dryRun && r.player != nil {
		items = r.player.FetchMissing(ctx, items, r.lib)
	}

	return r.pipeline.Run(ctx, items, pipeline.RunOptions{
		Force:  r.opts.force,
		DryRun: r.opts.dryRun,
	})
}
