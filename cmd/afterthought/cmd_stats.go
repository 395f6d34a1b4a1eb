package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/nguyentantai21042004/afterthought/internal/ledger"
	"github.com/spf13/cobra"
)

func newStatsCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show processing statistics",
		Long: `Show how many episodes ended in each outcome, the podcasts processed
most, and token usage. When the Apple Podcasts library is reachable its
episode and transcript counts are shown as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, root)
			if err != nil {
				return err
			}
			return statsE(cmd.Context(), a)
		},
	}
}

func statsE(ctx context.Context, a *app) error {
	l, err := a.openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	st, err := l.Stats(ctx)
	if err != nil {
		return err
	}

	p := newPrinter()
	p.Fprintf(a.out, "Tracking database: %s\n", a.cfg.Paths.Ledger)

	outcomes := newTable("Outcome", "Items")
	for _, o := range ledger.Outcomes {
		outcomes.Row(string(o), p.Sprintf("%d", st.ByOutcome[o]))
	}
	outcomes.Row("Total", p.Sprintf("%d", st.Total))
	fmt.Fprintln(a.out, outcomes.String())

	if st.Total > 0 {
		p.Fprintf(a.out, "First processed: %s\n", formatTime(st.FirstProcessedAt))
		p.Fprintf(a.out, "Last processed:  %s\n", formatTime(st.LastProcessedAt))
		p.Fprintf(a.out, "Tokens: %d in / %d out (%d total)\n", st.InputTokens, st.OutputTokens, st.InputTokens+st.OutputTokens)
	}

	if len(st.BySource) > 0 {
		sources := make([]string, 0, len(st.BySource))
		for name := range st.BySource {
			sources = append(sources, name)
		}
		sort.Slice(sources, func(i, j int) bool {
			if st.BySource[sources[i]] != st.BySource[sources[j]] {
				return st.BySource[sources[i]] > st.BySource[sources[j]]
			}
			return sources[i] < sources[j]
		})

		bySource := newTable("Podcast", "Items")
		for _, name := range sources {
			bySource.Row(name, p.Sprintf("%d", st.BySource[name]))
		}
		fmt.Fprintln(a.out, bySource.String())
	}

	lib, err := a.openLibrary()
	if err != nil {
		a.log.Debug(ctx, "Podcast library unavailable: %v", err)
		return nil
	}
	defer lib.Close()

	ls, err := lib.Stats(ctx)
	if err != nil {
		return err
	}
	counts := newTable("Library", "Count")
	counts.Row("Episodes", p.Sprintf("%d", ls.Episodes))
	counts.Row("Podcasts", p.Sprintf("%d", ls.Podcasts))
	counts.Row("With transcripts", p.Sprintf("%d", ls.WithTranscripts))
	counts.Row("Played in last 30 days", p.Sprintf("%d", ls.RecentlyPlayed30d))
	counts.Row("Cached transcript files", p.Sprintf("%d", ls.CachedTranscripts))
	fmt.Fprintln(a.out, counts.String())
	return nil
}
