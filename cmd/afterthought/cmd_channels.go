package main

import (
	"context"
	"fmt"

	"github.com/nguyentantai21042004/afterthought/internal/library"
	"github.com/spf13/cobra"
)

func newChannelsCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "channels [name]",
		Short: "List podcasts in the library or test a --channel name",
		Long: `Without arguments, list every podcast in the Apple Podcasts library.
With a name, show how well it matches each podcast; run --channel picks
the best match scoring at least 60.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, root)
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return channelsE(cmd.Context(), a, query)
		},
	}
}

func channelsE(ctx context.Context, a *app, query string) error {
	lib, err := a.openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	channels, err := lib.Channels(ctx)
	if err != nil {
		return err
	}
	p := newPrinter()

	if query == "" {
		t := newTable("Podcast", "Author", "Episodes")
		for _, c := range channels {
			t.Row(c.Name, c.Author, p.Sprintf("%d", c.EpisodeCount))
		}
		fmt.Fprintln(a.out, t.String())
		p.Fprintf(a.out, "%d podcasts\n", len(channels))
		return nil
	}

	names := make([]string, len(channels))
	for i, c := range channels {
		names[i] = c.Name
	}
	matches := library.FuzzyMatch(query, names, library.MatchThreshold)
	if len(matches) == 0 {
		return fmt.Errorf("%w for %q", library.ErrNoChannelMatch, query)
	}

	t := newTable("Podcast", "Score")
	for _, m := range matches {
		t.Row(m.Name, fmt.Sprintf("%d", m.Score))
	}
	fmt.Fprintln(a.out, t.String())
	return nil
}
