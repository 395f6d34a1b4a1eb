package main

import (
	"context"
	"fmt"

	"github.com/nguyentantai21042004/afterthought/internal/ledger"
	"github.com/spf13/cobra"
)

const titleWidth = 48

type listOptions struct {
	source  string
	outcome string
	limit   int
}

func newListCommand(root *rootOptions) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processed episodes",
		Long:  `List tracking records, most recently processed first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, root)
			if err != nil {
				return err
			}
			return listE(cmd.Context(), a, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "Only records from this podcast (exact name)")
	cmd.Flags().StringVarP(&opts.outcome, "outcome", "o", "", "Only records with this outcome (success, no_transcript, skipped, failed)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 50, "Maximum records to show (0 for all)")

	return cmd
}

func listE(ctx context.Context, a *app, opts *listOptions) error {
	filter := ledger.Filter{SourceName: opts.source, Limit: opts.limit}
	if opts.outcome != "" {
		o, err := ledger.ParseOutcome(opts.outcome)
		if err != nil {
			return err
		}
		filter.Outcome = o
	}

	l, err := a.openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	records, err := l.List(ctx, filter)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.out, "No records.")
		return nil
	}

	p := newPrinter()
	t := newTable("Processed", "Outcome", "Podcast", "Title", "Tokens", "Item ID")
	for _, r := range records {
		tokens := "-"
		if r.InputTokens != nil && r.OutputTokens != nil {
			tokens = p.Sprintf("%d", *r.InputTokens+*r.OutputTokens)
		}
		t.Row(formatTime(r.ProcessedAt), string(r.Outcome), r.SourceName, truncate(r.Title, titleWidth), tokens, r.ItemID)
	}
	fmt.Fprintln(a.out, t.String())
	p.Fprintf(a.out, "%d records\n", len(records))
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
