package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type forgetOptions struct {
	source string
	all    bool
	yes    bool
}

func newForgetCommand(root *rootOptions) *cobra.Command {
	opts := &forgetOptions{}

	cmd := &cobra.Command{
		Use:   "forget [item-id...]",
		Short: "Remove tracking records so episodes are processed again",
		Long: `Remove tracking records by item id, by podcast, or all of them.
Forgotten episodes are picked up by the next run if they are still
inside the discovery window. Notes already written are left alone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, root)
			if err != nil {
				return err
			}
			return forgetE(cmd.Context(), a, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "Forget every record of this podcast (exact name)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Forget every record")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Do not ask for confirmation with --all")

	return cmd
}

func forgetE(ctx context.Context, a *app, opts *forgetOptions, ids []string) error {
	modes := 0
	for _, set := range []bool{len(ids) > 0, opts.source != "", opts.all} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return errors.New("give item ids, --source or --all (exactly one)")
	}

	l, err := a.openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	p := newPrinter()
	switch {
	case opts.all:
		if !opts.yes {
			ok, err := a.confirm("Forget every tracking record?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.out, "Aborted.")
				return nil
			}
		}
		n, err := l.ForgetAll(ctx)
		if err != nil {
			return err
		}
		p.Fprintf(a.out, "Forgot %d records.\n", n)

	case opts.source != "":
		n, err := l.ForgetSource(ctx, opts.source)
		if err != nil {
			return err
		}
		p.Fprintf(a.out, "Forgot %d records from %s.\n", n, opts.source)

	default:
		forgot := 0
		for _, id := range ids {
			ok, err := l.Forget(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				a.log.Warn(ctx, "No record for item %s", id)
				continue
			}
			forgot++
		}
		p.Fprintf(a.out, "Forgot %d records.\n", forgot)
	}
	return nil
}

// confirm asks a yes/no question on the command's input. Without a
// terminal there is nobody to answer, so it refuses.
func (a *app) confirm(question string) (bool, error) {
	if !isInteractive(a.in) {
		return false, errors.New("refusing to forget everything without a terminal; pass --yes")
	}
	fmt.Fprintf(a.out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && answer == "" {
		return false, nil
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}
