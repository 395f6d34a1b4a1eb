package main

import (
	"context"

	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "afterthought",
		Short: "Summarize the podcasts you have listened to",
		Long: `Afterthought turns the transcripts of recently played Apple Podcasts
episodes into Markdown notes summarized by Gemini.

Each episode is processed at most once; outcomes are kept in a local
tracking database so repeated runs only pick up new listening.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.afterthought/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newForgetCommand(opts))
	cmd.AddCommand(newChannelsCommand(opts))

	return cmd
}

func execute(ctx context.Context) error {
	rootCmd := newRootCommand()
	return rootCmd.ExecuteContext(ctx)
}
