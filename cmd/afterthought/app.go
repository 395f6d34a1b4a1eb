package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/nguyentantai21042004/afterthought/internal/config"
	"github.com/nguyentantai21042004/afterthought/internal/ledger"
	"github.com/nguyentantai21042004/afterthought/internal/library"
	"github.com/nguyentantai21042004/afterthought/internal/logger"
	"github.com/nguyentantai21042004/afterthought/internal/pipeline"
	"github.com/nguyentantai21042004/afterthought/internal/player"
	"github.com/nguyentantai21042004/afterthought/internal/summarizer"
	"github.com/nguyentantai21042004/afterthought/internal/writer"
	"github.com/nguyentantai21042004/afterthought/pkg/executor"
	"github.com/spf13/cobra"
)

// app holds what every subcommand shares: the loaded config, the logger
// and the command's output streams.
type app struct {
	cfg *config.Config
	log logger.Logger
	out io.Writer
	in  io.Reader
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	path := opts.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if opts.verbose {
		level = "debug"
	}

	return &app{
		cfg: cfg,
		log: logger.NewWithOutput(cmd.ErrOrStderr(), level, cfg.Logging.Format),
		out: cmd.OutOrStdout(),
		in:  cmd.InOrStdin(),
	}, nil
}

// withRun tags ctx with a fresh run id.
func withRun(ctx context.Context) context.Context {
	return logger.WithRunID(ctx, uuid.New().String())
}

func (a *app) openLedger() (ledger.Ledger, error) {
	l, err := ledger.Open(a.cfg.Paths.Ledger)
	if err != nil {
		return nil, fmt.Errorf("open tracking database %s: %w", a.cfg.Paths.Ledger, err)
	}
	return l, nil
}

func (a *app) openLibrary() (library.Library, error) {
	if err := a.cfg.ValidateLibrary(); err != nil {
		return nil, err
	}
	return library.Open(a.cfg.Paths.Library, a.cfg.Paths.TranscriptCache, a.log)
}

func (a *app) newPlayer() player.Player {
	return player.New(executor.New(a.cfg.Player.Timeout), player.Options{
		Wait:   a.cfg.Player.Wait,
		Region: a.cfg.Player.Region,
	}, a.log)
}

// newPipeline builds the pipeline. A dry run never summarizes or writes,
// so it needs neither an API key nor an output directory.
func (a *app) newPipeline(l ledger.Ledger, dryRun bool) (pipeline.Pipeline, error) {
	var (
		s summarizer.Summarizer
		w writer.Writer
	)
	if !dryRun {
		prompt, err := a.cfg.Gemini.Prompt()
		if err != nil {
			return nil, err
		}
		s, err = summarizer.New(summarizer.Options{
			APIKeys:         a.cfg.Gemini.APIKeys,
			Model:           a.cfg.Gemini.Model,
			MaxRetries:      a.cfg.Gemini.MaxRetries,
			Temperature:     a.cfg.Gemini.Temperature,
			MaxOutputTokens: a.cfg.Gemini.MaxOutputTokens,
			PromptTemplate:  prompt,
		}, a.log)
		if err != nil {
			return nil, err
		}

		format, err := writer.ParseFormat(a.cfg.Output.Format)
		if err != nil {
			return nil, err
		}
		w = writer.New(writer.Options{OutputDir: a.cfg.Paths.Output, Format: format}, a.log)
	}

	return pipeline.New(l, pipeline.NewFileLoader(), s, w, pipeline.Options{
		PreserveSpeakers:    a.cfg.Transcript.Preserve(),
		PauseThreshold:      a.cfg.Transcript.PauseThreshold,
		MaxTranscriptTokens: a.cfg.Gemini.MaxTranscriptTokens,
	}, a.log), nil
}
