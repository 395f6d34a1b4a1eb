package pipeline

import (
	"time"

	"github.com/nguyentantai21042004/afterthought/internal/ledger"
	"github.com/nguyentantai21042004/afterthought/internal/logger"
	"github.com/nguyentantai21042004/afterthought/internal/summarizer"
	"github.com/nguyentantai21042004/afterthought/internal/writer"
)

type implPipeline struct {
	ledger     ledger.Ledger
	loader     TranscriptLoader
	summarizer summarizer.Summarizer
	writer     writer.Writer
	logger     logger.Logger
	opts       Options
	now        func() time.Time
}

// New wires the pipeline's collaborators. The summarizer and writer are
// never called during a dry run and may be nil for one.
func New(l ledger.Ledger, loader TranscriptLoader, s summarizer.Summarizer, w writer.Writer, opts Options, log logger.Logger) Pipeline {
	if opts.MaxTranscriptTokens <= 0 {
		opts.MaxTranscriptTokens = summarizer.MaxTranscriptTokens
	}
	return &implPipeline{
		ledger:     l,
		loader:     loader,
		summarizer: s,
		writer:     w,
		logger:     log,
		opts:       opts,
		now:        time.Now,
	}
}
