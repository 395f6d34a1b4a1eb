package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/nguyentantai21042004/afterthought/internal/ledger"
	"github.com/nguyentantai21042004/afterthought/internal/logger"
	"github.com/nguyentantai21042004/afterthought/internal/models"
	"github.com/nguyentantai21042004/afterthought/internal/summarizer"
	"github.com/nguyentantai21042004/afterthought/internal/transcript"
)

func (p *implPipeline) Run(ctx context.Context, items []models.Item, opts RunOptions) (*RunSummary, error) {
	start := p.now()
	summary := &RunSummary{}

	p.logger.Info(ctx, "Processing %d items (force=%t, dry_run=%t)", len(items), opts.Force, opts.DryRun)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			p.logger.Warn(ctx, "Run interrupted after %d of %d items", i, len(items))
			summary.Elapsed = p.now().Sub(start)
			return summary, err
		}

		itemCtx := logger.WithField(ctx, "item_id", item.ID)
		p.logger.Info(itemCtx, "[%d/%d] %s - %s", i+1, len(items), item.Channel, item.Title)

		res := p.process(itemCtx, item, opts)
		summary.add(res)
	}

	summary.Elapsed = p.now().Sub(start)
	p.logger.Info(ctx, "Run finished: %d processed, %d skipped, %d failed, %d planned in %s",
		summary.Processed, summary.Skipped, summary.Failed, summary.Planned, summary.Elapsed)
	return summary, nil
}

func (p *implPipeline) process(ctx context.Context, item models.Item, opts RunOptions) ItemResult {
	start := p.now()
	res := p.advance(ctx, item, opts)
	res.Item = item
	res.Elapsed = p.now().Sub(start)

	switch res.Stage {
	case StageSuccess:
		p.logger.Info(ctx, "Saved %s", res.OutputPath)
	case StageFailed:
		p.logger.Error(ctx, "Failed: %v", res.Err)
	case StagePlanned:
		p.logger.Info(ctx, "Would process (dry run)")
	default:
		p.logger.Info(ctx, "Skipped: %s", res.Stage)
	}
	return res
}

// advance walks one item through the state machine and returns where it stopped.
func (p *implPipeline) advance(ctx context.Context, item models.Item, opts RunOptions) ItemResult {
	if !item.HasTranscript() {
		if !opts.DryRun {
			p.recordNoTranscript(ctx, item, "no transcript available")
		}
		return ItemResult{Stage: StageNoTranscript}
	}

	if !opts.Force {
		done, err := p.ledger.HasBeenProcessed(ctx, item.ID, true)
		if err != nil {
			return ItemResult{Stage: StageFailed, Err: fmt.Errorf("check ledger: %w", err)}
		}
		if done {
			return ItemResult{Stage: StageAlreadyDone}
		}
	}

	if opts.DryRun {
		return ItemResult{Stage: StagePlanned}
	}

	doc, err := p.parse(ctx, item)
	if errors.Is(err, transcript.ErrEmptyTranscript) {
		p.recordNoTranscript(ctx, item, err.Error())
		return ItemResult{Stage: StageNoTranscript, Err: err}
	}
	if err != nil {
		return p.fail(ctx, item, fmt.Errorf("parse transcript: %w", err))
	}

	rec := transcript.Reconstruct(doc.Words, transcript.Options{
		PreserveSpeakers: p.opts.PreserveSpeakers,
		PauseThreshold:   p.opts.PauseThreshold,
	})
	text := transcript.Render(rec)

	if tokens := summarizer.EstimateTokens(text); tokens > p.opts.MaxTranscriptTokens {
		err := fmt.Errorf("transcript too long: ~%d tokens (limit %d)", tokens, p.opts.MaxTranscriptTokens)
		p.record(ctx, ledger.Record{
			ItemID:     item.ID,
			SourceName: item.Channel,
			Title:      item.Title,
			Outcome:    ledger.OutcomeSkipped,
			Error:      err.Error(),
		})
		return ItemResult{Stage: StageTooLong, Err: err}
	}

	duration := doc.Duration
	if duration <= 0 {
		duration = rec.Duration()
	}

	p.logger.Debug(ctx, "Summarizing %d words (~%d tokens)", rec.WordCount(), summarizer.EstimateTokens(text))
	summary, err := p.summarizer.Summarize(ctx, models.SummaryRequest{
		Transcript: text,
		Title:      item.Title,
		Channel:    item.Channel,
		Duration:   duration,
	})
	if err != nil {
		return p.fail(ctx, item, err)
	}

	path, err := p.writer.Write(ctx, models.Result{
		Item:               item,
		HasSpeakerLabels:   rec.HasSpeakerLabels,
		TranscriptDuration: duration,
		WordCount:          rec.WordCount(),
		Summary:            *summary,
		ProcessedAt:        p.now(),
	})
	if err != nil {
		res := p.fail(ctx, item, err)
		res.Summary = summary
		return res
	}

	in, out := summary.InputTokens, summary.OutputTokens
	if err := p.record(ctx, ledger.Record{
		ItemID:       item.ID,
		SourceName:   item.Channel,
		Title:        item.Title,
		Outcome:      ledger.OutcomeSuccess,
		InputTokens:  &in,
		OutputTokens: &out,
		SummaryModel: summary.Model,
		OutputPath:   path,
	}); err != nil {
		res := p.fail(ctx, item, err)
		res.OutputPath = path
		res.Summary = summary
		return res
	}

	return ItemResult{Stage: StageSuccess, OutputPath: path, Summary: summary}
}

func (p *implPipeline) parse(ctx context.Context, item models.Item) (*transcript.Document, error) {
	data, err := p.loader.Load(ctx, item.TranscriptLocator)
	if err != nil {
		return nil, err
	}
	return transcript.Decode(bytes.NewReader(data))
}

// fail records a FAILED outcome when the ledger accepts it.
func (p *implPipeline) fail(ctx context.Context, item models.Item, cause error) ItemResult {
	p.record(ctx, ledger.Record{
		ItemID:     item.ID,
		SourceName: item.Channel,
		Title:      item.Title,
		Outcome:    ledger.OutcomeFailed,
		Error:      cause.Error(),
	})
	return ItemResult{Stage: StageFailed, Err: cause}
}

// recordNoTranscript never replaces an existing SUCCESS record.
func (p *implPipeline) recordNoTranscript(ctx context.Context, item models.Item, reason string) {
	done, err := p.ledger.HasBeenProcessed(context.WithoutCancel(ctx), item.ID, true)
	if err != nil {
		p.logger.Warn(ctx, "Could not check ledger: %v", err)
		return
	}
	if done {
		return
	}
	p.record(ctx, ledger.Record{
		ItemID:     item.ID,
		SourceName: item.Channel,
		Title:      item.Title,
		Outcome:    ledger.OutcomeNoTranscript,
		Error:      reason,
	})
}

// record writes a terminal outcome. It ignores cancellation so an interrupt
// never splits an item between "work done" and "outcome stored".
func (p *implPipeline) record(ctx context.Context, rec ledger.Record) error {
	rec.ProcessedAt = p.now()
	if err := p.ledger.Record(context.WithoutCancel(ctx), rec); err != nil {
		p.logger.Error(ctx, "Could not record %s outcome: %v", rec.Outcome, err)
		return err
	}
	return nil
}
