package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nguyentantai21042004/afterthought/internal/ledger"
	"github.com/nguyentantai21042004/afterthought/internal/logger"
	"github.com/nguyentantai21042004/afterthought/internal/models"
	"github.com/nguyentantai21042004/afterthought/internal/summarizer"
	"github.com/nguyentantai21042004/afterthought/internal/writer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoSpeakers = `<?xml version="1.0" encoding="UTF-8"?>
<tt xmlns="http://www.w3.org/ns/ttml" xmlns:ttm="http://www.w3.org/ns/ttml#metadata">
  <body dur="1:05.250">
    <div>
      <p begin="0.0" end="1.3" ttm:agent="SPEAKER_1">
        <span begin="0.0" end="0.4">Welcome</span>
        <span begin="0.4" end="0.6">back</span>
      </p>
      <p begin="1.5" end="2.5" ttm:agent="SPEAKER_2">
        <span begin="1.5" end="2.0">Thanks</span>
        <span begin="2.0" end="2.5">everyone.</span>
      </p>
    </div>
  </body>
</tt>`

const noWords = `<tt xmlns="http://www.w3.org/ns/ttml"><body><div><p>untimed</p></div></body></tt>`

type mapLoader struct {
	docs  map[string]string
	calls int
}

func (m *mapLoader) Load(_ context.Context, locator string) ([]byte, error) {
	m.calls++
	doc, ok := m.docs[locator]
	if !ok {
		return nil, fmt.Errorf("read transcript: %s not found", locator)
	}
	return []byte(doc), nil
}

type fakeSummarizer struct {
	requests []models.SummaryRequest
	err      error
	hook     func()
}

func (f *fakeSummarizer) Summarize(_ context.Context, req models.SummaryRequest) (*models.Summary, error) {
	f.requests = append(f.requests, req)
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.Summary{Text: "## Overview\nA summary.", InputTokens: 100, OutputTokens: 20, Model: "gemini-test"}, nil
}

type fakeWriter struct {
	results []models.Result
	err     error
}

func (f *fakeWriter) Write(_ context.Context, r models.Result) (string, error) {
	f.results = append(f.results, r)
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join("/notes", r.Item.Channel, r.Item.ID+".md"), nil
}

type faultyLedger struct {
	ledger.Ledger
	readErr  error
	writeErr error
}

func (f *faultyLedger) HasBeenProcessed(ctx context.Context, id string, requireSuccess bool) (bool, error) {
	if f.readErr != nil {
		return false, f.readErr
	}
	return f.Ledger.HasBeenProcessed(ctx, id, requireSuccess)
}

func (f *faultyLedger) Record(ctx context.Context, rec ledger.Record) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.Ledger.Record(ctx, rec)
}

type harness struct {
	ledger     ledger.Ledger
	loader     *mapLoader
	summarizer *fakeSummarizer
	writer     *fakeWriter
	opts       Options
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "tracking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	return &harness{
		ledger: l,
		loader: &mapLoader{docs: map[string]string{
			"ep1.ttml":       twoSpeakers,
			"ep2.ttml":       twoSpeakers,
			"empty.ttml":     noWords,
			"malformed.ttml": "<tt><body>",
		}},
		summarizer: &fakeSummarizer{},
		writer:     &fakeWriter{},
		opts:       Options{PreserveSpeakers: true},
	}
}

func (h *harness) pipeline() Pipeline {
	return New(h.ledger, h.loader, h.summarizer, h.writer, h.opts, logger.Discard())
}

func item(id, locator string) models.Item {
	return models.Item{
		ID:                id,
		Kind:              models.SourcePodcast,
		Title:             "Episode " + id,
		Channel:           "The Show",
		TranscriptLocator: locator,
	}
}

func (h *harness) record(t *testing.T, id string) *ledger.Record {
	t.Helper()
	rec, err := h.ledger.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func TestRunSuccess(t *testing.T) {
	h := newHarness(t)

	sum, err := h.pipeline().Run(context.Background(), []models.Item{item("ep1", "ep1.ttml")}, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 100, sum.InputTokens)
	assert.Equal(t, 20, sum.OutputTokens)
	assert.Equal(t, 120, sum.TotalTokens())
	require.Len(t, sum.Items, 1)
	assert.Equal(t, StageSuccess, sum.Items[0].Stage)
	assert.Equal(t, "/notes/The Show/ep1.md", sum.Items[0].OutputPath)

	require.Len(t, h.summarizer.requests, 1)
	req := h.summarizer.requests[0]
	assert.Equal(t, "[SPEAKER_1] Welcome back\n\n[SPEAKER_2] Thanks everyone.", req.Transcript)
	assert.Equal(t, "Episode ep1", req.Title)
	assert.Equal(t, "The Show", req.Channel)
	assert.Equal(t, 65250*time.Millisecond, req.Duration)

	require.Len(t, h.writer.results, 1)
	res := h.writer.results[0]
	assert.True(t, res.HasSpeakerLabels)
	assert.Equal(t, 4, res.WordCount)
	assert.Equal(t, 65250*time.Millisecond, res.TranscriptDuration)
	assert.Equal(t, "gemini-test", res.Summary.Model)

	rec := h.record(t, "ep1")
	require.NotNil(t, rec)
	assert.Equal(t, ledger.OutcomeSuccess, rec.Outcome)
	assert.Equal(t, "The Show", rec.SourceName)
	assert.Equal(t, "Episode ep1", rec.Title)
	require.NotNil(t, rec.InputTokens)
	assert.Equal(t, 100, *rec.InputTokens)
	assert.Equal(t, 20, *rec.OutputTokens)
	assert.Equal(t, "gemini-test", rec.SummaryModel)
	assert.Equal(t, "/notes/The Show/ep1.md", rec.OutputPath)
}

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline()
	items := []models.Item{item("ep1", "ep1.ttml")}

	_, err := p.Run(context.Background(), items, RunOptions{})
	require.NoError(t, err)

	sum, err := p.Run(context.Background(), items, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Processed)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, StageAlreadyDone, sum.Items[0].Stage)
	assert.Len(t, h.summarizer.requests, 1, "no second summarizer call")
	assert.Len(t, h.writer.results, 1, "no second write")
	assert.Equal(t, 1, h.loader.calls, "no second load")

	recs, err := h.ledger.List(context.Background(), ledger.Filter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRunForceOverwritesRecord(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline().(*implPipeline)
	items := []models.Item{item("ep1", "ep1.ttml")}

	first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return first }
	_, err := p.Run(context.Background(), items, RunOptions{})
	require.NoError(t, err)

	second := first.Add(48 * time.Hour)
	p.now = func() time.Time { return second }
	sum, err := p.Run(context.Background(), items, RunOptions{Force: true})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Processed)
	assert.Len(t, h.summarizer.requests, 2)
	assert.Len(t, h.writer.results, 2)

	recs, err := h.ledger.List(context.Background(), ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1, "overwritten, not duplicated")
	assert.True(t, recs[0].ProcessedAt.Equal(second))
}

func TestRunDryRun(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline().Run(context.Background(), []models.Item{item("done", "ep1.ttml")}, RunOptions{})
	require.NoError(t, err)
	h.summarizer.requests = nil
	h.writer.results = nil
	h.loader.calls = 0

	items := []models.Item{
		item("done", "ep1.ttml"),
		item("new", "ep2.ttml"),
		item("missing", ""),
	}
	sum, err := h.pipeline().Run(context.Background(), items, RunOptions{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, []Stage{StageAlreadyDone, StagePlanned, StageNoTranscript}, stages(sum))
	assert.Equal(t, 1, sum.Planned)
	assert.Equal(t, 2, sum.Skipped)
	assert.Zero(t, h.loader.calls)
	assert.Empty(t, h.summarizer.requests)
	assert.Empty(t, h.writer.results)

	assert.Nil(t, h.record(t, "new"))
	assert.Nil(t, h.record(t, "missing"), "dry run writes nothing")
}

func TestRunDryRunWithForcePlansDoneItems(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline().Run(context.Background(), []models.Item{item("done", "ep1.ttml")}, RunOptions{})
	require.NoError(t, err)

	sum, err := h.pipeline().Run(context.Background(), []models.Item{item("done", "ep1.ttml")}, RunOptions{DryRun: true, Force: true})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StagePlanned}, stages(sum))
}

func TestRunNoTranscript(t *testing.T) {
	h := newHarness(t)

	sum, err := h.pipeline().Run(context.Background(), []models.Item{item("ep1", "")}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageNoTranscript}, stages(sum))
	assert.Equal(t, 1, sum.Skipped)
	assert.Zero(t, h.loader.calls)

	rec := h.record(t, "ep1")
	require.NotNil(t, rec)
	assert.Equal(t, ledger.OutcomeNoTranscript, rec.Outcome)

	done, err := h.ledger.HasBeenProcessed(context.Background(), "ep1", true)
	require.NoError(t, err)
	assert.False(t, done, "a later run with a transcript still processes it")
}

func TestRunNoTranscriptKeepsEarlierSuccess(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline()

	_, err := p.Run(context.Background(), []models.Item{item("ep1", "ep1.ttml")}, RunOptions{})
	require.NoError(t, err)

	sum, err := p.Run(context.Background(), []models.Item{item("ep1", "")}, RunOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageNoTranscript}, stages(sum))
	assert.Equal(t, ledger.OutcomeSuccess, h.record(t, "ep1").Outcome)
}

func TestRunEmptyTranscript(t *testing.T) {
	h := newHarness(t)

	sum, err := h.pipeline().Run(context.Background(), []models.Item{item("ep1", "empty.ttml")}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageNoTranscript}, stages(sum))
	assert.Empty(t, h.summarizer.requests)
	assert.Equal(t, ledger.OutcomeNoTranscript, h.record(t, "ep1").Outcome)
}

func TestRunFailuresAreIsolated(t *testing.T) {
	h := newHarness(t)

	items := []models.Item{
		item("bad", "malformed.ttml"),
		item("gone", "nowhere.ttml"),
		item("good", "ep1.ttml"),
	}
	sum, err := h.pipeline().Run(context.Background(), items, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []Stage{StageFailed, StageFailed, StageSuccess}, stages(sum))
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 1, sum.Processed)

	bad := h.record(t, "bad")
	assert.Equal(t, ledger.OutcomeFailed, bad.Outcome)
	assert.Contains(t, bad.Error, "parse transcript")
	assert.Equal(t, ledger.OutcomeFailed, h.record(t, "gone").Outcome)
	assert.Equal(t, ledger.OutcomeSuccess, h.record(t, "good").Outcome)
}

func TestRunTooLong(t *testing.T) {
	h := newHarness(t)
	h.opts.MaxTranscriptTokens = 2

	sum, err := h.pipeline().Run(context.Background(), []models.Item{item("ep1", "ep1.ttml")}, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []Stage{StageTooLong}, stages(sum))
	assert.Equal(t, 1, sum.Skipped)
	assert.Empty(t, h.summarizer.requests)

	rec := h.record(t, "ep1")
	assert.Equal(t, ledger.OutcomeSkipped, rec.Outcome)
	assert.Contains(t, rec.Error, "transcript too long")
}

func TestRunSummarizerFailure(t *testing.T) {
	h := newHarness(t)
	h.summarizer.err = fmt.Errorf("%w: after 3 attempts: boom", summarizer.ErrSummarization)
	p := h.pipeline()
	items := []models.Item{item("ep1", "ep1.ttml")}

	sum, err := p.Run(context.Background(), items, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageFailed}, stages(sum))
	require.ErrorIs(t, sum.Items[0].Err, summarizer.ErrSummarization)
	assert.Empty(t, h.writer.results)
	assert.Equal(t, ledger.OutcomeFailed, h.record(t, "ep1").Outcome)

	// FAILED does not count as done, so the next run retries.
	h.summarizer.err = nil
	sum, err = p.Run(context.Background(), items, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageSuccess}, stages(sum))
	assert.Equal(t, ledger.OutcomeSuccess, h.record(t, "ep1").Outcome)
}

func TestRunWriterFailure(t *testing.T) {
	h := newHarness(t)
	h.writer.err = fmt.Errorf("%w: disk full", writer.ErrWrite)

	sum, err := h.pipeline().Run(context.Background(), []models.Item{item("ep1", "ep1.ttml")}, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []Stage{StageFailed}, stages(sum))
	require.ErrorIs(t, sum.Items[0].Err, writer.ErrWrite)
	assert.Zero(t, sum.InputTokens, "tokens only count for successful items")
	assert.Equal(t, ledger.OutcomeFailed, h.record(t, "ep1").Outcome)
}

func TestRunLedgerWriteFailure(t *testing.T) {
	h := newHarness(t)
	base := h.ledger
	h.ledger = &faultyLedger{Ledger: base, writeErr: fmt.Errorf("%w: disk I/O error", ledger.ErrLedgerWrite)}

	sum, err := h.pipeline().Run(context.Background(), []models.Item{item("ep1", "ep1.ttml"), item("ep2", "ep2.ttml")}, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []Stage{StageFailed, StageFailed}, stages(sum))
	require.ErrorIs(t, sum.Items[0].Err, ledger.ErrLedgerWrite)
	assert.Equal(t, "/notes/The Show/ep1.md", sum.Items[0].OutputPath)
	assert.Len(t, h.writer.results, 2, "second item still attempted")

	rec, err := base.Get(context.Background(), "ep1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRunLedgerReadFailure(t *testing.T) {
	h := newHarness(t)
	h.ledger = &faultyLedger{Ledger: h.ledger, readErr: fmt.Errorf("%w: database is locked", ledger.ErrLedgerRead)}

	sum, err := h.pipeline().Run(context.Background(), []models.Item{item("ep1", "ep1.ttml")}, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []Stage{StageFailed}, stages(sum))
	require.ErrorIs(t, sum.Items[0].Err, ledger.ErrLedgerRead)
	assert.Zero(t, h.loader.calls)
	assert.Empty(t, h.summarizer.requests)
}

func TestRunCancellation(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.summarizer.hook = cancel

	items := []models.Item{item("ep1", "ep1.ttml"), item("ep2", "ep2.ttml")}
	sum, err := h.pipeline().Run(ctx, items, RunOptions{})
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, sum.Items, 1, "stops between items")
	assert.Equal(t, StageSuccess, sum.Items[0].Stage)
	assert.Equal(t, ledger.OutcomeSuccess, h.record(t, "ep1").Outcome, "in-flight item still gets its terminal record")
	assert.Nil(t, h.record(t, "ep2"))
}

func TestRunAlreadyCanceled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := h.pipeline().Run(ctx, []models.Item{item("ep1", "ep1.ttml")}, RunOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sum.Items)
}

func TestRunNoSpeakerPreservation(t *testing.T) {
	h := newHarness(t)
	h.opts.PreserveSpeakers = false

	_, err := h.pipeline().Run(context.Background(), []models.Item{item("ep1", "ep1.ttml")}, RunOptions{})
	require.NoError(t, err)

	req := h.summarizer.requests[0]
	assert.False(t, strings.Contains(req.Transcript, "\n\n"), "one segment when speakers are ignored")
}

func TestStageSkipped(t *testing.T) {
	tests := []struct {
		stage Stage
		want  bool
	}{
		{StageNoTranscript, true},
		{StageAlreadyDone, true},
		{StageTooLong, true},
		{StagePlanned, false},
		{StageFailed, false},
		{StageSuccess, false},
	}
	for _, tt := range tests {
		if got := tt.stage.Skipped(); got != tt.want {
			t.Errorf("%s.Skipped() = %v, want %v", tt.stage, got, tt.want)
		}
	}
}

func stages(sum *RunSummary) []Stage {
	out := make([]Stage, len(sum.Items))
	for i, r := range sum.Items {
		out[i] = r.Stage
	}
	return out
}
