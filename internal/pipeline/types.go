package pipeline

import (
	"time"

	"github.com/nguyentantai21042004/afterthought/internal/models"
)

// Stage is where an item's run ended.
type Stage string

const (
	StageNoTranscript Stage = "SKIPPED_NO_TRANSCRIPT"
	StageAlreadyDone  Stage = "SKIPPED_ALREADY_DONE"
	StageTooLong      Stage = "SKIPPED_TOO_LONG"
	StagePlanned      Stage = "PLANNED"
	StageFailed       Stage = "FAILED"
	StageSuccess      Stage = "SUCCESS"
)

// Skipped reports whether s is one of the SKIPPED_* stages.
func (s Stage) Skipped() bool {
	return s == StageNoTranscript || s == StageAlreadyDone || s == StageTooLong
}

// RunOptions are the per-run switches.
type RunOptions struct {
	// Force reprocesses items that already have a SUCCESS record.
	Force bool
	// DryRun stops every item at the skip / would-process decision.
	DryRun bool
}

// Options configures how transcripts are reconstructed and bounded.
type Options struct {
	PreserveSpeakers bool
	PauseThreshold   time.Duration
	// MaxTranscriptTokens skips transcripts estimated above this size.
	// Zero uses summarizer.MaxTranscriptTokens.
	MaxTranscriptTokens int
}

// ItemResult is the outcome of one item.
type ItemResult struct {
	Item       models.Item
	Stage      Stage
	OutputPath string
	Summary    *models.Summary
	Err        error
	Elapsed    time.Duration
}

// RunSummary aggregates a run.
type RunSummary struct {
	Processed    int
	Skipped      int
	Failed       int
	Planned      int
	InputTokens  int
	OutputTokens int
	Items        []ItemResult
	Elapsed      time.Duration
}

func (s *RunSummary) add(r ItemResult) {
	s.Items = append(s.Items, r)
	switch {
	case r.Stage == StageSuccess:
		s.Processed++
		if r.Summary != nil {
			s.InputTokens += r.Summary.InputTokens
			s.OutputTokens += r.Summary.OutputTokens
		}
	case r.Stage == StageFailed:
		s.Failed++
	case r.Stage == StagePlanned:
		s.Planned++
	case r.Stage.Skipped():
		s.Skipped++
	}
}

// TotalTokens is InputTokens + OutputTokens.
func (s *RunSummary) TotalTokens() int {
	return s.InputTokens + s.OutputTokens
}
