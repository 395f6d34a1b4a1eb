// Package models holds the types passed between discovery, the pipeline,
// the summarizer and the writer.
package models

import (
	"fmt"
	"time"
)

// SourceKind says where an item came from.
type SourceKind string

const (
	SourcePodcast SourceKind = "PODCAST"
	SourceVideo   SourceKind = "VIDEO"
)

// Item is a freshly discovered episode or video. It is never persisted.
type Item struct {
	ID             string
	Kind           SourceKind
	Title          string
	Channel        string
	Author         string
	PublishedAt    time.Time
	LastConsumedAt time.Time
	Duration       time.Duration

	// TranscriptLocator is a local path or file:// URI; empty means no transcript.
	TranscriptLocator string
	// TranscriptID is the provider's transcript identifier used to find the file.
	TranscriptID       string
	TranscriptProvider string
	AssetURL           string
	StoreTrackID       int64
}

// HasTranscript reports whether the item points at a transcript.
func (i Item) HasTranscript() bool {
	return i.TranscriptLocator != ""
}

// SummaryRequest is what the pipeline hands to the summarizer.
type SummaryRequest struct {
	Transcript string
	Title      string
	Channel    string
	Duration   time.Duration
}

// Summary is the summarizer's answer. Token counts are passed to the ledger untouched.
type Summary struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Model        string
}

// TotalTokens is InputTokens + OutputTokens.
func (s Summary) TotalTokens() int {
	return s.InputTokens + s.OutputTokens
}

// Result bundles everything the writer needs for one note.
type Result struct {
	Item               Item
	HasSpeakerLabels   bool
	TranscriptDuration time.Duration
	WordCount          int
	Summary            Summary
	ProcessedAt        time.Time
}

// FormatDuration renders d as H:MM:SS or M:SS.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	total := int(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
