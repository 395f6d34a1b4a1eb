// Package transcript turns Apple Podcasts TTML captions into timed words and
// reassembles them into speaker-attributed paragraphs.
//
// Nothing in this package does I/O beyond reading the io.Reader handed to Decode,
// and nothing reads process-wide settings: callers pass Options explicitly.
package transcript

import (
	"errors"
	"time"
)

// UnknownSpeaker labels segments whose words carry no speaker, or mixed speakers
// when speaker boundaries are ignored.
const UnknownSpeaker = "unknown"

// DefaultPauseThreshold is the silence that starts a new segment for the same speaker.
const DefaultPauseThreshold = 2 * time.Second

var (
	// ErrMalformedMarkup is returned when the document is not well-formed XML.
	ErrMalformedMarkup = errors.New("malformed transcript markup")
	// ErrEmptyTranscript is returned when the document is well-formed but has no timed words.
	ErrEmptyTranscript = errors.New("transcript contains no timed words")
)

// TimedWord is one timed leaf of the caption tree.
// Speaker is empty when no enclosing element names one.
type TimedWord struct {
	Text    string
	Start   time.Duration
	End     time.Duration
	Speaker string
}

// Segment is a run of consecutive words rendered as one paragraph.
type Segment struct {
	Speaker string
	Start   time.Duration
	End     time.Duration
	Text    string
	Words   int
}

// Reconstructed is the ordered list of segments for a whole transcript.
type Reconstructed struct {
	Segments []Segment
	// HasSpeakerLabels is true only when at least two distinct speakers were attributed.
	HasSpeakerLabels bool
}

// Duration returns the end of the last segment.
func (r Reconstructed) Duration() time.Duration {
	if len(r.Segments) == 0 {
		return 0
	}
	return r.Segments[len(r.Segments)-1].End
}

// WordCount returns the number of timed words across all segments.
func (r Reconstructed) WordCount() int {
	n := 0
	for _, s := range r.Segments {
		n += s.Words
	}
	return n
}

// Options controls segmentation.
type Options struct {
	PreserveSpeakers bool
	// PauseThreshold is the gap that splits a segment. Zero means DefaultPauseThreshold.
	PauseThreshold time.Duration
}
