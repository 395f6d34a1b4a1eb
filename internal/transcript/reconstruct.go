package transcript

import (
	"strings"
	"time"
)

// Reconstruct groups words into segments.
//
// A new segment starts when speakers are preserved and the speaker changes, or
// when the silence before a word exceeds the pause threshold. Word text is joined
// with single spaces and never altered otherwise.
func Reconstruct(words []TimedWord, opts Options) Reconstructed {
	threshold := opts.PauseThreshold
	if threshold <= 0 {
		threshold = DefaultPauseThreshold
	}

	var (
		out     Reconstructed
		cur     *segmentBuilder
		prevEnd time.Duration
	)

	for _, w := range words {
		if cur != nil && cur.breaksBefore(w, prevEnd, threshold, opts.PreserveSpeakers) {
			out.Segments = append(out.Segments, cur.build())
			cur = nil
		}
		if cur == nil {
			cur = newSegmentBuilder(w)
		} else {
			cur.add(w)
		}
		prevEnd = w.End
	}
	if cur != nil {
		out.Segments = append(out.Segments, cur.build())
	}

	out.HasSpeakerLabels = distinctSpeakers(words) >= 2
	return out
}

type segmentBuilder struct {
	speaker string
	mixed   bool
	start   time.Duration
	end     time.Duration
	texts   []string
}

func newSegmentBuilder(w TimedWord) *segmentBuilder {
	return &segmentBuilder{
		speaker: w.Speaker,
		start:   w.Start,
		end:     w.End,
		texts:   []string{w.Text},
	}
}

func (b *segmentBuilder) breaksBefore(w TimedWord, prevEnd, threshold time.Duration, preserveSpeakers bool) bool {
	if preserveSpeakers && w.Speaker != b.speaker {
		return true
	}
	return w.Start-prevEnd > threshold
}

func (b *segmentBuilder) add(w TimedWord) {
	if w.Speaker != b.speaker {
		b.mixed = true
	}
	if w.End > b.end {
		b.end = w.End
	}
	b.texts = append(b.texts, w.Text)
}

func (b *segmentBuilder) build() Segment {
	speaker := b.speaker
	if b.mixed || speaker == "" {
		speaker = UnknownSpeaker
	}
	return Segment{
		Speaker: speaker,
		Start:   b.start,
		End:     b.end,
		Text:    strings.Join(b.texts, " "),
		Words:   len(b.texts),
	}
}

func distinctSpeakers(words []TimedWord) int {
	seen := make(map[string]struct{})
	for _, w := range words {
		if w.Speaker != "" {
			seen[w.Speaker] = struct{}{}
		}
	}
	return len(seen)
}

// Render produces the text handed to the summarizer: one paragraph per segment,
// separated by blank lines. A "[speaker]" prefix is written when the transcript
// has speaker labels and the paragraph's speaker differs from the previous one.
func Render(r Reconstructed) string {
	var b strings.Builder
	last := ""
	for i, seg := range r.Segments {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if r.HasSpeakerLabels && seg.Speaker != UnknownSpeaker && seg.Speaker != last {
			b.WriteString("[")
			b.WriteString(seg.Speaker)
			b.WriteString("] ")
		}
		last = seg.Speaker
		b.WriteString(seg.Text)
	}
	return b.String()
}
