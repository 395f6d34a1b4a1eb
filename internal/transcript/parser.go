package transcript

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/encoding/ianaindex"
)

const ttmlMetadataNS = "http://www.w3.org/ns/ttml#metadata"

// Document is the flattened projection of a TTML file.
type Document struct {
	Words []TimedWord
	// Duration is the body "dur" attribute, zero when absent or unparseable.
	Duration time.Duration
}

// Parse decodes a TTML document held in memory and returns its timed words.
func Parse(doc []byte) ([]TimedWord, error) {
	d, err := Decode(bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}
	return d.Words, nil
}

// element is one open XML element during the walk.
type element struct {
	speaker       string
	timed         bool
	start, end    time.Duration
	hasTimedChild bool
	text          strings.Builder
}

// Decode walks the caption tree depth-first and emits one TimedWord per timed leaf.
//
// Zero-duration leaves and leaves with empty text are dropped. A word starting
// before the previous word ends is clamped to the previous end, and dropped if
// that leaves it with start after end.
func Decode(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	var (
		doc   Document
		stack []*element
		roots int
		prev  *TimedWord
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMarkup, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 {
				roots++
				if roots > 1 {
					return nil, fmt.Errorf("%w: multiple root elements", ErrMalformedMarkup)
				}
			}
			el := openElement(t, stack)
			if el.timed {
				if anc := nearestTimed(stack); anc != nil {
					anc.hasTimedChild = true
				}
			}
			if t.Name.Local == "body" {
				if dur, ok := attr(t, "dur"); ok {
					if d, err := parseTime(dur); err == nil {
						doc.Duration = d
					}
				}
			}
			stack = append(stack, el)

		case xml.EndElement:
			el := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !el.timed || el.hasTimedChild {
				continue
			}
			w, ok := leafWord(el, prev)
			if !ok {
				continue
			}
			doc.Words = append(doc.Words, w)
			prev = &w

		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, fmt.Errorf("%w: text outside root element", ErrMalformedMarkup)
				}
				continue
			}
			if anc := nearestTimed(stack); anc != nil {
				anc.text.Write(t)
			}
		}
	}

	if roots == 0 {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedMarkup)
	}
	if len(doc.Words) == 0 {
		return nil, ErrEmptyTranscript
	}
	return &doc, nil
}

func openElement(t xml.StartElement, stack []*element) *element {
	el := &element{}
	if len(stack) > 0 {
		el.speaker = stack[len(stack)-1].speaker
	}
	if sp := speakerAttr(t); sp != "" {
		el.speaker = sp
	}

	begin, okBegin := attr(t, "begin")
	end, okEnd := attr(t, "end")
	if okBegin && okEnd {
		s, errS := parseTime(begin)
		e, errE := parseTime(end)
		if errS == nil && errE == nil {
			el.timed, el.start, el.end = true, s, e
		}
	}
	return el
}

// leafWord applies the drop and clamp rules to a finished timed leaf.
func leafWord(el *element, prev *TimedWord) (TimedWord, bool) {
	text := strings.Join(strings.Fields(el.text.String()), " ")
	if text == "" || el.start >= el.end {
		return TimedWord{}, false
	}

	w := TimedWord{Text: text, Start: el.start, End: el.end, Speaker: el.speaker}
	if prev != nil && w.Start < prev.End {
		w.Start = prev.End
		if w.Start > w.End {
			return TimedWord{}, false
		}
	}
	return w, true
}

func nearestTimed(stack []*element) *element {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].timed {
			return stack[i]
		}
	}
	return nil
}

// attr looks up an un-namespaced attribute.
func attr(t xml.StartElement, local string) (string, bool) {
	for _, a := range t.Attr {
		if a.Name.Local == local && a.Name.Space == "" {
			return a.Value, true
		}
	}
	return "", false
}

// speakerAttr reads ttm:agent, accepting an undeclared "ttm" prefix and a bare "agent".
func speakerAttr(t xml.StartElement) string {
	for _, a := range t.Attr {
		if a.Name.Local != "agent" {
			continue
		}
		switch a.Name.Space {
		case ttmlMetadataNS, "ttm", "":
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("charset %q: unsupported", label)
	}
	return enc.NewDecoder().Reader(input), nil
}
