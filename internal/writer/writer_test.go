package writer

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nguyentantai21042004/afterthought/internal/logger"
	"github.com/nguyentantai21042004/afterthought/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResult() models.Result {
	return models.Result{
		Item: models.Item{
			ID:                 "ep-123",
			Kind:               models.SourcePodcast,
			Title:              `Why "Deep Work" Matters: Part 1?`,
			Channel:            "The Focus Show",
			Author:             "Jane Host",
			PublishedAt:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			LastConsumedAt:     time.Date(2026, 3, 4, 18, 30, 0, 0, time.UTC),
			Duration:           62 * time.Minute,
			TranscriptLocator:  "/tmp/x.ttml",
			TranscriptProvider: "apple",
		},
		HasSpeakerLabels: true,
		WordCount:        9000,
		Summary: models.Summary{
			Text:         "## Overview\n\nA talk about **focus**.",
			InputTokens:  1500,
			OutputTokens: 300,
			Model:        "gemini-2.5-flash",
		},
	}
}

func splitNote(t *testing.T, content []byte) (map[string]any, string) {
	t.Helper()
	s := string(content)
	require.True(t, strings.HasPrefix(s, "---\n"))
	end := strings.Index(s[4:], "---\n")
	require.GreaterOrEqual(t, end, 0)

	var fm map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(s[4:4+end]), &fm))
	return fm, s[4+end+4:]
}

func TestWriteMarkdown(t *testing.T) {
	dir := t.TempDir()
	w := New(Options{OutputDir: dir}, logger.Discard())

	path, err := w.Write(context.Background(), sampleResult())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "The Focus Show", "Why Deep Work Matters Part 1.md"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	fm, body := splitNote(t, content)

	assert.Equal(t, "podcast-summary", fm["type"])
	assert.Equal(t, "podcast", fm["cssclass"])
	assert.Equal(t, `Why "Deep Work" Matters: Part 1?`, fm["title"])
	assert.Equal(t, []any{`Why "Deep Work" Matters: Part 1?`}, fm["aliases"])
	assert.Equal(t, "[[The Focus Show]]", fm["podcast"])
	assert.Equal(t, "Jane Host", fm["author"])
	assert.Equal(t, "2026-03-01", fm["date"])
	assert.Equal(t, "2026-03-04", fm["listened"])
	assert.Equal(t, "1:02:00", fm["duration"])
	assert.Equal(t, []any{"podcast", "the-focus-show"}, fm["tags"])
	assert.Equal(t, true, fm["transcript_available"])
	assert.Equal(t, "apple", fm["transcript_provider"])
	assert.Equal(t, true, fm["speaker_labels"])
	assert.Equal(t, 1500, fm["input_tokens"])
	assert.Equal(t, 300, fm["output_tokens"])
	assert.Equal(t, "gemini-2.5-flash", fm["ai_model"])
	assert.Equal(t, "ep-123", fm["episode_uuid"])

	assert.Equal(t, "\n## Overview\n\nA talk about **focus**.\n", body)
}

func TestWriteOmitsEmptyOptionalFields(t *testing.T) {
	r := sampleResult()
	r.Item.Author = ""
	r.Item.PublishedAt = time.Time{}
	r.Item.Duration = 0
	r.TranscriptDuration = 90 * time.Second

	content, err := renderMarkdown(r)
	require.NoError(t, err)
	fm, _ := splitNote(t, content)

	assert.NotContains(t, fm, "author")
	assert.NotContains(t, fm, "date")
	assert.Equal(t, "1:30", fm["duration"])
}

func TestWriteVideoFrontmatter(t *testing.T) {
	r := sampleResult()
	r.Item.Kind = models.SourceVideo

	content, err := renderMarkdown(r)
	require.NoError(t, err)
	fm, _ := splitNote(t, content)

	assert.Equal(t, "video-summary", fm["type"])
	assert.Equal(t, []any{"video", "the-focus-show"}, fm["tags"])
}

func TestWriteFallbackBody(t *testing.T) {
	r := sampleResult()
	r.Summary.Text = "   "

	content, err := renderMarkdown(r)
	require.NoError(t, err)
	_, body := splitNote(t, content)

	assert.Contains(t, body, "## Episode Information")
	assert.Contains(t, body, "- **Podcast:** The Focus Show")
	assert.Contains(t, body, "- **Duration:** 1:02:00")
}

func TestWriteCollisionSuffix(t *testing.T) {
	dir := t.TempDir()
	w := New(Options{OutputDir: dir}, logger.Discard())

	first, err := w.Write(context.Background(), sampleResult())
	require.NoError(t, err)
	second, err := w.Write(context.Background(), sampleResult())
	require.NoError(t, err)
	third, err := w.Write(context.Background(), sampleResult())
	require.NoError(t, err)

	assert.Equal(t, "Why Deep Work Matters Part 1.md", filepath.Base(first))
	assert.Equal(t, "Why Deep Work Matters Part 1_1.md", filepath.Base(second))
	assert.Equal(t, "Why Deep Work Matters Part 1_2.md", filepath.Base(third))
}

func TestWriteInterruptedLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	w := New(Options{OutputDir: dir}, logger.Discard()).(*implWriter)
	w.rename = func(string, string) error { return errors.New("power cut") }

	_, err := w.Write(context.Background(), sampleResult())
	require.ErrorIs(t, err, ErrWrite)

	entries, err := os.ReadDir(filepath.Join(dir, "The Focus Show"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no note and no temp file may remain")
}

func TestWriteBothRemovesMarkdownWhenDocxFails(t *testing.T) {
	dir := t.TempDir()
	w := New(Options{OutputDir: dir, Format: FormatBoth}, logger.Discard()).(*implWriter)
	w.rename = func(from, to string) error {
		if filepath.Ext(to) == ".docx" {
			return errors.New("disk full")
		}
		return os.Rename(from, to)
	}

	_, err := w.Write(context.Background(), sampleResult())
	require.ErrorIs(t, err, ErrWrite)

	entries, err := os.ReadDir(filepath.Join(dir, "The Focus Show"))
	require.NoError(t, err)
	assert.Empty(t, entries, "a failed docx must not leave the markdown behind")

	// The retry is not pushed onto a suffixed name by the leftover.
	w.rename = os.Rename
	path, err := w.Write(context.Background(), sampleResult())
	require.NoError(t, err)
	assert.Equal(t, "Why Deep Work Matters Part 1.md", filepath.Base(path))
}

func TestWriteUnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	w := New(Options{OutputDir: blocker}, logger.Discard())
	_, err := w.Write(context.Background(), sampleResult())
	require.ErrorIs(t, err, ErrWrite)
}

func TestWriteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New(Options{OutputDir: t.TempDir()}, logger.Discard())
	_, err := w.Write(ctx, sampleResult())
	require.ErrorIs(t, err, ErrWrite)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWriteDocx(t *testing.T) {
	dir := t.TempDir()
	w := New(Options{OutputDir: dir, Format: FormatBoth}, logger.Discard())

	path, err := w.Write(context.Background(), sampleResult())
	require.NoError(t, err)
	assert.Equal(t, ".md", filepath.Ext(path))

	docxPath := strings.TrimSuffix(path, ".md") + ".docx"
	data, err := os.ReadFile(docxPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")), "docx is a zip archive")
}

func TestWriteDocxOnly(t *testing.T) {
	dir := t.TempDir()
	w := New(Options{OutputDir: dir, Format: FormatDocx}, logger.Discard())

	path, err := w.Write(context.Background(), sampleResult())
	require.NoError(t, err)
	assert.Equal(t, ".docx", filepath.Ext(path))

	_, err = os.Stat(strings.TrimSuffix(path, ".docx") + ".md")
	assert.True(t, os.IsNotExist(err))
}

func documentXML(t *testing.T, path string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(data)
	}
	t.Fatalf("%s has no word/document.xml", path)
	return ""
}

func TestWriteDocxContent(t *testing.T) {
	dir := t.TempDir()
	w := New(Options{OutputDir: dir, Format: FormatDocx}, logger.Discard())

	r := sampleResult()
	r.Summary.Text = "# Key Points\n\n- First **bold** idea\n- Second idea\n  1. nested step\n\n---\n\nClosing `code` thought."
	path, err := w.Write(context.Background(), r)
	require.NoError(t, err)

	doc := documentXML(t, path)
	assert.Contains(t, doc, "Key Points")
	assert.Contains(t, doc, "• ")
	assert.Contains(t, doc, "bold")
	assert.Contains(t, doc, "1. ")
	assert.Contains(t, doc, "nested step")
	assert.Contains(t, doc, "code")
	assert.Contains(t, doc, "The Focus Show")
	assert.NotContains(t, doc, "**")
	assert.NotContains(t, doc, "# Key")
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plain Title", "Plain Title"},
		{`a/b\c:d*e?f"g<h>i|j`, "abcdefghij"},
		{"  lots   of\tspace  ", "lots of space"},
		{"...dots and spaces. ", "dots and spaces"},
		{"", "untitled"},
		{"???", "untitled"},
		{strings.Repeat("é", 120), strings.Repeat("é", 100)},
	}
	for _, tt := range tests {
		if got := sanitizeName(tt.in); got != tt.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeTag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The Focus Show", "the-focus-show"},
		{"Hard Fork!", "hard-fork"},
		{"Café  Talk & Co.", "café-talk-co"},
		{"already-tagged_ok", "already-tagged_ok"},
	}
	for _, tt := range tests {
		if got := sanitizeTag(tt.in); got != tt.want {
			t.Errorf("sanitizeTag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatMarkdown, false},
		{"md", FormatMarkdown, false},
		{"DOCX", FormatDocx, false},
		{"both", FormatBoth, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
