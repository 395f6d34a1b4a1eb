package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nguyentantai21042004/afterthought/internal/models"
)

const maxNameLength = 100

var (
	reInvalidName = regexp.MustCompile(`[/\\:*?"<>|]`)
	reSpaces      = regexp.MustCompile(`\s+`)
	reTagStrip    = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
)

// Write renders the note into <output>/<channel>/<title>.md (and/or .docx).
// An existing note is never overwritten; a numeric suffix is added instead.
func (w *implWriter) Write(ctx context.Context, result models.Result) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}

	dir := filepath.Join(w.outputDir, sanitizeName(result.Item.Channel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create channel dir: %w", ErrWrite, err)
	}

	base := availableBase(dir, sanitizeName(result.Item.Title), w.extensions())

	var primary string
	if w.format != FormatDocx {
		content, err := renderMarkdown(result)
		if err != nil {
			return "", fmt.Errorf("%w: render markdown: %w", ErrWrite, err)
		}
		path := filepath.Join(dir, base+".md")
		if err := w.writeAtomic(path, func(tmp string) error {
			return os.WriteFile(tmp, content, 0o644)
		}); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
		}
		primary = path
	}

	if w.format == FormatDocx || w.format == FormatBoth {
		path := filepath.Join(dir, base+".docx")
		if err := w.writeAtomic(path, func(tmp string) error {
			return markdownToDocx(result, tmp)
		}); err != nil {
			// A note is all formats or none; drop the markdown already written.
			if primary != "" {
				os.Remove(primary)
			}
			return "", fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
		}
		if primary == "" {
			primary = path
		}
	}

	w.logger.Debug(ctx, "Wrote note %s", primary)
	return primary, nil
}

func (w *implWriter) extensions() []string {
	switch w.format {
	case FormatDocx:
		return []string{".docx"}
	case FormatBoth:
		return []string{".md", ".docx"}
	}
	return []string{".md"}
}

// writeAtomic lets fill write a temp file in the target dir, then renames it
// over path. Readers see either no note or the complete note.
func (w *implWriter) writeAtomic(path string, fill func(tmp string) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".afterthought-*"+filepath.Ext(path))
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := fill(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := syncFile(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := w.rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// availableBase returns name, or name_N for the smallest N with no clash
// across every extension the note will produce.
func availableBase(dir, name string, exts []string) string {
	taken := func(base string) bool {
		for _, ext := range exts {
			if _, err := os.Stat(filepath.Join(dir, base+ext)); err == nil {
				return true
			}
		}
		return false
	}

	if !taken(name) {
		return name
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d", name, n)
		if !taken(candidate) {
			return candidate
		}
	}
}

// sanitizeName makes s safe as a file or directory name.
func sanitizeName(s string) string {
	s = reInvalidName.ReplaceAllString(s, "")
	s = reSpaces.ReplaceAllString(s, " ")
	s = strings.Trim(s, ". ")

	if utf8.RuneCountInString(s) > maxNameLength {
		s = strings.TrimSpace(string([]rune(s)[:maxNameLength]))
	}
	if s == "" {
		return "untitled"
	}
	return s
}

// sanitizeTag turns a channel name into an Obsidian tag.
func sanitizeTag(s string) string {
	s = reTagStrip.ReplaceAllString(s, "")
	s = reSpaces.ReplaceAllString(strings.TrimSpace(s), "-")
	return strings.ToLower(s)
}
