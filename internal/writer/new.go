package writer

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nguyentantai21042004/afterthought/internal/logger"
)

// ErrWrite wraps every failure to produce a note on disk.
var ErrWrite = errors.New("write note")

// Format selects which files a note produces.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatDocx     Format = "docx"
	FormatBoth     Format = "both"
)

// ParseFormat accepts markdown, md, docx or both. Empty means markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "docx":
		return FormatDocx, nil
	case "both":
		return FormatBoth, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Options configures the note writer.
type Options struct {
	OutputDir string
	Format    Format
}

type implWriter struct {
	outputDir string
	format    Format
	logger    logger.Logger

	// rename is swapped in tests to simulate a crash before the note lands.
	rename func(oldpath, newpath string) error
}

// New creates a Writer rooted at opts.OutputDir.
func New(opts Options, log logger.Logger) Writer {
	format := opts.Format
	if format == "" {
		format = FormatMarkdown
	}
	return &implWriter{
		outputDir: opts.OutputDir,
		format:    format,
		logger:    log,
		rename:    os.Rename,
	}
}
