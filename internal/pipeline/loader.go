package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
)

type fileLoader struct{}

// NewFileLoader reads transcripts from local paths or file:// URIs.
func NewFileLoader() TranscriptLoader {
	return fileLoader{}
}

func (fileLoader) Load(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := locator
	if strings.Contains(locator, "://") {
		u, err := url.Parse(locator)
		if err != nil {
			return nil, fmt.Errorf("parse transcript locator: %w", err)
		}
		if u.Scheme != "file" {
			return nil, fmt.Errorf("unsupported transcript locator scheme %q", u.Scheme)
		}
		path = u.Path
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return data, nil
}
