package library

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/nguyentantai21042004/afterthought/internal/models"
)

// transcriptIndex holds every regular file under the transcript cache in
// lexical walk order.
type transcriptIndex []string

func (l *implLibrary) index() (transcriptIndex, error) {
	if l.cacheDir == "" {
		return nil, nil
	}

	var idx transcriptIndex
	err := filepath.WalkDir(l.cacheDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == l.cacheDir {
				return err
			}
			return nil
		}
		if d.Type().IsRegular() {
			idx = append(idx, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transcript cache: %w", err)
	}
	return idx, nil
}

// find returns the first file whose name contains key, or "".
func (idx transcriptIndex) find(key string) string {
	if key == "" {
		return ""
	}
	for _, path := range idx {
		if strings.Contains(filepath.Base(path), key) {
			return path
		}
	}
	return ""
}

// Locate searches the cache for item's transcript, falling back to a file
// named after the episode id. It returns "" when nothing is cached.
func (l *implLibrary) Locate(item models.Item) (string, error) {
	idx, err := l.index()
	if err != nil {
		return "", err
	}
	if path := idx.find(item.TranscriptID); path != "" {
		return path, nil
	}
	return idx.find(item.ID), nil
}
