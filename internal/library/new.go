package library

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/nguyentantai21042004/afterthought/internal/logger"
	_ "modernc.org/sqlite"
)

type implLibrary struct {
	db       *sql.DB
	cacheDir string
	logger   logger.Logger
	now      func() time.Time
}

// Open opens the MTLibrary.sqlite database read-only. cacheDir is the TTML
// transcript cache that Locate searches.
func Open(dbPath, cacheDir string, log logger.Logger) (Library, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("podcast library not found at %s: %w", dbPath, err)
	}

	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("resolve podcast library path: %w", err)
	}
	dsn := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=ro&_pragma=busy_timeout(5000)"}
	db, err := sql.Open("sqlite", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("open podcast library: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping podcast library: %w", err)
	}

	return &implLibrary{
		db:       db,
		cacheDir: cacheDir,
		logger:   log,
		now:      time.Now,
	}, nil
}

func (l *implLibrary) Close() error {
	return l.db.Close()
}
