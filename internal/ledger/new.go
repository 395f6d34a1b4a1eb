package ledger

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type implLedger struct {
	db  *sql.DB
	now func() time.Time
	// beforeCommit runs inside the write transaction right before COMMIT.
	// A non-nil error aborts the transaction.
	beforeCommit func() error
}

// Open opens (creating if needed) the ledger database at path.
// The database runs in WAL mode with full fsync so a killed process leaves
// either the previous row or the new one, never a mix.
func Open(path string) (Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", fileDSN(path, "_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)"))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &implLedger{db: db, now: time.Now}, nil
}

// fileDSN builds a file: URI with the path escaped, so '?' or '#' in a
// directory name stays part of the path.
func fileDSN(path, query string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: query}
	return u.String()
}

const schema = `
	CREATE TABLE IF NOT EXISTS processing_records (
		item_id       TEXT PRIMARY KEY,
		source_name   TEXT NOT NULL DEFAULT '',
		title         TEXT NOT NULL DEFAULT '',
		processed_at  REAL NOT NULL,
		outcome       TEXT NOT NULL,
		input_tokens  INTEGER,
		output_tokens INTEGER,
		summary_model TEXT,
		output_path   TEXT,
		error         TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_records_source ON processing_records(source_name);
	CREATE INDEX IF NOT EXISTS idx_records_outcome ON processing_records(outcome);
	CREATE INDEX IF NOT EXISTS idx_records_processed_at ON processing_records(processed_at);
`

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (l *implLedger) Close() error {
	return l.db.Close()
}
