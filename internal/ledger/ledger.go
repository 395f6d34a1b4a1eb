package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const recordColumns = `item_id, source_name, title, processed_at, outcome,
	input_tokens, output_tokens, summary_model, output_path, error`

func (l *implLedger) HasBeenProcessed(ctx context.Context, itemID string, requireSuccess bool) (bool, error) {
	query := `SELECT 1 FROM processing_records WHERE item_id = ?`
	args := []interface{}{itemID}
	if requireSuccess {
		query += ` AND outcome = ?`
		args = append(args, string(OutcomeSuccess))
	}

	var one int
	err := l.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: lookup %s: %w", ErrLedgerRead, itemID, err)
	}
	return true, nil
}

func (l *implLedger) Record(ctx context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrLedgerWrite, err)
	}
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = l.now()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrLedgerWrite, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO processing_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			source_name   = excluded.source_name,
			title         = excluded.title,
			processed_at  = excluded.processed_at,
			outcome       = excluded.outcome,
			input_tokens  = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			summary_model = excluded.summary_model,
			output_path   = excluded.output_path,
			error         = excluded.error
	`,
		rec.ItemID,
		rec.SourceName,
		rec.Title,
		unixFromTime(rec.ProcessedAt),
		string(rec.Outcome),
		nullInt(rec.InputTokens),
		nullInt(rec.OutputTokens),
		nullString(rec.SummaryModel),
		nullString(rec.OutputPath),
		nullString(rec.Error),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %w", ErrLedgerWrite, rec.ItemID, err)
	}

	if l.beforeCommit != nil {
		if err := l.beforeCommit(); err != nil {
			return fmt.Errorf("%w: upsert %s: %w", ErrLedgerWrite, rec.ItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit %s: %w", ErrLedgerWrite, rec.ItemID, err)
	}
	return nil
}

// Get returns the record for itemID, or nil when there is none.
func (l *implLedger) Get(ctx context.Context, itemID string) (*Record, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM processing_records WHERE item_id = ?`, itemID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", ErrLedgerRead, itemID, err)
	}
	return rec, nil
}

// List returns records, most recently processed first.
func (l *implLedger) List(ctx context.Context, filter Filter) ([]Record, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.SourceName != "" {
		where = append(where, "source_name = ?")
		args = append(args, filter.SourceName)
	}
	if filter.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}

	query := `SELECT ` + recordColumns + ` FROM processing_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY processed_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrLedgerRead, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan record: %w", ErrLedgerRead, err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrLedgerRead, err)
	}
	return records, nil
}

func (l *implLedger) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByOutcome: make(map[Outcome]int),
		BySource:  make(map[string]int),
	}

	var first, last sql.NullFloat64
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(processed_at), MAX(processed_at)
		FROM processing_records
	`).Scan(&stats.Total, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("%w: stats totals: %w", ErrLedgerRead, err)
	}
	if first.Valid {
		stats.FirstProcessedAt = timeFromUnix(first.Float64)
	}
	if last.Valid {
		stats.LastProcessedAt = timeFromUnix(last.Float64)
	}

	if err := l.countBy(ctx, "outcome", func(key string, n int) {
		stats.ByOutcome[Outcome(key)] = n
	}); err != nil {
		return nil, err
	}
	if err := l.countBy(ctx, "source_name", func(key string, n int) {
		stats.BySource[key] = n
	}); err != nil {
		return nil, err
	}

	err = l.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		FROM processing_records
		WHERE outcome = ?
	`, string(OutcomeSuccess)).Scan(&stats.InputTokens, &stats.OutputTokens)
	if err != nil {
		return nil, fmt.Errorf("%w: stats tokens: %w", ErrLedgerRead, err)
	}

	return stats, nil
}

// countBy groups on a fixed column name; column is never user input.
func (l *implLedger) countBy(ctx context.Context, column string, fn func(key string, n int)) error {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) FROM processing_records GROUP BY `+column)
	if err != nil {
		return fmt.Errorf("%w: stats by %s: %w", ErrLedgerRead, column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("%w: stats by %s: %w", ErrLedgerRead, column, err)
		}
		fn(key, n)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: stats by %s: %w", ErrLedgerRead, column, err)
	}
	return nil
}

// Forget deletes one record so the item is processed again on the next run.
func (l *implLedger) Forget(ctx context.Context, itemID string) (bool, error) {
	n, err := l.exec(ctx, `DELETE FROM processing_records WHERE item_id = ?`, itemID)
	return n > 0, err
}

func (l *implLedger) ForgetSource(ctx context.Context, sourceName string) (int64, error) {
	return l.exec(ctx, `DELETE FROM processing_records WHERE source_name = ?`, sourceName)
}

func (l *implLedger) ForgetAll(ctx context.Context) (int64, error) {
	return l.exec(ctx, `DELETE FROM processing_records`)
}

func (l *implLedger) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLedgerWrite, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLedgerWrite, err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		rec                     Record
		processedAt             float64
		outcome                 string
		inTokens, outTokens     sql.NullInt64
		model, outputPath, errs sql.NullString
	)
	if err := s.Scan(&rec.ItemID, &rec.SourceName, &rec.Title, &processedAt, &outcome,
		&inTokens, &outTokens, &model, &outputPath, &errs); err != nil {
		return nil, err
	}

	rec.ProcessedAt = timeFromUnix(processedAt)
	rec.Outcome = Outcome(outcome)
	if inTokens.Valid {
		n := int(inTokens.Int64)
		rec.InputTokens = &n
	}
	if outTokens.Valid {
		n := int(outTokens.Int64)
		rec.OutputTokens = &n
	}
	rec.SummaryModel = model.String
	rec.OutputPath = outputPath.String
	rec.Error = errs.String
	return &rec, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
