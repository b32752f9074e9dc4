package tracestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"codeintel/internal/storage"
	"codeintel/internal/tracer"
)

const catalogName = "catalog.db"

var catalogMigrations = []storage.Migration{
	{
		Version: 1,
		Statements: []string{
			`CREATE TABLE traces (
				id TEXT PRIMARY KEY,
				label TEXT NOT NULL,
				ts INTEGER NOT NULL,
				file TEXT NOT NULL,
				session_id TEXT NOT NULL DEFAULT '',
				total_calls INTEGER NOT NULL DEFAULT 0,
				unique_paths INTEGER NOT NULL DEFAULT 0,
				functions_executed INTEGER NOT NULL DEFAULT 0,
				hottest_caller TEXT,
				hottest_callee TEXT,
				hottest_count INTEGER NOT NULL DEFAULT 0,
				digest TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX idx_traces_label_ts ON traces(label, ts)`,
			`CREATE INDEX idx_traces_ts ON traces(ts)`,
		},
	},
}

// Entry is one stored trace as listed by the catalog.
type Entry struct {
	ID        string         `json:"id"`
	Label     string         `json:"label"`
	Timestamp time.Time      `json:"timestamp"`
	File      string         `json:"file"`
	SessionID string         `json:"session_id,omitempty"`
	Summary   tracer.Summary `json:"summary"`
	Digest    string         `json:"digest"`
}

const entryColumns = `id, label, ts, file, session_id, total_calls, unique_paths,
	functions_executed, hottest_caller, hottest_callee, hottest_count, digest`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertEntry(ctx context.Context, db execer, e Entry) error {
	var caller, callee sql.NullString
	if hp := e.Summary.HottestPath; hp != nil {
		caller = sql.NullString{String: hp.Caller, Valid: true}
		callee = sql.NullString{String: hp.Callee, Valid: true}
	}
	_, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO traces (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Label, e.Timestamp.UnixNano(), e.File, e.SessionID,
		e.Summary.TotalCalls, e.Summary.UniquePaths, e.Summary.FunctionsExecuted,
		caller, callee, e.Summary.HottestCount, e.Digest)
	if err != nil {
		return fmt.Errorf("failed to record trace %s: %w", e.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e              Entry
		ts             int64
		caller, callee sql.NullString
	)
	err := row.Scan(&e.ID, &e.Label, &ts, &e.File, &e.SessionID,
		&e.Summary.TotalCalls, &e.Summary.UniquePaths, &e.Summary.FunctionsExecuted,
		&caller, &callee, &e.Summary.HottestCount, &e.Digest)
	if err != nil {
		return Entry{}, err
	}
	e.Timestamp = time.Unix(0, ts).UTC()
	if caller.Valid && callee.Valid {
		e.Summary.HottestPath = &tracer.Edge{Caller: caller.String, Callee: callee.String}
	}
	return e, nil
}

func queryEntries(ctx context.Context, db *storage.DB, query string, args ...interface{}) ([]Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
