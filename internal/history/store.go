// Package history keeps an audit trail of sync runs in SQLite.
//
// The trail is write-only from the sync pipeline's point of view: deciding
// which files are new always comes from listing the archive, never from this
// database.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

var (
	// ErrSchemaMismatch indicates the database was written by an incompatible version.
	ErrSchemaMismatch = errors.New("history schema version mismatch")
	// ErrRunNotFound is returned when a run id does not exist.
	ErrRunNotFound = errors.New("run not found")
)

// Store manages run history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them in force.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start a fresh history)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// BeginRun inserts a running run record and returns its generated id.
func (s *Store) BeginRun(ctx context.Context, trigger string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, trigger_source, started_at, outcome) VALUES (?, ?, ?, ?)`,
		id,
		strings.TrimSpace(trigger),
		formatTime(time.Now()),
		OutcomeRunning,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordFile stores one copy attempt under runID.
func (s *Store) RecordFile(ctx context.Context, runID string, file File) error {
	recorded := file.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (run_id, source, destination, bytes, duration_ms, error, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID,
		file.Source,
		file.Destination,
		file.Bytes,
		file.Duration.Milliseconds(),
		nullableString(file.Error),
		formatTime(recorded),
	)
	if err != nil {
		return fmt.Errorf("insert file record: %w", err)
	}
	return nil
}

// FinishRun stamps the end time and totals on runID.
func (s *Store) FinishRun(ctx context.Context, runID string, totals RunTotals) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, mount_point = ?, found = ?, new_files = ?, copied = ?,
            failed = ?, bytes = ?, outcome = ?, message = ?
         WHERE id = ?`,
		formatTime(time.Now()),
		nullableString(totals.MountPoint),
		totals.Found,
		totals.New,
		totals.Copied,
		totals.Failed,
		totals.Bytes,
		totals.Outcome,
		nullableString(totals.Message),
		runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = "id, trigger_source, started_at, finished_at, mount_point, found, new_files, copied, failed, bytes, outcome, message"

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun fetches a run by id or unique id prefix. The prefix is compared
// literally, so LIKE wildcards in it match nothing.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Run{}, ErrRunNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE substr(id, 1, length(?)) = ? ORDER BY started_at DESC LIMIT 2",
		id, id)
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, fmt.Errorf("scan run: %w", err)
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch {
	case len(matches) == 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case len(matches) > 1 && matches[0].ID != id && matches[1].ID != id:
		return Run{}, fmt.Errorf("run id prefix %q is ambiguous", id)
	case len(matches) > 1 && matches[1].ID == id:
		return matches[1], nil
	}
	return matches[0], nil
}

// RunFiles returns the copy attempts recorded for runID in insertion order.
func (s *Store) RunFiles(ctx context.Context, runID string) ([]File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, source, destination, bytes, duration_ms, error, recorded_at
         FROM files WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var (
			f           File
			durationMS  int64
			errText     sql.NullString
			recordedRaw string
		)
		if err := rows.Scan(&f.ID, &f.RunID, &f.Source, &f.Destination, &f.Bytes, &durationMS, &errText, &recordedRaw); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.Duration = time.Duration(durationMS) * time.Millisecond
		f.Error = errText.String
		if ts, err := parseTime(recordedRaw); err == nil {
			f.RecordedAt = ts
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Prune deletes runs that started before cutoff, with their file records.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		startedRaw  string
		finishedRaw sql.NullString
		mountPoint  sql.NullString
		outcome     string
		message     sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Trigger,
		&startedRaw,
		&finishedRaw,
		&mountPoint,
		&run.Found,
		&run.New,
		&run.Copied,
		&run.Failed,
		&run.Bytes,
		&outcome,
		&message,
	); err != nil {
		return Run{}, err
	}
	run.MountPoint = mountPoint.String
	run.Outcome = Outcome(outcome)
	run.Message = message.String
	if ts, err := parseTime(startedRaw); err == nil {
		run.StartedAt = ts
	}
	if finishedRaw.Valid {
		if ts, err := parseTime(finishedRaw.String); err == nil {
			run.FinishedAt = &ts
		}
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// Timestamps are stored as fixed-width UTC strings so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
