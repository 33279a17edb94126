package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"forumsync/internal/database/migrations"
	"forumsync/internal/importer"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteJournal implements importer.Journal using SQLite.
type SQLiteJournal struct {
	db   *sql.DB
	path string
}

// NewSQLiteJournal opens the journal at path and brings its schema up to date.
// path can be a file path or ":memory:" for an in-memory journal.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating journal: %w", err)
	}
	return &SQLiteJournal{db: db, path: path}, nil
}

// NewSQLiteJournalFromDB wraps an existing database connection.
// The caller is responsible for ensuring the schema is in place.
func NewSQLiteJournalFromDB(db *sql.DB) *SQLiteJournal {
	return &SQLiteJournal{db: db}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Run operations

func (s *SQLiteJournal) CreateRun(run *importer.Run) error {
	if run.ID == "" {
		return fmt.Errorf("creating run: id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = importer.RunStatusRunning
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (id, operation, repo_url, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Operation, run.RepoURL, run.StartedAt.UTC(), run.Status)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

func (s *SQLiteJournal) FinishRun(run *importer.Run) error {
	finished := run.FinishedAt
	if !finished.Valid {
		finished = sql.NullTime{Time: time.Now(), Valid: true}
	}
	res, err := s.db.Exec(`
		UPDATE runs
		SET finished_at = ?, status = ?, created = ?, updated = ?, unchanged = ?, skipped = ?
		WHERE id = ?`,
		finished.Time.UTC(), run.Status,
		run.Counts.Created, run.Counts.Updated, run.Counts.Unchanged, run.Counts.Skipped,
		run.ID)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing run: run not found: %s", run.ID)
	}
	return nil
}

func (s *SQLiteJournal) ListRuns(limit int) ([]*importer.Run, error) {
	rows, err := s.db.Query(`
		SELECT id, operation, repo_url, started_at, finished_at, status, created, updated, unchanged, skipped
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*importer.Run
	for rows.Next() {
		var r importer.Run
		if err := rows.Scan(&r.ID, &r.Operation, &r.RepoURL, &r.StartedAt, &r.FinishedAt, &r.Status,
			&r.Counts.Created, &r.Counts.Updated, &r.Counts.Unchanged, &r.Counts.Skipped); err != nil {
			return nil, fmt.Errorf("listing runs: %w", err)
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// FindRun returns the run with id, or nil if there is none.
func (s *SQLiteJournal) FindRun(id string) (*importer.Run, error) {
	var r importer.Run
	err := s.db.QueryRow(`
		SELECT id, operation, repo_url, started_at, finished_at, status, created, updated, unchanged, skipped
		FROM runs WHERE id = ?`, id).
		Scan(&r.ID, &r.Operation, &r.RepoURL, &r.StartedAt, &r.FinishedAt, &r.Status,
			&r.Counts.Created, &r.Counts.Updated, &r.Counts.Unchanged, &r.Counts.Skipped)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding run: %w", err)
	}
	return &r, nil
}

// Outcome operations

func (s *SQLiteJournal) RecordOutcome(rec *importer.OutcomeRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO file_outcomes (run_id, relative_path, outcome, topic_id, content_hash, message, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.RelativePath, string(rec.Outcome), rec.TopicID, rec.ContentHash, rec.Message, rec.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording outcome for %s: %w", rec.RelativePath, err)
	}
	return nil
}

func (s *SQLiteJournal) FileOutcomes(relativePath string, limit int) ([]*importer.OutcomeRecord, error) {
	return s.queryOutcomes(`
		SELECT run_id, relative_path, outcome, topic_id, content_hash, message, recorded_at
		FROM file_outcomes
		WHERE relative_path = ?
		ORDER BY id DESC
		LIMIT ?`, relativePath, limit)
}

// RunOutcomes returns the outcomes recorded for a run in the order they were recorded.
func (s *SQLiteJournal) RunOutcomes(runID string) ([]*importer.OutcomeRecord, error) {
	return s.queryOutcomes(`
		SELECT run_id, relative_path, outcome, topic_id, content_hash, message, recorded_at
		FROM file_outcomes
		WHERE run_id = ?
		ORDER BY id`, runID)
}

func (s *SQLiteJournal) queryOutcomes(query string, args ...any) ([]*importer.OutcomeRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	var out []*importer.OutcomeRecord
	for rows.Next() {
		var rec importer.OutcomeRecord
		var outcome string
		if err := rows.Scan(&rec.RunID, &rec.RelativePath, &outcome, &rec.TopicID, &rec.ContentHash, &rec.Message, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("querying outcomes: %w", err)
		}
		rec.Outcome = importer.Outcome(outcome)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	return out, nil
}

// Path returns the database file path (or ":memory:" for in-memory journals).
func (s *SQLiteJournal) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteJournal) CheckMigrations() error {
	return migrations.Check(s.db, s.path)
}

// BackupTo creates a complete copy of the journal at destPath using VACUUM INTO.
func (s *SQLiteJournal) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up journal: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteJournal) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteJournal implements importer.Journal
var _ importer.Journal = (*SQLiteJournal)(nil)
