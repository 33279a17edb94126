package importer

import (
	"database/sql"
	"time"
)

// Run statuses recorded in the journal.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// Run is one import pass as recorded in the journal.
type Run struct {
	ID         string
	Operation  string
	RepoURL    string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
	Counts     OutcomeCounts
}

// OutcomeRecord is one file's outcome within a run.
type OutcomeRecord struct {
	RunID        string
	RelativePath string
	Outcome      Outcome
	TopicID      int
	ContentHash  string
	Message      string
	RecordedAt   time.Time
}

// Journal is an append-only audit trail of import passes. It is never read
// back to decide what to write; the forum is the source of truth.
type Journal interface {
	// CreateRun records the start of a pass.
	CreateRun(run *Run) error

	// RecordOutcome appends a file outcome to a run.
	RecordOutcome(rec *OutcomeRecord) error

	// FinishRun stores the final status, finish time and counts of a run.
	FinishRun(run *Run) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*Run, error)

	// FileOutcomes returns the outcomes recorded for one file, newest first.
	FileOutcomes(relativePath string, limit int) ([]*OutcomeRecord, error)

	Close() error
}

// NopJournal records nothing.
type NopJournal struct{}

func (NopJournal) CreateRun(*Run) error                               { return nil }
func (NopJournal) RecordOutcome(*OutcomeRecord) error                 { return nil }
func (NopJournal) FinishRun(*Run) error                               { return nil }
func (NopJournal) ListRuns(int) ([]*Run, error)                       { return nil, nil }
func (NopJournal) FileOutcomes(string, int) ([]*OutcomeRecord, error) { return nil, nil }
func (NopJournal) Close() error                                       { return nil }
