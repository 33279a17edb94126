package database

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"forumsync/internal/importer"
)

// newTestJournal creates a new in-memory journal with schema applied.
func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()

	j, err := NewSQLiteJournal(":memory:")
	if err != nil {
		t.Fatalf("failed to create journal: %v", err)
	}
	t.Cleanup(func() {
		j.Close()
	})
	return j
}

func mustCreateRun(t *testing.T, j *SQLiteJournal, id string, started time.Time) *importer.Run {
	t.Helper()
	run := &importer.Run{ID: id, Operation: "import", RepoURL: "https://git.example.com/docs", StartedAt: started}
	if err := j.CreateRun(run); err != nil {
		t.Fatalf("CreateRun(%s) error = %v", id, err)
	}
	return run
}

func TestSQLiteJournal_Runs(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	t.Run("create and list runs newest first", func(t *testing.T) {
		j := newTestJournal(t)

		mustCreateRun(t, j, "run-1", base)
		mustCreateRun(t, j, "run-2", base.Add(time.Minute))

		runs, err := j.ListRuns(10)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("got %d runs, want 2", len(runs))
		}
		if runs[0].ID != "run-2" {
			t.Errorf("expected newest first: got %q, want %q", runs[0].ID, "run-2")
		}
		if runs[1].Status != importer.RunStatusRunning {
			t.Errorf("Status = %q, want %q", runs[1].Status, importer.RunStatusRunning)
		}
		if !runs[1].StartedAt.Equal(base) {
			t.Errorf("StartedAt = %v, want %v", runs[1].StartedAt, base)
		}
		if runs[1].FinishedAt.Valid {
			t.Error("FinishedAt should not be set for a running run")
		}
	})

	t.Run("limit", func(t *testing.T) {
		j := newTestJournal(t)
		for i, id := range []string{"a", "b", "c"} {
			mustCreateRun(t, j, id, base.Add(time.Duration(i)*time.Second))
		}

		runs, err := j.ListRuns(2)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 2 {
			t.Errorf("got %d runs, want 2", len(runs))
		}
	})

	t.Run("finish run stores status time and counts", func(t *testing.T) {
		j := newTestJournal(t)
		run := mustCreateRun(t, j, "run-1", base)

		run.Status = importer.RunStatusSuccess
		run.FinishedAt = sql.NullTime{Time: base.Add(5 * time.Second), Valid: true}
		run.Counts = importer.OutcomeCounts{Created: 2, Updated: 1, Unchanged: 4, Skipped: 3}
		if err := j.FinishRun(run); err != nil {
			t.Fatalf("FinishRun() error = %v", err)
		}

		got, err := j.FindRun("run-1")
		if err != nil {
			t.Fatalf("FindRun() error = %v", err)
		}
		if got == nil {
			t.Fatal("FindRun() = nil")
		}
		if got.Status != importer.RunStatusSuccess {
			t.Errorf("Status = %q, want %q", got.Status, importer.RunStatusSuccess)
		}
		if !got.FinishedAt.Valid || !got.FinishedAt.Time.Equal(base.Add(5*time.Second)) {
			t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, base.Add(5*time.Second))
		}
		if got.Counts != run.Counts {
			t.Errorf("Counts = %+v, want %+v", got.Counts, run.Counts)
		}
	})

	t.Run("finish unknown run", func(t *testing.T) {
		j := newTestJournal(t)
		err := j.FinishRun(&importer.Run{ID: "nope", Status: importer.RunStatusError})
		if err == nil {
			t.Error("FinishRun() expected error for unknown run")
		}
	})

	t.Run("find missing run returns nil", func(t *testing.T) {
		j := newTestJournal(t)
		got, err := j.FindRun("nope")
		if err != nil {
			t.Fatalf("FindRun() error = %v", err)
		}
		if got != nil {
			t.Errorf("FindRun() = %+v, want nil", got)
		}
	})

	t.Run("duplicate run id", func(t *testing.T) {
		j := newTestJournal(t)
		mustCreateRun(t, j, "run-1", base)
		if err := j.CreateRun(&importer.Run{ID: "run-1", Operation: "import"}); err == nil {
			t.Error("CreateRun() expected error for duplicate id")
		}
	})
}

func TestSQLiteJournal_Outcomes(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	t.Run("file outcomes newest first", func(t *testing.T) {
		j := newTestJournal(t)
		mustCreateRun(t, j, "run-1", base)
		mustCreateRun(t, j, "run-2", base.Add(time.Hour))

		recs := []*importer.OutcomeRecord{
			{RunID: "run-1", RelativePath: "docs/a.md", Outcome: importer.OutcomeCreated, TopicID: 10, ContentHash: "h1", RecordedAt: base},
			{RunID: "run-1", RelativePath: "docs/b.md", Outcome: importer.OutcomeCreated, TopicID: 11, ContentHash: "h2", RecordedAt: base},
			{RunID: "run-2", RelativePath: "docs/a.md", Outcome: importer.OutcomeUpdated, TopicID: 10, ContentHash: "h3", RecordedAt: base.Add(time.Hour)},
		}
		for _, rec := range recs {
			if err := j.RecordOutcome(rec); err != nil {
				t.Fatalf("RecordOutcome() error = %v", err)
			}
		}

		got, err := j.FileOutcomes("docs/a.md", 10)
		if err != nil {
			t.Fatalf("FileOutcomes() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d outcomes, want 2", len(got))
		}
		if got[0].Outcome != importer.OutcomeUpdated || got[0].RunID != "run-2" {
			t.Errorf("first outcome = %+v, want updated in run-2", got[0])
		}
		if got[1].ContentHash != "h1" || got[1].TopicID != 10 {
			t.Errorf("second outcome = %+v, want hash h1 topic 10", got[1])
		}
		if !got[1].RecordedAt.Equal(base) {
			t.Errorf("RecordedAt = %v, want %v", got[1].RecordedAt, base)
		}
	})

	t.Run("run outcomes in recorded order", func(t *testing.T) {
		j := newTestJournal(t)
		mustCreateRun(t, j, "run-1", base)
		for _, p := range []string{"z.md", "a.md"} {
			if err := j.RecordOutcome(&importer.OutcomeRecord{RunID: "run-1", RelativePath: p, Outcome: importer.OutcomeUnchanged}); err != nil {
				t.Fatalf("RecordOutcome() error = %v", err)
			}
		}

		got, err := j.RunOutcomes("run-1")
		if err != nil {
			t.Fatalf("RunOutcomes() error = %v", err)
		}
		if len(got) != 2 || got[0].RelativePath != "z.md" || got[1].RelativePath != "a.md" {
			t.Errorf("RunOutcomes() = %+v, want z.md then a.md", got)
		}
	})

	t.Run("outcome for unknown run fails", func(t *testing.T) {
		j := newTestJournal(t)
		err := j.RecordOutcome(&importer.OutcomeRecord{RunID: "missing", RelativePath: "a.md", Outcome: importer.OutcomeCreated})
		if err == nil {
			t.Error("RecordOutcome() expected foreign key error")
		}
	})
}

func TestSQLiteJournal_BackupTo(t *testing.T) {
	j := newTestJournal(t)
	mustCreateRun(t, j, "run-1", time.Now())

	destPath := filepath.Join(t.TempDir(), "backup.db")
	if err := j.BackupTo(destPath); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	backup, err := NewSQLiteJournal(destPath)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer backup.Close()

	run, err := backup.FindRun("run-1")
	if err != nil {
		t.Fatalf("FindRun() error = %v", err)
	}
	if run == nil {
		t.Error("backup does not contain the run")
	}
}

func TestSQLiteJournal_CheckMigrations(t *testing.T) {
	t.Run("fails on DB without migrations applied", func(t *testing.T) {
		db, err := OpenConnection(":memory:")
		if err != nil {
			t.Fatalf("OpenConnection() error = %v", err)
		}
		j := NewSQLiteJournalFromDB(db)
		defer j.Close()

		if err := j.CheckMigrations(); err == nil {
			t.Error("CheckMigrations() expected error for missing schema")
		}
	})

	t.Run("passes after open", func(t *testing.T) {
		j := newTestJournal(t)
		if err := j.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})
}
