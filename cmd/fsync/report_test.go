package main

import (
	"bytes"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"forumsync/internal/importer"
)

func init() {
	color.NoColor = true
}

func TestPrintResult(t *testing.T) {
	tests := []struct {
		name string
		res  *importer.FileResult
		want string
	}{
		{
			name: "created",
			res:  &importer.FileResult{RelativePath: "docs/a.md", Outcome: importer.OutcomeCreated, TopicID: 12},
			want: "created               docs/a.md  #12\n",
		},
		{
			name: "skipped with warning",
			res:  &importer.FileResult{RelativePath: "img/x.png", Outcome: importer.OutcomeSkippedBinary, Warning: "content is not valid UTF-8 text"},
			want: "skipped-binary        img/x.png\n  warning: content is not valid UTF-8 text\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printResult(&buf, tt.res)
			if got := buf.String(); got != tt.want {
				t.Errorf("printResult() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &importer.RunSummary{
		Counts: importer.OutcomeCounts{Created: 1, Updated: 2, Unchanged: 3, Skipped: 4},
	})
	want := "\nImported 10 file(s): 1 created, 2 updated, 3 unchanged, 4 skipped\n"
	if got := buf.String(); got != want {
		t.Errorf("printSummary() = %q, want %q", got, want)
	}
}

func TestPrintRun(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local)
	var buf bytes.Buffer
	printRun(&buf, &importer.Run{
		ID:         "run-1",
		StartedAt:  start,
		FinishedAt: sql.NullTime{Time: start.Add(1500 * time.Millisecond), Valid: true},
		Status:     importer.RunStatusSuccess,
		Counts:     importer.OutcomeCounts{Created: 2, Skipped: 1},
	})
	want := "run-1  2024-01-15 10:30:00  success   +2 ~0 =0 !1  1.5s\n"
	if got := buf.String(); got != want {
		t.Errorf("printRun() = %q, want %q", got, want)
	}
}

func TestPrintOutcome(t *testing.T) {
	rec := &importer.OutcomeRecord{
		RunID:        "run-7",
		RelativePath: "docs/a.md",
		Outcome:      importer.OutcomeUpdated,
		TopicID:      3,
		ContentHash:  strings.Repeat("ab", 32),
		Message:      "content written but metadata update failed: boom",
		RecordedAt:   time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local),
	}

	var buf bytes.Buffer
	printOutcome(&buf, rec, false)
	want := "2024-01-15 10:30:00  updated                abababababab  run-7  #3  (content written but metadata update failed: boom)\n"
	if got := buf.String(); got != want {
		t.Errorf("printOutcome() = %q, want %q", got, want)
	}

	buf.Reset()
	printOutcome(&buf, rec, true)
	if !strings.Contains(buf.String(), "  docs/a.md  #3") {
		t.Errorf("printOutcome(withPath) = %q, want the file path", buf.String())
	}
}
