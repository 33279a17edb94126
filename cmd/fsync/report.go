package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"forumsync/internal/importer"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// outcomeLabel returns the fixed-width, colored label for an outcome.
func outcomeLabel(o importer.Outcome) string {
	label := fmt.Sprintf("%-21s", o)
	switch {
	case o == importer.OutcomeCreated:
		return green(label)
	case o == importer.OutcomeUpdated:
		return yellow(label)
	case o == importer.OutcomeUnchanged:
		return gray(label)
	case o.Skipped():
		return red(label)
	default:
		return label
	}
}

// printResult writes one line per reconciled file.
func printResult(w io.Writer, r *importer.FileResult) {
	topic := ""
	if r.TopicID != 0 {
		topic = fmt.Sprintf("  #%d", r.TopicID)
	}
	fmt.Fprintf(w, "%s %s%s\n", outcomeLabel(r.Outcome), r.RelativePath, gray(topic))
	if r.Warning != "" {
		fmt.Fprintf(w, "  %s %s\n", yellow("warning:"), r.Warning)
	}
}

// printSummary writes the totals of a pass.
func printSummary(w io.Writer, s *importer.RunSummary) {
	if s.Index != nil {
		printResult(w, s.Index)
	}
	c := s.Counts
	fmt.Fprintf(w, "\n%s %d file(s): %s created, %s updated, %s unchanged, %s skipped\n",
		bold("Imported"), c.Total(),
		green(c.Created), yellow(c.Updated), gray(c.Unchanged), red(c.Skipped))
}

// printRun writes one history line.
func printRun(w io.Writer, r *importer.Run) {
	duration := ""
	if r.FinishedAt.Valid {
		duration = r.FinishedAt.Time.Sub(r.StartedAt).Truncate(time.Millisecond).String()
	}
	status := r.Status
	switch r.Status {
	case importer.RunStatusSuccess:
		status = green(fmt.Sprintf("%-8s", r.Status))
	case importer.RunStatusError:
		status = red(fmt.Sprintf("%-8s", r.Status))
	default:
		status = yellow(fmt.Sprintf("%-8s", r.Status))
	}
	c := r.Counts
	fmt.Fprintf(w, "%s  %s  %s  +%d ~%d =%d !%d  %s\n",
		r.ID,
		r.StartedAt.Local().Format("2006-01-02 15:04:05"),
		status,
		c.Created, c.Updated, c.Unchanged, c.Skipped,
		duration,
	)
}

// printOutcome writes one journal outcome line.
func printOutcome(w io.Writer, o *importer.OutcomeRecord, withPath bool) {
	hash := o.ContentHash
	if len(hash) > 12 {
		hash = hash[:12]
	}
	subject := o.RunID
	if withPath {
		subject = o.RelativePath
	}
	fmt.Fprintf(w, "%s  %s  %s  %s", o.RecordedAt.Local().Format("2006-01-02 15:04:05"), outcomeLabel(o.Outcome), hash, subject)
	if o.TopicID != 0 {
		fmt.Fprintf(w, "  #%d", o.TopicID)
	}
	if o.Message != "" {
		fmt.Fprintf(w, "  (%s)", o.Message)
	}
	fmt.Fprintln(w)
}
