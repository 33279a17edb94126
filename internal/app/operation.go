package app

import "time"

// Operation identifies one CLI invocation. Its ID is written on every log
// line so the lines of one invocation can be grepped together; each import
// pass inside it also gets its own run id in the journal.
type Operation struct {
	ID     string
	Name   string // CLI command, e.g. "import" or "watch"
	DryRun bool
}

// NewOperation creates an operation started at now.
func NewOperation(name string, now time.Time, dryRun bool) *Operation {
	return &Operation{
		ID:     now.UTC().Format("20060102T150405Z"),
		Name:   name,
		DryRun: dryRun,
	}
}

// String returns the operation name, marked when it is a dry run.
func (op *Operation) String() string {
	if op.DryRun {
		return op.Name + " (dry run)"
	}
	return op.Name
}
