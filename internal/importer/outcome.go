package importer

// Outcome is what happened to one file during a pass.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"

	// The file's topic was written by an older importer, or has a chunked
	// layout this importer cannot rewrite in place.
	OutcomeSkippedChunked  Outcome = "skipped-chunked"
	OutcomeSkippedOversize Outcome = "skipped-oversize"
	OutcomeSkippedLegacy   Outcome = "skipped-legacy"

	// The file's tag is already used in its category by the topic of a
	// different file.
	OutcomeSkippedConflict Outcome = "skipped-conflict"

	OutcomeSkippedBinary        Outcome = "skipped-binary"
	OutcomeSkippedUncategorized Outcome = "skipped-uncategorized"
)

// Skipped reports whether the outcome is one of the skipped-with-warning
// outcomes.
func (o Outcome) Skipped() bool {
	switch o {
	case OutcomeCreated, OutcomeUpdated, OutcomeUnchanged:
		return false
	default:
		return true
	}
}

// FileResult is the outcome of reconciling one file.
type FileResult struct {
	RelativePath string
	Title        string
	Tag          string
	CategoryID   int
	Outcome      Outcome
	TopicID      int
	TopicSlug    string
	ContentHash  string
	PostsWritten int
	Warning      string
}

// TocEntry is one line of the generated index.
type TocEntry struct {
	FilePath  string
	Title     string
	TopicID   int
	TopicSlug string
}

// TocEntry returns the index entry for r, if r ended with a known topic.
func (r *FileResult) TocEntry() (TocEntry, bool) {
	if r.TopicID == 0 {
		return TocEntry{}, false
	}
	return TocEntry{
		FilePath:  r.RelativePath,
		Title:     r.Title,
		TopicID:   r.TopicID,
		TopicSlug: r.TopicSlug,
	}, true
}

// OutcomeCounts tallies outcomes across a pass.
type OutcomeCounts struct {
	Created   int
	Updated   int
	Unchanged int
	Skipped   int
}

// Add counts one outcome.
func (c *OutcomeCounts) Add(o Outcome) {
	switch o {
	case OutcomeCreated:
		c.Created++
	case OutcomeUpdated:
		c.Updated++
	case OutcomeUnchanged:
		c.Unchanged++
	default:
		c.Skipped++
	}
}

// Total returns the number of files counted.
func (c OutcomeCounts) Total() int {
	return c.Created + c.Updated + c.Unchanged + c.Skipped
}
