package importer

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Defaults applied by NewImporter to zero-valued options.
const (
	DefaultTOCTitle    = "Table of Contents"
	DefaultTOCCategory = "Index"
	DefaultReplyDelay  = time.Second
)

// Options configure an import pass.
type Options struct {
	// RepoURL is recorded on every topic as its origin.
	RepoURL string

	// MasterCategory, when set, is a top-level category all imported
	// directories are nested beneath.
	MasterCategory string

	GenerateTOC bool
	TOCTitle    string
	TOCHeader   string

	// TOCCategory holds the index topic when no MasterCategory is set.
	TOCCategory string

	ChunkMaxLength int

	// ReplyDelay is waited before each reply post.
	ReplyDelay time.Duration

	// AuthorID posts on behalf of another user; 0 posts as the token's user.
	AuthorID int

	// LegacyPathLookup probes for topics tagged with the full encoded path
	// by older importers and skips those files instead of duplicating them.
	LegacyPathLookup bool

	// OnResult, if set, is called after each file is reconciled.
	OnResult func(*FileResult)
}

func (o Options) withDefaults() Options {
	if o.TOCTitle == "" {
		o.TOCTitle = DefaultTOCTitle
	}
	if o.TOCCategory == "" {
		o.TOCCategory = DefaultTOCCategory
	}
	if o.ChunkMaxLength <= 0 {
		o.ChunkMaxLength = DefaultChunkMaxLength
	}
	if o.ReplyDelay < 0 {
		o.ReplyDelay = 0
	}
	return o
}

// Importer reconciles source files into forum categories and topics.
type Importer struct {
	forum   Forum
	journal Journal
	logger  Logger
	clock   Clock
	idgen   IDGenerator
	opts    Options
}

// NewImporter creates an Importer. A nil journal records nothing.
func NewImporter(forum Forum, journal Journal, logger Logger, clock Clock, idgen IDGenerator, opts Options) *Importer {
	if journal == nil {
		journal = NopJournal{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Importer{
		forum:   forum,
		journal: journal,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
		opts:    opts.withDefaults(),
	}
}

// RunSummary is the result of a full pass.
type RunSummary struct {
	RunID   string
	Results []*FileResult
	Index   *FileResult
	Counts  OutcomeCounts
}

// Run reconciles files one at a time in path order and then publishes the
// index. The first forum error aborts the pass; files already processed keep
// their new state. The summary is returned even on error.
func (imp *Importer) Run(ctx context.Context, files []SourceFile) (*RunSummary, error) {
	run := &Run{
		ID:        imp.idgen.New(),
		Operation: "import",
		RepoURL:   imp.opts.RepoURL,
		StartedAt: imp.clock.Now(),
		Status:    RunStatusRunning,
	}
	if err := imp.journal.CreateRun(run); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	summary := &RunSummary{RunID: run.ID}

	err := imp.runPass(ctx, run, files, summary)

	run.Status = RunStatusSuccess
	if err != nil {
		run.Status = RunStatusError
	}
	run.Counts = summary.Counts
	run.FinishedAt = sql.NullTime{Time: imp.clock.Now(), Valid: true}
	if ferr := imp.journal.FinishRun(run); ferr != nil && err == nil {
		err = fmt.Errorf("finishing run: %w", ferr)
	}

	if err != nil {
		imp.logger.Error("import failed", "run", run.ID, "error", err)
		return summary, err
	}
	imp.logger.Info("import complete", "run", run.ID,
		"created", summary.Counts.Created, "updated", summary.Counts.Updated,
		"unchanged", summary.Counts.Unchanged, "skipped", summary.Counts.Skipped)
	return summary, nil
}

func (imp *Importer) runPass(ctx context.Context, run *Run, files []SourceFile, summary *RunSummary) error {
	pass, err := imp.Begin(ctx)
	if err != nil {
		return err
	}

	ordered := make([]SourceFile, len(files))
	copy(ordered, files)
	sort.SliceStable(ordered, func(i, j int) bool {
		return NormalizePath(ordered[i].RelativePath) < NormalizePath(ordered[j].RelativePath)
	})

	for _, f := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := pass.Reconcile(ctx, f)
		if err != nil {
			return fmt.Errorf("importing %s: %w", f.RelativePath, err)
		}
		summary.Results = append(summary.Results, res)
		summary.Counts.Add(res.Outcome)
		if err := imp.record(run.ID, res); err != nil {
			return err
		}
	}

	idx, err := pass.PublishIndex(ctx)
	if err != nil {
		return fmt.Errorf("publishing index: %w", err)
	}
	summary.Index = idx
	return nil
}

func (imp *Importer) record(runID string, res *FileResult) error {
	if imp.opts.OnResult != nil {
		imp.opts.OnResult(res)
	}
	err := imp.journal.RecordOutcome(&OutcomeRecord{
		RunID:        runID,
		RelativePath: res.RelativePath,
		Outcome:      res.Outcome,
		TopicID:      res.TopicID,
		ContentHash:  res.ContentHash,
		Message:      res.Warning,
		RecordedAt:   imp.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("recording outcome for %s: %w", res.RelativePath, err)
	}
	return nil
}

// Begin starts a pass: it resolves the master category, if any, and returns
// the Pass that carries the category cache and index entries.
func (imp *Importer) Begin(ctx context.Context) (*Pass, error) {
	p := &Pass{
		imp:      imp,
		resolver: NewCategoryResolver(imp.forum, imp.logger),
		baseID:   RootCategoryID,
	}
	if imp.opts.MasterCategory != "" {
		id, err := p.resolver.Resolve(ctx, CategoryPath{imp.opts.MasterCategory}, RootCategoryID)
		if err != nil {
			return nil, fmt.Errorf("resolving master category: %w", err)
		}
		p.baseID = id
	}
	return p, nil
}
