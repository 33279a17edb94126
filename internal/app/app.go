package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"forumsync/internal/config"
	"forumsync/internal/database"
	"forumsync/internal/encryption"
	"forumsync/internal/forum"
	"forumsync/internal/fs"
	"forumsync/internal/importer"
	"forumsync/internal/source"
	"forumsync/internal/watch"
)

// Options control how an FsyncApp is built.
type Options struct {
	// Operation names the CLI command being run (e.g. "import", "history").
	Operation string

	// DryRun imports into an in-memory forum and records nothing.
	DryRun bool

	// Verbose logs debug records.
	Verbose bool

	// Stderr receives log lines next to the log file. Nil means os.Stderr.
	Stderr io.Writer

	// Passphrase is asked for when the token file must be unlocked and
	// FSYNC_PASSPHRASE is not set.
	Passphrase PassphraseFunc

	// OnResult is called after each file is reconciled.
	OnResult func(*importer.FileResult)

	// Clock and IDs replace the real clock and run id generator in tests.
	Clock importer.Clock
	IDs   importer.IDGenerator
}

// FsyncApp is the application layer between the CLI and the importer.
// It constructs all dependencies from config and exposes high-level
// operations. The journal and logger are opened eagerly; the forum, source
// and importer are built on first use so read-only commands never need an
// API token.
type FsyncApp struct {
	cfg     *config.Config
	opts    Options
	op      *Operation
	journal *database.SQLiteJournal
	logger  *slog.Logger
	logFile io.Closer

	forum    importer.Forum
	source   importer.Source
	importer *importer.Importer
}

// NewFsyncApp creates an FsyncApp from the given config.
// The caller must call Close when done.
func NewFsyncApp(cfg *config.Config, opts Options) (*FsyncApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = importer.RealClock{}
	}
	if opts.IDs == nil {
		opts.IDs = importer.UUIDGenerator{}
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	journal, err := database.NewJournalFromConfig(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("creating journal: %w", err)
	}
	if err := journal.CheckMigrations(); err != nil {
		journal.Close()
		return nil, fmt.Errorf("journal schema out of date: %w", err)
	}

	op := NewOperation(opts.Operation, opts.Clock.Now(), opts.DryRun)
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, opts.Stderr, level)
	if err != nil {
		journal.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	return &FsyncApp{
		cfg:     cfg,
		opts:    opts,
		op:      op,
		journal: journal,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// Operation returns the operation this app was created for.
func (a *FsyncApp) Operation() *Operation {
	return a.op
}

// connect builds the forum, source and importer once.
func (a *FsyncApp) connect(ctx context.Context) error {
	if a.importer != nil {
		return nil
	}

	f, err := a.newForum()
	if err != nil {
		return err
	}

	src, err := source.NewSourceFromConfig(ctx, a.cfg.Source)
	if err != nil {
		return fmt.Errorf("creating source: %w", err)
	}

	imp := a.cfg.Import
	opts := importer.Options{
		RepoURL:          imp.RepoURL,
		MasterCategory:   imp.MasterCategory,
		GenerateTOC:      imp.GenerateTOC,
		TOCTitle:         imp.TOCTitle,
		TOCHeader:        imp.TOCHeader,
		TOCCategory:      imp.TOCCategory,
		ChunkMaxLength:   imp.ChunkMaxLength,
		ReplyDelay:       imp.ReplyDelay.Duration,
		AuthorID:         a.cfg.Forum.UserID,
		LegacyPathLookup: imp.LegacyPathLookup,
		OnResult:         a.opts.OnResult,
	}

	var journal importer.Journal = a.journal
	if a.opts.DryRun {
		journal = importer.NopJournal{}
		opts.ReplyDelay = 0
	}

	a.forum = f
	a.source = src
	a.importer = importer.NewImporter(f, journal, &slogAdapter{l: a.logger}, a.opts.Clock, a.opts.IDs, opts)
	a.logger.Info("operation started", "operation", a.op.String(), "forum", a.cfg.Forum.Type, "source", a.cfg.Source.Type)
	return nil
}

func (a *FsyncApp) newForum() (importer.Forum, error) {
	if a.opts.DryRun {
		return forum.NewMemoryForum(), nil
	}

	var token string
	if a.cfg.Forum.Type == "http" {
		store, err := encryption.NewTokenStoreFromConfig(a.cfg.Encryption)
		if err != nil {
			return nil, fmt.Errorf("creating token store: %w", err)
		}
		if token, err = ResolveToken(a.cfg.Forum, store, a.opts.Passphrase); err != nil {
			return nil, err
		}
	}

	f, err := forum.NewForumFromConfig(a.cfg.Forum, token)
	if err != nil {
		return nil, fmt.Errorf("creating forum: %w", err)
	}
	return f, nil
}

// Check builds the forum and source from config and, when the forum can be
// pinged, verifies it is reachable with the resolved token.
func (a *FsyncApp) Check(ctx context.Context) error {
	if err := a.connect(ctx); err != nil {
		return err
	}
	if p, ok := a.forum.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("pinging forum: %w", err)
		}
	}
	return nil
}

// Import lists the source files and runs one import pass.
func (a *FsyncApp) Import(ctx context.Context) (*importer.RunSummary, error) {
	if err := a.connect(ctx); err != nil {
		return nil, err
	}

	files, err := a.source.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing source files: %w", err)
	}
	a.logger.Info("source listed", "files", len(files))

	return a.importer.Run(ctx, files)
}

// Watch runs an import pass, then another one each time the local source
// tree changes, until ctx is done. onPass receives the outcome of every pass.
// Only filesystem sources can be watched.
func (a *FsyncApp) Watch(ctx context.Context, quiet time.Duration, onPass func(*importer.RunSummary, error)) error {
	if err := a.connect(ctx); err != nil {
		return err
	}
	src, ok := a.source.(*fs.Source)
	if !ok {
		return fmt.Errorf("watch needs a filesystem source, got %q", a.cfg.Source.Type)
	}

	pass := func(ctx context.Context) error {
		summary, err := a.Import(ctx)
		if onPass != nil {
			onPass(summary, err)
		}
		return err
	}
	if err := pass(ctx); err != nil && ctx.Err() != nil {
		return nil
	}

	w := watch.NewWatcher(src.Root(), src.Ignored, quiet, &slogAdapter{l: a.logger})
	a.logger.Info("watching", "root", src.Root())
	return w.Run(ctx, pass)
}

// DryRunForum returns the in-memory forum a dry run imported into, or nil
// when the app is not in dry-run mode or has not imported yet.
func (a *FsyncApp) DryRunForum() *forum.MemoryForum {
	if !a.opts.DryRun {
		return nil
	}
	m, _ := a.forum.(*forum.MemoryForum)
	return m
}

// History returns the most recent import runs.
func (a *FsyncApp) History(limit int) ([]*importer.Run, error) {
	return a.journal.ListRuns(limit)
}

// RunOutcomes returns the file outcomes recorded for one run.
func (a *FsyncApp) RunOutcomes(runID string) ([]*importer.OutcomeRecord, error) {
	run, err := a.journal.FindRun(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return a.journal.RunOutcomes(runID)
}

// FileLog returns the outcomes recorded for one file, newest first. The path
// is relative to the source root.
func (a *FsyncApp) FileLog(relativePath string, limit int) ([]*importer.OutcomeRecord, error) {
	return a.journal.FileOutcomes(importer.NormalizePath(relativePath), limit)
}

// BackupJournal writes a consistent copy of the journal to destPath.
func (a *FsyncApp) BackupJournal(destPath string) error {
	return a.journal.BackupTo(destPath)
}

// Close closes the journal and the log file.
func (a *FsyncApp) Close() error {
	var firstErr error
	if err := a.journal.Close(); err != nil {
		firstErr = fmt.Errorf("closing journal: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
