package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"unicode/utf8"
)

// ErrBinaryContent marks files that cannot be posted as text.
var ErrBinaryContent = errors.New("content is not valid UTF-8 text")

// Pass is the state of one import pass: the category cache, the resolved
// base category and the index entries gathered so far. A Pass is used by a
// single goroutine.
type Pass struct {
	imp      *Importer
	resolver *CategoryResolver
	baseID   int
	entries  []TocEntry
}

// BaseCategoryID returns the category directories are nested beneath.
func (p *Pass) BaseCategoryID() int { return p.baseID }

// Entries returns the index entries collected so far.
func (p *Pass) Entries() []TocEntry { return p.entries }

// fileState is everything derived from a source file before any remote call.
type fileState struct {
	relPath string
	dir     string
	title   string
	tag     string
	text    string
	hash    string
}

func newFileState(f SourceFile) (*fileState, error) {
	if !utf8.Valid(f.Content) || bytes.IndexByte(f.Content, 0) >= 0 {
		return nil, ErrBinaryContent
	}
	relPath := NormalizePath(f.RelativePath)
	dir, base := path.Split(relPath)
	text := NormalizeLineEndings(string(f.Content))
	return &fileState{
		relPath: relPath,
		dir:     dir,
		title:   base,
		tag:     FilenameTag(base),
		text:    text,
		hash:    Fingerprint(text),
	}, nil
}

// Reconcile brings the forum topic for f up to date: it creates the topic
// when none is tagged for the file in its category, rewrites it when the
// content hash differs, and leaves it alone otherwise. Any returned error is
// a forum failure.
func (p *Pass) Reconcile(ctx context.Context, f SourceFile) (*FileResult, error) {
	log := p.imp.logger

	st, err := newFileState(f)
	if errors.Is(err, ErrBinaryContent) {
		log.Warn("skipping binary file", "path", f.RelativePath)
		return p.finish(&FileResult{
			RelativePath: NormalizePath(f.RelativePath),
			Title:        path.Base(NormalizePath(f.RelativePath)),
			Outcome:      OutcomeSkippedBinary,
			Warning:      err.Error(),
		}), nil
	}

	res := &FileResult{
		RelativePath: st.relPath,
		Title:        st.title,
		Tag:          st.tag,
		ContentHash:  st.hash,
	}

	catID, err := p.resolver.Resolve(ctx, SplitCategoryPath(st.dir), p.baseID)
	if err != nil {
		return nil, err
	}
	res.CategoryID = catID
	if catID == RootCategoryID {
		res.Outcome = OutcomeSkippedUncategorized
		res.Warning = "file sits at the forum root; set a master category to import it"
		log.Warn("skipping uncategorized file", "path", st.relPath)
		return p.finish(res), nil
	}

	existing, err := p.imp.forum.FindTopicByTag(ctx, st.tag, catID)
	if err != nil {
		return nil, fmt.Errorf("looking up topic %s: %w", st.tag, err)
	}

	if existing == nil && p.imp.opts.LegacyPathLookup {
		legacy, err := p.findLegacy(ctx, st, catID)
		if err != nil {
			return nil, err
		}
		if legacy != nil {
			res.Outcome = OutcomeSkippedLegacy
			res.TopicID, res.TopicSlug = legacy.ID, legacy.Slug
			res.Warning = "topic was imported by an older version under a full-path tag"
			log.Warn("skipping legacy topic", "path", st.relPath, "topic", legacy.ID)
			return p.finish(res), nil
		}
	}

	if existing == nil {
		if err := p.create(ctx, st, catID, res); err != nil {
			return nil, err
		}
		return p.finish(res), nil
	}

	meta := existing.Metadata()
	if meta.FilePath != "" && meta.FilePath != st.relPath {
		res.Outcome = OutcomeSkippedConflict
		res.Warning = fmt.Sprintf("tag %s in this category belongs to topic %d of %s", st.tag, existing.ID, meta.FilePath)
		log.Warn("skipping tag conflict", "path", st.relPath, "topic", existing.ID, "owner", meta.FilePath)
		return p.finish(res), nil
	}

	res.TopicID, res.TopicSlug = existing.ID, existing.Slug
	if meta.ContentHash == st.hash {
		res.Outcome = OutcomeUnchanged
		log.Debug("topic unchanged", "path", st.relPath, "topic", existing.ID)
		return p.finish(res), nil
	}

	if err := p.update(ctx, st, existing, meta, res); err != nil {
		return nil, err
	}
	return p.finish(res), nil
}

// finish collects the index entry for res and returns it.
func (p *Pass) finish(res *FileResult) *FileResult {
	if e, ok := res.TocEntry(); ok {
		p.entries = append(p.entries, e)
	}
	return res
}

func (p *Pass) findLegacy(ctx context.Context, st *fileState, catID int) (*RemoteTopic, error) {
	tag, err := LegacyPathTag(st.relPath)
	if err != nil {
		return nil, nil
	}
	t, err := p.imp.forum.FindTopicByTag(ctx, tag, catID)
	if err != nil {
		return nil, fmt.Errorf("looking up legacy topic %s: %w", tag, err)
	}
	return t, nil
}

func (p *Pass) metadataFor(st *fileState) TopicMetadata {
	return TopicMetadata{
		Source:   SourceName,
		RepoURL:  p.imp.opts.RepoURL,
		FilePath: st.relPath,
	}
}

// create posts a new topic holding the first chunk and one reply per
// further chunk, in order. A chunked topic is created with its replies
// pending, and the id of every reply is recorded as soon as the forum
// acknowledges it.
func (p *Pass) create(ctx context.Context, st *fileState, catID int, res *FileResult) error {
	imp := p.imp
	rendered := RenderFile(st.relPath, st.text, imp.opts.ChunkMaxLength)
	n := len(rendered.Posts)

	meta := p.metadataFor(st)
	meta.IsChunked = n > 1
	meta.ChunkCount = n
	meta.PostHashes = []string{Fingerprint(rendered.Posts[0])}
	if n == 1 {
		meta.ContentHash = st.hash
	} else {
		meta.RepliesPending = true
	}

	tags := append(PathTags(st.dir), st.tag)
	created, err := imp.forum.CreateTopic(ctx, NewTopic{
		CategoryID: catID,
		Title:      st.title,
		Content:    rendered.Posts[0],
		Tags:       tags,
		AuthorID:   imp.opts.AuthorID,
		CustomData: meta.CustomData(),
	})
	if err != nil {
		return fmt.Errorf("creating topic for %s: %w", st.relPath, err)
	}
	res.TopicID, res.TopicSlug = created.ID, created.Slug
	res.PostsWritten = 1

	for i := 1; i < n; i++ {
		pid, err := p.reply(ctx, created.ID, rendered.Posts[i])
		if err != nil {
			return fmt.Errorf("posting chunk %d/%d of %s: %w", i+1, n, st.relPath, err)
		}
		res.PostsWritten++
		meta.ReplyPostIDs = append(meta.ReplyPostIDs, pid)
		meta.PostHashes = append(meta.PostHashes, Fingerprint(rendered.Posts[i]))
		if i == n-1 {
			meta.RepliesPending = false
			meta.ContentHash = st.hash
		}
		if err := p.recordReplies(ctx, created.ID, meta); err != nil {
			return fmt.Errorf("recording chunk %d/%d of %s: %w", i+1, n, st.relPath, err)
		}
	}

	res.Outcome = OutcomeCreated
	imp.logger.Info("topic created", "path", st.relPath, "topic", created.ID, "posts", n)
	return nil
}

// update rewrites the posts of an existing topic whose content changed.
// Only posts whose rendered content differs are written. Chunks beyond the
// existing replies get new replies; replies no longer needed are overwritten
// with a superseded marker, since posts are never deleted.
func (p *Pass) update(ctx context.Context, st *fileState, topic *RemoteTopic, meta TopicMetadata, res *FileResult) error {
	imp := p.imp
	rendered := RenderFile(st.relPath, st.text, imp.opts.ChunkMaxLength)
	n := len(rendered.Posts)

	if meta.RepliesPending && topic.PostCount != len(meta.ReplyPostIDs)+1 {
		res.Outcome = OutcomeSkippedChunked
		res.Warning = fmt.Sprintf("an interrupted import left %d post(s) but recorded %d; re-import by recreating the topic",
			topic.PostCount, len(meta.ReplyPostIDs)+1)
		imp.logger.Warn("skipping update", "path", st.relPath, "topic", topic.ID, "reason", res.Outcome)
		return nil
	}

	if !meta.TracksReplies() {
		switch {
		case meta.IsChunked:
			res.Outcome = OutcomeSkippedChunked
			res.Warning = "topic is split over replies that were not recorded; re-import by recreating the topic"
		case n > 1:
			res.Outcome = OutcomeSkippedOversize
			res.Warning = fmt.Sprintf("content now needs %d posts but the topic's replies are not tracked", n)
		}
		if res.Outcome != "" {
			imp.logger.Warn("skipping update", "path", st.relPath, "topic", topic.ID, "reason", res.Outcome)
			return nil
		}
		// Older single-post topic: adopt it into the tracked layout.
		meta.PostHashes = []string{""}
		meta.ReplyPostIDs = nil
	}

	postIDs := append([]int{topic.MainPostID}, meta.ReplyPostIDs...)
	hashes := make([]string, 0, max(n, len(postIDs)))

	meta.Source = SourceName
	meta.RepoURL = imp.opts.RepoURL
	meta.FilePath = st.relPath
	pending := meta.RepliesPending
	progress := func() TopicMetadata {
		m := meta
		m.ContentHash = ""
		m.IsChunked = true
		m.ChunkCount = n
		m.ReplyPostIDs = append([]int(nil), postIDs[1:]...)
		m.PostHashes = append([]string(nil), hashes...)
		m.RepliesPending = true
		return m
	}

	for i, content := range rendered.Posts {
		h := Fingerprint(content)
		if i < len(postIDs) {
			if i < len(meta.PostHashes) && meta.PostHashes[i] == h {
				hashes = append(hashes, h)
				continue
			}
			if err := imp.forum.UpdatePost(ctx, postIDs[i], content); err != nil {
				return fmt.Errorf("updating post %d of %s: %w", postIDs[i], st.relPath, err)
			}
			hashes = append(hashes, h)
			res.PostsWritten++
			continue
		}

		if !pending {
			if err := p.recordReplies(ctx, topic.ID, progress()); err != nil {
				return fmt.Errorf("marking replies pending for %s: %w", st.relPath, err)
			}
			pending = true
		}
		pid, err := p.reply(ctx, topic.ID, content)
		if err != nil {
			return fmt.Errorf("posting chunk %d/%d of %s: %w", i+1, n, st.relPath, err)
		}
		res.PostsWritten++
		postIDs = append(postIDs, pid)
		hashes = append(hashes, h)
		if err := p.recordReplies(ctx, topic.ID, progress()); err != nil {
			return fmt.Errorf("recording chunk %d/%d of %s: %w", i+1, n, st.relPath, err)
		}
	}

	retired := retiredPost(n)
	retiredHash := Fingerprint(retired)
	for i := n; i < len(postIDs); i++ {
		if i < len(meta.PostHashes) && meta.PostHashes[i] == retiredHash {
			hashes = append(hashes, retiredHash)
			continue
		}
		if err := imp.forum.UpdatePost(ctx, postIDs[i], retired); err != nil {
			return fmt.Errorf("retiring post %d of %s: %w", postIDs[i], st.relPath, err)
		}
		hashes = append(hashes, retiredHash)
		res.PostsWritten++
	}

	meta.ContentHash = st.hash
	meta.ChunkCount = n
	meta.IsChunked = n > 1
	meta.ReplyPostIDs = postIDs[1:]
	meta.PostHashes = hashes
	meta.RepliesPending = false

	res.Outcome = OutcomeUpdated
	p.storeMetadata(ctx, topic.ID, meta, res)
	imp.logger.Info("topic updated", "path", st.relPath, "topic", topic.ID, "posts_written", res.PostsWritten)
	return nil
}

// reply waits the configured delay and posts one reply. Replies are
// sequential: each is acknowledged before the next is sent.
func (p *Pass) reply(ctx context.Context, topicID int, content string) (int, error) {
	imp := p.imp
	if err := imp.clock.Sleep(ctx, imp.opts.ReplyDelay); err != nil {
		return 0, err
	}
	return imp.forum.CreateReply(ctx, NewReply{
		TopicID:  topicID,
		Content:  content,
		AuthorID: imp.opts.AuthorID,
	})
}

// recordReplies stores the reply ids posted so far. Unlike storeMetadata a
// failure aborts the pass: the forum may hold a reply nothing records.
func (p *Pass) recordReplies(ctx context.Context, topicID int, meta TopicMetadata) error {
	return p.imp.forum.UpdateTopicMetadata(ctx, topicID, meta.CustomData())
}

// storeMetadata writes custom data once every post is in place. A failure
// leaves the stored hash stale, so the next pass compares post hashes again;
// it is reported as a warning rather than aborting the pass.
func (p *Pass) storeMetadata(ctx context.Context, topicID int, meta TopicMetadata, res *FileResult) {
	if err := p.imp.forum.UpdateTopicMetadata(ctx, topicID, meta.CustomData()); err != nil {
		res.Warning = fmt.Sprintf("content written but metadata update failed: %v", err)
		p.imp.logger.Warn("metadata update failed", "topic", topicID, "error", err)
	}
}
